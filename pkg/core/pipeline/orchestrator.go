// Package pipeline orchestrates the end-to-end assistant flow:
// intent parsing -> combination expansion -> resolution -> sanitization ->
// optional trends enrichment -> response composition.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"demand_forecasting/pkg/core/combination"
	"demand_forecasting/pkg/core/compose"
	"demand_forecasting/pkg/core/intent"
	"demand_forecasting/pkg/core/prediction"
	"demand_forecasting/pkg/core/sanitize"
	"demand_forecasting/pkg/core/trends"

	"github.com/google/uuid"
)

// Orchestrator wires the collaborators around the resolution core. All
// dependencies are injected so tests can supply isolated instances.
type Orchestrator struct {
	parser   *intent.Parser
	store    prediction.Store
	engine   *prediction.Engine
	analyzer *trends.Analyzer
	composer *compose.Composer

	enableTrends bool
}

// New builds an orchestrator. parser, analyzer and composer may be nil:
// without a parser only RunForecast works, without an analyzer trends are
// skipped, without a composer the plain summary is used.
func New(parser *intent.Parser, store prediction.Store, engine *prediction.Engine, analyzer *trends.Analyzer, composer *compose.Composer) *Orchestrator {
	return &Orchestrator{
		parser:       parser,
		store:        store,
		engine:       engine,
		analyzer:     analyzer,
		composer:     composer,
		enableTrends: analyzer != nil,
	}
}

// SetTrendsEnabled toggles the enrichment step.
func (o *Orchestrator) SetTrendsEnabled(enabled bool) {
	o.enableTrends = enabled && o.analyzer != nil
}

// OutcomeType classifies what the assistant produced for a message.
type OutcomeType string

const (
	OutcomeChat     OutcomeType = "chat"
	OutcomeForecast OutcomeType = "forecast"
	OutcomeError    OutcomeType = "error"
)

// Outcome is the complete answer for one request.
type Outcome struct {
	RequestID string      `json:"request_id"`
	Type      OutcomeType `json:"type"`
	Reply     string      `json:"reply"`

	Results []prediction.ResolvedResult     `json:"results,omitempty"`
	Counts  prediction.Summary              `json:"counts"`
	Trends  map[string]*trends.ProductTrend `json:"trends,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// HandleMessage runs the full assistant flow over a free-form message.
func (o *Orchestrator) HandleMessage(ctx context.Context, message string) *Outcome {
	requestID := uuid.New().String()

	if o.parser == nil {
		return &Outcome{
			RequestID: requestID,
			Type:      OutcomeError,
			Reply:     "intent parsing is not configured",
			Timestamp: time.Now(),
		}
	}

	parsed := o.parser.Parse(ctx, message)
	switch parsed.Type {
	case intent.TypeChat:
		return &Outcome{
			RequestID: requestID,
			Type:      OutcomeChat,
			Reply:     parsed.ChatReply,
			Timestamp: time.Now(),
		}
	case intent.TypeError:
		return &Outcome{
			RequestID: requestID,
			Type:      OutcomeError,
			Reply:     parsed.ChatReply,
			Timestamp: time.Now(),
		}
	}

	outcome, err := o.RunForecast(ctx, parsed.Data.Products, parsed.Data.Customers, parsed.Data.Period)
	if err != nil {
		return &Outcome{
			RequestID: requestID,
			Type:      OutcomeError,
			Reply:     fmt.Sprintf("I could not process that forecast request: %v", err),
			Timestamp: time.Now(),
		}
	}
	outcome.RequestID = requestID
	return outcome
}

// RunForecast resolves an already-structured request. Returns
// combination.ErrInvalidRequest for unexpandable input; per-combination
// failures are reported inside the outcome, never as an error.
func (o *Orchestrator) RunForecast(ctx context.Context, products, customers []string, period combination.Period) (*Outcome, error) {
	combos, err := combination.Expand(products, customers, period)
	if err != nil {
		return nil, err
	}

	results := o.engine.Resolve(ctx, combos)

	// Sanitization happens exactly once, here, where results leave the core.
	sanitize.ScrubResults(results)

	var trendData map[string]*trends.ProductTrend
	if o.enableTrends {
		fmt.Printf("[PIPELINE] analyzing trends for %d product(s)\n", len(products))
		trendData = o.analyzer.AnalyzeProducts(ctx, products, period, o.store.ProductLabels())
	}

	reply := compose.PlainSummary(results)
	if o.composer != nil {
		reply = o.composer.Compose(ctx, results, trendData)
	}

	return &Outcome{
		Type:      OutcomeForecast,
		Reply:     reply,
		Results:   results,
		Counts:    prediction.Summarize(results),
		Trends:    trendData,
		Timestamp: time.Now(),
	}, nil
}
