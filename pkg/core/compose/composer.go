// Package compose turns resolved forecast results into the human-readable
// answer. Composition is a formatting step over already-sanitized results;
// when no LLM is reachable it degrades to a deterministic plain summary.
package compose

import (
	"context"
	"fmt"
	"strings"

	"demand_forecasting/pkg/core/agent"
	"demand_forecasting/pkg/core/prediction"
	"demand_forecasting/pkg/core/trends"
	"demand_forecasting/pkg/core/utils"
)

const systemPrompt = `You are an expert demand forecasting assistant for a
premium food producer.

Present the sales predictions clearly and professionally, integrating
exogenous Google Trends signals when available.

Guidelines:
- Professional but friendly tone
- Structure the data so it is easy to read
- Highlight the key figures (predicted kg, period)
- Mention whether each prediction came from historical data or was generated
  just now by the model
- When trends data is present, connect market signals to the predictions
- Add strategic insights where appropriate
- Answer in the language of the product descriptions`

// Composer renders the final answer via the configured LLM.
type Composer struct {
	mgr *agent.Manager
}

func NewComposer(mgr *agent.Manager) *Composer {
	return &Composer{mgr: mgr}
}

// Compose builds the natural-language answer over the resolved results and
// optional trends enrichment. Never fails: provider errors fall back to the
// plain summary.
func (c *Composer) Compose(ctx context.Context, results []prediction.ResolvedResult, trendData map[string]*trends.ProductTrend) string {
	parts := []string{"Here are the requested prediction results:", "", resultsContext(results)}

	if trendsText := trends.FormatForLLM(trendData); trendsText != "" {
		parts = append(parts, "", trendsText,
			"Please produce a complete answer that integrates both the predictions and the exogenous Google Trends factors.")
	} else {
		parts = append(parts, "", "Please produce a clear, professional answer presenting these figures to the user.")
	}

	if c.mgr != nil {
		answer, err := c.mgr.ExecutePrompt(ctx, "composer", strings.Join(parts, "\n"), systemPrompt, nil)
		if err == nil {
			cleaned := utils.CleanMarkdown(answer)
			if utils.ValidateMarkdown(cleaned) {
				return cleaned
			}
		} else {
			fmt.Printf("[COMPOSE] LLM composition failed, using plain summary: %v\n", err)
		}
	}

	return PlainSummary(results)
}

// resultsContext renders the results as numbered plain text for the prompt.
func resultsContext(results []prediction.ResolvedResult) string {
	var b strings.Builder
	for i, res := range results {
		if res.Err != nil {
			b.WriteString(fmt.Sprintf("%d. Product %s, customer %s, %s: ERROR - %s\n",
				i+1, res.Product, res.Customer, res.Period, res.Error))
			continue
		}

		source := "generated now by the model"
		if res.Provenance == prediction.ProvenanceStore {
			source = "historical data (store)"
		}

		b.WriteString(fmt.Sprintf("%d. Product %s, customer %s, period %s\n",
			i+1, res.Product, res.Customer, res.Period))
		b.WriteString(fmt.Sprintf("   - Predicted kg: %s\n", formatQty(res.Record.PredictedQty)))
		b.WriteString(fmt.Sprintf("   - Source: %s\n", source))
		if res.Record.Confidence != nil {
			b.WriteString(fmt.Sprintf("   - Confidence: %.0f%%\n", *res.Record.Confidence*100))
		}
	}
	return b.String()
}

// PlainSummary is the deterministic no-LLM rendering of a result batch.
func PlainSummary(results []prediction.ResolvedResult) string {
	lines := []string{"Requested predictions:"}
	for i, res := range results {
		if res.Err != nil {
			lines = append(lines, fmt.Sprintf("%d. product %s, customer %s, %s: %s",
				i+1, res.Product, res.Customer, res.Period, res.Error))
			continue
		}

		source := "model"
		if res.Provenance == prediction.ProvenanceStore {
			source = "store"
		}
		lines = append(lines, fmt.Sprintf("%d. [%s] product %s, customer %s, %s: %s kg",
			i+1, source, res.Product, res.Customer, res.Period, formatQty(res.Record.PredictedQty)))
	}
	return strings.Join(lines, "\n")
}

func formatQty(qty *float64) string {
	if qty == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", *qty)
}
