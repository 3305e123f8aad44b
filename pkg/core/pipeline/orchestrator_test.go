package pipeline

import (
	"context"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"demand_forecasting/pkg/core/agent"
	"demand_forecasting/pkg/core/combination"
	"demand_forecasting/pkg/core/compose"
	"demand_forecasting/pkg/core/intent"
	"demand_forecasting/pkg/core/llm"
	"demand_forecasting/pkg/core/prediction"
)

type fixedForecaster struct {
	quantity float64
}

func (f fixedForecaster) IsReady() bool     { return true }
func (f fixedForecaster) ModelName() string { return "fixed" }
func (f fixedForecaster) Predict(ctx context.Context, productID, customerID string, year, month int, history []*prediction.PredictionRecord) (float64, float64, error) {
	return f.quantity, 0.7, nil
}

func testEngine(t *testing.T) (*prediction.CSVStore, *prediction.Engine) {
	t.Helper()
	store := prediction.NewCSVStore(filepath.Join(t.TempDir(), "predictions.csv"))
	return store, prediction.NewEngine(store, fixedForecaster{quantity: 120})
}

func mockedManager(responses ...string) *agent.Manager {
	mgr := agent.NewManager(agent.Config{ActiveProvider: "mock"})
	mgr.RegisterProvider("mock", &llm.MockProvider{Responses: responses})
	return mgr
}

func TestRunForecastEndToEnd(t *testing.T) {
	store, engine := testEngine(t)
	orch := New(nil, store, engine, nil, nil)

	outcome, err := orch.RunForecast(context.Background(),
		[]string{"40000", "40001"}, []string{"393"}, combination.Period{Month: 1, Year: 2024})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if outcome.Type != OutcomeForecast {
		t.Errorf("expected forecast outcome, got %s", outcome.Type)
	}
	if len(outcome.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(outcome.Results))
	}
	if outcome.Counts.Total != 2 || outcome.Counts.Generated != 2 {
		t.Errorf("unexpected counts: %+v", outcome.Counts)
	}
	if !strings.Contains(outcome.Reply, "120.00 kg") {
		t.Errorf("plain summary must carry the quantity: %s", outcome.Reply)
	}
	if store.Size() != 2 {
		t.Errorf("generated records must be persisted, store has %d rows", store.Size())
	}
}

func TestRunForecastInvalidRequest(t *testing.T) {
	store, engine := testEngine(t)
	orch := New(nil, store, engine, nil, nil)

	_, err := orch.RunForecast(context.Background(), nil, []string{"393"}, combination.Period{Month: 1, Year: 2024})
	if err == nil {
		t.Fatal("expected an error for an empty product list")
	}
}

func TestRunForecastScrubsResults(t *testing.T) {
	store, engine := testEngine(t)

	nan := math.NaN()
	store.Append(context.Background(), &prediction.PredictionRecord{
		ProductID:    "40000",
		CustomerID:   "393",
		Year:         2024,
		Month:        1,
		PredictedQty: &nan,
	})

	orch := New(nil, store, engine, nil, nil)
	outcome, err := orch.RunForecast(context.Background(),
		[]string{"40000"}, []string{"393"}, combination.Period{Month: 1, Year: 2024})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	rec := outcome.Results[0].Record
	if rec.PredictedQty != nil {
		t.Error("NaN from the store must be scrubbed before results leave the core")
	}

	// The store's own row keeps the NaN: scrubbing is a boundary concern and
	// must never rewrite what the persisted file says.
	stored, ok := store.Lookup("40000", "393", 2024, 1)
	if !ok {
		t.Fatal("stored row disappeared")
	}
	if stored.PredictedQty == nil || !math.IsNaN(*stored.PredictedQty) {
		t.Error("scrubbing leaked into the store's row")
	}
}

func TestHandleMessageChat(t *testing.T) {
	store, engine := testEngine(t)
	parser := intent.NewParser(mockedManager(
		`{"type": "chat", "chat_reply": "Hello! Ask me for a forecast."}`))

	orch := New(parser, store, engine, nil, nil)
	outcome := orch.HandleMessage(context.Background(), "hi there")

	if outcome.Type != OutcomeChat {
		t.Fatalf("expected chat outcome, got %s", outcome.Type)
	}
	if outcome.Reply != "Hello! Ask me for a forecast." {
		t.Errorf("reply: %q", outcome.Reply)
	}
	if outcome.RequestID == "" {
		t.Error("every outcome carries a request id")
	}
	if store.Size() != 0 {
		t.Error("chat must not touch the store")
	}
}

func TestHandleMessageForecast(t *testing.T) {
	store, engine := testEngine(t)
	parser := intent.NewParser(mockedManager(
		`{"type": "forecast", "data": {"products": ["40000"], "customers": ["393"], "period": {"month": 1, "year": 2024}}}`))

	orch := New(parser, store, engine, nil, nil)
	outcome := orch.HandleMessage(context.Background(), "forecast 40000 for 393 in january 2024")

	if outcome.Type != OutcomeForecast {
		t.Fatalf("expected forecast outcome, got %s (%s)", outcome.Type, outcome.Reply)
	}
	if outcome.Counts.Generated != 1 {
		t.Errorf("unexpected counts: %+v", outcome.Counts)
	}
	if store.Size() != 1 {
		t.Errorf("expected one persisted record, got %d", store.Size())
	}
}

func TestHandleMessageWithComposer(t *testing.T) {
	store, engine := testEngine(t)

	// One manager serving both agents: first call parses, second composes.
	mgr := mockedManager(
		`{"type": "forecast", "data": {"products": ["40000"], "customers": ["393"], "period": {"month": 1, "year": 2024}}}`,
		"Composed answer: expect around 120 kg in January.")
	parser := intent.NewParser(mgr)
	composer := compose.NewComposer(mgr)

	orch := New(parser, store, engine, nil, composer)
	outcome := orch.HandleMessage(context.Background(), "forecast please")

	if outcome.Type != OutcomeForecast {
		t.Fatalf("expected forecast outcome, got %s", outcome.Type)
	}
	if !strings.Contains(outcome.Reply, "Composed answer") {
		t.Errorf("expected the composed reply, got: %s", outcome.Reply)
	}
}

func TestHandleMessageWithoutParser(t *testing.T) {
	store, engine := testEngine(t)
	orch := New(nil, store, engine, nil, nil)

	outcome := orch.HandleMessage(context.Background(), "hello")
	if outcome.Type != OutcomeError {
		t.Errorf("expected error outcome without a parser, got %s", outcome.Type)
	}
}

func TestHandleMessageParserFailure(t *testing.T) {
	store, engine := testEngine(t)
	mgr := agent.NewManager(agent.Config{ActiveProvider: "mock"})
	mgr.RegisterProvider("mock", &llm.MockProvider{Err: context.DeadlineExceeded})
	parser := intent.NewParser(mgr)

	orch := New(parser, store, engine, nil, nil)
	outcome := orch.HandleMessage(context.Background(), "hello")

	if outcome.Type != OutcomeError {
		t.Fatalf("expected error outcome, got %s", outcome.Type)
	}
	if outcome.Reply == "" {
		t.Error("error outcomes must carry a presentable reply")
	}
}
