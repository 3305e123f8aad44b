package prediction

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"demand_forecasting/pkg/core/combination"
)

// stubForecaster counts Predict calls and can fail selectively or block
// until the context expires.
type stubForecaster struct {
	mu       sync.Mutex
	calls    int
	quantity float64
	failFor  map[string]error
	block    bool
}

func (f *stubForecaster) IsReady() bool     { return true }
func (f *stubForecaster) ModelName() string { return "stub_model" }

func (f *stubForecaster) Predict(ctx context.Context, productID, customerID string, year, month int, history []*PredictionRecord) (float64, float64, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.block {
		<-ctx.Done()
		return 0, 0, ctx.Err()
	}
	if err, ok := f.failFor[productID]; ok {
		return 0, 0, err
	}
	return f.quantity, 0.7, nil
}

func (f *stubForecaster) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func mustCombos(t *testing.T, products, customers []string, period combination.Period) []combination.Combination {
	t.Helper()
	combos, err := combination.Expand(products, customers, period)
	if err != nil {
		t.Fatalf("expand failed: %v", err)
	}
	return combos
}

func TestEngineResolveFromStore(t *testing.T) {
	store := NewCSVStore(tempStorePath(t))
	store.Append(context.Background(), testRecord("40000", "393", 2024, 1, 150))

	model := &stubForecaster{quantity: 999}
	engine := NewEngine(store, model)

	combos := mustCombos(t, []string{"40000"}, []string{"393"}, combination.Period{Month: 1, Year: 2024})
	results := engine.Resolve(context.Background(), combos)

	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Provenance != ProvenanceStore {
		t.Errorf("expected from_store, got %s", results[0].Provenance)
	}
	if results[0].Record == nil || *results[0].Record.PredictedQty != 150 {
		t.Error("stored value must win over generation")
	}
	if model.callCount() != 0 {
		t.Errorf("model must not run on a store hit, got %d calls", model.callCount())
	}
}

func TestEngineGeneratesAndPersists(t *testing.T) {
	path := tempStorePath(t)
	store := NewCSVStore(path)
	model := &stubForecaster{quantity: 210.5}
	engine := NewEngine(store, model)

	combos := mustCombos(t, []string{"40000"}, []string{"393"}, combination.Period{Month: 1, Year: 2024})
	results := engine.Resolve(context.Background(), combos)

	res := results[0]
	if res.Provenance != ProvenanceGenerated {
		t.Fatalf("expected generated, got %s (err %v)", res.Provenance, res.Err)
	}
	if res.Record == nil || res.Record.PredictedQty == nil || *res.Record.PredictedQty != 210.5 {
		t.Fatal("generated record missing predicted quantity")
	}
	if res.Record.RecordKind != RecordKindRuntime {
		t.Errorf("expected runtime record kind, got %q", res.Record.RecordKind)
	}
	if res.Record.ModelName != "stub_model" {
		t.Errorf("expected model name on generated record, got %q", res.Record.ModelName)
	}
	if res.Record.ProductLabel != LabelUnknown || res.Record.CustomerLabel != LabelUnknown {
		t.Error("generated records carry sentinel labels")
	}
	if res.Record.GeneratedAt == nil {
		t.Error("generated record must carry a timestamp")
	}

	// Persisted: a fresh store sees it.
	if _, ok := NewCSVStore(path).Lookup("40000", "393", 2024, 1); !ok {
		t.Error("generated record was not flushed")
	}
}

func TestEngineResolveIdempotent(t *testing.T) {
	store := NewCSVStore(tempStorePath(t))
	model := &stubForecaster{quantity: 100}
	engine := NewEngine(store, model)

	combos := mustCombos(t, []string{"40000"}, []string{"393"}, combination.Period{Month: 1, Year: 2024})

	first := engine.Resolve(context.Background(), combos)
	if first[0].Provenance != ProvenanceGenerated {
		t.Fatalf("first resolve: expected generated, got %s", first[0].Provenance)
	}

	second := engine.Resolve(context.Background(), combos)
	if second[0].Provenance != ProvenanceStore {
		t.Errorf("second resolve: expected from_store, got %s", second[0].Provenance)
	}
	if second[0].Record == nil || *second[0].Record.PredictedQty != *first[0].Record.PredictedQty {
		t.Error("second resolve must return the stored value")
	}
	if model.callCount() != 1 {
		t.Errorf("model must run exactly once across both resolves, got %d calls", model.callCount())
	}
	if store.Size() != 1 {
		t.Errorf("expected a single stored row, got %d", store.Size())
	}
}

func TestEngineMixedBatch(t *testing.T) {
	store := NewCSVStore(tempStorePath(t))
	store.Append(context.Background(), testRecord("40000", "393", 2024, 1, 150))

	model := &stubForecaster{quantity: 75}
	engine := NewEngine(store, model)

	combos := mustCombos(t, []string{"40000", "40001"}, []string{"393"}, combination.Period{Month: 1, Year: 2024})
	results := engine.Resolve(context.Background(), combos)

	if results[0].Provenance != ProvenanceStore {
		t.Errorf("combo 0: expected from_store, got %s", results[0].Provenance)
	}
	if results[1].Provenance != ProvenanceGenerated {
		t.Errorf("combo 1: expected generated, got %s", results[1].Provenance)
	}

	summary := Summarize(results)
	if summary.Total != 2 || summary.FromStore != 1 || summary.Generated != 1 || summary.Failed != 0 {
		t.Errorf("unexpected summary: %+v", summary)
	}
}

func TestEngineModelUnavailable(t *testing.T) {
	store := NewCSVStore(tempStorePath(t))
	store.Append(context.Background(), testRecord("40000", "393", 2024, 1, 150))

	engine := NewEngine(store, nil)

	combos := mustCombos(t, []string{"40000", "40001"}, []string{"393"}, combination.Period{Month: 1, Year: 2024})
	results := engine.Resolve(context.Background(), combos)

	// The store hit still resolves.
	if results[0].Provenance != ProvenanceStore {
		t.Errorf("combo 0: expected from_store, got %s", results[0].Provenance)
	}

	// The miss degrades to a typed error without aborting the batch.
	if results[1].Provenance != ProvenanceUnavailable {
		t.Errorf("combo 1: expected unavailable, got %s", results[1].Provenance)
	}
	if !errors.Is(results[1].Err, ErrModelUnavailable) {
		t.Errorf("combo 1: expected ErrModelUnavailable, got %v", results[1].Err)
	}
	if results[1].Error == "" {
		t.Error("combo 1: serialized error message must be set")
	}
	if store.Size() != 1 {
		t.Errorf("no record may be appended for unavailable combos, store has %d rows", store.Size())
	}
}

func TestEngineGenerationFailureIsolated(t *testing.T) {
	store := NewCSVStore(tempStorePath(t))
	model := &stubForecaster{
		quantity: 50,
		failFor:  map[string]error{"40001": fmt.Errorf("singular feature matrix")},
	}
	engine := NewEngine(store, model)

	combos := mustCombos(t, []string{"40000", "40001", "40002"}, []string{"393"}, combination.Period{Month: 1, Year: 2024})
	results := engine.Resolve(context.Background(), combos)

	if results[0].Provenance != ProvenanceGenerated || results[2].Provenance != ProvenanceGenerated {
		t.Error("healthy combos must still generate around a failing one")
	}
	if !errors.Is(results[1].Err, ErrGeneration) {
		t.Errorf("expected ErrGeneration for the failing combo, got %v", results[1].Err)
	}
	if store.Size() != 2 {
		t.Errorf("only successful generations may be appended, store has %d rows", store.Size())
	}
}

func TestEnginePersistenceFailureDegradesToWarning(t *testing.T) {
	// Unwritable path: flush fails but the generated value must still be
	// returned and visible in memory.
	store := NewCSVStore(filepath.Join(t.TempDir(), "missing_dir", "predictions.csv"))
	model := &stubForecaster{quantity: 42}
	engine := NewEngine(store, model)

	combos := mustCombos(t, []string{"40000"}, []string{"393"}, combination.Period{Month: 1, Year: 2024})
	results := engine.Resolve(context.Background(), combos)

	res := results[0]
	if res.Provenance != ProvenanceGenerated {
		t.Fatalf("expected generated despite flush failure, got %s (err %v)", res.Provenance, res.Err)
	}
	if res.Err != nil {
		t.Errorf("flush failure must not fail the combination: %v", res.Err)
	}
	if res.Warning == "" {
		t.Error("flush failure must surface as a warning")
	}

	// Later lookups in this process see the record.
	second := engine.Resolve(context.Background(), combos)
	if second[0].Provenance != ProvenanceStore {
		t.Errorf("expected from_store on the second resolve, got %s", second[0].Provenance)
	}
}

func TestEngineHistoryVisibleWithinBatch(t *testing.T) {
	store := NewCSVStore(tempStorePath(t))
	model := &historyLengthForecaster{}
	engine := NewEngine(store, model)

	// Same pair, consecutive months: the January append must be visible as
	// history when February generates.
	combos := []combination.Combination{
		{Product: "40000", Customer: "393", Period: combination.Period{Month: 1, Year: 2024}},
		{Product: "40000", Customer: "393", Period: combination.Period{Month: 2, Year: 2024}},
	}
	results := engine.Resolve(context.Background(), combos)

	if *results[0].Record.PredictedQty != 0 {
		t.Errorf("first combo should see empty history, got qty %v", *results[0].Record.PredictedQty)
	}
	if *results[1].Record.PredictedQty != 1 {
		t.Errorf("second combo should see the first append, got qty %v", *results[1].Record.PredictedQty)
	}
}

// historyLengthForecaster predicts the length of the supplied history, making
// history visibility observable.
type historyLengthForecaster struct{}

func (historyLengthForecaster) IsReady() bool     { return true }
func (historyLengthForecaster) ModelName() string { return "history_probe" }
func (historyLengthForecaster) Predict(ctx context.Context, productID, customerID string, year, month int, history []*PredictionRecord) (float64, float64, error) {
	return float64(len(history)), 0.7, nil
}

func TestEngineConcurrentSameKeyGeneratesOnce(t *testing.T) {
	store := NewCSVStore(tempStorePath(t))
	model := &stubForecaster{quantity: 88}
	engine := NewEngine(store, model)

	combos := mustCombos(t, []string{"40000"}, []string{"393"}, combination.Period{Month: 1, Year: 2024})

	var wg sync.WaitGroup
	results := make([][]ResolvedResult, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = engine.Resolve(context.Background(), combos)
		}(i)
	}
	wg.Wait()

	if model.callCount() != 1 {
		t.Errorf("concurrent resolvers must generate once, model ran %d times", model.callCount())
	}
	if store.Size() != 1 {
		t.Errorf("expected exactly one stored row, got %d", store.Size())
	}
	for i, batch := range results {
		if batch[0].Err != nil {
			t.Errorf("resolver %d failed: %v", i, batch[0].Err)
		}
		if batch[0].Record == nil || *batch[0].Record.PredictedQty != 88 {
			t.Errorf("resolver %d got the wrong value", i)
		}
	}
}

func TestEngineGenerationTimeout(t *testing.T) {
	store := NewCSVStore(tempStorePath(t))
	model := &stubForecaster{block: true}
	engine := NewEngine(store, model)
	engine.SetTimeout(30 * time.Millisecond)

	combos := mustCombos(t, []string{"40000"}, []string{"393"}, combination.Period{Month: 1, Year: 2024})
	results := engine.Resolve(context.Background(), combos)

	if !errors.Is(results[0].Err, ErrGeneration) {
		t.Errorf("expected ErrGeneration on timeout, got %v", results[0].Err)
	}
	if store.Size() != 0 {
		t.Error("a timed-out combination must not append")
	}
}
