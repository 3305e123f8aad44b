package prediction

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"demand_forecasting/pkg/core/combination"
)

// Forecaster generates a value for a combination absent from the store.
// Implemented by forecast.Model; tests supply stubs.
type Forecaster interface {
	IsReady() bool
	ModelName() string
	// Predict returns the predicted quantity and a confidence score in
	// [0.5, 1.0], deriving model features from the supplied history.
	Predict(ctx context.Context, productID, customerID string, year, month int, history []*PredictionRecord) (quantity, confidence float64, err error)
}

// Engine resolves combinations against the store, falling back to the model
// and writing generated records back before returning them. The engine is
// stateless between calls; all state lives in the Store and the Forecaster.
type Engine struct {
	store Store
	model Forecaster

	// timeout bounds model inference per combination; zero means unbounded.
	timeout time.Duration

	// genMu serializes the re-check / generate / append sequence so that two
	// concurrent resolvers missing on the same key produce exactly one
	// appended record.
	genMu sync.Mutex
}

// NewEngine wires the resolution engine. model may be nil when no artifact
// is configured; lookups still work and misses resolve to unavailable.
func NewEngine(store Store, model Forecaster) *Engine {
	return &Engine{store: store, model: model}
}

// SetTimeout bounds each combination's generation. A timed-out combination
// resolves to a generation error and appends nothing.
func (e *Engine) SetTimeout(d time.Duration) {
	e.timeout = d
}

// Resolve answers every combination in order. A failure on one combination
// never aborts resolution of the others: each entry is either a populated
// record with provenance or a typed error entry.
func (e *Engine) Resolve(ctx context.Context, combos []combination.Combination) []ResolvedResult {
	results := make([]ResolvedResult, 0, len(combos))
	for _, c := range combos {
		results = append(results, e.resolveOne(ctx, c))
	}
	return results
}

func (e *Engine) resolveOne(ctx context.Context, c combination.Combination) ResolvedResult {
	product := CanonicalID(c.Product)
	customer := CanonicalID(c.Customer)
	year, month := c.Period.Year, c.Period.Month

	res := ResolvedResult{Product: product, Customer: customer, Period: c.Period}

	// Fast path: a previously computed value always wins over generating a
	// new one. The model is never touched on a hit.
	if rec, ok := e.store.Lookup(product, customer, year, month); ok {
		res.Provenance = ProvenanceStore
		res.Record = rec
		return res
	}

	if e.model == nil || !e.model.IsReady() {
		res.Provenance = ProvenanceUnavailable
		res.Err = fmt.Errorf("%w: no loaded artifact for %s-%s %s", ErrModelUnavailable, product, customer, c.Period)
		res.Error = res.Err.Error()
		return res
	}

	e.genMu.Lock()
	defer e.genMu.Unlock()

	// Another request may have generated this key while we waited.
	if rec, ok := e.store.Lookup(product, customer, year, month); ok {
		res.Provenance = ProvenanceStore
		res.Record = rec
		return res
	}

	fmt.Printf("[ENGINE] generating prediction for %s-%s %s\n", product, customer, c.Period)

	genCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		genCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	history := e.store.History(product, customer)
	quantity, conf, err := e.model.Predict(genCtx, product, customer, year, month, history)
	if err != nil {
		res.Provenance = ProvenanceUnavailable
		if errors.Is(genCtx.Err(), context.DeadlineExceeded) {
			res.Err = fmt.Errorf("%w: timeout after %s", ErrGeneration, e.timeout)
		} else if errors.Is(err, ErrModelUnavailable) {
			res.Err = err
		} else {
			res.Err = fmt.Errorf("%w: %v", ErrGeneration, err)
		}
		res.Error = res.Err.Error()
		return res
	}

	now := time.Now()
	rec := &PredictionRecord{
		ProductID:     product,
		CustomerID:    customer,
		Year:          year,
		Month:         month,
		PredictedQty:  &quantity,
		ProductLabel:  LabelUnknown,
		CustomerLabel: LabelUnknown,
		RecordKind:    RecordKindRuntime,
		ModelName:     e.model.ModelName(),
		Confidence:    &conf,
		GeneratedAt:   &now,
	}

	// Write-then-return: the append happens before the record is handed
	// back, so a later resolver for the same key observes it via the store.
	if err := e.store.Append(ctx, rec); err != nil {
		if errors.Is(err, ErrPersistence) {
			// Visible this run, not guaranteed durable. Degrade to a
			// warning rather than failing the combination.
			fmt.Printf("[WARNING] %v\n", err)
			res.Warning = err.Error()
		} else {
			res.Provenance = ProvenanceUnavailable
			res.Err = fmt.Errorf("%w: %v", ErrGeneration, err)
			res.Error = res.Err.Error()
			return res
		}
	}

	res.Provenance = ProvenanceGenerated
	res.Record = rec
	return res
}
