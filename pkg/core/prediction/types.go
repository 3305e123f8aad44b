// Package prediction implements the prediction resolution core: the persisted
// store of resolved forecasts and the engine that answers each combination
// from the store or, on a miss, from the forecast model.
package prediction

import (
	"time"

	"demand_forecasting/pkg/core/combination"
)

// Provenance records where a resolved value came from.
type Provenance string

const (
	// ProvenanceStore means the value was found in the persisted store.
	ProvenanceStore Provenance = "from_store"
	// ProvenanceGenerated means the value was produced by the model this run.
	ProvenanceGenerated Provenance = "generated"
	// ProvenanceUnavailable means no value could be produced.
	ProvenanceUnavailable Provenance = "unavailable"
)

// LabelUnknown is the sentinel for product/customer display names that could
// not be resolved. Matches the value historical store files carry.
const LabelUnknown = "N/A"

// RecordKindRuntime marks rows appended by the engine at resolution time, as
// opposed to rows loaded from historical planning runs.
const RecordKindRuntime = "Predetto_Runtime"

// PredictionRecord is one resolved forecast, keyed by
// (product, customer, year, month). At most one record should exist per key;
// lookup takes the first match if a legacy file carries duplicates.
type PredictionRecord struct {
	ProductID  string `json:"product_id"`
	CustomerID string `json:"customer_id"`
	Year       int    `json:"year"`
	Month      int    `json:"month"`

	// PredictedQty and ActualQty are nil when absent. ActualQty is populated
	// later by an external reconciliation process, never by this core.
	PredictedQty *float64 `json:"predicted_quantity"`
	ActualQty    *float64 `json:"actual_quantity,omitempty"`

	ProductLabel  string `json:"product_label"`
	CustomerLabel string `json:"customer_label"`

	RecordKind string `json:"record_kind,omitempty"`

	// ModelName and Confidence are set only on generated records.
	ModelName   string     `json:"model_name,omitempty"`
	Confidence  *float64   `json:"confidence,omitempty"`
	GeneratedAt *time.Time `json:"generated_at,omitempty"`
}

// ResolvedResult is the per-combination outcome of a resolution call: either
// a populated record with provenance, or an explicit typed error entry. A
// failed combination never silently drops out of the result sequence.
type ResolvedResult struct {
	Product  string             `json:"product"`
	Customer string             `json:"customer"`
	Period   combination.Period `json:"period"`

	Provenance Provenance        `json:"provenance"`
	Record     *PredictionRecord `json:"record,omitempty"`

	// Err is set when Provenance is unavailable or generation failed.
	Err error `json:"-"`
	// Error carries Err's message for serialized responses.
	Error string `json:"error,omitempty"`
	// Warning flags degraded outcomes that still produced a value, e.g. a
	// record that is visible this run but whose flush to disk failed.
	Warning string `json:"warning,omitempty"`
}

// Summary aggregates counts over one resolution call.
type Summary struct {
	Total     int `json:"total"`
	FromStore int `json:"from_store"`
	Generated int `json:"generated"`
	Failed    int `json:"failed"`
}

// Summarize tallies provenance counts over a result sequence.
func Summarize(results []ResolvedResult) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		switch {
		case r.Err != nil:
			s.Failed++
		case r.Provenance == ProvenanceStore:
			s.FromStore++
		case r.Provenance == ProvenanceGenerated:
			s.Generated++
		}
	}
	return s
}
