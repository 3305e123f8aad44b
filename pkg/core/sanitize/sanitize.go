// Package sanitize removes non-finite numeric values from result structures
// before they leave the core. Applied exactly once, at the boundary where
// results are handed to presentation and enrichment.
package sanitize

import (
	"math"

	"demand_forecasting/pkg/core/prediction"
)

// Clean recursively walks maps and slices, replacing any NaN or infinite
// float with nil and passing every other value through unchanged. Idempotent:
// Clean(Clean(x)) == Clean(x).
func Clean(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = Clean(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = Clean(item)
		}
		return out
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return nil
		}
		return val
	case float32:
		f := float64(val)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil
		}
		return val
	default:
		return v
	}
}

// ScrubResults sanitizes a resolved batch: non-finite quantities or
// confidence values read back from a degenerate store file become explicit
// no-value markers instead of leaking to the caller. Records from store hits
// alias the store's own rows, so each is replaced with a scrubbed copy; the
// store keeps whatever its file said.
func ScrubResults(results []prediction.ResolvedResult) {
	for i := range results {
		if rec := results[i].Record; rec != nil {
			clean := *rec
			ScrubRecord(&clean)
			results[i].Record = &clean
		}
	}
}

// ScrubRecord nils every non-finite numeric field of the record.
func ScrubRecord(rec *prediction.PredictionRecord) {
	rec.PredictedQty = finiteOrNil(rec.PredictedQty)
	rec.ActualQty = finiteOrNil(rec.ActualQty)
	rec.Confidence = finiteOrNil(rec.Confidence)
}

func finiteOrNil(v *float64) *float64 {
	if v == nil {
		return nil
	}
	if math.IsNaN(*v) || math.IsInf(*v, 0) {
		return nil
	}
	return v
}
