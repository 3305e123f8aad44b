package prediction

import (
	"context"
	"strconv"
	"strings"
)

// Store is the persisted, append-only table of resolved predictions plus its
// in-memory mirror. Implementations must be safe for concurrent use; the
// engine layers its own generation lock on top so that lookup-generate-append
// happens at most once per key per process lifetime.
type Store interface {
	// Lookup returns the first record matching the key, tolerating
	// numeric-looking identifiers stored with inconsistent types.
	Lookup(productID, customerID string, year, month int) (*PredictionRecord, bool)

	// History returns every record for the (product, customer) pair ordered
	// by period ascending, regardless of year boundaries.
	History(productID, customerID string) []*PredictionRecord

	// Append adds the record to the in-memory table and synchronously
	// flushes the full table to the persisted form. On ErrPersistence the
	// in-memory table still reflects the append: visible this run, not
	// guaranteed durable.
	Append(ctx context.Context, rec *PredictionRecord) error

	// ProductLabels maps product id to display label, for enrichment. Ids
	// without a resolvable label are absent.
	ProductLabels() map[string]string

	IsLoaded() bool
	Size() int
}

// CanonicalID normalizes a key component so that identifiers stored as
// numbers ("40000", "40000.0", 40000) and as strings compare equal. Columns
// in legacy store files are typed inconsistently; lookups must not miss a
// match on type alone.
func CanonicalID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return id
	}
	if f, err := strconv.ParseFloat(id, 64); err == nil && f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return id
}

// sameKey compares two key components after canonicalization.
func sameKey(a, b string) bool {
	return CanonicalID(a) == CanonicalID(b)
}
