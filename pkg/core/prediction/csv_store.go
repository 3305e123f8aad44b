package prediction

import (
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"sync"
	"time"
)

// Column headers of the persisted CSV. These match the files produced by the
// historical planning runs, so a pre-existing predictions file keeps working
// without migration.
var csvHeader = []string{
	"Esercizio",            // year
	"Periodo",              // month
	"Data",                 // first-of-month date
	"Prodotto",             // product id
	"Descrizione_Prodotto", // product label
	"Cliente",              // customer id
	"Descrizione_Cliente",  // customer label
	"Kg_Venduti_Predetti",  // predicted quantity
	"Kg_Venduti_Reali",     // actual quantity, reconciled externally
	"Tipo_Periodo",         // record kind
	"Data_Predizione",      // generation timestamp
	"Modello",              // model name
	"Confidenza",           // confidence
}

// CSVStore is the compatibility Store backend: an in-memory table mirrored to
// a CSV file, loaded once at startup and flushed in full after every append.
type CSVStore struct {
	mu     sync.RWMutex
	path   string
	rows   []*PredictionRecord
	loaded bool
}

// NewCSVStore loads the store from path. A missing file yields an empty
// store that will be created on first append; an unreadable or corrupt file
// also yields an empty store (the core degrades rather than refusing to
// start) and the condition is logged for operators.
func NewCSVStore(path string) *CSVStore {
	s := &CSVStore{path: path}
	if err := s.load(); err != nil {
		fmt.Printf("[STORE] %v, starting with empty store\n", fmt.Errorf("%w: %v", ErrStoreLoad, err))
		s.rows = nil
	}
	s.loaded = true
	return s
}

func (s *CSVStore) load() error {
	f, err := os.Open(s.path)
	if os.IsNotExist(err) {
		fmt.Printf("[STORE] predictions file not found at %s, will be created on first append\n", s.path)
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return fmt.Errorf("parsing %s: %v", s.path, err)
	}
	if len(records) == 0 {
		return nil
	}

	col := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		col[name] = i
	}

	for _, row := range records[1:] {
		field := func(name string) string {
			idx, ok := col[name]
			if !ok || idx >= len(row) {
				return ""
			}
			return row[idx]
		}

		year, errY := strconv.Atoi(field("Esercizio"))
		month, errM := strconv.Atoi(field("Periodo"))
		if errY != nil || errM != nil {
			// Malformed row, skip rather than abort the whole load.
			continue
		}

		rec := &PredictionRecord{
			ProductID:     field("Prodotto"),
			CustomerID:    field("Cliente"),
			Year:          year,
			Month:         month,
			ProductLabel:  labelOrUnknown(field("Descrizione_Prodotto")),
			CustomerLabel: labelOrUnknown(field("Descrizione_Cliente")),
			RecordKind:    field("Tipo_Periodo"),
			ModelName:     field("Modello"),
			PredictedQty:  parseFloatField(field("Kg_Venduti_Predetti")),
			ActualQty:     parseFloatField(field("Kg_Venduti_Reali")),
			Confidence:    parseFloatField(field("Confidenza")),
		}
		if ts := parseTimestamp(field("Data_Predizione")); ts != nil {
			rec.GeneratedAt = ts
		}
		s.rows = append(s.rows, rec)
	}

	fmt.Printf("[STORE] loaded %d prediction rows from %s\n", len(s.rows), s.path)
	return nil
}

// Lookup returns the first record matching the key. Duplicate keys can exist
// in legacy files; first match wins.
func (s *CSVStore) Lookup(productID, customerID string, year, month int) (*PredictionRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.rows {
		if r.Year == year && r.Month == month &&
			sameKey(r.ProductID, productID) && sameKey(r.CustomerID, customerID) {
			return r, true
		}
	}
	return nil, false
}

// History returns all records for the pair, oldest period first.
func (s *CSVStore) History(productID, customerID string) []*PredictionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*PredictionRecord
	for _, r := range s.rows {
		if sameKey(r.ProductID, productID) && sameKey(r.CustomerID, customerID) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].Month < out[j].Month
	})
	return out
}

// Append adds the record and flushes the full table to disk. On flush failure
// the in-memory append stands and ErrPersistence is returned.
func (s *CSVStore) Append(ctx context.Context, rec *PredictionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.rows = append(s.rows, rec)
	if err := s.flushLocked(); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}

func (s *CSVStore) flushLocked() error {
	f, err := os.Create(s.path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range s.rows {
		row := []string{
			strconv.Itoa(r.Year),
			strconv.Itoa(r.Month),
			fmt.Sprintf("%04d-%02d-01", r.Year, r.Month),
			r.ProductID,
			r.ProductLabel,
			r.CustomerID,
			r.CustomerLabel,
			formatFloatField(r.PredictedQty),
			formatFloatField(r.ActualQty),
			r.RecordKind,
			formatTimestamp(r.GeneratedAt),
			r.ModelName,
			formatFloatField(r.Confidence),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// ProductLabels returns the first non-sentinel label seen per product.
func (s *CSVStore) ProductLabels() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	labels := make(map[string]string)
	for _, r := range s.rows {
		id := CanonicalID(r.ProductID)
		if _, seen := labels[id]; seen {
			continue
		}
		if r.ProductLabel != "" && r.ProductLabel != LabelUnknown {
			labels[id] = r.ProductLabel
		}
	}
	return labels
}

func (s *CSVStore) IsLoaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

func (s *CSVStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}

func labelOrUnknown(label string) string {
	if label == "" {
		return LabelUnknown
	}
	return label
}

// parseFloatField keeps present-but-invalid values as they are: a "NaN" in
// the file round-trips as a NaN float. Sanitization is the boundary
// sanitizer's job, never the store's.
func parseFloatField(raw string) *float64 {
	if raw == "" {
		return nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}
	return &f
}

func formatFloatField(v *float64) string {
	if v == nil {
		return ""
	}
	if math.IsNaN(*v) {
		return "NaN"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func parseTimestamp(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.999999", "2006-01-02T15:04:05"} {
		if ts, err := time.Parse(layout, raw); err == nil {
			return &ts
		}
	}
	return nil
}

func formatTimestamp(ts *time.Time) string {
	if ts == nil {
		return ""
	}
	return ts.Format(time.RFC3339)
}
