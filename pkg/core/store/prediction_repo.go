package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"demand_forecasting/pkg/core/prediction"

	"github.com/jackc/pgx/v5"
)

// Schema assumption (managed by migrations elsewhere):
//
// CREATE TABLE IF NOT EXISTS predictions (
//   product_id     TEXT NOT NULL,
//   customer_id    TEXT NOT NULL,
//   year           INT  NOT NULL,
//   month          INT  NOT NULL,
//   product_label  TEXT,
//   customer_label TEXT,
//   predicted_qty  DOUBLE PRECISION,
//   actual_qty     DOUBLE PRECISION,
//   record_kind    TEXT,
//   model_name     TEXT,
//   confidence     DOUBLE PRECISION,
//   generated_at   TIMESTAMPTZ,
//   PRIMARY KEY (product_id, customer_id, year, month)
// );

// PredictionRepo implements prediction.Store on Postgres. Identifiers are
// canonicalized before they touch the database, so the type-ambiguity the
// CSV store has to tolerate cannot arise here; the primary key enforces the
// one-record-per-key invariant that legacy CSV files only approximate.
type PredictionRepo struct {
	loaded bool
}

var _ prediction.Store = (*PredictionRepo)(nil)

// NewPredictionRepo verifies the pool is up and the table is reachable.
func NewPredictionRepo(ctx context.Context) (*PredictionRepo, error) {
	pool := GetPool()
	if pool == nil {
		return nil, fmt.Errorf("database pool not initialized")
	}
	var count int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM predictions`).Scan(&count); err != nil {
		return nil, fmt.Errorf("%w: %v", prediction.ErrStoreLoad, err)
	}
	fmt.Printf("[STORE] postgres prediction store ready (%d rows)\n", count)
	return &PredictionRepo{loaded: true}, nil
}

const recordColumns = `product_id, customer_id, year, month, product_label,
	customer_label, predicted_qty, actual_qty, record_kind, model_name,
	confidence, generated_at`

func (r *PredictionRepo) Lookup(productID, customerID string, year, month int) (*prediction.PredictionRecord, bool) {
	pool := GetPool()
	if pool == nil {
		return nil, false
	}

	query := `SELECT ` + recordColumns + ` FROM predictions
		WHERE product_id = $1 AND customer_id = $2 AND year = $3 AND month = $4
		LIMIT 1`

	row := pool.QueryRow(context.Background(), query,
		prediction.CanonicalID(productID), prediction.CanonicalID(customerID), year, month)
	rec, err := scanRecord(row)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			fmt.Printf("[STORE] lookup failed: %v\n", err)
		}
		return nil, false
	}
	return rec, true
}

func (r *PredictionRepo) History(productID, customerID string) []*prediction.PredictionRecord {
	pool := GetPool()
	if pool == nil {
		return nil
	}

	query := `SELECT ` + recordColumns + ` FROM predictions
		WHERE product_id = $1 AND customer_id = $2
		ORDER BY year ASC, month ASC`

	rows, err := pool.Query(context.Background(), query,
		prediction.CanonicalID(productID), prediction.CanonicalID(customerID))
	if err != nil {
		fmt.Printf("[STORE] history query failed: %v\n", err)
		return nil
	}
	defer rows.Close()

	var out []*prediction.PredictionRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// Append inserts the record. ON CONFLICT DO NOTHING keeps the first write
// for a key, matching the store's first-match-wins lookup semantics.
func (r *PredictionRepo) Append(ctx context.Context, rec *prediction.PredictionRecord) error {
	pool := GetPool()
	if pool == nil {
		return fmt.Errorf("%w: database pool not initialized", prediction.ErrPersistence)
	}

	query := `INSERT INTO predictions (` + recordColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (product_id, customer_id, year, month) DO NOTHING`

	_, err := pool.Exec(ctx, query,
		prediction.CanonicalID(rec.ProductID), prediction.CanonicalID(rec.CustomerID),
		rec.Year, rec.Month, rec.ProductLabel, rec.CustomerLabel,
		rec.PredictedQty, rec.ActualQty, rec.RecordKind, rec.ModelName,
		rec.Confidence, rec.GeneratedAt)
	if err != nil {
		return fmt.Errorf("%w: %v", prediction.ErrPersistence, err)
	}
	return nil
}

func (r *PredictionRepo) ProductLabels() map[string]string {
	pool := GetPool()
	if pool == nil {
		return nil
	}

	rows, err := pool.Query(context.Background(),
		`SELECT DISTINCT ON (product_id) product_id, product_label
		 FROM predictions WHERE product_label IS NOT NULL AND product_label <> $1
		 ORDER BY product_id`,
		prediction.LabelUnknown)
	if err != nil {
		return nil
	}
	defer rows.Close()

	labels := make(map[string]string)
	for rows.Next() {
		var id, label string
		if err := rows.Scan(&id, &label); err == nil {
			labels[id] = label
		}
	}
	return labels
}

func (r *PredictionRepo) IsLoaded() bool {
	return r.loaded && GetPool() != nil
}

func (r *PredictionRepo) Size() int {
	pool := GetPool()
	if pool == nil {
		return 0
	}
	var count int
	if err := pool.QueryRow(context.Background(), `SELECT COUNT(*) FROM predictions`).Scan(&count); err != nil {
		return 0
	}
	return count
}

func scanRecord(row pgx.Row) (*prediction.PredictionRecord, error) {
	var rec prediction.PredictionRecord
	var productLabel, customerLabel, recordKind, modelName *string
	var generatedAt *time.Time
	err := row.Scan(&rec.ProductID, &rec.CustomerID, &rec.Year, &rec.Month,
		&productLabel, &customerLabel, &rec.PredictedQty, &rec.ActualQty,
		&recordKind, &modelName, &rec.Confidence, &generatedAt)
	if err != nil {
		return nil, err
	}
	rec.ProductLabel = stringOrUnknown(productLabel)
	rec.CustomerLabel = stringOrUnknown(customerLabel)
	if recordKind != nil {
		rec.RecordKind = *recordKind
	}
	if modelName != nil {
		rec.ModelName = *modelName
	}
	rec.GeneratedAt = generatedAt
	return &rec, nil
}

func stringOrUnknown(s *string) string {
	if s == nil || *s == "" {
		return prediction.LabelUnknown
	}
	return *s
}
