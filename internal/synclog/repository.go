package synclog

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/storebridge/storebridge/internal/platform/db"
)

// Repository stores entries in Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS order_sync_log (
		id BIGSERIAL PRIMARY KEY,
		order_id BIGINT NOT NULL,
		operation TEXT NOT NULL,
		outcome TEXT NOT NULL,
		sales_order_id TEXT NOT NULL DEFAULT '',
		message TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS order_sync_log_order_idx ON order_sync_log (order_id, created_at DESC)`,
}

// EnsureSchema creates the table and index when missing.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		for _, stmt := range schema {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("synclog: schema: %w", err)
			}
		}
		return nil
	})
}

// Record implements Log.
func (r *Repository) Record(ctx context.Context, e Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO order_sync_log (order_id, operation, outcome, sales_order_id, message, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		e.OrderID, string(e.Operation), string(e.Outcome), e.SalesOrderID, e.Message, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("synclog: record order %d: %w", e.OrderID, err)
	}
	return nil
}

// Failures implements Log.
func (r *Repository) Failures(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, order_id, operation, outcome, sales_order_id, message, created_at FROM (
			SELECT DISTINCT ON (order_id) id, order_id, operation, outcome, sales_order_id, message, created_at
			FROM order_sync_log
			ORDER BY order_id, created_at DESC, id DESC
		) latest
		WHERE outcome IN ($1, $2)
		ORDER BY created_at DESC
		LIMIT $3`, string(OutcomeFailed), string(OutcomeManualAction), limit)
	if err != nil {
		return nil, fmt.Errorf("synclog: failures: %w", err)
	}
	return scanEntries(rows)
}

// History implements Log.
func (r *Repository) History(ctx context.Context, orderID int64) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, order_id, operation, outcome, sales_order_id, message, created_at
		FROM order_sync_log WHERE order_id = $1 ORDER BY created_at DESC, id DESC LIMIT 200`, orderID)
	if err != nil {
		return nil, fmt.Errorf("synclog: history: %w", err)
	}
	return scanEntries(rows)
}

func scanEntries(rows pgx.Rows) ([]Entry, error) {
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var e Entry
		var op, outcome string
		if err := rows.Scan(&e.ID, &e.OrderID, &op, &outcome, &e.SalesOrderID, &e.Message, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Operation = Operation(op)
		e.Outcome = Outcome(outcome)
		out = append(out, e)
	}
	return out, rows.Err()
}
