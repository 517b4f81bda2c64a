package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Schema for the admission audit tables. Applied idempotently at startup.
const Schema = `
CREATE TABLE IF NOT EXISTS block_records (
	id              UUID PRIMARY KEY,
	cycle_id        UUID NOT NULL,
	symbol          TEXT NOT NULL,
	reason          TEXT NOT NULL,
	candidate_score DOUBLE PRECISION NOT NULL,
	ts              TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_block_records_symbol_ts ON block_records (symbol, ts);
CREATE INDEX IF NOT EXISTS idx_block_records_ts ON block_records (ts DESC);

CREATE TABLE IF NOT EXISTS open_positions (
	symbol          TEXT PRIMARY KEY,
	score_at_entry  DOUBLE PRECISION NOT NULL,
	opened_at       TIMESTAMPTZ NOT NULL
);
`

// Connect opens a PostgreSQL connection pool and verifies it.
func Connect(ctx context.Context, dsn string, timeout time.Duration) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	return db, nil
}

// EnsureSchema applies the audit schema.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
