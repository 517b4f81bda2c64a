package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/cyclegate/cyclegate/internal/admission"
	"github.com/cyclegate/cyclegate/internal/persistence"
)

// blocksRepo implements BlocksRepo for PostgreSQL.
type blocksRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewBlocksRepo creates a PostgreSQL block-record repository.
func NewBlocksRepo(db *sqlx.DB, timeout time.Duration) persistence.BlocksRepo {
	return &blocksRepo{db: db, timeout: timeout}
}

// Insert appends one block record. Records are immutable; a duplicate
// ID is a caller bug surfaced as an error, never an overwrite.
func (r *blocksRepo) Insert(ctx context.Context, rec admission.BlockRecord) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		INSERT INTO block_records (id, cycle_id, symbol, reason, candidate_score, ts)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.CycleID, rec.Symbol, rec.Reason, rec.CandidateScore, rec.Timestamp)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return fmt.Errorf("duplicate block record %s: %w", rec.ID, err)
		}
		return fmt.Errorf("failed to insert block record: %w", err)
	}
	return nil
}

// InsertBatch appends a cycle's block records atomically.
func (r *blocksRepo) InsertBatch(ctx context.Context, recs []admission.BlockRecord) error {
	if len(recs) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO block_records (id, cycle_id, symbol, reason, candidate_score, ts)
		VALUES ($1, $2, $3, $4, $5, $6)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, rec := range recs {
		if _, err := stmt.ExecContext(ctx,
			rec.ID, rec.CycleID, rec.Symbol, rec.Reason, rec.CandidateScore, rec.Timestamp); err != nil {
			return fmt.Errorf("failed to insert block record %s: %w", rec.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit block records: %w", err)
	}
	return nil
}

// ListRecent returns the newest block records, newest first.
func (r *blocksRepo) ListRecent(ctx context.Context, limit int) ([]admission.BlockRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT id, cycle_id, symbol, reason, candidate_score, ts
		FROM block_records
		ORDER BY ts DESC
		LIMIT $1`

	var recs []admission.BlockRecord
	if err := r.db.SelectContext(ctx, &recs, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list block records: %w", err)
	}
	return recs, nil
}

// ListBySymbol returns a symbol's block records since the given time,
// oldest first.
func (r *blocksRepo) ListBySymbol(ctx context.Context, symbol string, since time.Time) ([]admission.BlockRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT id, cycle_id, symbol, reason, candidate_score, ts
		FROM block_records
		WHERE symbol = $1 AND ts >= $2
		ORDER BY ts ASC`

	var recs []admission.BlockRecord
	if err := r.db.SelectContext(ctx, &recs, query, symbol, since); err != nil {
		return nil, fmt.Errorf("failed to list block records for %s: %w", symbol, err)
	}
	return recs, nil
}
