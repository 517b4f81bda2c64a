package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/cyclegate/cyclegate/internal/admission"
	"github.com/cyclegate/cyclegate/internal/persistence"
)

// positionsRepo implements PositionsRepo for PostgreSQL.
type positionsRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewPositionsRepo creates a PostgreSQL open-position repository.
func NewPositionsRepo(db *sqlx.DB, timeout time.Duration) persistence.PositionsRepo {
	return &positionsRepo{db: db, timeout: timeout}
}

// Replace swaps the stored snapshot for the current open-position set.
// The snapshot is written atomically so a restart never sees a partial
// portfolio.
func (r *positionsRepo) Replace(ctx context.Context, positions []admission.Position) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM open_positions`); err != nil {
		return fmt.Errorf("failed to clear open positions: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO open_positions (symbol, score_at_entry, opened_at)
		VALUES ($1, $2, $3)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, pos := range positions {
		if _, err := stmt.ExecContext(ctx, pos.Symbol, pos.ScoreAtEntry, pos.OpenedAt); err != nil {
			return fmt.Errorf("failed to insert position %s: %w", pos.Symbol, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit positions snapshot: %w", err)
	}
	return nil
}

// List returns the stored open positions sorted by symbol.
func (r *positionsRepo) List(ctx context.Context) ([]admission.Position, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT symbol, score_at_entry, opened_at
		FROM open_positions
		ORDER BY symbol ASC`

	var positions []admission.Position
	if err := r.db.SelectContext(ctx, &positions, query); err != nil {
		return nil, fmt.Errorf("failed to list open positions: %w", err)
	}
	return positions, nil
}
