package persistence

import (
	"context"
	"time"

	"github.com/cyclegate/cyclegate/internal/admission"
)

// BlocksRepo stores the append-only BlockRecord stream. Records are
// inserted once and never rewritten.
type BlocksRepo interface {
	Insert(ctx context.Context, rec admission.BlockRecord) error
	InsertBatch(ctx context.Context, recs []admission.BlockRecord) error
	ListRecent(ctx context.Context, limit int) ([]admission.BlockRecord, error)
	ListBySymbol(ctx context.Context, symbol string, since time.Time) ([]admission.BlockRecord, error)
}

// PositionsRepo snapshots the open-position set after each cycle so the
// portfolio can be rebuilt on restart.
type PositionsRepo interface {
	Replace(ctx context.Context, positions []admission.Position) error
	List(ctx context.Context) ([]admission.Position, error)
}

// Store bundles the repositories used by the cycle driver.
type Store struct {
	Blocks    BlocksRepo
	Positions PositionsRepo
}

// NopStore returns a Store whose repositories discard writes and return
// empty reads. Used when the host runs without a database.
func NopStore() *Store {
	return &Store{Blocks: nopBlocks{}, Positions: nopPositions{}}
}

type nopBlocks struct{}

func (nopBlocks) Insert(context.Context, admission.BlockRecord) error { return nil }
func (nopBlocks) InsertBatch(context.Context, []admission.BlockRecord) error {
	return nil
}
func (nopBlocks) ListRecent(context.Context, int) ([]admission.BlockRecord, error) {
	return nil, nil
}
func (nopBlocks) ListBySymbol(context.Context, string, time.Time) ([]admission.BlockRecord, error) {
	return nil, nil
}

type nopPositions struct{}

func (nopPositions) Replace(context.Context, []admission.Position) error { return nil }
func (nopPositions) List(context.Context) ([]admission.Position, error) { return nil, nil }
