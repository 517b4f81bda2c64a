package admission

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPortfolio_WeakestTieBreaksOnSymbol(t *testing.T) {
	p, err := NewPortfolio(4, []Position{
		{Symbol: "BBB", ScoreAtEntry: 2.0},
		{Symbol: "AAA", ScoreAtEntry: 2.0},
		{Symbol: "CCC", ScoreAtEntry: 3.0},
	})
	require.NoError(t, err)

	weakest, ok := p.Weakest()
	require.True(t, ok)
	assert.Equal(t, "AAA", weakest.Symbol)
}

func TestPortfolio_OpenEnforcesCapacity(t *testing.T) {
	p, err := NewPortfolio(1, nil)
	require.NoError(t, err)

	require.NoError(t, p.Open(Position{Symbol: "A", ScoreAtEntry: 1.0, OpenedAt: time.Now()}))
	assert.True(t, p.Full())
	assert.Error(t, p.Open(Position{Symbol: "B", ScoreAtEntry: 2.0}))
	assert.Error(t, p.Open(Position{Symbol: "A", ScoreAtEntry: 2.0}))
}

func TestNewPortfolio_RejectsOverCapacitySeed(t *testing.T) {
	_, err := NewPortfolio(1, []Position{{Symbol: "A"}, {Symbol: "B"}})
	assert.Error(t, err)
}

func TestPortfolio_PositionsSortedBySymbol(t *testing.T) {
	p, err := NewPortfolio(4, []Position{
		{Symbol: "Z"}, {Symbol: "A"}, {Symbol: "M"},
	})
	require.NoError(t, err)

	got := p.Positions()
	require.Len(t, got, 3)
	assert.Equal(t, "A", got[0].Symbol)
	assert.Equal(t, "M", got[1].Symbol)
	assert.Equal(t, "Z", got[2].Symbol)
}

func TestMemoryCooldowns_PruneDropsExpiredOnly(t *testing.T) {
	store := NewMemoryCooldowns()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.Place(ctx, "OLD", now.Add(-time.Minute)))
	require.NoError(t, store.Place(ctx, "LIVE", now.Add(time.Minute)))

	require.NoError(t, store.Prune(ctx, now))
	assert.Equal(t, 1, store.Len())

	active, err := store.Active(ctx, "LIVE", now)
	require.NoError(t, err)
	assert.True(t, active)
}
