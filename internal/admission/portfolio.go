package admission

import (
	"fmt"
	"sort"
	"time"
)

// Position is one open slot in the portfolio.
type Position struct {
	Symbol       string    `json:"symbol" db:"symbol"`
	ScoreAtEntry float64   `json:"score_at_entry" db:"score_at_entry"`
	OpenedAt     time.Time `json:"opened_at" db:"opened_at"`
}

// Portfolio is the fixed-capacity set of open positions. It is mutated
// only by the admission controller during a cycle; the host serializes
// access across cycles and exit management.
type Portfolio struct {
	capacity  int
	positions map[string]Position
}

// NewPortfolio creates a portfolio with the given capacity, seeded with
// existing open positions.
func NewPortfolio(capacity int, open []Position) (*Portfolio, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("portfolio capacity must be positive, got %d", capacity)
	}
	if len(open) > capacity {
		return nil, fmt.Errorf("%d open positions exceed capacity %d", len(open), capacity)
	}
	p := &Portfolio{
		capacity:  capacity,
		positions: make(map[string]Position, capacity),
	}
	for _, pos := range open {
		p.positions[pos.Symbol] = pos
	}
	return p, nil
}

// Len returns the number of open positions.
func (p *Portfolio) Len() int { return len(p.positions) }

// Capacity returns the fixed position limit.
func (p *Portfolio) Capacity() int { return p.capacity }

// Full reports whether the portfolio has no free slots.
func (p *Portfolio) Full() bool { return len(p.positions) >= p.capacity }

// Has reports whether the symbol is currently open.
func (p *Portfolio) Has(symbol string) bool {
	_, ok := p.positions[symbol]
	return ok
}

// Open adds a position. It fails if the portfolio is full or the symbol
// is already open; callers are expected to have checked both.
func (p *Portfolio) Open(pos Position) error {
	if p.Full() {
		return fmt.Errorf("portfolio full at %d/%d", len(p.positions), p.capacity)
	}
	if p.Has(pos.Symbol) {
		return fmt.Errorf("symbol %s already open", pos.Symbol)
	}
	p.positions[pos.Symbol] = pos
	return nil
}

// Close removes and returns the position for symbol.
func (p *Portfolio) Close(symbol string) (Position, bool) {
	pos, ok := p.positions[symbol]
	if ok {
		delete(p.positions, symbol)
	}
	return pos, ok
}

// Weakest returns the open position with the lowest entry score. Ties
// break on symbol name so displacement targeting is deterministic.
func (p *Portfolio) Weakest() (Position, bool) {
	var weakest Position
	found := false
	for _, pos := range p.positions {
		if !found ||
			pos.ScoreAtEntry < weakest.ScoreAtEntry ||
			(pos.ScoreAtEntry == weakest.ScoreAtEntry && pos.Symbol < weakest.Symbol) {
			weakest = pos
			found = true
		}
	}
	return weakest, found
}

// Positions returns a snapshot of open positions sorted by symbol.
func (p *Portfolio) Positions() []Position {
	out := make([]Position, 0, len(p.positions))
	for _, pos := range p.positions {
		out = append(out, pos)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}
