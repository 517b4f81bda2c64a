package signal

import (
	"math"
	"time"
)

// Candidate is one trade opportunity snapshot for a single cycle. It is
// created fresh each cycle by the signal source and discarded after the
// admission decision is recorded.
type Candidate struct {
	Symbol         string    `json:"symbol"`
	Signals        Vector    `json:"signals"`
	Regime         Regime    `json:"regime"`
	SectorMomentum float64   `json:"sector_momentum"`
	BaseEntryScore float64   `json:"base_entry_score"`
	EstimatedEV    *float64  `json:"estimated_ev,omitempty"` // optional, nil when the EV model has no estimate
	Timestamp      time.Time `json:"timestamp"`
}

// Valid reports whether the candidate carries the structurally required
// fields: a non-empty symbol and a finite base score. Optional fields
// never fail validation.
func (c Candidate) Valid() bool {
	if c.Symbol == "" {
		return false
	}
	if math.IsNaN(c.BaseEntryScore) || math.IsInf(c.BaseEntryScore, 0) {
		return false
	}
	return true
}
