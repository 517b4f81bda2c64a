package gates

import (
	"fmt"

	"github.com/cyclegate/cyclegate/internal/domain/signal"
)

// GateMin is the floor of the composite gate. Signal combinations are
// damped, never fully silenced, so a candidate always retains some
// sensitivity to its signals.
const GateMin = 0.1

// Config holds the gate thresholds. These are documented constants, not
// per-call tuning knobs.
type Config struct {
	// Volatility gate
	ChopDamp          float64 `yaml:"chop_damp"`           // applied when volatility signal < 0
	ExcessVolDamp     float64 `yaml:"excess_vol_damp"`     // applied when volatility signal > threshold
	ExcessVolThreshold float64 `yaml:"excess_vol_threshold"`

	// Regime-consistency gate
	ContradictionDamp float64 `yaml:"contradiction_damp"` // applied when trend+momentum contradict the stated regime

	// Sector-alignment multiplier
	SectorBoost   float64 `yaml:"sector_boost"`   // sector momentum agrees with trend
	SectorPenalty float64 `yaml:"sector_penalty"` // sector momentum disagrees with trend
}

// DefaultConfig returns the production gate thresholds.
func DefaultConfig() Config {
	return Config{
		ChopDamp:           0.25,
		ExcessVolDamp:      0.5,
		ExcessVolThreshold: 0.7,
		ContradictionDamp:  0.5,
		SectorBoost:        1.2,
		SectorPenalty:      0.5,
	}
}

// Check records one sub-gate evaluation for audit output.
type Check struct {
	Name   string  `json:"name"`
	Value  float64 `json:"value"`
	Reason string  `json:"reason"`
}

// Result is the composite gate with its sub-gate breakdown.
type Result struct {
	Volatility float64 `json:"volatility"`
	Regime     float64 `json:"regime"`
	Sector     float64 `json:"sector"`
	Composite  float64 `json:"composite"`
	Checks     []Check `json:"checks"`
}

// Stack evaluates the three multiplicative gates and combines them into
// one bounded composite. All evaluations are pure functions of the
// candidate snapshot.
type Stack struct {
	cfg Config
}

// NewStack creates a gate stack with the given thresholds.
func NewStack(cfg Config) *Stack {
	return &Stack{cfg: cfg}
}

// NewStackWithDefaults creates a gate stack with production thresholds.
func NewStackWithDefaults() *Stack {
	return NewStack(DefaultConfig())
}

// Evaluate computes the composite gate for a candidate. The composite is
// always within [GateMin, 1.0]: the cap keeps the sector boost from
// exceeding full strength and the floor keeps signals alive.
func (s *Stack) Evaluate(c signal.Candidate) Result {
	vol, volReason := s.volatilityGate(c.Signals.Volatility)
	reg, regReason := s.regimeGate(c.Regime, c.Signals.Trend, c.Signals.Momentum)
	sec, secReason := s.sectorGate(c.SectorMomentum, c.Signals.Trend)

	composite := vol * reg * sec
	if composite > 1.0 {
		composite = 1.0
	}
	if composite < GateMin {
		composite = GateMin
	}

	return Result{
		Volatility: vol,
		Regime:     reg,
		Sector:     sec,
		Composite:  composite,
		Checks: []Check{
			{Name: "volatility", Value: vol, Reason: volReason},
			{Name: "regime_consistency", Value: reg, Reason: regReason},
			{Name: "sector_alignment", Value: sec, Reason: secReason},
		},
	}
}

// volatilityGate damps choppy (negative volatility signal) and
// overheated (excessive volatility signal) conditions.
func (s *Stack) volatilityGate(v float64) (float64, string) {
	switch {
	case v < 0:
		return s.cfg.ChopDamp, fmt.Sprintf("volatility %.2f < 0: chop damp", v)
	case v > s.cfg.ExcessVolThreshold:
		return s.cfg.ExcessVolDamp, fmt.Sprintf("volatility %.2f > %.2f: excess damp", v, s.cfg.ExcessVolThreshold)
	default:
		return 1.0, "volatility in range"
	}
}

// regimeGate damps candidates whose trend and momentum both contradict
// the stated regime. RANGE and UNKNOWN are expected to carry mixed
// signals, so they are never damped here.
func (s *Stack) regimeGate(r signal.Regime, trend, momentum float64) (float64, string) {
	switch r {
	case signal.RegimeBull:
		if trend < 0 && momentum < 0 {
			return s.cfg.ContradictionDamp, "trend and momentum negative in BULL regime"
		}
	case signal.RegimeBear:
		if trend > 0 && momentum > 0 {
			return s.cfg.ContradictionDamp, "trend and momentum positive in BEAR regime"
		}
	}
	return 1.0, "signals consistent with regime"
}

// sectorGate boosts when sector momentum confirms the trend signal and
// penalizes when it contradicts it. Either side missing (exactly zero)
// is neutral.
func (s *Stack) sectorGate(sectorMomentum, trend float64) (float64, string) {
	if sectorMomentum == 0 || trend == 0 {
		return 1.0, "sector or trend signal missing"
	}
	if (sectorMomentum > 0) == (trend > 0) {
		return s.cfg.SectorBoost, "sector momentum confirms trend"
	}
	return s.cfg.SectorPenalty, "sector momentum contradicts trend"
}
