package regime

import (
	"fmt"

	"github.com/cyclegate/cyclegate/internal/domain/signal"
)

// Multipliers scales the base weight vector for one regime. A zero-value
// field means "leave the base weight unchanged" (multiplier 1.0), which
// keeps partial YAML overrides safe.
type Multipliers struct {
	Trend         float64 `yaml:"trend"`
	Momentum      float64 `yaml:"momentum"`
	Volatility    float64 `yaml:"volatility"`
	Regime        float64 `yaml:"regime"`
	Sector        float64 `yaml:"sector"`
	Reversal      float64 `yaml:"reversal"`
	Breakout      float64 `yaml:"breakout"`
	MeanReversion float64 `yaml:"mean_reversion"`
}

// WeightTable resolves the per-signal weight vector for a market regime.
// It is a pure lookup: no state beyond its configuration, no side effects.
type WeightTable struct {
	base signal.Weights
	bull Multipliers
	bear Multipliers
	chop Multipliers
}

// DefaultBaseWeights returns the production base weight vector. Each
// weight sits in the 0.015–0.05 band so the unweighted dot product of a
// typical signal vector stays well inside the delta clamp.
func DefaultBaseWeights() signal.Weights {
	return signal.Weights{
		Trend:         0.035,
		Momentum:      0.035,
		Volatility:    0.020,
		Regime:        0.025,
		Sector:        0.020,
		Reversal:      0.025,
		Breakout:      0.030,
		MeanReversion: 0.025,
	}
}

// DefaultMultipliers returns the regime multiplier set used when no
// override is configured.
//
// BULL boosts trend/momentum/breakout and damps mean-reversion style
// signals; BEAR keeps trend/momentum and favors reversal; RANGE inverts
// the bias toward reversal and mean-reversion.
func DefaultMultipliers() (bull, bear, chop Multipliers) {
	bull = Multipliers{
		Trend:         1.4,
		Momentum:      1.4,
		Breakout:      1.3,
		Reversal:      0.6,
		MeanReversion: 0.6,
	}
	bear = Multipliers{
		Trend:         1.3,
		Momentum:      1.3,
		Reversal:      1.4,
		MeanReversion: 0.5,
	}
	chop = Multipliers{
		Reversal:      1.4,
		MeanReversion: 1.4,
		Trend:         0.6,
		Breakout:      0.5,
	}
	return bull, bear, chop
}

// NewWeightTable builds a weight table from a base vector and per-regime
// multipliers. The table is validated up front so WeightsFor never has
// to fail.
func NewWeightTable(base signal.Weights, bull, bear, chop Multipliers) (*WeightTable, error) {
	t := &WeightTable{base: base, bull: bull, bear: bear, chop: chop}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// DefaultWeightTable returns the table built from the production defaults.
func DefaultWeightTable() *WeightTable {
	bull, bear, chop := DefaultMultipliers()
	t, err := NewWeightTable(DefaultBaseWeights(), bull, bear, chop)
	if err != nil {
		// Defaults are constants; a failure here is a programming error.
		panic(err)
	}
	return t
}

// WeightsFor returns the weight vector for the given regime. UNKNOWN
// returns the base vector unmodified — the safe stance when the
// detector has no opinion.
func (t *WeightTable) WeightsFor(r signal.Regime) signal.Weights {
	switch r {
	case signal.RegimeBull:
		return apply(t.base, t.bull)
	case signal.RegimeBear:
		return apply(t.base, t.bear)
	case signal.RegimeRange:
		return apply(t.base, t.chop)
	default:
		return t.base
	}
}

// Base returns the unmodified base weight vector.
func (t *WeightTable) Base() signal.Weights {
	return t.base
}

// Validate checks that every resolvable weight vector is non-negative.
func (t *WeightTable) Validate() error {
	for _, r := range []signal.Regime{signal.RegimeUnknown, signal.RegimeBull, signal.RegimeBear, signal.RegimeRange} {
		w := t.WeightsFor(r)
		for name, v := range w.Components() {
			if v < 0 {
				return fmt.Errorf("regime %s: weight %s is negative (%f)", r, name, v)
			}
		}
	}
	return nil
}

func apply(base signal.Weights, m Multipliers) signal.Weights {
	return signal.Weights{
		Trend:         base.Trend * mult(m.Trend),
		Momentum:      base.Momentum * mult(m.Momentum),
		Volatility:    base.Volatility * mult(m.Volatility),
		Regime:        base.Regime * mult(m.Regime),
		Sector:        base.Sector * mult(m.Sector),
		Reversal:      base.Reversal * mult(m.Reversal),
		Breakout:      base.Breakout * mult(m.Breakout),
		MeanReversion: base.MeanReversion * mult(m.MeanReversion),
	}
}

func mult(m float64) float64 {
	if m == 0 {
		return 1.0
	}
	return m
}
