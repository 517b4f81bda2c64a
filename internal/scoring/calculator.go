package scoring

import (
	"time"

	"github.com/cyclegate/cyclegate/internal/domain/signal"
	"github.com/cyclegate/cyclegate/internal/gates"
	"github.com/cyclegate/cyclegate/internal/regime"
)

// MaxDelta bounds the score adjustment in both directions. No
// combination of signals, weights, and gates can move a candidate more
// than this away from its base entry score, which keeps this layer's
// ranking effect strictly secondary to upstream signal quality.
const MaxDelta = 0.25

// Breakdown is the full scoring trace for one candidate: the resolved
// weights, gate evaluation, raw weighted sum, clamped delta, and final
// score. It backs the explain endpoint.
type Breakdown struct {
	Symbol      string             `json:"symbol"`
	Regime      signal.Regime      `json:"regime"`
	Weights     signal.Weights     `json:"weights"`
	Gate        gates.Result       `json:"gate"`
	WeightedSum float64            `json:"weighted_sum"`
	Delta       float64            `json:"delta"`
	BaseScore   float64            `json:"base_score"`
	FinalScore  float64            `json:"final_score"`
	EstimatedEV *float64           `json:"estimated_ev,omitempty"`
	Parts       map[string]float64 `json:"parts"`
	Timestamp   time.Time          `json:"timestamp"`
}

// Calculator combines the regime weight table and gate stack into a
// single candidate scorer. It holds no per-cycle state: scoring the same
// candidate twice yields the same result.
type Calculator struct {
	weights *regime.WeightTable
	gates   *gates.Stack
}

// NewCalculator creates a calculator from a weight table and gate stack.
func NewCalculator(weights *regime.WeightTable, stack *gates.Stack) *Calculator {
	return &Calculator{weights: weights, gates: stack}
}

// NewCalculatorWithDefaults creates a calculator with production weights
// and gate thresholds.
func NewCalculatorWithDefaults() *Calculator {
	return NewCalculator(regime.DefaultWeightTable(), gates.NewStackWithDefaults())
}

// Score produces the candidate's final comparable score and its trace.
func (c *Calculator) Score(cand signal.Candidate) Breakdown {
	w := c.weights.WeightsFor(cand.Regime)
	gate := c.gates.Evaluate(cand)

	sum := cand.Signals.Dot(w)
	delta := Clamp(gate.Composite * sum)

	parts := make(map[string]float64, 8)
	sc := cand.Signals.Components()
	for name, weight := range w.Components() {
		parts[name] = sc[name] * weight
	}

	return Breakdown{
		Symbol:      cand.Symbol,
		Regime:      cand.Regime,
		Weights:     w,
		Gate:        gate,
		WeightedSum: sum,
		Delta:       delta,
		BaseScore:   cand.BaseEntryScore,
		FinalScore:  cand.BaseEntryScore + delta,
		EstimatedEV: cand.EstimatedEV,
		Parts:       parts,
		Timestamp:   cand.Timestamp,
	}
}

// Clamp bounds a raw delta to [-MaxDelta, MaxDelta].
func Clamp(delta float64) float64 {
	if delta > MaxDelta {
		return MaxDelta
	}
	if delta < -MaxDelta {
		return -MaxDelta
	}
	return delta
}
