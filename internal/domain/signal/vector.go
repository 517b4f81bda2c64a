package signal

// Vector holds the per-candidate directional signals supplied by the
// upstream signal subsystem. The zero value of every component means
// "no opinion" — a missing signal is neutral, never an error.
type Vector struct {
	Trend         float64 `json:"trend" yaml:"trend"`
	Momentum      float64 `json:"momentum" yaml:"momentum"`
	Volatility    float64 `json:"volatility" yaml:"volatility"`
	Regime        float64 `json:"regime" yaml:"regime"`
	Sector        float64 `json:"sector" yaml:"sector"`
	Reversal      float64 `json:"reversal" yaml:"reversal"`
	Breakout      float64 `json:"breakout" yaml:"breakout"`
	MeanReversion float64 `json:"mean_reversion" yaml:"mean_reversion"`
}

// Weights mirrors Vector component-for-component. All weights are
// non-negative and individually small so the raw dot product stays
// within a controlled range.
type Weights struct {
	Trend         float64 `json:"trend" yaml:"trend"`
	Momentum      float64 `json:"momentum" yaml:"momentum"`
	Volatility    float64 `json:"volatility" yaml:"volatility"`
	Regime        float64 `json:"regime" yaml:"regime"`
	Sector        float64 `json:"sector" yaml:"sector"`
	Reversal      float64 `json:"reversal" yaml:"reversal"`
	Breakout      float64 `json:"breakout" yaml:"breakout"`
	MeanReversion float64 `json:"mean_reversion" yaml:"mean_reversion"`
}

// Dot computes the weighted sum of the vector against w.
func (v Vector) Dot(w Weights) float64 {
	return v.Trend*w.Trend +
		v.Momentum*w.Momentum +
		v.Volatility*w.Volatility +
		v.Regime*w.Regime +
		v.Sector*w.Sector +
		v.Reversal*w.Reversal +
		v.Breakout*w.Breakout +
		v.MeanReversion*w.MeanReversion
}

// Components returns the named component map, useful for breakdown
// reporting and explain output.
func (v Vector) Components() map[string]float64 {
	return map[string]float64{
		"trend":          v.Trend,
		"momentum":       v.Momentum,
		"volatility":     v.Volatility,
		"regime":         v.Regime,
		"sector":         v.Sector,
		"reversal":       v.Reversal,
		"breakout":       v.Breakout,
		"mean_reversion": v.MeanReversion,
	}
}

// Components returns the named weight map.
func (w Weights) Components() map[string]float64 {
	return map[string]float64{
		"trend":          w.Trend,
		"momentum":       w.Momentum,
		"volatility":     w.Volatility,
		"regime":         w.Regime,
		"sector":         w.Sector,
		"reversal":       w.Reversal,
		"breakout":       w.Breakout,
		"mean_reversion": w.MeanReversion,
	}
}

// Min returns the smallest weight component.
func (w Weights) Min() float64 {
	min := w.Trend
	for _, v := range w.Components() {
		if v < min {
			min = v
		}
	}
	return min
}
