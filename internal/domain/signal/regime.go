package signal

import "strings"

// Regime is the coarse market-state label supplied by the external
// regime detector.
type Regime int

const (
	RegimeUnknown Regime = iota // safe default when the detector has no opinion
	RegimeBull
	RegimeBear
	RegimeRange
)

func (r Regime) String() string {
	switch r {
	case RegimeBull:
		return "BULL"
	case RegimeBear:
		return "BEAR"
	case RegimeRange:
		return "RANGE"
	default:
		return "UNKNOWN"
	}
}

// ParseRegime maps a detector label to a Regime. Unrecognized or empty
// labels resolve to RegimeUnknown rather than an error.
func ParseRegime(s string) Regime {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BULL", "TRENDING_BULL":
		return RegimeBull
	case "BEAR", "TRENDING_BEAR":
		return RegimeBear
	case "RANGE", "CHOP", "CHOPPY":
		return RegimeRange
	default:
		return RegimeUnknown
	}
}

// MarshalText implements encoding.TextMarshaler for JSON/YAML output.
func (r Regime) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Unknown labels
// degrade to RegimeUnknown by design of the data-quality policy.
func (r *Regime) UnmarshalText(b []byte) error {
	*r = ParseRegime(string(b))
	return nil
}
