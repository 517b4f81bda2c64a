package admission

// Decision is the per-candidate outcome of one admission cycle.
type Decision int

const (
	DecisionReject Decision = iota
	DecisionAdmit
	DecisionDisplace
)

func (d Decision) String() string {
	switch d {
	case DecisionAdmit:
		return "admit"
	case DecisionDisplace:
		return "displace"
	default:
		return "reject"
	}
}

// Reason is the stable rejection code attached to every blocked
// candidate. Policy rejections are expected outcomes, not errors.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonValidationFailed
	ReasonCooldown
	ReasonScoreFloor
	ReasonEVFloor
	ReasonCycleBudget
	ReasonCapacity
	ReasonAlreadyOpen
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonValidationFailed:
		return "order_validation_failed"
	case ReasonCooldown:
		return "symbol_on_cooldown"
	case ReasonScoreFloor:
		return "expectancy_blocked:score_floor_breach"
	case ReasonEVFloor:
		return "expectancy_blocked:ev_below_floor"
	case ReasonCycleBudget:
		return "max_new_positions_per_cycle"
	case ReasonCapacity:
		return "max_positions_reached"
	case ReasonAlreadyOpen:
		return "symbol_already_open"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler so reasons serialize as
// their stable codes.
func (r Reason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Reason) UnmarshalText(b []byte) error {
	for _, candidate := range []Reason{
		ReasonNone, ReasonValidationFailed, ReasonCooldown, ReasonScoreFloor,
		ReasonEVFloor, ReasonCycleBudget, ReasonCapacity, ReasonAlreadyOpen,
	} {
		if candidate.String() == string(b) {
			*r = candidate
			return nil
		}
	}
	*r = ReasonNone
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Decision) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Decision) UnmarshalText(b []byte) error {
	switch string(b) {
	case "admit":
		*d = DecisionAdmit
	case "displace":
		*d = DecisionDisplace
	default:
		*d = DecisionReject
	}
	return nil
}
