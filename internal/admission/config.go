package admission

import (
	"fmt"
	"time"
)

// Config holds the hard resource constraints for one cycle. It is
// loaded by the host and never mutated by the controller.
type Config struct {
	// Capacity is the fixed open-position limit.
	Capacity int `yaml:"capacity"`
	// MaxNewPerCycle caps admissions (including displacements) per cycle.
	MaxNewPerCycle int `yaml:"max_new_positions_per_cycle"`
	// ScoreFloor rejects any candidate whose final score falls below it.
	ScoreFloor float64 `yaml:"score_floor"`
	// EVFloor rejects candidates whose expected-value estimate, when
	// present, falls below it. Candidates without an estimate skip this
	// check.
	EVFloor float64 `yaml:"ev_floor"`
	// DisplacementMargin is how far a candidate's score must exceed the
	// weakest open position's entry score before it may displace it.
	// Zero means any strictly positive edge suffices.
	DisplacementMargin float64 `yaml:"displacement_margin"`
	// Cooldown is how long a displaced or exited symbol stays barred.
	Cooldown time.Duration `yaml:"cooldown"`
}

// BootstrapConfig returns the learning-phase profile: floors are
// deliberately loose so the system can accumulate outcome data before
// tightening.
func BootstrapConfig() Config {
	return Config{
		Capacity:           16,
		MaxNewPerCycle:     5,
		ScoreFloor:         -0.02,
		EVFloor:            0.0,
		DisplacementMargin: 0.0,
		Cooldown:           4 * time.Hour,
	}
}

// SteadyStateConfig returns the production profile with floors at their
// operating levels.
func SteadyStateConfig() Config {
	return Config{
		Capacity:           16,
		MaxNewPerCycle:     5,
		ScoreFloor:         0.0,
		EVFloor:            0.10,
		DisplacementMargin: 0.0,
		Cooldown:           4 * time.Hour,
	}
}

// Validate checks structural sanity of the constraint set.
func (c Config) Validate() error {
	if c.Capacity <= 0 {
		return fmt.Errorf("capacity must be positive, got %d", c.Capacity)
	}
	if c.MaxNewPerCycle <= 0 {
		return fmt.Errorf("max_new_positions_per_cycle must be positive, got %d", c.MaxNewPerCycle)
	}
	if c.DisplacementMargin < 0 {
		return fmt.Errorf("displacement_margin must be non-negative, got %f", c.DisplacementMargin)
	}
	if c.Cooldown < 0 {
		return fmt.Errorf("cooldown must be non-negative, got %s", c.Cooldown)
	}
	return nil
}
