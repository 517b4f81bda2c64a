package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cyclegate/cyclegate/internal/admission"
	"github.com/cyclegate/cyclegate/internal/domain/signal"
	"github.com/cyclegate/cyclegate/internal/gates"
	"github.com/cyclegate/cyclegate/internal/regime"
)

// Profile names the two floor configurations: "bootstrap" runs loose
// floors while the system accumulates outcome data, "steady_state" runs
// the production floors.
const (
	ProfileBootstrap   = "bootstrap"
	ProfileSteadyState = "steady_state"
)

// EngineConfig is the YAML shape of the admission constraints. Durations
// are whole seconds in YAML.
type EngineConfig struct {
	Capacity           int     `yaml:"capacity"`
	MaxNewPerCycle     int     `yaml:"max_new_positions_per_cycle"`
	ScoreFloor         float64 `yaml:"score_floor"`
	EVFloor            float64 `yaml:"ev_floor"`
	DisplacementMargin float64 `yaml:"displacement_margin"`
	CooldownSeconds    int     `yaml:"cooldown_seconds"`
}

// WeightsConfig optionally overrides the regime weight table.
type WeightsConfig struct {
	Base *signal.Weights     `yaml:"base"`
	Bull *regime.Multipliers `yaml:"bull"`
	Bear *regime.Multipliers `yaml:"bear"`
	Chop *regime.Multipliers `yaml:"range"`
}

// SchedulerConfig configures the cycle driver.
type SchedulerConfig struct {
	IntervalSeconds       int     `yaml:"interval_seconds"`
	SourceRPS             float64 `yaml:"source_rps"`
	SourceBurst           int     `yaml:"source_burst"`
	BreakerFailures       uint32  `yaml:"breaker_failures"`
	BreakerTimeoutSeconds int     `yaml:"breaker_timeout_seconds"`
}

// RedisConfig points the cooldown store at Redis. Empty Addr keeps the
// in-memory store.
type RedisConfig struct {
	Addr string `yaml:"addr"`
	DB   int    `yaml:"db"`
}

// PostgresConfig points the audit store at PostgreSQL. Empty DSN keeps
// the no-op store.
type PostgresConfig struct {
	DSN            string `yaml:"dsn"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// HTTPConfig configures the observability server.
type HTTPConfig struct {
	Listen string `yaml:"listen"`
}

// SourceConfig points the driver at the external candidate feed.
type SourceConfig struct {
	URL            string `yaml:"url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Config is the full application configuration.
type Config struct {
	Profile   string          `yaml:"profile"`
	Engine    *EngineConfig   `yaml:"engine"` // overrides the profile when present
	Weights   WeightsConfig   `yaml:"weights"`
	Gates     *gates.Config   `yaml:"gates"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Redis     RedisConfig     `yaml:"redis"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	HTTP      HTTPConfig      `yaml:"http"`
	Source    SourceConfig    `yaml:"source"`
	LogLevel  string          `yaml:"log_level"`
}

// SourceTimeout returns the candidate feed request timeout.
func (c *Config) SourceTimeout() time.Duration {
	if c.Source.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.Source.TimeoutSeconds) * time.Second
}

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	return &Config{
		Profile: ProfileSteadyState,
		Scheduler: SchedulerConfig{
			IntervalSeconds:       60,
			SourceRPS:             1.0,
			SourceBurst:           2,
			BreakerFailures:       3,
			BreakerTimeoutSeconds: 120,
		},
		HTTP:     HTTPConfig{Listen: ":8090"},
		LogLevel: "info",
	}
}

// Load reads and validates a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return c, nil
}

// Validate checks the configuration, including the resolved engine
// constraints and weight table.
func (c *Config) Validate() error {
	switch c.Profile {
	case ProfileBootstrap, ProfileSteadyState:
	default:
		return fmt.Errorf("unknown profile %q (want %s or %s)", c.Profile, ProfileBootstrap, ProfileSteadyState)
	}
	if err := c.EngineConfig().Validate(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	if _, err := c.WeightTable(); err != nil {
		return fmt.Errorf("weights: %w", err)
	}
	if c.Scheduler.IntervalSeconds <= 0 {
		return fmt.Errorf("scheduler: interval_seconds must be positive, got %d", c.Scheduler.IntervalSeconds)
	}
	return nil
}

// EngineConfig resolves the admission constraints: the named profile's
// defaults, or the explicit engine block when one is configured.
func (c *Config) EngineConfig() admission.Config {
	if c.Engine != nil {
		return admission.Config{
			Capacity:           c.Engine.Capacity,
			MaxNewPerCycle:     c.Engine.MaxNewPerCycle,
			ScoreFloor:         c.Engine.ScoreFloor,
			EVFloor:            c.Engine.EVFloor,
			DisplacementMargin: c.Engine.DisplacementMargin,
			Cooldown:           time.Duration(c.Engine.CooldownSeconds) * time.Second,
		}
	}
	if c.Profile == ProfileBootstrap {
		return admission.BootstrapConfig()
	}
	return admission.SteadyStateConfig()
}

// WeightTable resolves the regime weight table, applying any overrides.
func (c *Config) WeightTable() (*regime.WeightTable, error) {
	base := regime.DefaultBaseWeights()
	if c.Weights.Base != nil {
		base = *c.Weights.Base
	}
	bull, bear, chop := regime.DefaultMultipliers()
	if c.Weights.Bull != nil {
		bull = *c.Weights.Bull
	}
	if c.Weights.Bear != nil {
		bear = *c.Weights.Bear
	}
	if c.Weights.Chop != nil {
		chop = *c.Weights.Chop
	}
	return regime.NewWeightTable(base, bull, bear, chop)
}

// GateConfig resolves the gate thresholds.
func (c *Config) GateConfig() gates.Config {
	if c.Gates != nil {
		return *c.Gates
	}
	return gates.DefaultConfig()
}

// CycleInterval returns the driver interval.
func (c *Config) CycleInterval() time.Duration {
	return time.Duration(c.Scheduler.IntervalSeconds) * time.Second
}

// BreakerTimeout returns the source breaker open duration.
func (c *Config) BreakerTimeout() time.Duration {
	return time.Duration(c.Scheduler.BreakerTimeoutSeconds) * time.Second
}

// PostgresTimeout returns the repository call timeout.
func (c *Config) PostgresTimeout() time.Duration {
	if c.Postgres.TimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.Postgres.TimeoutSeconds) * time.Second
}
