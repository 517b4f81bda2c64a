package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/cyclegate/cyclegate/internal/admission"
	"github.com/cyclegate/cyclegate/internal/domain/signal"
	"github.com/cyclegate/cyclegate/internal/persistence"
	"github.com/cyclegate/cyclegate/internal/telemetry"
)

// CandidateSource supplies one cycle's candidate snapshots. It is the
// boundary to the external signal subsystem.
type CandidateSource interface {
	Fetch(ctx context.Context) ([]signal.Candidate, error)
}

// Publisher receives completed cycle reports for fan-out.
type Publisher interface {
	Publish(report *admission.CycleReport)
}

// Options configures the cycle driver.
type Options struct {
	// Interval between cycle starts.
	Interval time.Duration
	// SourceRPS rate-limits candidate source fetches.
	SourceRPS float64
	// SourceBurst is the fetch rate limiter's burst capacity.
	SourceBurst int
	// BreakerFailures trips the source circuit breaker after this many
	// consecutive fetch failures.
	BreakerFailures uint32
	// BreakerTimeout is how long the breaker stays open before probing.
	BreakerTimeout time.Duration
}

// DefaultOptions returns the production driver settings.
func DefaultOptions() Options {
	return Options{
		Interval:        time.Minute,
		SourceRPS:       1.0,
		SourceBurst:     2,
		BreakerFailures: 3,
		BreakerTimeout:  2 * time.Minute,
	}
}

// Driver invokes the admission controller on a schedule. Cycles never
// interleave: one runs to completion before the next begins, and
// cancellation takes effect between cycles, never mid-cycle.
type Driver struct {
	opts      Options
	source    CandidateSource
	ctrl      *admission.Controller
	store     *persistence.Store
	metrics   *telemetry.Metrics
	publisher Publisher
	breaker   *gobreaker.CircuitBreaker
	limiter   *rate.Limiter
}

// NewDriver wires the driver. store, metrics, and publisher may be nil
// when the host runs without persistence, telemetry, or streaming.
func NewDriver(opts Options, source CandidateSource, ctrl *admission.Controller, store *persistence.Store, metrics *telemetry.Metrics, publisher Publisher) *Driver {
	if store == nil {
		store = persistence.NopStore()
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "candidate-source",
		Timeout: opts.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= opts.BreakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("source breaker state change")
		},
	})
	return &Driver{
		opts:      opts,
		source:    source,
		ctrl:      ctrl,
		store:     store,
		metrics:   metrics,
		publisher: publisher,
		breaker:   breaker,
		limiter:   rate.NewLimiter(rate.Limit(opts.SourceRPS), opts.SourceBurst),
	}
}

// Run executes cycles until ctx is cancelled.
func (d *Driver) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.opts.Interval)
	defer ticker.Stop()

	log.Info().Dur("interval", d.opts.Interval).Msg("cycle driver started")
	for {
		if err := d.RunOnce(ctx); err != nil {
			log.Error().Err(err).Msg("cycle skipped")
		}
		select {
		case <-ctx.Done():
			log.Info().Msg("cycle driver stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce executes a single cycle: fetch, admit, persist, observe.
// Persistence failures are logged, not fatal — the in-memory decision
// already happened and the next cycle re-snapshots.
func (d *Driver) RunOnce(ctx context.Context) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("source rate limit wait: %w", err)
	}

	fetched, err := d.breaker.Execute(func() (interface{}, error) {
		return d.source.Fetch(ctx)
	})
	if err != nil {
		if d.metrics != nil {
			d.metrics.SourceFailures.Inc()
		}
		return fmt.Errorf("candidate fetch: %w", err)
	}
	candidates := fetched.([]signal.Candidate)

	report := d.ctrl.RunCycle(ctx, candidates, time.Now())

	if err := d.store.Blocks.InsertBatch(ctx, report.Blocks); err != nil {
		log.Error().Err(err).Str("cycle_id", report.CycleID).Msg("failed to persist block records")
	}
	if err := d.store.Positions.Replace(ctx, d.ctrl.Portfolio().Positions()); err != nil {
		log.Error().Err(err).Str("cycle_id", report.CycleID).Msg("failed to persist positions snapshot")
	}

	if d.metrics != nil {
		d.metrics.ObserveCycle(report, d.ctrl.Portfolio().Len())
	}
	if d.publisher != nil {
		d.publisher.Publish(report)
	}
	return nil
}
