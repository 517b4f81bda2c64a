package admission

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/cyclegate/cyclegate/internal/domain/signal"
	"github.com/cyclegate/cyclegate/internal/scoring"
)

// BlockRecord is the append-only audit entry written for every rejected
// candidate. It is never mutated after creation.
type BlockRecord struct {
	ID             string    `json:"id" db:"id"`
	CycleID        string    `json:"cycle_id" db:"cycle_id"`
	Symbol         string    `json:"symbol" db:"symbol"`
	Reason         string    `json:"reason" db:"reason"`
	CandidateScore float64   `json:"candidate_score" db:"candidate_score"`
	Timestamp      time.Time `json:"ts" db:"ts"`
}

// Outcome is the decision for one candidate in one cycle.
type Outcome struct {
	Symbol     string            `json:"symbol"`
	Decision   Decision          `json:"decision"`
	Reason     Reason            `json:"reason,omitempty"`
	FinalScore float64           `json:"final_score"`
	Evicted    string            `json:"evicted,omitempty"` // set on displacement
	Breakdown  scoring.Breakdown `json:"breakdown"`
}

// CycleReport aggregates one full cycle's decisions.
type CycleReport struct {
	CycleID   string        `json:"cycle_id"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Outcomes  []Outcome     `json:"outcomes"`
	Blocks    []BlockRecord `json:"blocks"`
	Admitted  int           `json:"admitted"`
	Displaced int           `json:"displaced"`
	Rejected  int           `json:"rejected"`
}

// Controller is the per-cycle admission state machine. It owns the only
// mutations of the portfolio and cooldown registry inside this core and
// processes one cycle to completion at a time.
type Controller struct {
	cfg       Config
	calc      *scoring.Calculator
	portfolio *Portfolio
	cooldowns CooldownStore
}

// NewController wires the controller. The portfolio and cooldown store
// are shared with the host (exit management updates both between
// cycles).
func NewController(cfg Config, calc *scoring.Calculator, portfolio *Portfolio, cooldowns CooldownStore) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Controller{
		cfg:       cfg,
		calc:      calc,
		portfolio: portfolio,
		cooldowns: cooldowns,
	}, nil
}

// Portfolio exposes the current open positions for the HTTP interface
// and exit management.
func (c *Controller) Portfolio() *Portfolio { return c.portfolio }

// Config returns the active constraint set.
func (c *Controller) Config() Config { return c.cfg }

// RunCycle scores, ranks, and admits one cycle's candidates. Ordering is
// explicit: final score descending, symbol ascending on ties. Admissions
// mutate the portfolio synchronously, so later candidates in the same
// cycle observe earlier decisions.
func (c *Controller) RunCycle(ctx context.Context, candidates []signal.Candidate, now time.Time) *CycleReport {
	report := &CycleReport{
		CycleID:   uuid.NewString(),
		StartedAt: now,
		Outcomes:  make([]Outcome, 0, len(candidates)),
	}
	start := time.Now()

	valid := make([]Outcome, 0, len(candidates))
	for _, cand := range candidates {
		b := c.calc.Score(cand)
		o := Outcome{Symbol: cand.Symbol, FinalScore: b.FinalScore, Breakdown: b}
		if !cand.Valid() || math.IsNaN(b.FinalScore) || math.IsInf(b.FinalScore, 0) {
			// One malformed candidate must not abort the cycle.
			o.Decision = DecisionReject
			o.Reason = ReasonValidationFailed
			c.block(report, o, now)
			continue
		}
		valid = append(valid, o)
	}

	sort.Slice(valid, func(i, j int) bool {
		if valid[i].FinalScore != valid[j].FinalScore {
			return valid[i].FinalScore > valid[j].FinalScore
		}
		return valid[i].Symbol < valid[j].Symbol
	})

	for _, o := range valid {
		c.decide(ctx, report, o, now)
	}

	report.Duration = time.Since(start)
	log.Info().
		Str("cycle_id", report.CycleID).
		Int("candidates", len(candidates)).
		Int("admitted", report.Admitted).
		Int("displaced", report.Displaced).
		Int("rejected", report.Rejected).
		Int("open_positions", c.portfolio.Len()).
		Dur("duration", report.Duration).
		Msg("admission cycle complete")
	return report
}

// decide applies the admission checks to one candidate, in order:
// cooldown, duplicate position, expectancy floors, per-cycle budget,
// capacity, displacement.
func (c *Controller) decide(ctx context.Context, report *CycleReport, o Outcome, now time.Time) {
	active, err := c.cooldowns.Active(ctx, o.Symbol, now)
	if err != nil {
		// A degraded cooldown store must not open the door to symbols
		// that may still be barred: treat the symbol as on cooldown.
		log.Warn().Err(err).Str("symbol", o.Symbol).Msg("cooldown lookup failed, treating as active")
		active = true
	}
	if active {
		o.Decision = DecisionReject
		o.Reason = ReasonCooldown
		c.block(report, o, now)
		return
	}

	if c.portfolio.Has(o.Symbol) {
		o.Decision = DecisionReject
		o.Reason = ReasonAlreadyOpen
		c.block(report, o, now)
		return
	}

	if o.FinalScore < c.cfg.ScoreFloor {
		o.Decision = DecisionReject
		o.Reason = ReasonScoreFloor
		c.block(report, o, now)
		return
	}

	if ev := o.Breakdown.EstimatedEV; ev != nil && *ev < c.cfg.EVFloor {
		o.Decision = DecisionReject
		o.Reason = ReasonEVFloor
		c.block(report, o, now)
		return
	}

	if report.Admitted >= c.cfg.MaxNewPerCycle {
		o.Decision = DecisionReject
		o.Reason = ReasonCycleBudget
		c.block(report, o, now)
		return
	}

	if !c.portfolio.Full() {
		c.admit(report, o, now, "")
		return
	}

	weakest, ok := c.portfolio.Weakest()
	if ok && o.FinalScore > weakest.ScoreAtEntry+c.cfg.DisplacementMargin {
		c.portfolio.Close(weakest.Symbol)
		if err := c.cooldowns.Place(ctx, weakest.Symbol, now.Add(c.cfg.Cooldown)); err != nil {
			log.Error().Err(err).Str("symbol", weakest.Symbol).Msg("failed to record displacement cooldown")
		}
		c.admit(report, o, now, weakest.Symbol)
		log.Info().
			Str("symbol", o.Symbol).
			Str("evicted", weakest.Symbol).
			Float64("score", o.FinalScore).
			Float64("evicted_entry_score", weakest.ScoreAtEntry).
			Msg("displacement")
		return
	}

	o.Decision = DecisionReject
	o.Reason = ReasonCapacity
	c.block(report, o, now)
}

func (c *Controller) admit(report *CycleReport, o Outcome, now time.Time, evicted string) {
	if evicted == "" {
		o.Decision = DecisionAdmit
	} else {
		o.Decision = DecisionDisplace
		o.Evicted = evicted
		report.Displaced++
	}
	// Open cannot fail here: capacity and duplicates were checked above.
	if err := c.portfolio.Open(Position{Symbol: o.Symbol, ScoreAtEntry: o.FinalScore, OpenedAt: now}); err != nil {
		log.Error().Err(err).Str("symbol", o.Symbol).Msg("portfolio open failed")
		o.Decision = DecisionReject
		o.Reason = ReasonValidationFailed
		c.block(report, o, now)
		return
	}
	report.Admitted++
	report.Outcomes = append(report.Outcomes, o)
	log.Debug().Str("symbol", o.Symbol).Float64("score", o.FinalScore).Msg("candidate admitted")
}

// block records exactly one BlockRecord for a rejected candidate.
func (c *Controller) block(report *CycleReport, o Outcome, now time.Time) {
	report.Rejected++
	rec := BlockRecord{
		ID:             uuid.NewString(),
		CycleID:        report.CycleID,
		Symbol:         o.Symbol,
		Reason:         o.Reason.String(),
		CandidateScore: o.FinalScore,
		Timestamp:      now,
	}
	report.Blocks = append(report.Blocks, rec)
	report.Outcomes = append(report.Outcomes, o)
	log.Debug().Str("symbol", o.Symbol).Str("reason", o.Reason.String()).Float64("score", o.FinalScore).Msg("candidate blocked")
}

// RecordExit closes a position on behalf of exit management and places
// the exit cooldown. It is the host-facing counterpart of displacement.
func (c *Controller) RecordExit(ctx context.Context, symbol string, now time.Time) error {
	if _, ok := c.portfolio.Close(symbol); !ok {
		return nil
	}
	return c.cooldowns.Place(ctx, symbol, now.Add(c.cfg.Cooldown))
}
