package admission

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyclegate/cyclegate/internal/domain/signal"
	"github.com/cyclegate/cyclegate/internal/scoring"
)

// flat returns a candidate whose signal vector is empty, so its final
// score equals its base entry score exactly.
func flat(symbol string, score float64) signal.Candidate {
	return signal.Candidate{
		Symbol:         symbol,
		BaseEntryScore: score,
		Timestamp:      time.Now(),
	}
}

func newTestController(t *testing.T, cfg Config, open []Position) *Controller {
	t.Helper()
	portfolio, err := NewPortfolio(cfg.Capacity, open)
	require.NoError(t, err)
	ctrl, err := NewController(cfg, scoring.NewCalculatorWithDefaults(), portfolio, NewMemoryCooldowns())
	require.NoError(t, err)
	return ctrl
}

func outcomeFor(report *CycleReport, symbol string) (Outcome, bool) {
	for _, o := range report.Outcomes {
		if o.Symbol == symbol {
			return o, true
		}
	}
	return Outcome{}, false
}

func TestRunCycle_AdmitWithRoom(t *testing.T) {
	cfg := BootstrapConfig()
	ctrl := newTestController(t, cfg, nil)

	report := ctrl.RunCycle(context.Background(), []signal.Candidate{flat("AAPL", 2.0)}, time.Now())

	assert.Equal(t, 1, report.Admitted)
	assert.Empty(t, report.Blocks)
	assert.True(t, ctrl.Portfolio().Has("AAPL"))
}

func TestRunCycle_DisplacementAtFullCapacity(t *testing.T) {
	cfg := SteadyStateConfig()
	now := time.Now()

	open := make([]Position, 0, 16)
	for i := 0; i < 15; i++ {
		open = append(open, Position{Symbol: fmt.Sprintf("POS%02d", i), ScoreAtEntry: 4.0, OpenedAt: now.Add(-time.Hour)})
	}
	open = append(open, Position{Symbol: "WEAK", ScoreAtEntry: 3.50, OpenedAt: now.Add(-time.Hour)})

	ctrl := newTestController(t, cfg, open)
	report := ctrl.RunCycle(context.Background(), []signal.Candidate{flat("F", 3.73)}, now)

	assert.Equal(t, 1, report.Admitted)
	assert.Equal(t, 1, report.Displaced)
	assert.Empty(t, report.Blocks, "displacement produces no block record")

	o, ok := outcomeFor(report, "F")
	require.True(t, ok)
	assert.Equal(t, DecisionDisplace, o.Decision)
	assert.Equal(t, "WEAK", o.Evicted)

	assert.True(t, ctrl.Portfolio().Has("F"))
	assert.False(t, ctrl.Portfolio().Has("WEAK"))
	assert.Equal(t, 16, ctrl.Portfolio().Len(), "capacity must not be exceeded")

	active, err := ctrl.cooldowns.Active(context.Background(), "WEAK", now)
	require.NoError(t, err)
	assert.True(t, active, "evicted symbol must be on cooldown")
}

func TestRunCycle_DisplacementRequiresStrictEdge(t *testing.T) {
	cfg := SteadyStateConfig()
	cfg.Capacity = 2
	now := time.Now()
	open := []Position{
		{Symbol: "A", ScoreAtEntry: 3.0, OpenedAt: now},
		{Symbol: "B", ScoreAtEntry: 3.5, OpenedAt: now},
	}
	ctrl := newTestController(t, cfg, open)

	// Equal score is not an edge: reject with max_positions_reached.
	report := ctrl.RunCycle(context.Background(), []signal.Candidate{flat("C", 3.0)}, now)

	o, ok := outcomeFor(report, "C")
	require.True(t, ok)
	assert.Equal(t, DecisionReject, o.Decision)
	assert.Equal(t, ReasonCapacity, o.Reason)
	require.Len(t, report.Blocks, 1)
	assert.Equal(t, "max_positions_reached", report.Blocks[0].Reason)
	assert.True(t, ctrl.Portfolio().Has("A"))
}

func TestRunCycle_DisplacementMarginConfigurable(t *testing.T) {
	cfg := SteadyStateConfig()
	cfg.Capacity = 1
	cfg.DisplacementMargin = 0.5
	now := time.Now()
	ctrl := newTestController(t, cfg, []Position{{Symbol: "A", ScoreAtEntry: 3.0, OpenedAt: now}})

	report := ctrl.RunCycle(context.Background(), []signal.Candidate{flat("B", 3.4)}, now)
	o, _ := outcomeFor(report, "B")
	assert.Equal(t, ReasonCapacity, o.Reason, "edge below margin must not displace")

	report = ctrl.RunCycle(context.Background(), []signal.Candidate{flat("C", 3.6)}, now)
	o, _ = outcomeFor(report, "C")
	assert.Equal(t, DecisionDisplace, o.Decision)
}

func TestRunCycle_ScoreFloorBreach(t *testing.T) {
	cfg := BootstrapConfig()
	cfg.ScoreFloor = 1.5
	ctrl := newTestController(t, cfg, nil)

	report := ctrl.RunCycle(context.Background(), []signal.Candidate{flat("LOW", 1.2)}, time.Now())

	o, ok := outcomeFor(report, "LOW")
	require.True(t, ok)
	assert.Equal(t, DecisionReject, o.Decision)
	assert.Equal(t, "expectancy_blocked:score_floor_breach", o.Reason.String())
	assert.Equal(t, 0, ctrl.Portfolio().Len(), "portfolio unchanged")
	require.Len(t, report.Blocks, 1)
}

func TestRunCycle_EVFloor(t *testing.T) {
	cfg := SteadyStateConfig()
	cfg.EVFloor = 0.10
	ctrl := newTestController(t, cfg, nil)

	lowEV := 0.05
	withEV := flat("EVLOW", 2.0)
	withEV.EstimatedEV = &lowEV
	noEV := flat("NOEV", 2.0)

	report := ctrl.RunCycle(context.Background(), []signal.Candidate{withEV, noEV}, time.Now())

	o, _ := outcomeFor(report, "EVLOW")
	assert.Equal(t, "expectancy_blocked:ev_below_floor", o.Reason.String())

	o, _ = outcomeFor(report, "NOEV")
	assert.Equal(t, DecisionAdmit, o.Decision, "missing EV estimate skips the EV floor")
}

func TestRunCycle_PerCycleBudget(t *testing.T) {
	cfg := BootstrapConfig()
	cfg.Capacity = 32
	cfg.MaxNewPerCycle = 5
	ctrl := newTestController(t, cfg, nil)

	candidates := make([]signal.Candidate, 0, 20)
	for i := 0; i < 20; i++ {
		// Scores 1.00 .. 2.90; the five highest are C15..C19.
		candidates = append(candidates, flat(fmt.Sprintf("C%02d", i), 1.0+float64(i)*0.1))
	}

	report := ctrl.RunCycle(context.Background(), candidates, time.Now())

	assert.Equal(t, 5, report.Admitted)
	assert.Equal(t, 15, report.Rejected)
	assert.Len(t, report.Blocks, 15)
	for _, b := range report.Blocks {
		assert.Equal(t, "max_new_positions_per_cycle", b.Reason)
	}
	for i := 15; i < 20; i++ {
		assert.True(t, ctrl.Portfolio().Has(fmt.Sprintf("C%02d", i)), "the five highest-scoring must be admitted")
	}
}

func TestRunCycle_CooldownBlocksRegardlessOfScore(t *testing.T) {
	cfg := BootstrapConfig()
	ctrl := newTestController(t, cfg, nil)
	now := time.Now()

	require.NoError(t, ctrl.cooldowns.Place(context.Background(), "HOT", now.Add(time.Hour)))

	report := ctrl.RunCycle(context.Background(), []signal.Candidate{
		flat("HOT", 99.0), // cycle's highest score
		flat("OK", 1.0),
	}, now)

	o, _ := outcomeFor(report, "HOT")
	assert.Equal(t, "symbol_on_cooldown", o.Reason.String())
	o, _ = outcomeFor(report, "OK")
	assert.Equal(t, DecisionAdmit, o.Decision)
}

func TestRunCycle_ExpiredCooldownDoesNotBlock(t *testing.T) {
	cfg := BootstrapConfig()
	ctrl := newTestController(t, cfg, nil)
	now := time.Now()

	require.NoError(t, ctrl.cooldowns.Place(context.Background(), "STALE", now.Add(-time.Minute)))

	report := ctrl.RunCycle(context.Background(), []signal.Candidate{flat("STALE", 1.0)}, now)
	o, _ := outcomeFor(report, "STALE")
	assert.Equal(t, DecisionAdmit, o.Decision)
}

func TestRunCycle_MalformedCandidateIsIsolated(t *testing.T) {
	cfg := BootstrapConfig()
	ctrl := newTestController(t, cfg, nil)

	report := ctrl.RunCycle(context.Background(), []signal.Candidate{
		{Symbol: "", BaseEntryScore: 5.0},
		flat("NAN", math.NaN()),
		flat("GOOD", 2.0),
	}, time.Now())

	assert.Equal(t, 1, report.Admitted)
	assert.Equal(t, 2, report.Rejected)
	for _, b := range report.Blocks {
		assert.Equal(t, "order_validation_failed", b.Reason)
	}
	assert.True(t, ctrl.Portfolio().Has("GOOD"))
}

func TestRunCycle_DuplicateOpenSymbolRejected(t *testing.T) {
	cfg := BootstrapConfig()
	now := time.Now()
	ctrl := newTestController(t, cfg, []Position{{Symbol: "HELD", ScoreAtEntry: 2.0, OpenedAt: now}})

	report := ctrl.RunCycle(context.Background(), []signal.Candidate{flat("HELD", 3.0)}, now)

	o, _ := outcomeFor(report, "HELD")
	assert.Equal(t, "symbol_already_open", o.Reason.String())
	assert.Equal(t, 1, ctrl.Portfolio().Len())
}

func TestRunCycle_LaterCandidatesSeeEarlierAdmissions(t *testing.T) {
	cfg := SteadyStateConfig()
	cfg.Capacity = 1
	cfg.MaxNewPerCycle = 5
	ctrl := newTestController(t, cfg, nil)
	now := time.Now()

	// HIGH fills the only slot; MID must then displace it or be blocked.
	report := ctrl.RunCycle(context.Background(), []signal.Candidate{
		flat("MID", 2.0),
		flat("HIGH", 3.0),
	}, now)

	o, _ := outcomeFor(report, "HIGH")
	assert.Equal(t, DecisionAdmit, o.Decision)
	o, _ = outcomeFor(report, "MID")
	assert.Equal(t, ReasonCapacity, o.Reason, "lower score cannot displace the position opened this cycle")
	assert.True(t, ctrl.Portfolio().Has("HIGH"))
}

func TestRunCycle_DeterministicTieBreakBySymbol(t *testing.T) {
	cfg := BootstrapConfig()
	cfg.MaxNewPerCycle = 1
	ctrl := newTestController(t, cfg, nil)

	report := ctrl.RunCycle(context.Background(), []signal.Candidate{
		flat("ZED", 2.0),
		flat("ABC", 2.0),
	}, time.Now())

	o, _ := outcomeFor(report, "ABC")
	assert.Equal(t, DecisionAdmit, o.Decision, "symbol ascending breaks score ties")
	o, _ = outcomeFor(report, "ZED")
	assert.Equal(t, ReasonCycleBudget, o.Reason)
}

func TestRunCycle_NoSymbolBothOpenAndOnCooldown(t *testing.T) {
	cfg := SteadyStateConfig()
	cfg.Capacity = 1
	ctrl := newTestController(t, cfg, []Position{{Symbol: "OLD", ScoreAtEntry: 1.0, OpenedAt: time.Now()}})
	now := time.Now()

	report := ctrl.RunCycle(context.Background(), []signal.Candidate{flat("NEW", 2.0)}, now)
	require.Equal(t, 1, report.Displaced)

	for _, pos := range ctrl.Portfolio().Positions() {
		active, err := ctrl.cooldowns.Active(context.Background(), pos.Symbol, now)
		require.NoError(t, err)
		assert.False(t, active, "open symbol %s must not have an unexpired cooldown", pos.Symbol)
	}
}

func TestRunCycle_OneBlockRecordPerRejection(t *testing.T) {
	cfg := BootstrapConfig()
	cfg.ScoreFloor = 10.0 // everything rejected
	ctrl := newTestController(t, cfg, nil)

	report := ctrl.RunCycle(context.Background(), []signal.Candidate{
		flat("A", 1.0), flat("B", 2.0), flat("C", 3.0),
	}, time.Now())

	assert.Equal(t, 3, report.Rejected)
	require.Len(t, report.Blocks, 3)
	seen := map[string]bool{}
	for _, b := range report.Blocks {
		assert.NotEmpty(t, b.ID)
		assert.Equal(t, report.CycleID, b.CycleID)
		assert.False(t, seen[b.Symbol], "exactly one record per rejected candidate")
		seen[b.Symbol] = true
	}
}

func TestRunCycle_ZeroAdmissionsIsValid(t *testing.T) {
	cfg := SteadyStateConfig()
	cfg.ScoreFloor = 100.0
	ctrl := newTestController(t, cfg, nil)

	report := ctrl.RunCycle(context.Background(), []signal.Candidate{flat("A", 1.0)}, time.Now())
	assert.Equal(t, 0, report.Admitted)
	assert.Equal(t, 0, ctrl.Portfolio().Len())
}

func TestRecordExit_PlacesCooldown(t *testing.T) {
	cfg := BootstrapConfig()
	now := time.Now()
	ctrl := newTestController(t, cfg, []Position{{Symbol: "DONE", ScoreAtEntry: 2.0, OpenedAt: now}})

	require.NoError(t, ctrl.RecordExit(context.Background(), "DONE", now))

	assert.False(t, ctrl.Portfolio().Has("DONE"))
	active, err := ctrl.cooldowns.Active(context.Background(), "DONE", now)
	require.NoError(t, err)
	assert.True(t, active)
}

func TestConfigProfiles(t *testing.T) {
	boot := BootstrapConfig()
	steady := SteadyStateConfig()

	require.NoError(t, boot.Validate())
	require.NoError(t, steady.Validate())
	assert.Less(t, boot.ScoreFloor, steady.ScoreFloor, "bootstrap floor is deliberately looser")
	assert.Less(t, boot.EVFloor, steady.EVFloor)
}
