package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyclegate/cyclegate/internal/admission"
	"github.com/cyclegate/cyclegate/internal/domain/signal"
	"github.com/cyclegate/cyclegate/internal/scoring"
)

type fakeSource struct {
	candidates []signal.Candidate
	err        error
	calls      int
}

func (f *fakeSource) Fetch(context.Context) ([]signal.Candidate, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.candidates, nil
}

type capturePublisher struct {
	reports []*admission.CycleReport
}

func (c *capturePublisher) Publish(report *admission.CycleReport) {
	c.reports = append(c.reports, report)
}

func newTestDriver(t *testing.T, source CandidateSource, publisher Publisher) (*Driver, *admission.Controller) {
	t.Helper()
	cfg := admission.BootstrapConfig()
	portfolio, err := admission.NewPortfolio(cfg.Capacity, nil)
	require.NoError(t, err)
	ctrl, err := admission.NewController(cfg, scoring.NewCalculatorWithDefaults(), portfolio, admission.NewMemoryCooldowns())
	require.NoError(t, err)

	opts := DefaultOptions()
	opts.SourceRPS = 1000
	opts.SourceBurst = 1000
	return NewDriver(opts, source, ctrl, nil, nil, publisher), ctrl
}

func TestRunOnce_AdmitsAndPublishes(t *testing.T) {
	source := &fakeSource{candidates: []signal.Candidate{
		{Symbol: "AAPL", BaseEntryScore: 2.0, Timestamp: time.Now()},
	}}
	pub := &capturePublisher{}
	driver, ctrl := newTestDriver(t, source, pub)

	require.NoError(t, driver.RunOnce(context.Background()))

	assert.True(t, ctrl.Portfolio().Has("AAPL"))
	require.Len(t, pub.reports, 1)
	assert.Equal(t, 1, pub.reports[0].Admitted)
}

func TestRunOnce_SourceErrorSkipsCycle(t *testing.T) {
	source := &fakeSource{err: errors.New("feed down")}
	pub := &capturePublisher{}
	driver, ctrl := newTestDriver(t, source, pub)

	err := driver.RunOnce(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 0, ctrl.Portfolio().Len())
	assert.Empty(t, pub.reports, "no report published for a skipped cycle")
}

func TestRunOnce_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	source := &fakeSource{err: errors.New("feed down")}
	driver, _ := newTestDriver(t, source, nil)

	for i := 0; i < 3; i++ {
		assert.Error(t, driver.RunOnce(context.Background()))
	}
	fetchesBefore := source.calls

	// Breaker is open: the source must not be called again.
	assert.Error(t, driver.RunOnce(context.Background()))
	assert.Equal(t, fetchesBefore, source.calls)
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	source := &fakeSource{}
	driver, _ := newTestDriver(t, source, nil)
	driver.opts.Interval = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- driver.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("driver did not stop after cancellation")
	}
	assert.GreaterOrEqual(t, source.calls, 1)
}
