package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/cyclegate/cyclegate/internal/admission"
)

// Metrics holds the Prometheus instruments for the admission engine.
type Metrics struct {
	CyclesTotal    prometheus.Counter
	CycleDuration  prometheus.Histogram
	Admissions     prometheus.Counter
	Displacements  prometheus.Counter
	Rejections     *prometheus.CounterVec
	OpenPositions  prometheus.Gauge
	GateComposite  prometheus.Histogram
	SourceFailures prometheus.Counter
}

// NewMetrics registers the engine metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cyclegate_cycles_total",
			Help: "Total number of admission cycles executed",
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cyclegate_cycle_duration_seconds",
			Help:    "Duration of one full admission cycle in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}),
		Admissions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cyclegate_admissions_total",
			Help: "Total number of admitted candidates (including displacements)",
		}),
		Displacements: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cyclegate_displacements_total",
			Help: "Total number of displaced open positions",
		}),
		Rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cyclegate_rejections_total",
			Help: "Total number of rejected candidates by reason code",
		}, []string{"reason"}),
		OpenPositions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cyclegate_open_positions",
			Help: "Number of currently open positions",
		}),
		GateComposite: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cyclegate_gate_composite",
			Help:    "Composite gate values observed per candidate",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		}),
		SourceFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cyclegate_source_failures_total",
			Help: "Total number of failed candidate source fetches",
		}),
	}

	reg.MustRegister(
		m.CyclesTotal, m.CycleDuration, m.Admissions, m.Displacements,
		m.Rejections, m.OpenPositions, m.GateComposite, m.SourceFailures,
	)
	return m
}

// ObserveCycle records one cycle report.
func (m *Metrics) ObserveCycle(report *admission.CycleReport, openPositions int) {
	m.CyclesTotal.Inc()
	m.CycleDuration.Observe(report.Duration.Seconds())
	m.Admissions.Add(float64(report.Admitted))
	m.Displacements.Add(float64(report.Displaced))
	m.OpenPositions.Set(float64(openPositions))

	for _, o := range report.Outcomes {
		m.GateComposite.Observe(o.Breakdown.Gate.Composite)
		if o.Decision == admission.DecisionReject {
			m.Rejections.WithLabelValues(o.Reason.String()).Inc()
		}
	}
}
