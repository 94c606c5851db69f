package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"AShareScreener/internal/model"
)

// Metrics holds the Prometheus collectors of the screener.
type Metrics struct {
	VerdictsTotal    *prometheus.CounterVec // labels: verdict
	RunsTotal        *prometheus.CounterVec // labels: outcome=ok|error|canceled
	RunDuration      prometheus.Histogram
	InstrumentsLast  prometheus.Gauge
	PassedLast       prometheus.Gauge
	BarsStoredTotal  prometheus.Counter
	VendorCallsTotal *prometheus.CounterVec // labels: api, outcome
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		VerdictsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "screener_verdicts_total",
			Help: "Per-instrument verdicts by code",
		}, []string{"verdict"}),
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "screener_runs_total",
			Help: "Screening runs by outcome",
		}, []string{"outcome"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "screener_run_duration_seconds",
			Help:    "Wall time of one screening run",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}),
		InstrumentsLast: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "screener_last_run_instruments",
			Help: "Instruments evaluated by the last run",
		}),
		PassedLast: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "screener_last_run_passed",
			Help: "Instruments passing every condition in the last run",
		}),
		BarsStoredTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "collector_bars_stored_total",
			Help: "Daily bars inserted into the local store",
		}),
		VendorCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "collector_vendor_calls_total",
			Help: "Vendor API calls by api name and outcome",
		}, []string{"api", "outcome"}),
	}

	reg.MustRegister(
		m.VerdictsTotal, m.RunsTotal, m.RunDuration,
		m.InstrumentsLast, m.PassedLast,
		m.BarsStoredTotal, m.VendorCallsTotal,
	)
	return m
}

// ObserveVerdict counts one instrument verdict. Safe on a nil receiver.
func (m *Metrics) ObserveVerdict(v model.Verdict) {
	if m == nil {
		return
	}
	m.VerdictsTotal.WithLabelValues(v.String()).Inc()
}

// ObserveRun records a finished run.
func (m *Metrics) ObserveRun(outcome string, started time.Time, instruments, passed int) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(outcome).Inc()
	m.RunDuration.Observe(time.Since(started).Seconds())
	if outcome == "ok" {
		m.InstrumentsLast.Set(float64(instruments))
		m.PassedLast.Set(float64(passed))
	}
}

// ObserveBarsStored adds newly stored bars.
func (m *Metrics) ObserveBarsStored(n int64) {
	if m == nil {
		return
	}
	m.BarsStoredTotal.Add(float64(n))
}

// ObserveVendorCall counts one vendor request.
func (m *Metrics) ObserveVendorCall(api string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.VendorCallsTotal.WithLabelValues(api, outcome).Inc()
}
