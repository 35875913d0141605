// Package metrics exposes the engine's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	ingested   *prometheus.CounterVec
	unresolved *prometheus.CounterVec
	picks      *prometheus.CounterVec
	conflicts  prometheus.Gauge
	loads      *prometheus.CounterVec
	loadTime   prometheus.Histogram
}

// New registers the collectors on reg. A nil reg uses a private registry,
// which keeps tests from colliding on the default one.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		ingested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ifcsync_ingest_elements_total",
			Help: "Geometry entries seen during ingestion by outcome.",
		}, []string{"source", "outcome"}),
		unresolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ifcsync_unresolved_identities_total",
			Help: "Identifiers that resolved to no known element, by origin.",
		}, []string{"origin"}),
		picks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ifcsync_picks_total",
			Help: "3D picks by result.",
		}, []string{"result"}),
		conflicts: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ifcsync_conflicts",
			Help: "Conflicted elements in the current model.",
		}),
		loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ifcsync_model_loads_total",
			Help: "Model load attempts by status.",
		}, []string{"status"}),
		loadTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ifcsync_model_load_seconds",
			Help:    "Wall time from upload to a rendered model.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
	}
	reg.MustRegister(m.ingested, m.unresolved, m.picks, m.conflicts, m.loads, m.loadTime)
	return m
}

func (m *Metrics) Ingested(source string, processed, skipped int) {
	if m == nil {
		return
	}
	m.ingested.WithLabelValues(source, "processed").Add(float64(processed))
	m.ingested.WithLabelValues(source, "skipped").Add(float64(skipped))
}

func (m *Metrics) Unresolved(origin string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.unresolved.WithLabelValues(origin).Add(float64(n))
}

func (m *Metrics) Pick(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.picks.WithLabelValues(result).Inc()
}

func (m *Metrics) Conflicts(n int) {
	if m == nil {
		return
	}
	m.conflicts.Set(float64(n))
}

func (m *Metrics) Load(status string, seconds float64) {
	if m == nil {
		return
	}
	m.loads.WithLabelValues(status).Inc()
	if status == "success" {
		m.loadTime.Observe(seconds)
	}
}
