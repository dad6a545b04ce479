// Package metrics exposes the service's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all collectors for the detector.
type Metrics struct {
	AnalysesTotal    prometheus.Counter
	Classifications  *prometheus.CounterVec
	InputErrorsTotal prometheus.Counter
	FeedErrorsTotal  prometheus.Counter
	AnalysisDuration prometheus.Histogram
}

// New registers the collectors on the given registry and returns them.
// A nil registry uses the default one.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		AnalysesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "beacon_analyses_total",
			Help: "Total completed analyses.",
		}),
		Classifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "beacon_classifications_total",
			Help: "Analyses by classification tier.",
		}, []string{"classification"}),
		InputErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "beacon_input_errors_total",
			Help: "Analysis requests rejected for invalid input.",
		}),
		FeedErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "beacon_feed_errors_total",
			Help: "Threat-intel feed lookups that failed.",
		}),
		AnalysisDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "beacon_analysis_duration_seconds",
			Help:    "Wall time of one analysis run.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		m.AnalysesTotal,
		m.Classifications,
		m.InputErrorsTotal,
		m.FeedErrorsTotal,
		m.AnalysisDuration,
	)
	return m
}

// ObserveResult records one completed analysis.
func (m *Metrics) ObserveResult(classification string, seconds float64) {
	if m == nil {
		return
	}
	m.AnalysesTotal.Inc()
	m.Classifications.WithLabelValues(classification).Inc()
	m.AnalysisDuration.Observe(seconds)
}
