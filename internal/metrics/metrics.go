// Package metrics exposes prometheus instruments for the serving
// pipeline. A Metrics value is constructed once and injected; nothing is
// registered globally so tests can build isolated instances.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	registry *prometheus.Registry

	Classifications *prometheus.CounterVec
	CloakedRequests prometheus.Counter
	Assignments     prometheus.Counter
	Redirects       prometheus.Counter
	Events          *prometheus.CounterVec
	EventsDropped   prometheus.Counter
	PageLoadSeconds prometheus.Histogram
}

// New builds a Metrics set backed by its own registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		Classifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "landerd_classifications_total",
			Help: "Access verdicts by outcome.",
		}, []string{"verdict"}),
		CloakedRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "landerd_cloaked_requests_total",
			Help: "Requests short-circuited with decoy content.",
		}),
		Assignments: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "landerd_variant_assignments_total",
			Help: "Variant assignments performed.",
		}),
		Redirects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "landerd_variant_redirects_total",
			Help: "Assignments that redirected to a different variant page.",
		}),
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "landerd_events_total",
			Help: "Experiment events recorded by type.",
		}, []string{"type"}),
		EventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "landerd_events_dropped_total",
			Help: "Events dropped because the recorder queue was full.",
		}),
		PageLoadSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "landerd_page_load_seconds",
			Help:    "Client-reported page load latency.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	registry.MustRegister(
		m.Classifications,
		m.CloakedRequests,
		m.Assignments,
		m.Redirects,
		m.Events,
		m.EventsDropped,
		m.PageLoadSeconds,
	)
	return m
}

// Registry exposes the backing registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveVerdict records a classification outcome.
func (m *Metrics) ObserveVerdict(shouldCloak bool) {
	verdict := "pass"
	if shouldCloak {
		verdict = "cloak"
	}
	m.Classifications.WithLabelValues(verdict).Inc()
}
