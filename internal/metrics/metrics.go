// Package metrics exposes prometheus counters for the publish cycle.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Tracker holds the publish cycle counters on a private registry so tests
// can create trackers independently.
type Tracker struct {
	registry *prometheus.Registry

	postsPublished  prometheus.Counter
	postsSkipped    *prometheus.CounterVec
	publishFailures prometheus.Counter
}

// New creates a Tracker with all counters registered.
func New() *Tracker {
	registry := prometheus.NewRegistry()

	t := &Tracker{
		registry: registry,
		postsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "postpilot",
			Name:      "posts_published_total",
			Help:      "Posts published successfully.",
		}),
		postsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "postpilot",
			Name:      "posts_skipped_total",
			Help:      "Posting opportunities skipped, by reason.",
		}, []string{"reason"}),
		publishFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "postpilot",
			Name:      "publish_failures_total",
			Help:      "Publish attempts that returned an error.",
		}),
	}

	registry.MustRegister(t.postsPublished, t.postsSkipped, t.publishFailures)
	return t
}

// PostPublished counts a successful publish.
func (t *Tracker) PostPublished() {
	t.postsPublished.Inc()
}

// PostSkipped counts a skipped opportunity with its reason.
func (t *Tracker) PostSkipped(reason string) {
	t.postsSkipped.WithLabelValues(reason).Inc()
}

// PublishFailed counts a failed publish attempt.
func (t *Tracker) PublishFailed() {
	t.publishFailures.Inc()
}

// Handler serves the tracker's registry in the prometheus text format.
func (t *Tracker) Handler() http.Handler {
	return promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{})
}
