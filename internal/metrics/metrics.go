package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the collectors exported on /metrics. Each instance owns
// its registry so tests can build as many as they need.
type Metrics struct {
	registry *prometheus.Registry

	sagaRuns          *prometheus.CounterVec
	compensations     *prometheus.CounterVec
	identityRequests  *prometheus.CounterVec
	identityDuration  *prometheus.HistogramVec
	eventsPublished   *prometheus.CounterVec
	eventHandlerFails *prometheus.CounterVec
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		sagaRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "euphony_saga_runs_total",
			Help: "Saga executions by saga name and outcome",
		}, []string{"saga", "outcome"}),

		compensations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "euphony_saga_compensations_total",
			Help: "Compensating actions by saga, step and outcome",
		}, []string{"saga", "step", "outcome"}),

		identityRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "euphony_identity_requests_total",
			Help: "Identity provider admin API calls by operation and status class",
		}, []string{"op", "status"}),

		identityDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "euphony_identity_request_duration_seconds",
			Help:    "Latency of identity provider admin API calls",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"op"}),

		eventsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "euphony_events_published_total",
			Help: "Domain events published on the in-process bus",
		}, []string{"event"}),

		eventHandlerFails: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "euphony_event_handler_failures_total",
			Help: "Domain event handler failures (errors and panics)",
		}, []string{"event"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// SagaRun records a finished saga. A nil receiver is a no-op.
func (m *Metrics) SagaRun(saga, outcome string) {
	if m == nil {
		return
	}
	m.sagaRuns.WithLabelValues(saga, outcome).Inc()
}

func (m *Metrics) Compensation(saga, step, outcome string) {
	if m == nil {
		return
	}
	m.compensations.WithLabelValues(saga, step, outcome).Inc()
}

// IdentityRequest records one admin API call.
func (m *Metrics) IdentityRequest(op, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.identityRequests.WithLabelValues(op, status).Inc()
	m.identityDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

func (m *Metrics) EventPublished(event string) {
	if m == nil {
		return
	}
	m.eventsPublished.WithLabelValues(event).Inc()
}

func (m *Metrics) EventHandlerFailed(event string) {
	if m == nil {
		return
	}
	m.eventHandlerFails.WithLabelValues(event).Inc()
}
