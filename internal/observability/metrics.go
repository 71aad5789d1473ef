// Package observability wires Hotelly's metrics and tracing surfaces.
// Metrics are served at /metrics for Prometheus scraping; tracing
// propagates W3C trace context across ingress -> task queue -> worker.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every Prometheus collector Hotelly registers. Both the
// ingress and worker binaries construct one of these and serve it at
// /metrics. No handler or worker code path records into the collectors;
// only the registry's exposition is wired.
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	HoldsCreated   prometheus.Counter
	HoldsExpired   prometheus.Counter
	HoldsConverted prometheus.Counter

	TaskDispatched *prometheus.CounterVec
	TaskOutcome    *prometheus.CounterVec
	TaskDuration   *prometheus.HistogramVec

	WebhookEvents *prometheus.CounterVec

	OutboxPending prometheus.Gauge
	OutboxRetries prometheus.Counter
}

// NewMetrics creates and registers every collector against a fresh
// registry, scoped to a single Hotelly process (ingress or worker).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hotelly_http_requests_total",
			Help: "HTTP requests handled, by route and status class.",
		}, []string{"route", "method", "status"}),

		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hotelly_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),

		HoldsCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "hotelly_holds_created_total",
			Help: "Holds created across all properties.",
		}),
		HoldsExpired: f.NewCounter(prometheus.CounterOpts{
			Name: "hotelly_holds_expired_total",
			Help: "Holds that expired without converting to a reservation.",
		}),
		HoldsConverted: f.NewCounter(prometheus.CounterOpts{
			Name: "hotelly_holds_converted_total",
			Help: "Holds converted into a confirmed reservation.",
		}),

		TaskDispatched: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hotelly_tasks_dispatched_total",
			Help: "Tasks handed to the queue, by task kind.",
		}, []string{"kind"}),
		TaskOutcome: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hotelly_tasks_outcome_total",
			Help: "Terminal task outcomes as reported to the queue, by kind and outcome.",
		}, []string{"kind", "outcome"}),
		TaskDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hotelly_task_duration_seconds",
			Help:    "Worker task handler duration in seconds, by kind.",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),

		WebhookEvents: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hotelly_webhook_events_total",
			Help: "Inbound webhook events received, by source and outcome.",
		}, []string{"source", "outcome"}),

		OutboxPending: f.NewGauge(prometheus.GaugeOpts{
			Name: "hotelly_outbox_pending",
			Help: "Outbox deliveries currently pending or retrying.",
		}),
		OutboxRetries: f.NewCounter(prometheus.CounterOpts{
			Name: "hotelly_outbox_retries_total",
			Help: "Outbox delivery attempts that failed and were rescheduled.",
		}),
	}
}

// Handler returns the /metrics endpoint backed by this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
