// Package metrics holds the prometheus collectors the server publishes.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for the task server. A nil *Metrics is
// valid and records nothing, so callers never need to guard.
type Metrics struct {
	eventClients       prometheus.Gauge
	eventsPublished    *prometheus.CounterVec
	optimizeRuns       *prometheus.CounterVec
	tasksScheduled     prometheus.Counter
	tasksUnschedulable prometheus.Counter
	optimizeDuration   *prometheus.HistogramVec
}

// NewMetrics creates and registers the collectors with the given registry.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		eventClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "taskdog_event_clients_connected",
			Help: "Current number of connected event stream clients",
		}),
		eventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskdog_events_published_total",
			Help: "Total number of change events published by type",
		}, []string{"type"}),
		optimizeRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskdog_optimize_runs_total",
			Help: "Total number of optimizer runs by algorithm and outcome",
		}, []string{"algorithm", "outcome"}),
		tasksScheduled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskdog_tasks_scheduled_total",
			Help: "Total number of tasks the optimizer placed on the calendar",
		}),
		tasksUnschedulable: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskdog_tasks_unschedulable_total",
			Help: "Total number of tasks the optimizer could not place",
		}),
		optimizeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "taskdog_optimize_duration_seconds",
			Help:    "Duration of optimizer runs by algorithm",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"algorithm"}),
	}

	registry.MustRegister(
		m.eventClients,
		m.eventsPublished,
		m.optimizeRuns,
		m.tasksScheduled,
		m.tasksUnschedulable,
		m.optimizeDuration,
	)

	return m
}

// ClientConnected increments the connected event clients count.
func (m *Metrics) ClientConnected() {
	if m == nil {
		return
	}
	m.eventClients.Inc()
}

// ClientDisconnected decrements the connected event clients count.
func (m *Metrics) ClientDisconnected() {
	if m == nil {
		return
	}
	m.eventClients.Dec()
}

// EventPublished increments the published events counter for the type.
func (m *Metrics) EventPublished(eventType string) {
	if m == nil {
		return
	}
	m.eventsPublished.WithLabelValues(eventType).Inc()
}

// OptimizeRun increments the optimizer run counter for the given
// algorithm and outcome ("ok" or "error").
func (m *Metrics) OptimizeRun(algorithm, outcome string) {
	if m == nil {
		return
	}
	m.optimizeRuns.WithLabelValues(algorithm, outcome).Inc()
}

// TasksScheduled adds to the scheduled tasks counter.
func (m *Metrics) TasksScheduled(n int) {
	if m == nil {
		return
	}
	m.tasksScheduled.Add(float64(n))
}

// TasksUnschedulable adds to the unschedulable tasks counter.
func (m *Metrics) TasksUnschedulable(n int) {
	if m == nil {
		return
	}
	m.tasksUnschedulable.Add(float64(n))
}

// ObserveOptimizeDuration records how long an optimizer run took.
func (m *Metrics) ObserveOptimizeDuration(algorithm string, duration time.Duration) {
	if m == nil {
		return
	}
	m.optimizeDuration.WithLabelValues(algorithm).Observe(duration.Seconds())
}
