// Package telemetry carries the observability plumbing shared by the server:
// the application-state prometheus collector and the OTLP tracer.
package telemetry

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/Kohei-Wada/taskdog-sub001/internal/core"
)

// TaskSource is the slice of the task store the collector reads.
type TaskSource interface {
	GetAll(ctx context.Context) ([]*core.Task, error)
}

// Collector implements prometheus.Collector
type Collector struct {
	startTime time.Time
	version   string
	source    TaskSource

	// Metric descriptors
	infoDesc     *prometheus.Desc
	uptimeDesc   *prometheus.Desc
	tasksDesc    *prometheus.Desc
	archivedDesc *prometheus.Desc
	overdueDesc  *prometheus.Desc

	mu sync.RWMutex
}

// NewCollector creates a new metrics collector reading application state
// from the task store.
func NewCollector(version string, source TaskSource) *Collector {
	return &Collector{
		startTime: time.Now(),
		version:   version,
		source:    source,

		infoDesc: prometheus.NewDesc(
			"taskdog_info",
			"Taskdog build information",
			[]string{"version", "go_version"},
			nil,
		),
		uptimeDesc: prometheus.NewDesc(
			"taskdog_uptime_seconds",
			"Time since server start",
			nil,
			nil,
		),
		tasksDesc: prometheus.NewDesc(
			"taskdog_tasks",
			"Number of tasks by lifecycle status, excluding archived",
			[]string{"status"},
			nil,
		),
		archivedDesc: prometheus.NewDesc(
			"taskdog_tasks_archived",
			"Number of archived tasks",
			nil,
			nil,
		),
		overdueDesc: prometheus.NewDesc(
			"taskdog_tasks_overdue",
			"Number of active tasks whose deadline has passed",
			nil,
			nil,
		),
	}
}

// Describe implements prometheus.Collector
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.infoDesc
	ch <- c.uptimeDesc
	ch <- c.tasksDesc
	ch <- c.archivedDesc
	ch <- c.overdueDesc
}

// Collect implements prometheus.Collector
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	// Bound the store read so a stuck database cannot hang a scrape.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ch <- prometheus.MustNewConstMetric(
		c.infoDesc,
		prometheus.GaugeValue,
		1,
		c.version,
		runtime.Version(),
	)

	ch <- prometheus.MustNewConstMetric(
		c.uptimeDesc,
		prometheus.GaugeValue,
		time.Since(c.startTime).Seconds(),
	)

	c.collectTaskMetrics(ctx, ch)
}

func (c *Collector) collectTaskMetrics(ctx context.Context, ch chan<- prometheus.Metric) {
	all, err := c.source.GetAll(ctx)
	if err != nil {
		// Skip the task gauges but keep the scrape alive.
		return
	}

	now := time.Now()
	counts := make(map[core.Status]float64)
	archived := float64(0)
	overdue := float64(0)

	for _, t := range all {
		if t.Archived {
			archived++
			continue
		}
		counts[t.Status]++
		if t.Status.IsActive() && !t.Deadline.IsZero() && t.Deadline.Before(now) {
			overdue++
		}
	}

	// Emit every status so dashboards get stable zero-valued series.
	statuses := []core.Status{
		core.StatusPending,
		core.StatusInProgress,
		core.StatusCompleted,
		core.StatusCanceled,
	}
	for _, status := range statuses {
		ch <- prometheus.MustNewConstMetric(
			c.tasksDesc,
			prometheus.GaugeValue,
			counts[status],
			status.String(),
		)
	}

	ch <- prometheus.MustNewConstMetric(
		c.archivedDesc,
		prometheus.GaugeValue,
		archived,
	)

	ch <- prometheus.MustNewConstMetric(
		c.overdueDesc,
		prometheus.GaugeValue,
		overdue,
	)
}

// NewRegistry creates a new Prometheus registry with Taskdog collectors
func NewRegistry(collector *Collector) *prometheus.Registry {
	registry := prometheus.NewRegistry()

	registry.MustRegister(collector)

	// Optionally register Go runtime metrics
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return registry
}
