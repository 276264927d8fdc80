package telemetry

import (
	"context"
	"errors"
	"runtime"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kohei-Wada/taskdog-sub001/internal/core"
)

type fakeSource struct {
	tasks []*core.Task
	err   error
}

func (f *fakeSource) GetAll(_ context.Context) ([]*core.Task, error) {
	return f.tasks, f.err
}

func gatherFamilies(t *testing.T, c *Collector) map[string]*dto.MetricFamily {
	t.Helper()
	registry := NewRegistry(c)
	families, err := registry.Gather()
	require.NoError(t, err)

	byName := make(map[string]*dto.MetricFamily, len(families))
	for _, family := range families {
		byName[family.GetName()] = family
	}
	return byName
}

func statusGauges(family *dto.MetricFamily) map[string]float64 {
	values := make(map[string]float64)
	for _, m := range family.GetMetric() {
		for _, label := range m.GetLabel() {
			if label.GetName() == "status" {
				values[label.GetValue()] = m.GetGauge().GetValue()
			}
		}
	}
	return values
}

func TestCollectorTaskGauges(t *testing.T) {
	t.Parallel()

	now := time.Now()
	past := now.Add(-48 * time.Hour)
	source := &fakeSource{tasks: []*core.Task{
		{ID: 1, Name: "a", Status: core.StatusPending},
		{ID: 2, Name: "b", Status: core.StatusPending, Deadline: past},
		{ID: 3, Name: "c", Status: core.StatusInProgress},
		{ID: 4, Name: "d", Status: core.StatusCompleted, Deadline: past},
		{ID: 5, Name: "e", Status: core.StatusPending, Archived: true},
	}}

	families := gatherFamilies(t, NewCollector("1.2.3", source))

	tasks := families["taskdog_tasks"]
	require.NotNil(t, tasks)
	assert.Equal(t, map[string]float64{
		"pending":     2,
		"in_progress": 1,
		"completed":   1,
		"canceled":    0,
	}, statusGauges(tasks))

	archived := families["taskdog_tasks_archived"]
	require.NotNil(t, archived)
	assert.Equal(t, float64(1), archived.GetMetric()[0].GetGauge().GetValue())

	// Finished tasks with past deadlines are not overdue.
	overdue := families["taskdog_tasks_overdue"]
	require.NotNil(t, overdue)
	assert.Equal(t, float64(1), overdue.GetMetric()[0].GetGauge().GetValue())
}

func TestCollectorInfoAndUptime(t *testing.T) {
	t.Parallel()

	families := gatherFamilies(t, NewCollector("9.9.9", &fakeSource{}))

	info := families["taskdog_info"]
	require.NotNil(t, info)
	require.Len(t, info.GetMetric(), 1)
	labels := make(map[string]string)
	for _, label := range info.GetMetric()[0].GetLabel() {
		labels[label.GetName()] = label.GetValue()
	}
	assert.Equal(t, "9.9.9", labels["version"])
	assert.Equal(t, runtime.Version(), labels["go_version"])
	assert.Equal(t, float64(1), info.GetMetric()[0].GetGauge().GetValue())

	uptime := families["taskdog_uptime_seconds"]
	require.NotNil(t, uptime)
	assert.GreaterOrEqual(t, uptime.GetMetric()[0].GetGauge().GetValue(), float64(0))
}

func TestCollectorStoreErrorKeepsScrapeAlive(t *testing.T) {
	t.Parallel()

	source := &fakeSource{err: errors.New("database is locked")}
	families := gatherFamilies(t, NewCollector("1.0.0", source))

	assert.NotNil(t, families["taskdog_info"])
	assert.NotNil(t, families["taskdog_uptime_seconds"])
	assert.Nil(t, families["taskdog_tasks"])
	assert.Nil(t, families["taskdog_tasks_archived"])
}

func TestNewRegistryIncludesRuntimeCollectors(t *testing.T) {
	t.Parallel()

	families := gatherFamilies(t, NewCollector("1.0.0", &fakeSource{}))
	assert.NotNil(t, families["go_goroutines"])
}
