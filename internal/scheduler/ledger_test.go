package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kohei-Wada/taskdog-sub001/internal/core"
)

func TestLedgerReserveRelease(t *testing.T) {
	t.Parallel()

	l := NewLedger(core.Calendar{})

	assert.Equal(t, 6.0, l.AvailableOn("2025-01-06", 6))

	l.Reserve("2025-01-06", 4)
	assert.Equal(t, 4.0, l.ReservedOn("2025-01-06"))
	assert.Equal(t, 2.0, l.AvailableOn("2025-01-06", 6))

	l.Reserve("2025-01-06", 4)
	assert.Equal(t, 0.0, l.AvailableOn("2025-01-06", 6), "availability clamps at zero")

	l.Release("2025-01-06", 3)
	assert.Equal(t, 5.0, l.ReservedOn("2025-01-06"))

	l.Release("2025-01-06", 99)
	assert.Equal(t, 0.0, l.ReservedOn("2025-01-06"), "release clamps at zero")

	l.Reserve("2025-01-06", -2)
	assert.Equal(t, 0.0, l.ReservedOn("2025-01-06"), "nonpositive reserve is ignored")
}

func TestLedgerReservedCopy(t *testing.T) {
	t.Parallel()

	l := NewLedger(core.Calendar{})
	l.Reserve("2025-01-06", 2)

	snapshot := l.Reserved()
	snapshot["2025-01-06"] = 99
	assert.Equal(t, 2.0, l.ReservedOn("2025-01-06"))
}

func TestLedgerSeed(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 1, 6, 9, 0, 0, 0, time.Local)

	scheduled := core.NewTask(1, "scheduled", now)
	scheduled.EstimatedDuration = 8
	scheduled.PlannedStart = time.Date(2025, 1, 6, 9, 0, 0, 0, time.Local)
	scheduled.PlannedEnd = time.Date(2025, 1, 7, 18, 0, 0, 0, time.Local)
	require.NoError(t, scheduled.SetDailyAllocations(map[core.Date]float64{
		"2025-01-06": 5, "2025-01-07": 3,
	}))

	fixed := core.NewTask(2, "fixed block", now)
	fixed.EstimatedDuration = 4
	require.NoError(t, fixed.FixTimes(
		time.Date(2025, 1, 8, 9, 0, 0, 0, time.Local),
		time.Date(2025, 1, 9, 18, 0, 0, 0, time.Local),
	))

	inProgress := core.NewTask(3, "in progress", now)
	inProgress.EstimatedDuration = 2
	inProgress.PlannedStart = time.Date(2025, 1, 10, 9, 0, 0, 0, time.Local)
	inProgress.PlannedEnd = time.Date(2025, 1, 10, 18, 0, 0, 0, time.Local)
	require.NoError(t, inProgress.SetDailyAllocations(map[core.Date]float64{"2025-01-10": 2}))
	require.NoError(t, inProgress.Start(now))

	finished := core.NewTask(4, "finished", now)
	finished.EstimatedDuration = 6
	finished.PlannedStart = scheduled.PlannedStart
	finished.PlannedEnd = scheduled.PlannedEnd
	require.NoError(t, finished.SetDailyAllocations(map[core.Date]float64{"2025-01-06": 6}))
	require.NoError(t, finished.Complete(now))

	unscheduled := core.NewTask(5, "unscheduled", now)
	unscheduled.EstimatedDuration = 3

	tasks := []*core.Task{scheduled, fixed, inProgress, finished, unscheduled}

	t.Run("normal seed counts every active schedule", func(t *testing.T) {
		t.Parallel()
		l := NewLedger(core.Calendar{})
		l.Seed(tasks, false)

		assert.InDelta(t, 5, l.ReservedOn("2025-01-06"), 1e-9, "finished task is excluded")
		assert.InDelta(t, 3, l.ReservedOn("2025-01-07"), 1e-9)
		assert.InDelta(t, 2, l.ReservedOn("2025-01-08"), 1e-9, "fixed task even-splits its window")
		assert.InDelta(t, 2, l.ReservedOn("2025-01-09"), 1e-9)
		assert.InDelta(t, 2, l.ReservedOn("2025-01-10"), 1e-9)
	})

	t.Run("force override keeps only fixed and in-progress", func(t *testing.T) {
		t.Parallel()
		l := NewLedger(core.Calendar{})
		l.Seed(tasks, true)

		assert.Zero(t, l.ReservedOn("2025-01-06"), "plain scheduled task is up for rescheduling")
		assert.InDelta(t, 2, l.ReservedOn("2025-01-08"), 1e-9)
		assert.InDelta(t, 2, l.ReservedOn("2025-01-09"), 1e-9)
		assert.InDelta(t, 2, l.ReservedOn("2025-01-10"), 1e-9)
	})
}
