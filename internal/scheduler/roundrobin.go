package scheduler

import (
	"sort"

	"github.com/Kohei-Wada/taskdog-sub001/internal/core"
)

func init() {
	Register(Metadata{
		Name:        AlgorithmRoundRobin,
		DisplayName: "Round-Robin (Parallel Progress)",
		Description: "Splits each workday's free capacity equally among every task still in flight.",
	}, func(dayStart, dayEnd core.TimeOfDay) Strategy {
		return &RoundRobinStrategy{dayStart: dayStart, dayEnd: dayEnd}
	})
}

// iterationCap bounds the day loop against pathological inputs such as every
// effective deadline preceding the start date. It is a safety net, not a
// tuning knob.
const iterationCap = 10_000

// RoundRobinStrategy advances every task a little each day: the free
// capacity of a workday is shared equally among the tasks that still have
// remaining hours and an unexpired deadline.
type RoundRobinStrategy struct {
	dayStart core.TimeOfDay
	dayEnd   core.TimeOfDay
}

func (s *RoundRobinStrategy) Name() string { return AlgorithmRoundRobin }

func (s *RoundRobinStrategy) Optimize(tasks, _ []*core.Task, params Params, ledger *Ledger) *Result {
	params = params.withDefaults()
	result := newResult()

	byID := make(map[int]*core.Task, len(tasks))
	remaining := make(map[int]float64, len(tasks))
	deadlines := make(map[int]core.Date, len(tasks))
	perTask := make(map[int]map[core.Date]float64, len(tasks))
	ids := make([]int, 0, len(tasks))

	var lastDeadline core.Date
	for _, t := range tasks {
		byID[t.ID] = t
		remaining[t.ID] = t.EstimatedDuration
		deadlines[t.ID] = params.effectiveDeadline(t)
		perTask[t.ID] = make(map[core.Date]float64)
		ids = append(ids, t.ID)
		lastDeadline = core.MaxDate(lastDeadline, deadlines[t.ID])
	}
	sort.Ints(ids)

	d := params.StartDate
	for iter := 0; iter < iterationCap; iter++ {
		if !anyRemaining(remaining) || d.After(lastDeadline) {
			break
		}
		if !ledger.IsWorkday(d) {
			d = d.AddDays(1)
			continue
		}

		var active []int
		for _, id := range ids {
			if remaining[id] > epsilon && !d.After(deadlines[id]) {
				active = append(active, id)
			}
		}
		avail := ledger.AvailableOn(d, params.MaxHoursPerDay)
		if len(active) == 0 || avail <= epsilon {
			d = d.AddDays(1)
			continue
		}

		share := avail / float64(len(active))
		for _, id := range active {
			give := min(share, remaining[id])
			if give <= epsilon {
				continue
			}
			perTask[id][d] += give
			ledger.Reserve(d, give)
			remaining[id] -= give
		}
		d = d.AddDays(1)
	}

	for _, id := range ids {
		t := byID[id]
		if remaining[id] > epsilon {
			rollback(ledger, perTask[id])
			result.fail(t, cannotMeetDeadline(remaining[id]))
			continue
		}
		scheduled, err := buildSchedule(t, perTask[id], s.dayStart, s.dayEnd)
		if err != nil {
			rollback(ledger, perTask[id])
			result.fail(t, err.Error())
			continue
		}
		result.commit(scheduled)
	}
	return result
}

func anyRemaining(remaining map[int]float64) bool {
	for _, hours := range remaining {
		if hours > epsilon {
			return true
		}
	}
	return false
}
