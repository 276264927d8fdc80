package scheduler

import (
	"github.com/Kohei-Wada/taskdog-sub001/internal/core"
)

func init() {
	Register(Metadata{
		Name:        AlgorithmGreedy,
		DisplayName: "Greedy (Earliest First)",
		Description: "Packs each task onto the earliest workdays with free capacity, most urgent first.",
	}, func(dayStart, dayEnd core.TimeOfDay) Strategy {
		return &GreedyStrategy{dayStart: dayStart, dayEnd: dayEnd}
	})
}

// GreedyStrategy fills tasks front to back: tasks are taken in
// (deadline, priority, id) order and each one grabs as many hours as fit on
// every workday from the start date forward.
type GreedyStrategy struct {
	dayStart core.TimeOfDay
	dayEnd   core.TimeOfDay
}

func (s *GreedyStrategy) Name() string { return AlgorithmGreedy }

func (s *GreedyStrategy) Optimize(tasks, _ []*core.Task, params Params, ledger *Ledger) *Result {
	params = params.withDefaults()
	result := newResult()

	for _, t := range sortEarliestFirst(tasks) {
		s.place(t, params, ledger, result)
	}
	return result
}

func (s *GreedyStrategy) place(t *core.Task, params Params, ledger *Ledger, result *Result) {
	deadline := params.effectiveDeadline(t)
	remaining := t.EstimatedDuration
	allocs := make(map[core.Date]float64)

	for d := params.StartDate; remaining > epsilon; d = d.AddDays(1) {
		if d.After(deadline) {
			rollback(ledger, allocs)
			result.fail(t, cannotMeetDeadline(remaining))
			return
		}
		if !ledger.IsWorkday(d) {
			continue
		}
		avail := ledger.AvailableOn(d, params.MaxHoursPerDay)
		if avail <= epsilon {
			continue
		}
		give := min(avail, remaining)
		allocs[d] = give
		ledger.Reserve(d, give)
		remaining -= give
	}

	scheduled, err := buildSchedule(t, allocs, s.dayStart, s.dayEnd)
	if err != nil {
		rollback(ledger, allocs)
		result.fail(t, err.Error())
		return
	}
	result.commit(scheduled)
}
