package scheduler

import (
	"github.com/Kohei-Wada/taskdog-sub001/internal/core"
)

func init() {
	Register(Metadata{
		Name:        AlgorithmBalanced,
		DisplayName: "Balanced (Equal Distribution)",
		Description: "Spreads each task evenly across the workdays before its deadline.",
	}, func(dayStart, dayEnd core.TimeOfDay) Strategy {
		return &BalancedStrategy{dayStart: dayStart, dayEnd: dayEnd}
	})
}

// BalancedStrategy aims for a flat daily load: each task gets a per-day
// quota of estimated hours over the workdays up to its deadline, rounded up
// to a tenth of an hour so the task still finishes inside the window.
type BalancedStrategy struct {
	dayStart core.TimeOfDay
	dayEnd   core.TimeOfDay
}

func (s *BalancedStrategy) Name() string { return AlgorithmBalanced }

func (s *BalancedStrategy) Optimize(tasks, _ []*core.Task, params Params, ledger *Ledger) *Result {
	params = params.withDefaults()
	result := newResult()

	for _, t := range sortEarliestFirst(tasks) {
		s.place(t, params, ledger, result)
	}
	return result
}

func (s *BalancedStrategy) place(t *core.Task, params Params, ledger *Ledger, result *Result) {
	deadline := params.effectiveDeadline(t)
	workdays := params.Calendar.WorkdaysBetween(params.StartDate, deadline)
	if workdays == 0 {
		result.fail(t, cannotMeetDeadline(t.EstimatedDuration))
		return
	}

	quota := ceilToTenth(t.EstimatedDuration / float64(workdays))
	remaining := t.EstimatedDuration
	allocs := make(map[core.Date]float64)

	for d := params.StartDate; !d.After(deadline) && remaining > epsilon; d = d.AddDays(1) {
		if !ledger.IsWorkday(d) {
			continue
		}
		give := min(quota, ledger.AvailableOn(d, params.MaxHoursPerDay), remaining)
		if give <= epsilon {
			continue
		}
		allocs[d] = give
		ledger.Reserve(d, give)
		remaining -= give
	}

	if remaining > epsilon {
		rollback(ledger, allocs)
		result.fail(t, cannotMeetDeadline(remaining))
		return
	}

	scheduled, err := buildSchedule(t, allocs, s.dayStart, s.dayEnd)
	if err != nil {
		rollback(ledger, allocs)
		result.fail(t, err.Error())
		return
	}
	result.commit(scheduled)
}
