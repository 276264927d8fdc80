package scheduler

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/Kohei-Wada/taskdog-sub001/internal/core"
)

func init() {
	Register(Metadata{
		Name:        AlgorithmBackward,
		DisplayName: "Backward (Just-In-Time)",
		Description: "Packs each task against its deadline, walking workdays backward toward the start date.",
	}, func(dayStart, dayEnd core.TimeOfDay) Strategy {
		return &BackwardStrategy{dayStart: dayStart, dayEnd: dayEnd}
	})
}

// BackwardStrategy schedules work as late as possible: the latest deadlines
// are placed first and every task is packed from its deadline backward.
type BackwardStrategy struct {
	dayStart core.TimeOfDay
	dayEnd   core.TimeOfDay
}

func (s *BackwardStrategy) Name() string { return AlgorithmBackward }

func (s *BackwardStrategy) Optimize(tasks, _ []*core.Task, params Params, ledger *Ledger) *Result {
	params = params.withDefaults()
	result := newResult()

	sorted := slices.Clone(tasks)
	slices.SortStableFunc(sorted, func(a, b *core.Task) int {
		da, db := params.effectiveDeadline(a), params.effectiveDeadline(b)
		if c := cmp.Compare(string(db), string(da)); c != 0 {
			return c
		}
		if c := cmp.Compare(b.Priority, a.Priority); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	for _, t := range sorted {
		s.place(t, params, ledger, result)
	}
	return result
}

func (s *BackwardStrategy) place(t *core.Task, params Params, ledger *Ledger, result *Result) {
	remaining := t.EstimatedDuration
	allocs := make(map[core.Date]float64)

	for d := params.effectiveDeadline(t); remaining > epsilon; d = d.AddDays(-1) {
		if d.Before(params.StartDate) {
			rollback(ledger, allocs)
			result.fail(t, fmt.Sprintf("Deadline too close; %.1fh remaining", remaining))
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
