package core

// EvenSplit distributes hours equally over the workdays in [from, to]. When
// the range contains no workday at all (a fixed window pinned to a weekend),
// the split falls back to every calendar day in the range so the hours stay
// visible to the ledger.
func EvenSplit(hours float64, from, to Date, cal Calendar) map[Date]float64 {
	if hours <= 0 || from.IsZero() || to.IsZero() || to.Before(from) {
		return nil
	}
	days := cal.Workdays(from, to)
	if len(days) == 0 {
		for d := from; !d.After(to); d = d.AddDays(1) {
			days = append(days, d)
		}
	}
	perDay := hours / float64(len(days))
	allocs := make(map[Date]float64, len(days))
	for _, d := range days {
		allocs[d] = perDay
	}
	return allocs
}

// WorkloadAllocations computes the per-day hours a task contributes to the
// workload view. Precedence: the task's own allocation map, then an even
// split over the planned window (which doubles as the fixed-interval policy
// for pinned tasks), then nothing.
func WorkloadAllocations(t *Task, cal Calendar) map[Date]float64 {
	if len(t.DailyAllocations) > 0 {
		allocs := make(map[Date]float64, len(t.DailyAllocations))
		for d, hours := range t.DailyAllocations {
			allocs[d] = hours
		}
		return allocs
	}
	if t.PlannedStart.IsZero() || t.PlannedEnd.IsZero() {
		return nil
	}
	return EvenSplit(t.EstimatedDuration, NewDate(t.PlannedStart), NewDate(t.PlannedEnd), cal)
}
