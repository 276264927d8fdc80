// Package scheduler holds the workload ledger and the schedule optimization
// strategies that place tasks onto workdays under capacity constraints.
package scheduler

import (
	"github.com/Kohei-Wada/taskdog-sub001/internal/core"
)

// Ledger tracks committed hours per calendar date within one optimization
// pass. It is never shared across passes.
type Ledger struct {
	reserved map[core.Date]float64
	cal      core.Calendar
}

// NewLedger builds an empty ledger over the given workday calendar.
func NewLedger(cal core.Calendar) *Ledger {
	return &Ledger{
		reserved: make(map[core.Date]float64),
		cal:      cal,
	}
}

// IsWorkday reports whether hours may be placed on d.
func (l *Ledger) IsWorkday(d core.Date) bool {
	return l.cal.IsWorkday(d)
}

// Calendar returns the workday calendar the ledger was built with.
func (l *Ledger) Calendar() core.Calendar {
	return l.cal
}

// ReservedOn returns the hours already committed on d.
func (l *Ledger) ReservedOn(d core.Date) float64 {
	return l.reserved[d]
}

// AvailableOn returns the free hours on d under the given daily capacity,
// never negative.
func (l *Ledger) AvailableOn(d core.Date, capacity float64) float64 {
	avail := capacity - l.reserved[d]
	if avail < 0 {
		return 0
	}
	return avail
}

// Reserve commits hours on d. Nonpositive amounts are ignored.
func (l *Ledger) Reserve(d core.Date, hours float64) {
	if hours <= 0 {
		return
	}
	l.reserved[d] += hours
}

// Release returns hours on d, clamping at zero.
func (l *Ledger) Release(d core.Date, hours float64) {
	if hours <= 0 {
		return
	}
	remaining := l.reserved[d] - hours
	if remaining <= epsilon {
		delete(l.reserved, d)
		return
	}
	l.reserved[d] = remaining
}

// Reserved returns a copy of the per-date committed hours.
func (l *Ledger) Reserved() map[core.Date]float64 {
	copied := make(map[core.Date]float64, len(l.reserved))
	for d, hours := range l.reserved {
		copied[d] = hours
	}
	return copied
}

// Seed pre-populates the ledger with the hours of tasks the strategy must
// not move. Under forceOverride only pinned and in-progress work counts;
// otherwise every active task with a planned start does.
func (l *Ledger) Seed(tasks []*core.Task, forceOverride bool) {
	for _, t := range tasks {
		if !t.ShouldCountInWorkload() {
			continue
		}
		if forceOverride {
			if !t.IsFixed && t.Status != core.StatusInProgress {
				continue
			}
		} else if !t.HasSchedule() {
			continue
		}
		for d, hours := range core.WorkloadAllocations(t, l.cal) {
			l.Reserve(d, hours)
		}
	}
}
