package core

import "time"

// HolidayChecker answers whether a calendar date is a holiday. A nil checker
// means only weekends are non-workdays.
type HolidayChecker interface {
	IsHoliday(d Date) bool
}

// Calendar bundles the workday policy for one scheduling pass.
type Calendar struct {
	Holidays       HolidayChecker
	IncludeAllDays bool
}

// IsWorkday reports whether hours may be allocated on d: any date when
// IncludeAllDays is set, otherwise Mon-Fri minus holidays.
func (c Calendar) IsWorkday(d Date) bool {
	if c.IncludeAllDays {
		return true
	}
	switch d.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	if c.Holidays != nil && c.Holidays.IsHoliday(d) {
		return false
	}
	return true
}

// Workdays lists the workdays in [from, to] in ascending order.
func (c Calendar) Workdays(from, to Date) []Date {
	if from.IsZero() || to.IsZero() || to.Before(from) {
		return nil
	}
	var days []Date
	for d := from; !d.After(to); d = d.AddDays(1) {
		if c.IsWorkday(d) {
			days = append(days, d)
		}
	}
	return days
}

// WorkdaysBetween counts the workdays in [from, to].
func (c Calendar) WorkdaysBetween(from, to Date) int {
	return len(c.Workdays(from, to))
}

// NextWorkday returns the first workday on or after d.
func (c Calendar) NextWorkday(d Date) Date {
	for !c.IsWorkday(d) {
		d = d.AddDays(1)
	}
	return d
}

// PrevWorkday returns the last workday on or before d.
func (c Calendar) PrevWorkday(d Date) Date {
	for !c.IsWorkday(d) {
		d = d.AddDays(-1)
	}
	return d
}
