package core

import (
	"fmt"
	"time"
)

// DateLayout is the canonical YYYY-MM-DD form used for calendar dates.
const DateLayout = "2006-01-02"

// Date is a calendar date in ISO YYYY-MM-DD form. The string itself is the
// canonical representation: it keys the daily hour maps, serializes as-is,
// and compares chronologically with the ordinary string ordering.
type Date string

// NewDate returns the Date of the given instant in its location.
func NewDate(t time.Time) Date {
	return Date(t.Format(DateLayout))
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.Local)
	if err != nil {
		return "", fmt.Errorf("invalid date %q: %w", s, err)
	}
	return NewDate(t), nil
}

// Time returns midnight of the date in the local time zone.
// Invalid dates yield the zero time.
func (d Date) Time() time.Time {
	t, err := time.ParseInLocation(DateLayout, string(d), time.Local)
	if err != nil {
		return time.Time{}
	}
	return t
}

// IsZero reports whether the date is unset.
func (d Date) IsZero() bool {
	return d == ""
}

// AddDays returns the date shifted by n calendar days.
func (d Date) AddDays(n int) Date {
	return NewDate(d.Time().AddDate(0, 0, n))
}

// Weekday returns the day of the week.
func (d Date) Weekday() time.Weekday {
	return d.Time().Weekday()
}

// Before reports whether d is strictly earlier than other.
func (d Date) Before(other Date) bool {
	return d < other
}

// After reports whether d is strictly later than other.
func (d Date) After(other Date) bool {
	return d > other
}

func (d Date) String() string {
	return string(d)
}

// MinDate returns the earlier of two dates, ignoring zero values.
func MinDate(a, b Date) Date {
	switch {
	case a.IsZero():
		return b
	case b.IsZero():
		return a
	case a.Before(b):
		return a
	default:
		return b
	}
}

// MaxDate returns the later of two dates, ignoring zero values.
func MaxDate(a, b Date) Date {
	switch {
	case a.IsZero():
		return b
	case b.IsZero():
		return a
	case a.After(b):
		return a
	default:
		return b
	}
}

// SortedDates returns the keys of a daily hour map in chronological order.
func SortedDates(m map[Date]float64) []Date {
	dates := make([]Date, 0, len(m))
	for d := range m {
		dates = append(dates, d)
	}
	// Lexicographic order on YYYY-MM-DD is chronological order.
	for i := 1; i < len(dates); i++ {
		for j := i; j > 0 && dates[j] < dates[j-1]; j-- {
			dates[j], dates[j-1] = dates[j-1], dates[j]
		}
	}
	return dates
}
