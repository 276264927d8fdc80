package core

import (
	"fmt"
	"time"
)

// TimeOfDay is a wall-clock time within a day, minute resolution.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// Workday boundaries used when expanding a date allocation into a concrete
// planned period.
var (
	WorkdayStart = TimeOfDay{Hour: 9}
	WorkdayEnd   = TimeOfDay{Hour: 18}
)

// ParseTimeOfDay parses "HH:MM".
func ParseTimeOfDay(v string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", v)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("%w: invalid time of day %q", ErrValidation, v)
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// Before reports whether t is earlier in the day than u.
func (t TimeOfDay) Before(u TimeOfDay) bool {
	if t.Hour != u.Hour {
		return t.Hour < u.Hour
	}
	return t.Minute < u.Minute
}

// On anchors the time of day onto the given date in local time.
func (t TimeOfDay) On(d Date) time.Time {
	day := d.Time()
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour, t.Minute, 0, 0, time.Local)
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}
