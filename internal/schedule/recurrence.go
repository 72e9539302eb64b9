package schedule

import (
	"errors"
	"fmt"
	"time"
)

const (
	// MaxRecurrenceDays bounds the inclusive date range of one expansion.
	MaxRecurrenceDays = 366
	// MaxDurationMinutes bounds one occurrence to a day.
	MaxDurationMinutes = 24 * 60
)

var (
	ErrInvalidTimeOfDay = errors.New("time of day must be HH:MM")
	ErrInvalidDuration  = fmt.Errorf("duration must be between 1 and %d minutes", MaxDurationMinutes)
	ErrInvalidDateRange = errors.New("date range must satisfy from <= to")
	ErrRangeTooLong     = fmt.Errorf("date range exceeds %d days", MaxRecurrenceDays)
)

// TimeOfDay is a local wall-clock time without a date.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses "HH:MM" (24h).
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return TimeOfDay{}, ErrInvalidTimeOfDay
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Occurrence is one candidate slot produced by Expand.
type Occurrence struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Expand returns one occurrence per calendar date in [from, to] whose
// weekday matches, in ascending order.  Only the calendar date of from and
// to is used.  Every date is built on its own with time.Date in loc, so a
// DST change inside the range neither shifts the local start time nor
// skips or duplicates a day.  Expand keeps no state between calls.
func Expand(weekday time.Weekday, at TimeOfDay, durationMinutes int, from, to time.Time, loc *time.Location) ([]Occurrence, error) {
	if loc == nil {
		loc = time.UTC
	}
	if at.Hour < 0 || at.Hour > 23 || at.Minute < 0 || at.Minute > 59 {
		return nil, ErrInvalidTimeOfDay
	}
	if durationMinutes <= 0 || durationMinutes > MaxDurationMinutes {
		return nil, ErrInvalidDuration
	}
	fy, fm, fd := from.Date()
	ty, tm, td := to.Date()
	// Noon keeps the day arithmetic away from DST transitions.
	first := time.Date(fy, fm, fd, 12, 0, 0, 0, time.UTC)
	last := time.Date(ty, tm, td, 12, 0, 0, 0, time.UTC)
	if last.Before(first) {
		return nil, ErrInvalidDateRange
	}
	if days := int(last.Sub(first).Hours()/24) + 1; days > MaxRecurrenceDays {
		return nil, ErrRangeTooLong
	}

	offset := (int(weekday) - int(first.Weekday()) + 7) % 7
	var out []Occurrence
	for day := first.AddDate(0, 0, offset); !day.After(last); day = day.AddDate(0, 0, 7) {
		y, m, d := day.Date()
		start := time.Date(y, m, d, at.Hour, at.Minute, 0, 0, loc)
		end := time.Date(y, m, d, at.Hour, at.Minute+durationMinutes, 0, 0, loc)
		out = append(out, Occurrence{Start: start, End: end})
	}
	return out, nil
}
