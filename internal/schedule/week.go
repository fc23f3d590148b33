package schedule

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidWeekday indicates an unrecognized weekday name.
var ErrInvalidWeekday = errors.New("invalid weekday")

// Week is a full availability template: one day per weekday, all on the
// same grid. Each day is owned exclusively by its week, so mutating one
// day never touches another and two weeks never share state.
type Week struct {
	interval Interval
	days     [7]*Day // indexed by time.Weekday, Sunday = 0
}

// NewWeek returns a week of seven fresh, all-free days.
func NewWeek(iv Interval) *Week {
	if iv.minutes == 0 {
		iv = DefaultInterval
	}
	w := &Week{interval: iv}
	for i := range w.days {
		w.days[i] = NewDay(iv)
	}
	return w
}

// Interval returns the grid the week is built on.
func (w *Week) Interval() Interval { return w.interval }

// Day returns the schedule for one weekday.
func (w *Week) Day(wd time.Weekday) *Day { return w.days[wd] }

// SetRange marks the half-open range [from, to) on a single weekday.
func (w *Week) SetRange(wd time.Weekday, from, to TimeOfDay, status BlockStatus) error {
	return w.days[wd].SetRange(from, to, status)
}

// BusyCount returns the number of busy blocks across the whole week.
func (w *Week) BusyCount() int {
	n := 0
	for _, d := range w.days {
		n += d.BusyCount()
	}
	return n
}

// Clone returns a deep copy. Snapshots handed out to callers must never
// alias the live week.
func (w *Week) Clone() *Week {
	c := &Week{interval: w.interval}
	for i, d := range w.days {
		c.days[i] = d.Clone()
	}
	return c
}

// Weekdays lists the days Monday first, the order the calendar renders
// and exports in.
func Weekdays() [7]time.Weekday {
	return [7]time.Weekday{
		time.Monday,
		time.Tuesday,
		time.Wednesday,
		time.Thursday,
		time.Friday,
		time.Saturday,
		time.Sunday,
	}
}

// ParseWeekday accepts full names or three-letter prefixes in any case
// ("monday", "Mon", "MONDAY").
func ParseWeekday(s string) (time.Weekday, error) {
	n := strings.ToLower(strings.TrimSpace(s))
	if len(n) > 3 {
		n = n[:3]
	}
	switch n {
	case "sun":
		return time.Sunday, nil
	case "mon":
		return time.Monday, nil
	case "tue":
		return time.Tuesday, nil
	case "wed":
		return time.Wednesday, nil
	case "thu":
		return time.Thursday, nil
	case "fri":
		return time.Friday, nil
	case "sat":
		return time.Saturday, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidWeekday, s)
}
