// Package schedule models weekly availability as a grid of fixed-size
// time blocks. A day divides into equal blocks, each block is either
// free or busy, and a week is seven independent days on the same grid.
package schedule

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const minutesPerDay = 24 * 60

// DefaultIntervalMinutes is the block length used when nothing else is
// configured.
const DefaultIntervalMinutes = 15

var (
	// ErrIntervalInvalid indicates a block length that does not evenly
	// tile an hour.
	ErrIntervalInvalid = errors.New("interval must be between 1 and 60 minutes and divide 60 evenly")
	// ErrIndexOutOfRange indicates a block index outside the day's grid.
	ErrIndexOutOfRange = errors.New("block index out of range")
	// ErrInvalidTime indicates a time of day that does not exist.
	ErrInvalidTime = errors.New("invalid time of day")
	// ErrInvalidRange indicates a range whose start lies after its end.
	ErrInvalidRange = errors.New("range start must not be after range end")
)

// TimeOfDay is a wall-clock time detached from any date.
type TimeOfDay struct {
	Hour   int
	Minute int
	Second int
}

// NewTimeOfDay validates the clock fields.
func NewTimeOfDay(hour, minute, second int) (TimeOfDay, error) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 || second < 0 || second > 59 {
		return TimeOfDay{}, fmt.Errorf("%w: %02d:%02d:%02d", ErrInvalidTime, hour, minute, second)
	}
	return TimeOfDay{Hour: hour, Minute: minute, Second: second}, nil
}

// ParseTimeOfDay accepts "HH:MM" or "HH:MM:SS".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	layout := "15:04"
	if strings.Count(s, ":") == 2 {
		layout = "15:04:05"
	}
	t, err := time.Parse(layout, strings.TrimSpace(s))
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}, nil
}

// String renders the time as HH:MM:SS.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
}

// HourMinute renders the time as HH:MM, dropping seconds.
func (t TimeOfDay) HourMinute() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Minutes returns whole minutes since midnight, ignoring seconds.
func (t TimeOfDay) Minutes() int { return t.Hour*60 + t.Minute }

// Seconds returns seconds since midnight.
func (t TimeOfDay) Seconds() int { return t.Minutes()*60 + t.Second }

// Before reports whether t is strictly earlier than u.
func (t TimeOfDay) Before(u TimeOfDay) bool { return t.Seconds() < u.Seconds() }

// Interval is a validated block length. The zero value is not usable;
// construct one with NewInterval or use DefaultInterval.
type Interval struct {
	minutes int
}

// DefaultInterval is the 15-minute grid.
var DefaultInterval = Interval{minutes: DefaultIntervalMinutes}

// NewInterval validates a block length in minutes. The length must be
// positive, at most 60, and divide 60 evenly so blocks always align
// with hour boundaries.
func NewInterval(minutes int) (Interval, error) {
	if minutes <= 0 || minutes > 60 || 60%minutes != 0 {
		return Interval{}, fmt.Errorf("%w: got %d", ErrIntervalInvalid, minutes)
	}
	return Interval{minutes: minutes}, nil
}

// Minutes returns the block length.
func (iv Interval) Minutes() int { return iv.minutes }

// BlocksPerDay is the number of blocks a day divides into.
func (iv Interval) BlocksPerDay() int { return minutesPerDay / iv.minutes }

// IndexOf maps a time of day onto its block index. Seconds are
// ignored: every instant inside a block maps to the same index.
func (iv Interval) IndexOf(t TimeOfDay) int {
	return t.Minutes() / iv.minutes
}

// Window is the inverse of IndexOf: the first and last instant covered
// by the block at index. Each block ends one second before the next
// begins, so the last block of the day ends at 23:59:59.
func (iv Interval) Window(index int) (start, end TimeOfDay, err error) {
	if index < 0 || index >= iv.BlocksPerDay() {
		return TimeOfDay{}, TimeOfDay{}, fmt.Errorf("%w: index %d with %d blocks per day", ErrIndexOutOfRange, index, iv.BlocksPerDay())
	}
	startMin := index * iv.minutes
	endMin := startMin + iv.minutes - 1
	start = TimeOfDay{Hour: startMin / 60, Minute: startMin % 60}
	end = TimeOfDay{Hour: endMin / 60, Minute: endMin % 60, Second: 59}
	return start, end, nil
}

// EndIndex maps an exclusive range-end string onto a block index.
// "24:00" selects the end of the day; anything else parses as a time
// of day and maps through IndexOf.
func (iv Interval) EndIndex(s string) (int, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "24:00" || trimmed == "24:00:00" {
		return iv.BlocksPerDay(), nil
	}
	t, err := ParseTimeOfDay(trimmed)
	if err != nil {
		return 0, err
	}
	return iv.IndexOf(t), nil
}
