// Package ics maps iCalendar events onto the weekly availability
// template and renders the template back out as a calendar.
//
// Events are placed by weekday and time of day; the calendar dates
// themselves only matter for recurrence expansion. Exported events are
// anchored to a fixed reference week and repeat weekly.
package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"github.com/mkornelli/tempora/internal/schedule"
)

// ErrEmptyCalendar is returned for an empty ICS payload.
var ErrEmptyCalendar = errors.New("empty ics payload")

// weekAnchor is the Monday that exported events are placed on.
var weekAnchor = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// ImportBusy parses an ICS payload and marks every event occurrence
// busy on the week, keyed by weekday and time of day. Recurring
// events are expanded across the week containing their DTSTART.
// Blocks partially covered by an event are marked busy in full.
// Malformed events are skipped; the count of applied occurrences is
// returned.
func ImportBusy(week *schedule.Week, body []byte) (int, error) {
	if len(body) == 0 {
		return 0, ErrEmptyCalendar
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("parse calendar: %w", err)
	}

	applied := 0
	for _, ev := range cal.Events() {
		start, err := ev.GetStartAt()
		if err != nil {
			continue
		}
		end, err := ev.GetEndAt()
		if err != nil || !end.After(start) {
			continue
		}

		rawRule := ""
		if p := ev.GetProperty(ical.ComponentPropertyRrule); p != nil {
			rawRule = p.Value
		}

		for _, occ := range occurrences(start, end, rawRule) {
			if markOccurrence(week, occ.start, occ.end) {
				applied++
			}
		}
	}
	return applied, nil
}

type span struct {
	start time.Time
	end   time.Time
}

// occurrences expands an event into concrete spans. Non-recurring
// events yield themselves; recurring events are expanded across the
// week containing DTSTART, which is enough to fill a weekly template.
func occurrences(start, end time.Time, rawRule string) []span {
	if rawRule == "" {
		return []span{{start: start, end: end}}
	}

	r, err := rrule.StrToRRule(rawRule)
	if err != nil {
		return nil
	}
	r.DTStart(start)

	var set rrule.Set
	set.RRule(r)

	windowStart := startOfWeek(start)
	windowEnd := windowStart.AddDate(0, 0, 7).Add(-time.Second)

	dur := end.Sub(start)
	times := set.Between(windowStart, windowEnd, true)

	out := make([]span, 0, len(times))
	for _, t := range times {
		out = append(out, span{start: t, end: t.Add(dur)})
	}
	return out
}

// markOccurrence marks [start, end) busy on the week, splitting at
// midnight so each segment lands on its own weekday. Reports whether
// any block changed coverage.
func markOccurrence(week *schedule.Week, start, end time.Time) bool {
	marked := false
	cur := start
	// A weekly template never needs more than seven daily segments.
	for i := 0; i < 7 && cur.Before(end); i++ {
		dayEnd := nextMidnight(cur)
		segEnd := end
		if dayEnd.Before(segEnd) {
			segEnd = dayEnd
		}

		startSec := secondsIntoDay(cur)
		endSec := startSec + int(segEnd.Sub(cur).Seconds())
		if markSeconds(week.Day(cur.Weekday()), startSec, endSec) {
			marked = true
		}
		cur = segEnd
	}
	return marked
}

// markSeconds marks every block touched by [startSec, endSec) busy.
func markSeconds(day *schedule.Day, startSec, endSec int) bool {
	ivSec := day.Interval().Minutes() * 60
	from := startSec / ivSec
	to := (endSec + ivSec - 1) / ivSec // partial coverage claims the block
	if to > day.Len() {
		to = day.Len()
	}
	if from >= to {
		return false
	}
	if err := day.SetIndexRange(from, to, schedule.StatusBusy); err != nil {
		return false
	}
	return true
}

// ExportWeek renders the busy blocks of a week as an ICS calendar.
// Consecutive busy blocks merge into a single weekly-recurring event
// on the anchor week.
func ExportWeek(week *schedule.Week) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//tempora//tempora//EN")

	now := time.Now().UTC()
	ivMin := week.Interval().Minutes()

	for _, wd := range schedule.Weekdays() {
		dayName := strings.ToLower(wd.String())
		dayDate := weekAnchor.AddDate(0, 0, mondayOffset(wd))

		for i, sp := range busySpans(week.Day(wd)) {
			start := dayDate.Add(time.Duration(sp.from*ivMin) * time.Minute)
			end := dayDate.Add(time.Duration(sp.to*ivMin) * time.Minute)

			ev := cal.AddEvent(fmt.Sprintf("tempora-%s-%d@tempora", dayName, i))
			ev.SetDtStampTime(now)
			ev.SetCreatedTime(now)
			ev.SetStartAt(start)
			ev.SetEndAt(end)
			ev.SetSummary("Busy")
			ev.SetProperty(ical.ComponentPropertyRrule, "FREQ=WEEKLY")
		}
	}

	return cal.Serialize()
}

type indexSpan struct {
	from int // first busy block
	to   int // one past the last busy block
}

// busySpans merges consecutive busy blocks into half-open index spans.
func busySpans(day *schedule.Day) []indexSpan {
	var spans []indexSpan
	blocks := day.Blocks()

	i := 0
	for i < len(blocks) {
		if blocks[i].Status != schedule.StatusBusy {
			i++
			continue
		}
		j := i + 1
		for j < len(blocks) && blocks[j].Status == schedule.StatusBusy {
			j++
		}
		spans = append(spans, indexSpan{from: i, to: j})
		i = j
	}
	return spans
}

// startOfWeek returns midnight on the Monday of t's week.
func startOfWeek(t time.Time) time.Time {
	offset := mondayOffset(t.Weekday())
	return time.Date(t.Year(), t.Month(), t.Day()-offset, 0, 0, 0, 0, t.Location())
}

// mondayOffset counts days since Monday.
func mondayOffset(wd time.Weekday) int {
	return (int(wd) + 6) % 7
}

func nextMidnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, t.Location())
}

func secondsIntoDay(t time.Time) int {
	return t.Hour()*3600 + t.Minute()*60 + t.Second()
}
