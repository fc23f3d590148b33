package ics

import (
	"strings"
	"testing"
	"time"

	"github.com/mkornelli/tempora/internal/schedule"
)

// icsFixture joins lines with the CRLF endings the wire format requires.
func icsFixture(lines ...string) []byte {
	return []byte(strings.Join(lines, "\r\n") + "\r\n")
}

func mustTime(t *testing.T, s string) schedule.TimeOfDay {
	t.Helper()
	tod, err := schedule.ParseTimeOfDay(s)
	if err != nil {
		t.Fatalf("ParseTimeOfDay(%q) failed: %v", s, err)
	}
	return tod
}

func statusAt(t *testing.T, day *schedule.Day, at string) schedule.BlockStatus {
	t.Helper()
	got, err := day.StatusAt(mustTime(t, at))
	if err != nil {
		t.Fatalf("StatusAt(%s) failed: %v", at, err)
	}
	return got
}

func TestImportBusy_SingleEvent(t *testing.T) {
	week := schedule.NewWeek(schedule.DefaultInterval)

	// Tuesday 02:15-03:15
	body := icsFixture(
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//test//test//EN",
		"BEGIN:VEVENT",
		"UID:one@test",
		"DTSTAMP:20240101T000000Z",
		"DTSTART:20240102T021500Z",
		"DTEND:20240102T031500Z",
		"SUMMARY:Standup",
		"END:VEVENT",
		"END:VCALENDAR",
	)

	n, err := ImportBusy(week, body)
	if err != nil {
		t.Fatalf("ImportBusy failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 occurrence applied, got %d", n)
	}

	tue := week.Day(timeWeekday("tue", t))
	if got := tue.BusyCount(); got != 4 {
		t.Errorf("expected 4 busy blocks, got %d", got)
	}
	if statusAt(t, tue, "02:15") != schedule.StatusBusy {
		t.Error("expected 02:15 busy")
	}
	if statusAt(t, tue, "03:14:59") != schedule.StatusBusy {
		t.Error("expected 03:14:59 busy")
	}
	if statusAt(t, tue, "03:15") != schedule.StatusFree {
		t.Error("expected 03:15 free")
	}
	if week.BusyCount() != 4 {
		t.Errorf("expected other days untouched, busy count %d", week.BusyCount())
	}
}

func TestImportBusy_Recurring(t *testing.T) {
	week := schedule.NewWeek(schedule.DefaultInterval)

	// Every Wednesday 14:00-15:00
	body := icsFixture(
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//test//test//EN",
		"BEGIN:VEVENT",
		"UID:weekly@test",
		"DTSTAMP:20240101T000000Z",
		"DTSTART:20240103T140000Z",
		"DTEND:20240103T150000Z",
		"RRULE:FREQ=WEEKLY;BYDAY=WE",
		"SUMMARY:Review",
		"END:VEVENT",
		"END:VCALENDAR",
	)

	n, err := ImportBusy(week, body)
	if err != nil {
		t.Fatalf("ImportBusy failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 occurrence applied, got %d", n)
	}

	wed := week.Day(timeWeekday("wed", t))
	if got := wed.BusyCount(); got != 4 {
		t.Errorf("expected 4 busy blocks, got %d", got)
	}
	if statusAt(t, wed, "14:00") != schedule.StatusBusy {
		t.Error("expected 14:00 busy")
	}
	if statusAt(t, wed, "15:00") != schedule.StatusFree {
		t.Error("expected 15:00 free")
	}
}

func TestImportBusy_CrossMidnight(t *testing.T) {
	week := schedule.NewWeek(schedule.DefaultInterval)

	// Friday 23:30 through Saturday 00:30
	body := icsFixture(
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//test//test//EN",
		"BEGIN:VEVENT",
		"UID:late@test",
		"DTSTAMP:20240101T000000Z",
		"DTSTART:20240105T233000Z",
		"DTEND:20240106T003000Z",
		"SUMMARY:Maintenance",
		"END:VEVENT",
		"END:VCALENDAR",
	)

	if _, err := ImportBusy(week, body); err != nil {
		t.Fatalf("ImportBusy failed: %v", err)
	}

	fri := week.Day(timeWeekday("fri", t))
	sat := week.Day(timeWeekday("sat", t))
	if got := fri.BusyCount(); got != 2 {
		t.Errorf("expected 2 busy blocks friday, got %d", got)
	}
	if got := sat.BusyCount(); got != 2 {
		t.Errorf("expected 2 busy blocks saturday, got %d", got)
	}
	if statusAt(t, fri, "23:45") != schedule.StatusBusy {
		t.Error("expected friday 23:45 busy")
	}
	if statusAt(t, sat, "00:15") != schedule.StatusBusy {
		t.Error("expected saturday 00:15 busy")
	}
	if statusAt(t, sat, "00:30") != schedule.StatusFree {
		t.Error("expected saturday 00:30 free")
	}
}

func TestImportBusy_PartialBlocksClaimed(t *testing.T) {
	week := schedule.NewWeek(schedule.DefaultInterval)

	// Monday 09:05-09:20 touches two 15-minute blocks
	body := icsFixture(
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//test//test//EN",
		"BEGIN:VEVENT",
		"UID:short@test",
		"DTSTAMP:20240101T000000Z",
		"DTSTART:20240101T090500Z",
		"DTEND:20240101T092000Z",
		"SUMMARY:Call",
		"END:VEVENT",
		"END:VCALENDAR",
	)

	if _, err := ImportBusy(week, body); err != nil {
		t.Fatalf("ImportBusy failed: %v", err)
	}

	mon := week.Day(timeWeekday("mon", t))
	if got := mon.BusyCount(); got != 2 {
		t.Errorf("expected 2 busy blocks, got %d", got)
	}
	if statusAt(t, mon, "09:00") != schedule.StatusBusy {
		t.Error("expected 09:00 block busy")
	}
	if statusAt(t, mon, "09:15") != schedule.StatusBusy {
		t.Error("expected 09:15 block busy")
	}
	if statusAt(t, mon, "09:30") != schedule.StatusFree {
		t.Error("expected 09:30 block free")
	}
}

func TestImportBusy_SkipsMalformedEvents(t *testing.T) {
	week := schedule.NewWeek(schedule.DefaultInterval)

	// First event has no DTEND and is skipped; second applies.
	body := icsFixture(
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//test//test//EN",
		"BEGIN:VEVENT",
		"UID:broken@test",
		"DTSTAMP:20240101T000000Z",
		"DTSTART:20240101T100000Z",
		"SUMMARY:NoEnd",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:fine@test",
		"DTSTAMP:20240101T000000Z",
		"DTSTART:20240101T110000Z",
		"DTEND:20240101T113000Z",
		"SUMMARY:Fine",
		"END:VEVENT",
		"END:VCALENDAR",
	)

	n, err := ImportBusy(week, body)
	if err != nil {
		t.Fatalf("ImportBusy failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 occurrence applied, got %d", n)
	}
	if week.BusyCount() != 2 {
		t.Errorf("expected 2 busy blocks, got %d", week.BusyCount())
	}
}

func TestImportBusy_Empty(t *testing.T) {
	week := schedule.NewWeek(schedule.DefaultInterval)
	if _, err := ImportBusy(week, nil); err == nil {
		t.Error("expected error for empty payload")
	}
}

func TestImportBusy_Garbage(t *testing.T) {
	week := schedule.NewWeek(schedule.DefaultInterval)
	if _, err := ImportBusy(week, []byte("not a calendar")); err == nil {
		t.Error("expected error for malformed payload")
	}
}

func TestExportWeek_Empty(t *testing.T) {
	week := schedule.NewWeek(schedule.DefaultInterval)
	out := ExportWeek(week)

	if !strings.Contains(out, "BEGIN:VCALENDAR") {
		t.Error("expected calendar envelope")
	}
	if strings.Contains(out, "BEGIN:VEVENT") {
		t.Error("expected no events for an all-free week")
	}
}

func TestExportWeek_MergesSpans(t *testing.T) {
	week := schedule.NewWeek(schedule.DefaultInterval)

	// Monday 09:00-10:30 plus a separate block at 14:00
	mustSetRange(t, week, "mon", "09:00", "10:30")
	mustSetRange(t, week, "mon", "14:00", "14:15")

	out := ExportWeek(week)

	if got := strings.Count(out, "BEGIN:VEVENT"); got != 2 {
		t.Fatalf("expected 2 events, got %d", got)
	}
	if !strings.Contains(out, "20240101T090000Z") {
		t.Error("expected span start on anchor monday 09:00")
	}
	if !strings.Contains(out, "20240101T103000Z") {
		t.Error("expected span end on anchor monday 10:30")
	}
	if !strings.Contains(out, "RRULE:FREQ=WEEKLY") {
		t.Error("expected weekly recurrence")
	}
	if !strings.Contains(out, "SUMMARY:Busy") {
		t.Error("expected busy summary")
	}
}

func TestRoundTrip(t *testing.T) {
	week := schedule.NewWeek(schedule.DefaultInterval)
	mustSetRange(t, week, "mon", "09:00", "10:30")
	mustSetRange(t, week, "wed", "14:00", "15:00")
	mustSetRange(t, week, "sun", "22:00", "24:00")

	out := ExportWeek(week)

	restored := schedule.NewWeek(schedule.DefaultInterval)
	if _, err := ImportBusy(restored, []byte(out)); err != nil {
		t.Fatalf("ImportBusy failed: %v", err)
	}

	for _, wd := range schedule.Weekdays() {
		want := week.Day(wd).BusyCount()
		got := restored.Day(wd).BusyCount()
		if want != got {
			t.Errorf("%s: expected %d busy blocks, got %d", wd, want, got)
		}
	}
	sun := restored.Day(timeWeekday("sun", t))
	if statusAt(t, sun, "23:45") != schedule.StatusBusy {
		t.Error("expected sunday 23:45 busy after round trip")
	}
}

func mustSetRange(t *testing.T, week *schedule.Week, day, start, end string) {
	t.Helper()
	wd := timeWeekday(day, t)
	iv := week.Interval()

	from := mustTime(t, start)
	to, err := iv.EndIndex(end)
	if err != nil {
		t.Fatalf("EndIndex(%q) failed: %v", end, err)
	}
	if err := week.Day(wd).SetIndexRange(iv.IndexOf(from), to, schedule.StatusBusy); err != nil {
		t.Fatalf("SetIndexRange failed: %v", err)
	}
}

func timeWeekday(name string, t *testing.T) time.Weekday {
	t.Helper()
	wd, err := schedule.ParseWeekday(name)
	if err != nil {
		t.Fatalf("ParseWeekday(%q) failed: %v", name, err)
	}
	return wd
}
