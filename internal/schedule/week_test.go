package schedule

import (
	"errors"
	"testing"
	"time"
)

func TestNewWeek_AllDaysFree(t *testing.T) {
	week := NewWeek(DefaultInterval)

	for _, wd := range Weekdays() {
		day := week.Day(wd)
		if day == nil {
			t.Fatalf("Missing day for %s", wd)
		}
		if day.Len() != 96 {
			t.Errorf("%s: expected 96 blocks, got %d", wd, day.Len())
		}
		if day.BusyCount() != 0 {
			t.Errorf("%s: expected no busy blocks, got %d", wd, day.BusyCount())
		}
	}
}

// Marking one weekday must leave the other six untouched.
func TestWeek_DayIsolation(t *testing.T) {
	week := NewWeek(DefaultInterval)

	from := TimeOfDay{Hour: 9}
	to := TimeOfDay{Hour: 12}
	if err := week.SetRange(time.Tuesday, from, to, StatusBusy); err != nil {
		t.Fatalf("SetRange: %v", err)
	}

	if got := week.Day(time.Tuesday).BusyCount(); got != 12 {
		t.Errorf("Tuesday: expected 12 busy blocks, got %d", got)
	}
	for _, wd := range Weekdays() {
		if wd == time.Tuesday {
			continue
		}
		if got := week.Day(wd).BusyCount(); got != 0 {
			t.Errorf("%s: expected 0 busy blocks after marking Tuesday, got %d", wd, got)
		}
	}
	if week.BusyCount() != 12 {
		t.Errorf("Expected 12 busy blocks overall, got %d", week.BusyCount())
	}
}

func TestWeek_Clone(t *testing.T) {
	week := NewWeek(DefaultInterval)
	if err := week.SetRange(time.Friday, TimeOfDay{Hour: 14}, TimeOfDay{Hour: 15}, StatusBusy); err != nil {
		t.Fatalf("SetRange: %v", err)
	}

	clone := week.Clone()
	if clone.Day(time.Friday).BusyCount() != 4 {
		t.Errorf("Clone should carry Friday's busy blocks")
	}

	if err := clone.SetRange(time.Monday, TimeOfDay{Hour: 8}, TimeOfDay{Hour: 9}, StatusBusy); err != nil {
		t.Fatalf("SetRange on clone: %v", err)
	}
	if week.Day(time.Monday).BusyCount() != 0 {
		t.Error("Mutating the clone changed the original week")
	}
}

func TestWeekdays_MondayFirst(t *testing.T) {
	days := Weekdays()
	if days[0] != time.Monday {
		t.Errorf("Expected Monday first, got %s", days[0])
	}
	if days[6] != time.Sunday {
		t.Errorf("Expected Sunday last, got %s", days[6])
	}

	seen := make(map[time.Weekday]bool)
	for _, wd := range days {
		if seen[wd] {
			t.Errorf("Duplicate weekday %s", wd)
		}
		seen[wd] = true
	}
	if len(seen) != 7 {
		t.Errorf("Expected 7 distinct weekdays, got %d", len(seen))
	}
}

func TestParseWeekday(t *testing.T) {
	tests := []struct {
		input string
		want  time.Weekday
	}{
		{"monday", time.Monday},
		{"Mon", time.Monday},
		{"TUESDAY", time.Tuesday},
		{"wed", time.Wednesday},
		{"Thu", time.Thursday},
		{"friday", time.Friday},
		{"sat", time.Saturday},
		{" sunday ", time.Sunday},
	}
	for _, tt := range tests {
		got, err := ParseWeekday(tt.input)
		if err != nil {
			t.Errorf("ParseWeekday(%q): %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseWeekday(%q) = %s, expected %s", tt.input, got, tt.want)
		}
	}

	for _, bad := range []string{"", "later", "m", "8"} {
		if _, err := ParseWeekday(bad); !errors.Is(err, ErrInvalidWeekday) {
			t.Errorf("ParseWeekday(%q): expected ErrInvalidWeekday, got %v", bad, err)
		}
	}
}

func TestNewWeek_ZeroIntervalFallsBack(t *testing.T) {
	week := NewWeek(Interval{})
	if got := week.Interval().Minutes(); got != DefaultIntervalMinutes {
		t.Errorf("Expected default interval, got %d minutes", got)
	}
	if week.Day(time.Monday).Len() != 96 {
		t.Errorf("Expected 96 blocks, got %d", week.Day(time.Monday).Len())
	}
}
