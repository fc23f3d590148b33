package schedule

import (
	"errors"
	"testing"
)

func TestNewInterval_Valid(t *testing.T) {
	for _, minutes := range []int{1, 2, 3, 4, 5, 6, 10, 12, 15, 20, 30, 60} {
		iv, err := NewInterval(minutes)
		if err != nil {
			t.Errorf("NewInterval(%d) returned error: %v", minutes, err)
			continue
		}
		if iv.Minutes() != minutes {
			t.Errorf("Expected %d minutes, got %d", minutes, iv.Minutes())
		}
		if got := iv.BlocksPerDay(); got != 1440/minutes {
			t.Errorf("Expected %d blocks per day, got %d", 1440/minutes, got)
		}
	}
}

func TestNewInterval_Invalid(t *testing.T) {
	for _, minutes := range []int{-15, 0, 7, 11, 13, 25, 45, 61, 120} {
		_, err := NewInterval(minutes)
		if err == nil {
			t.Errorf("NewInterval(%d) should have failed", minutes)
			continue
		}
		if !errors.Is(err, ErrIntervalInvalid) {
			t.Errorf("Expected ErrIntervalInvalid for %d, got %v", minutes, err)
		}
	}
}

func TestIndexOf(t *testing.T) {
	iv, _ := NewInterval(15)

	tests := []struct {
		time  TimeOfDay
		index int
	}{
		{TimeOfDay{Hour: 0, Minute: 0}, 0},
		{TimeOfDay{Hour: 0, Minute: 14, Second: 59}, 0},
		{TimeOfDay{Hour: 0, Minute: 15}, 1},
		{TimeOfDay{Hour: 2, Minute: 17}, 9},
		{TimeOfDay{Hour: 2, Minute: 48}, 11},
		{TimeOfDay{Hour: 9, Minute: 0}, 36},
		{TimeOfDay{Hour: 12, Minute: 0}, 48},
		{TimeOfDay{Hour: 23, Minute: 59, Second: 59}, 95},
	}
	for _, tt := range tests {
		if got := iv.IndexOf(tt.time); got != tt.index {
			t.Errorf("IndexOf(%s) = %d, expected %d", tt.time, got, tt.index)
		}
	}
}

// Every index must round-trip through Window and back, for every grid
// size that divides the hour.
func TestIndexWindowRoundTrip(t *testing.T) {
	for _, minutes := range []int{15, 20, 30, 60} {
		iv, err := NewInterval(minutes)
		if err != nil {
			t.Fatalf("NewInterval(%d): %v", minutes, err)
		}
		for i := 0; i < iv.BlocksPerDay(); i++ {
			start, end, err := iv.Window(i)
			if err != nil {
				t.Fatalf("Window(%d) with %d-minute grid: %v", i, minutes, err)
			}
			if got := iv.IndexOf(start); got != i {
				t.Errorf("%d-minute grid: IndexOf(start %s) = %d, expected %d", minutes, start, got, i)
			}
			if got := iv.IndexOf(end); got != i {
				t.Errorf("%d-minute grid: IndexOf(end %s) = %d, expected %d", minutes, end, got, i)
			}
		}
	}
}

func TestWindow_Bounds(t *testing.T) {
	iv, _ := NewInterval(15)

	start, end, err := iv.Window(0)
	if err != nil {
		t.Fatalf("Window(0): %v", err)
	}
	if start != (TimeOfDay{}) {
		t.Errorf("Expected first block to start at midnight, got %s", start)
	}
	if end != (TimeOfDay{Hour: 0, Minute: 14, Second: 59}) {
		t.Errorf("Expected first block to end at 00:14:59, got %s", end)
	}

	start, end, err = iv.Window(95)
	if err != nil {
		t.Fatalf("Window(95): %v", err)
	}
	if start != (TimeOfDay{Hour: 23, Minute: 45}) {
		t.Errorf("Expected last block to start at 23:45:00, got %s", start)
	}
	if end != (TimeOfDay{Hour: 23, Minute: 59, Second: 59}) {
		t.Errorf("Expected last block to end at 23:59:59, got %s", end)
	}
}

func TestWindow_OutOfRange(t *testing.T) {
	iv, _ := NewInterval(15)
	for _, index := range []int{-1, 96, 1000} {
		if _, _, err := iv.Window(index); !errors.Is(err, ErrIndexOutOfRange) {
			t.Errorf("Window(%d): expected ErrIndexOutOfRange, got %v", index, err)
		}
	}

	hourly, _ := NewInterval(60)
	if _, _, err := hourly.Window(24); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("Window(24) on hourly grid: expected ErrIndexOutOfRange, got %v", err)
	}
}

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		input   string
		want    TimeOfDay
		wantErr bool
	}{
		{"09:30", TimeOfDay{Hour: 9, Minute: 30}, false},
		{"23:59:59", TimeOfDay{Hour: 23, Minute: 59, Second: 59}, false},
		{"00:00", TimeOfDay{}, false},
		{" 12:15 ", TimeOfDay{Hour: 12, Minute: 15}, false},
		{"24:00", TimeOfDay{}, true},
		{"9:75", TimeOfDay{}, true},
		{"garbage", TimeOfDay{}, true},
		{"", TimeOfDay{}, true},
	}
	for _, tt := range tests {
		got, err := ParseTimeOfDay(tt.input)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidTime) {
				t.Errorf("ParseTimeOfDay(%q): expected ErrInvalidTime, got %v", tt.input, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseTimeOfDay(%q): %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseTimeOfDay(%q) = %s, expected %s", tt.input, got, tt.want)
		}
	}
}

func TestEndIndex(t *testing.T) {
	iv, _ := NewInterval(15)

	idx, err := iv.EndIndex("24:00")
	if err != nil {
		t.Fatalf("EndIndex(24:00): %v", err)
	}
	if idx != 96 {
		t.Errorf("Expected end-of-day index 96, got %d", idx)
	}

	idx, err = iv.EndIndex("03:15")
	if err != nil {
		t.Fatalf("EndIndex(03:15): %v", err)
	}
	if idx != 13 {
		t.Errorf("Expected index 13, got %d", idx)
	}

	if _, err := iv.EndIndex("25:00"); err == nil {
		t.Error("Expected error for 25:00")
	}
}

func TestNewTimeOfDay_Invalid(t *testing.T) {
	cases := [][3]int{{24, 0, 0}, {-1, 0, 0}, {0, 60, 0}, {0, 0, 60}}
	for _, c := range cases {
		if _, err := NewTimeOfDay(c[0], c[1], c[2]); !errors.Is(err, ErrInvalidTime) {
			t.Errorf("NewTimeOfDay(%d, %d, %d): expected ErrInvalidTime, got %v", c[0], c[1], c[2], err)
		}
	}
}
