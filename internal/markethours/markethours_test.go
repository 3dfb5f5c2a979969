package markethours

import (
	"testing"
	"time"

	"bn-breakoutv1/internal/model"
)

func ist(year int, month time.Month, day, hour, min int) time.Time {
	return time.Date(year, month, day, hour, min, 0, 0, IST)
}

func TestIsMarketOpen(t *testing.T) {
	cases := []struct {
		name string
		t    time.Time
		want bool
	}{
		{"weekday mid-session", ist(2026, time.August, 28, 10, 30), true}, // Friday
		{"before open", ist(2026, time.August, 28, 9, 14), false},
		{"at open", ist(2026, time.August, 28, 9, 15), true},
		{"at close", ist(2026, time.August, 28, 15, 30), false},
		{"saturday", ist(2026, time.August, 29, 10, 0), false},
		{"sunday", ist(2026, time.August, 30, 10, 0), false},
		{"republic day holiday", ist(2026, time.January, 26, 10, 0), false}, // Monday
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsMarketOpen(tc.t); got != tc.want {
				t.Errorf("IsMarketOpen(%s) = %v, want %v", tc.t, got, tc.want)
			}
		})
	}
}

func TestInWindow(t *testing.T) {
	start := model.TimeOfDay{Hour: 9, Minute: 15}
	end := model.TimeOfDay{Hour: 9, Minute: 45}

	cases := []struct {
		name string
		t    time.Time
		want bool
	}{
		{"inside", ist(2026, time.August, 28, 9, 30), true},
		{"at start", ist(2026, time.August, 28, 9, 15), true},
		{"at end is outside", ist(2026, time.August, 28, 9, 45), false},
		{"before start", ist(2026, time.August, 28, 9, 0), false},
		{"after end", ist(2026, time.August, 28, 10, 0), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := InWindow(tc.t, start, end); got != tc.want {
				t.Errorf("InWindow(%s) = %v, want %v", tc.t, got, tc.want)
			}
		})
	}
}

func TestCutoffToday(t *testing.T) {
	end := model.TimeOfDay{Hour: 9, Minute: 45}
	now := ist(2026, time.August, 28, 9, 20)

	cutoff := CutoffToday(now, end)
	want := ist(2026, time.August, 28, 9, 45)
	if !cutoff.Equal(want) {
		t.Errorf("CutoffToday = %s, want %s", cutoff, want)
	}
	if !now.Before(cutoff) {
		t.Error("9:20 should be before the 9:45 cutoff")
	}
}

func TestNextOpen_SkipsWeekend(t *testing.T) {
	// Friday after close -> Monday 9:15.
	fri := ist(2026, time.August, 28, 16, 0)
	next := NextOpen(fri)
	want := ist(2026, time.August, 31, 9, 15)
	if !next.Equal(want) {
		t.Errorf("NextOpen = %s, want %s", next, want)
	}
}
