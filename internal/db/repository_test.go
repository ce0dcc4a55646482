package db

import (
	"testing"
	"time"
)

func TestDayWindow_ExactDay(t *testing.T) {
	// Mid-afternoon; time-of-day must be stripped before comparison
	now := time.Date(2026, time.March, 10, 15, 42, 7, 0, time.UTC)

	start, end := dayWindow(now, 7)

	wantStart := time.Date(2026, time.March, 17, 0, 0, 0, 0, time.UTC)
	if !start.Equal(wantStart) {
		t.Errorf("expected start %v, got %v", wantStart, start)
	}
	if !end.Equal(wantStart.AddDate(0, 0, 1)) {
		t.Errorf("expected end %v, got %v", wantStart.AddDate(0, 0, 1), end)
	}
}

func TestDayWindow_HalfOpenBoundaries(t *testing.T) {
	now := time.Date(2026, time.March, 10, 23, 59, 59, 0, time.UTC)
	start, end := dayWindow(now, 1)

	// Midnight of the target day is inside the window
	inside := time.Date(2026, time.March, 11, 0, 0, 0, 0, time.UTC)
	if inside.Before(start) || !inside.Before(end) {
		t.Errorf("expected %v inside [%v, %v)", inside, start, end)
	}

	// Midnight of the following day is outside
	outside := time.Date(2026, time.March, 12, 0, 0, 0, 0, time.UTC)
	if outside.Before(end) {
		t.Errorf("expected %v outside [%v, %v)", outside, start, end)
	}
}

func TestDayWindow_MonthRollover(t *testing.T) {
	now := time.Date(2026, time.January, 28, 8, 0, 0, 0, time.UTC)
	start, _ := dayWindow(now, 7)

	want := time.Date(2026, time.February, 4, 0, 0, 0, 0, time.UTC)
	if !start.Equal(want) {
		t.Errorf("expected start %v, got %v", want, start)
	}
}

func TestTypeForOffset(t *testing.T) {
	cases := map[int]string{
		7:  Type7Day,
		3:  Type3Day,
		1:  Type1Day,
		14: "14_day",
	}

	for days, want := range cases {
		if got := TypeForOffset(days); got != want {
			t.Errorf("TypeForOffset(%d) = %q, want %q", days, got, want)
		}
	}
}

func TestEnabledFor(t *testing.T) {
	prefs := &ReminderPreferences{Remind7Days: true, Remind3Days: false, Remind1Day: true}

	if !prefs.EnabledFor(7) {
		t.Error("expected 7-day reminders enabled")
	}
	if prefs.EnabledFor(3) {
		t.Error("expected 3-day reminders disabled")
	}
	if !prefs.EnabledFor(1) {
		t.Error("expected 1-day reminders enabled")
	}
}
