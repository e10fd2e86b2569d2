package clock

import (
	"testing"
	"time"
)

func TestDaysBetweenFloors(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		from time.Time
		want int
	}{
		{from: now, want: 0},
		{from: now.Add(-23 * time.Hour), want: 0},
		{from: now.Add(-30 * 24 * time.Hour), want: 30},
		{from: now.Add(-31*24*time.Hour + time.Minute), want: 30},
		{from: now.Add(-31 * 24 * time.Hour), want: 31},
		{from: now.Add(time.Hour), want: -1},
	}
	for _, c := range cases {
		if got := DaysBetween(c.from, now); got != c.want {
			t.Fatalf("DaysBetween(%v, %v) = %d, want %d", c.from, now, got, c.want)
		}
	}
}

func TestWithinWindowIsSymmetricAndInclusive(t *testing.T) {
	base := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	window := 5 * time.Minute

	if !WithinWindow(base.Add(4*time.Minute), base, window) {
		t.Fatalf("+4m should be within window")
	}
	if !WithinWindow(base.Add(-5*time.Minute), base, window) {
		t.Fatalf("-5m should be within window (inclusive)")
	}
	if WithinWindow(base.Add(6*time.Minute), base, window) {
		t.Fatalf("+6m should be outside window")
	}
}
