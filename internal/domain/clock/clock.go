// Package clock holds the date arithmetic shared by the warranty and timeline rules.
package clock

import (
	"math"
	"time"
)

const day = 24 * time.Hour

// DaysBetween returns floor((to - from) / 24h). It is negative when from is after to.
func DaysBetween(from time.Time, to time.Time) int {
	return int(math.Floor(float64(to.Sub(from)) / float64(day)))
}

// WithinWindow reports whether a and b are at most window apart, in either direction.
func WithinWindow(a time.Time, b time.Time, window time.Duration) bool {
	diff := a.Sub(b)
	if diff < 0 {
		diff = -diff
	}
	return diff <= window
}

// Now is the wall clock used outside tests.
func Now() time.Time {
	return time.Now().UTC()
}
