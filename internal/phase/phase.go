// Package phase maps an authoritative instant and a time window to the
// window's lifecycle phase. Callers must pass server-derived time, never a
// client's local clock.
package phase

import "time"

// Phase is the position of an instant relative to a window.
type Phase string

const (
	Upcoming Phase = "upcoming"
	Active   Phase = "active"
	Ended    Phase = "ended"
)

// Evaluate reports whether now falls before, inside, or after [start, end].
// Both bounds are inclusive.
func Evaluate(now, start, end time.Time) Phase {
	switch {
	case now.Before(start):
		return Upcoming
	case now.After(end):
		return Ended
	default:
		return Active
	}
}

// Open reports whether now lies inside [start, end].
func Open(now, start, end time.Time) bool {
	return Evaluate(now, start, end) == Active
}
