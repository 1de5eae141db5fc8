package clock

import (
	"fmt"
	"time"
)

const (
	msPerDay    = 86400000
	msPerHour   = 3600000
	msPerMinute = 60000
	msPerSecond = 1000
)

// Countdown is a positive remaining duration split into calendar-free units.
type Countdown struct {
	Total   time.Duration `json:"total"`
	Days    int64         `json:"days"`
	Hours   int64         `json:"hours"`
	Minutes int64         `json:"minutes"`
	Seconds int64         `json:"seconds"`
}

// Derive computes the countdown from now to target. ok is false once the
// target has elapsed; negative countdowns are never produced.
func Derive(target, now time.Time) (Countdown, bool) {
	diff := target.Sub(now).Milliseconds()
	if diff <= 0 {
		return Countdown{}, false
	}

	rem := diff
	days := rem / msPerDay
	rem %= msPerDay
	hours := rem / msPerHour
	rem %= msPerHour
	minutes := rem / msPerMinute
	rem %= msPerMinute
	seconds := rem / msPerSecond

	return Countdown{
		Total:   time.Duration(diff) * time.Millisecond,
		Days:    days,
		Hours:   hours,
		Minutes: minutes,
		Seconds: seconds,
	}, true
}

// String renders the two or three most significant units.
func (c Countdown) String() string {
	switch {
	case c.Days > 0:
		return fmt.Sprintf("%dd %dh %dm", c.Days, c.Hours, c.Minutes)
	case c.Hours > 0:
		return fmt.Sprintf("%dh %dm %ds", c.Hours, c.Minutes, c.Seconds)
	default:
		return fmt.Sprintf("%dm %ds", c.Minutes, c.Seconds)
	}
}
