package clock

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Shivanand-hulikatti/event-presale/internal/model"
	"github.com/Shivanand-hulikatti/event-presale/internal/phase"
)

// TickInterval is the countdown refresh cadence.
const TickInterval = time.Second

// Kind says which boundary an entry counts towards.
type Kind string

const (
	KindStart   Kind = "start"
	KindEnd     Kind = "end"
	KindRelease Kind = "release"
)

// Entry is the live countdown for one event.
type Entry struct {
	EventID   string    `json:"eventId"`
	EventName string    `json:"eventName"`
	Kind      Kind      `json:"type"`
	Target    time.Time `json:"target"`
	Countdown Countdown `json:"countdown"`
}

// Tracker maintains the set of live countdowns for a list of events, all
// derived from an authoritative Source.
type Tracker struct {
	source Source
	ticker clockwork.Clock

	mu      sync.RWMutex
	events  []model.Event
	entries map[string]Entry
}

// NewTracker builds a tracker. ticker drives the refresh cadence and is
// independent of source, which supplies the authoritative instant.
func NewTracker(source Source, ticker clockwork.Clock, events []model.Event) *Tracker {
	return &Tracker{
		source:  source,
		ticker:  ticker,
		events:  append([]model.Event(nil), events...),
		entries: make(map[string]Entry),
	}
}

// SetEvents replaces the tracked events and drops entries for removed ones.
func (t *Tracker) SetEvents(events []model.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append([]model.Event(nil), events...)
	keep := make(map[string]bool, len(events))
	for _, e := range events {
		keep[e.ID] = true
	}
	for id := range t.entries {
		if !keep[id] {
			delete(t.entries, id)
		}
	}
}

// Update recomputes every entry at the current authoritative time and
// reports whether any event is still pending.
func (t *Tracker) Update() bool {
	now := t.source.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	pending := false
	for i := range t.events {
		e := &t.events[i]
		entry, ok, stillPending := evaluate(e, now)
		if stillPending {
			pending = true
		}
		if ok {
			t.entries[e.ID] = entry
		} else {
			delete(t.entries, e.ID)
		}
	}
	return pending
}

func evaluate(e *model.Event, now time.Time) (Entry, bool, bool) {
	entry := Entry{EventID: e.ID, EventName: e.Name}

	switch phase.Evaluate(now, e.RegistrationStartTime, e.RegistrationEndTime) {
	case phase.Upcoming:
		if now.Before(e.CountdownThreshold()) {
			return entry, false, true
		}
		entry.Kind, entry.Target = KindStart, e.RegistrationStartTime
	case phase.Active:
		entry.Kind, entry.Target = KindEnd, e.RegistrationEndTime
	default:
		start, end, ok := e.ReleaseWindow()
		if !ok || phase.Evaluate(now, start, end) != phase.Upcoming {
			return entry, false, false
		}
		entry.Kind, entry.Target = KindRelease, start
	}

	cd, ok := Derive(entry.Target, now)
	if !ok {
		// Boundary crossed between evaluation and derivation; next tick reclassifies.
		return entry, false, true
	}
	entry.Countdown = cd
	return entry, true, true
}

// Snapshot returns a copy of the live entries keyed by event ID.
func (t *Tracker) Snapshot() map[string]Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]Entry, len(t.entries))
	for k, v := range t.entries {
		out[k] = v
	}
	return out
}

// Run refreshes the board every TickInterval, invoking onTick after each
// refresh, until ctx is cancelled or no tracked event is pending.
func (t *Tracker) Run(ctx context.Context, onTick func(map[string]Entry)) error {
	pending := t.Update()
	if onTick != nil {
		onTick(t.Snapshot())
	}
	if !pending {
		return nil
	}

	tk := t.ticker.NewTicker(TickInterval)
	defer tk.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tk.Chan():
			pending = t.Update()
			if onTick != nil {
				onTick(t.Snapshot())
			}
			if !pending {
				return nil
			}
		}
	}
}
