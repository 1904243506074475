package roster

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/meetscribe/api/internal/model"
)

// Tracker drives the roster diff at a poll interval for the duration of one
// capture job. Emitted events are appended to an ordered log and forwarded
// to the optional callback.
type Tracker struct {
	source   Source
	interval time.Duration
	onEvent  func(model.ParticipantEvent)

	mu      sync.Mutex
	state   State
	log     []model.ParticipantEvent
	stopped bool
}

func NewTracker(source Source, interval time.Duration, onEvent func(model.ParticipantEvent)) *Tracker {
	return &Tracker{
		source:   source,
		interval: interval,
		onEvent:  onEvent,
		state:    make(State),
	}
}

// Run polls until ctx is done. Poll errors are logged and skipped; the next
// tick retries.
func (t *Tracker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snapshot, err := t.source.Poll(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Printf("Roster poll failed: %v", err)
				continue
			}
			t.apply(snapshot, time.Now())
		}
	}
}

// Stop synthesizes left events at the given time for everyone still present
// and freezes the tracker. Safe to call once Run has returned.
func (t *Tracker) Stop(at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	t.stopped = true

	next, events := Finalize(t.state, at)
	t.state = next
	t.record(events)
}

func (t *Tracker) apply(snapshot []Entry, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}

	next, events := Diff(t.state, snapshot, now, t.source.Transient())
	t.state = next
	t.record(events)
}

// record assumes t.mu is held.
func (t *Tracker) record(events []model.ParticipantEvent) {
	for _, evt := range events {
		t.log = append(t.log, evt)
		if t.onEvent != nil {
			t.onEvent(evt)
		}
	}
}

// Events returns a copy of the ordered event log.
func (t *Tracker) Events() []model.ParticipantEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]model.ParticipantEvent, len(t.log))
	copy(out, t.log)
	return out
}

// Participants returns everyone ever observed, ordered by join time.
func (t *Tracker) Participants() []model.Participant {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]model.Participant, 0, len(t.state))
	for _, p := range t.state {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].JoinedAt.Before(out[j].JoinedAt)
	})
	return out
}
