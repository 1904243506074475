package roster

import (
	"sort"
	"time"

	"github.com/meetscribe/api/internal/model"
)

// State is the tracker's view of the roster between ticks, keyed by
// participant id.
type State map[string]model.Participant

// Clone copies a state so Diff can stay side-effect free.
func (s State) Clone() State {
	next := make(State, len(s))
	for id, p := range s {
		next[id] = p
	}
	return next
}

// Diff compares a snapshot against the previous state and returns the next
// state plus the events that explain the change. All events from one tick
// share the snapshot timestamp; joins are emitted before flag changes for
// the same participant, and left events come last. Transient sources never
// produce left events here.
func Diff(prev State, snapshot []Entry, now time.Time, transient bool) (State, []model.ParticipantEvent) {
	next := prev.Clone()
	var events []model.ParticipantEvent

	emit := func(t model.ParticipantEventType, p model.Participant) {
		events = append(events, model.ParticipantEvent{Type: t, Participant: p, Timestamp: now})
	}

	current := make(map[string]bool, len(snapshot))
	for _, entry := range snapshot {
		id := ParticipantID(entry.Name)
		if current[id] {
			// Duplicate display name within one snapshot; first row wins.
			continue
		}
		current[id] = true

		p, known := next[id]
		if !known {
			p = model.Participant{
				ID:         id,
				Name:       entry.Name,
				Role:       entry.Role,
				Muted:      entry.Muted,
				VideoOn:    entry.VideoOn,
				Presenting: entry.Presenting,
				Speaking:   entry.Speaking,
				JoinedAt:   now,
			}
			next[id] = p
			emit(model.ParticipantJoined, p)
			continue
		}

		if p.LeftAt != nil {
			// Rejoined after a left. Join time is preserved from the first
			// appearance; only the departure is cleared.
			p.LeftAt = nil
			emit(model.ParticipantJoined, p)
		}

		if entry.Speaking != p.Speaking {
			p.Speaking = entry.Speaking
			if entry.Speaking {
				emit(model.ParticipantSpeakingStart, p)
			} else {
				emit(model.ParticipantSpeakingEnd, p)
			}
		}
		if entry.Muted != p.Muted {
			p.Muted = entry.Muted
			if entry.Muted {
				emit(model.ParticipantMuted, p)
			} else {
				emit(model.ParticipantUnmuted, p)
			}
		}
		if entry.Presenting != p.Presenting {
			p.Presenting = entry.Presenting
			if entry.Presenting {
				emit(model.ParticipantPresentingStart, p)
			} else {
				emit(model.ParticipantPresentingEnd, p)
			}
		}
		// Video and role changes carry no events; the stored value just
		// tracks the latest snapshot.
		p.VideoOn = entry.VideoOn
		if entry.Role != "" {
			p.Role = entry.Role
		}
		next[id] = p
	}

	if !transient {
		for _, id := range sortedIDs(next) {
			p := next[id]
			if current[id] || p.LeftAt != nil {
				continue
			}
			left := now
			p.LeftAt = &left
			next[id] = p
			emit(model.ParticipantLeft, p)
		}
	}

	return next, events
}

// Finalize synthesizes left events at stop time for everyone still present.
func Finalize(prev State, stop time.Time) (State, []model.ParticipantEvent) {
	next := prev.Clone()
	var events []model.ParticipantEvent
	for _, id := range sortedIDs(next) {
		p := next[id]
		if p.LeftAt != nil {
			continue
		}
		left := stop
		p.LeftAt = &left
		next[id] = p
		events = append(events, model.ParticipantEvent{Type: model.ParticipantLeft, Participant: p, Timestamp: stop})
	}
	return next, events
}

func sortedIDs(s State) []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
