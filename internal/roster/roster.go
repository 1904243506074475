// Package roster turns noisy polled participant snapshots into an ordered,
// deduplicated event log. The diff itself is a pure function over an
// explicit state value; the Tracker is just the interval loop driving it.
package roster

import (
	"context"
	"strings"
)

// Entry is one row of a roster snapshot as reported by the capture engine.
type Entry struct {
	Name       string
	Role       string
	Muted      bool
	VideoOn    bool
	Presenting bool
	Speaking   bool
}

// Source supplies roster snapshots.
type Source interface {
	Poll(ctx context.Context) ([]Entry, error)
	// Transient reports whether absence from a snapshot carries no meaning
	// for this source (e.g. a chat-derived roster). Transient sources never
	// produce left events from snapshot diffs.
	Transient() bool
}

// ParticipantID derives a stable id from a display name. Meeting rosters do
// not expose platform user ids, so the normalized name is the identity.
func ParticipantID(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_' || r == '.':
			b.WriteRune('-')
		}
	}
	if b.Len() == 0 {
		return "unknown"
	}
	return b.String()
}
