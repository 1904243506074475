package model

import "time"

// Participant is one person observed in the session roster. The id is
// derived from the display name because meeting platforms do not expose a
// stable identifier through the in-call roster.
type Participant struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Role       string     `json:"role,omitempty"`
	Muted      bool       `json:"muted"`
	VideoOn    bool       `json:"videoOn"`
	Presenting bool       `json:"presenting"`
	Speaking   bool       `json:"speaking"`
	JoinedAt   time.Time  `json:"joinedAt"`
	LeftAt     *time.Time `json:"leftAt,omitempty"`
}

// ParticipantEvent is one roster transition, produced by the diff tracker.
type ParticipantEvent struct {
	Type        ParticipantEventType `json:"type"`
	Participant Participant          `json:"participant"`
	Timestamp   time.Time            `json:"timestamp"`
}
