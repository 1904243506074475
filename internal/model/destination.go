package model

import "time"

// Destination is a configured receiver of events or stream data. SessionID
// empty means the destination applies to every session of the organization.
// Read-only to the fan-out service; managed via the destinations API.
type Destination struct {
	ID             string      `json:"id"`
	OrganizationID string      `json:"organizationId"`
	SessionID      string      `json:"sessionId,omitempty"`
	Transport      Transport   `json:"transport"`
	URL            string      `json:"url"`
	Secret         string      `json:"-"`
	Events         []EventType `json:"events,omitempty"`
	MaxRetries     int         `json:"maxRetries"`
	TimeoutSeconds int         `json:"timeoutSeconds"`
	Active         bool        `json:"active"`
	CreatedAt      time.Time   `json:"createdAt"`
	UpdatedAt      time.Time   `json:"updatedAt"`
}

// SubscribedTo reports whether the destination wants the given event type.
// An empty subscription set means all events.
func (d *Destination) SubscribedTo(event EventType) bool {
	if len(d.Events) == 0 {
		return true
	}
	for _, e := range d.Events {
		if e == event {
			return true
		}
	}
	return false
}

// AppliesTo reports whether the destination covers the given session.
func (d *Destination) AppliesTo(sessionID string) bool {
	return d.SessionID == "" || d.SessionID == sessionID
}

// IsStream reports whether the destination receives chunk data.
func (d *Destination) IsStream() bool {
	return d.Transport == TransportStreamHTTP || d.Transport == TransportStreamSocket
}
