package model

import "time"

// DeliveryAttempt is one try at delivering one event to one destination.
// Append-only: written by the fan-out service, never mutated.
type DeliveryAttempt struct {
	DestinationID  string          `json:"destinationId"`
	EventID        string          `json:"eventId"`
	EventType      EventType       `json:"eventType"`
	Attempt        int             `json:"attempt"`
	Outcome        DeliveryOutcome `json:"outcome"`
	ResponseCode   int             `json:"responseCode,omitempty"`
	Error          string          `json:"error,omitempty"`
	DurationMillis int64           `json:"durationMillis"`
	At             time.Time       `json:"at"`
}
