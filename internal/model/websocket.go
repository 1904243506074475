package model

import "time"

// WebSocket message types for the live session monitor
type WSMessageType string

const (
	WSMessageTypeEvent    WSMessageType = "event"
	WSMessageTypeProgress WSMessageType = "progress"
	WSMessageTypeError    WSMessageType = "error"
	WSMessageTypePing     WSMessageType = "ping"
	WSMessageTypePong     WSMessageType = "pong"
)

// WSMessage is the base message envelope
type WSMessage struct {
	Type WSMessageType `json:"type"`
}

// WSEventMessage carries a domain event to session subscribers
type WSEventMessage struct {
	Type      WSMessageType `json:"type"`
	SessionID string        `json:"sessionId"`
	Event     EventType     `json:"event"`
	Timestamp time.Time     `json:"timestamp"`
	Data      interface{}   `json:"data,omitempty"`
}

// WSProgressMessage carries encoding progress to session subscribers
type WSProgressMessage struct {
	Type      WSMessageType `json:"type"`
	SessionID string        `json:"sessionId"`
	Stage     string        `json:"stage"`
	Progress  int           `json:"progress"`
}

// WSErrorMessage carries a failure to session subscribers
type WSErrorMessage struct {
	Type      WSMessageType `json:"type"`
	SessionID string        `json:"sessionId"`
	Error     WSError       `json:"error"`
}

// WSError contains error details
type WSError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
