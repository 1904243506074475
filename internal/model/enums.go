package model

// Session status
type SessionStatus string

const (
	SessionStatusPending   SessionStatus = "PENDING"
	SessionStatusRecording SessionStatus = "RECORDING"
	SessionStatusCompleted SessionStatus = "COMPLETED"
	SessionStatusFailed    SessionStatus = "FAILED"
)

var sessionStatusRank = map[SessionStatus]int{
	SessionStatusPending:   0,
	SessionStatusRecording: 1,
	SessionStatusCompleted: 2,
	SessionStatusFailed:    2,
}

// CanTransition reports whether moving to the given status is a forward
// transition. Session statuses are monotonic; a completed or failed session
// never goes back to recording.
func (s SessionStatus) CanTransition(to SessionStatus) bool {
	return sessionStatusRank[to] > sessionStatusRank[s]
}

// Terminal reports whether the status is an end state.
func (s SessionStatus) Terminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusFailed
}

// Artifact status
type ArtifactStatus string

const (
	ArtifactStatusRaw      ArtifactStatus = "RAW"
	ArtifactStatusEncoding ArtifactStatus = "ENCODING"
	ArtifactStatusEncoded  ArtifactStatus = "ENCODED"
	ArtifactStatusFailed   ArtifactStatus = "FAILED"
)

// Platform tags for capture targets
type Platform string

const (
	PlatformMeet    Platform = "meet"
	PlatformZoom    Platform = "zoom"
	PlatformTeams   Platform = "teams"
	PlatformGeneric Platform = "generic"
)

var ValidPlatforms = []Platform{PlatformMeet, PlatformZoom, PlatformTeams, PlatformGeneric}

// Destination transports
type Transport string

const (
	// TransportCallback delivers signed JSON event envelopes via HTTP POST.
	TransportCallback Transport = "callback"
	// TransportStreamHTTP delivers base64 chunk ranges via periodic HTTP POST.
	TransportStreamHTTP Transport = "stream-http"
	// TransportStreamSocket delivers chunk frames over a persistent websocket.
	TransportStreamSocket Transport = "stream-socket"
	// TransportStorageNotify skips data delivery entirely; the destination is
	// told where the bytes live in object storage instead.
	TransportStorageNotify Transport = "storage-notify"
)

var ValidTransports = []Transport{
	TransportCallback, TransportStreamHTTP, TransportStreamSocket, TransportStorageNotify,
}

// Event types published to callback destinations
type EventType string

const (
	EventSessionStarted    EventType = "session.started"
	EventSessionCompleted  EventType = "session.completed"
	EventSessionFailed     EventType = "session.failed"
	EventArtifactReady     EventType = "artifact.ready"
	EventEncodingStarted   EventType = "encoding.started"
	EventEncodingCompleted EventType = "encoding.completed"
	EventEncodingFailed    EventType = "encoding.failed"
	EventStreamEnded       EventType = "stream.ended"
)

var ValidEventTypes = []EventType{
	EventSessionStarted, EventSessionCompleted, EventSessionFailed,
	EventArtifactReady, EventEncodingStarted, EventEncodingCompleted,
	EventEncodingFailed, EventStreamEnded,
}

// Participant event types
type ParticipantEventType string

const (
	ParticipantJoined          ParticipantEventType = "joined"
	ParticipantLeft            ParticipantEventType = "left"
	ParticipantSpeakingStart   ParticipantEventType = "speaking_start"
	ParticipantSpeakingEnd     ParticipantEventType = "speaking_end"
	ParticipantMuted           ParticipantEventType = "muted"
	ParticipantUnmuted         ParticipantEventType = "unmuted"
	ParticipantPresentingStart ParticipantEventType = "presenting_start"
	ParticipantPresentingEnd   ParticipantEventType = "presenting_end"
)

// Delivery outcome per attempt
type DeliveryOutcome string

const (
	DeliveryOutcomeSuccess DeliveryOutcome = "success"
	DeliveryOutcomeFailure DeliveryOutcome = "failure"
)

// Encoding quality profiles
type QualityProfile string

const (
	QualitySpeed    QualityProfile = "speed"
	QualityBalanced QualityProfile = "balanced"
	QualityBest     QualityProfile = "quality"
)

var ValidQualityProfiles = []QualityProfile{QualitySpeed, QualityBalanced, QualityBest}
