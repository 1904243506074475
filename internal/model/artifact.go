package model

import "time"

// Artifact is the transcode subject: the captured recording in object
// storage, plus its encoded derivative once transcoding finishes. Mutated
// only by the transcode worker after creation.
type Artifact struct {
	ID             string         `json:"id"`
	SessionID      string         `json:"sessionId"`
	OrganizationID string         `json:"organizationId"`
	StorageKey     string         `json:"storageKey"`
	ByteSize       int64          `json:"byteSize"`
	Status         ArtifactStatus `json:"status"`
	EncodedKey     string         `json:"encodedKey,omitempty"`
	EncodedSize    int64          `json:"encodedSize,omitempty"`
	LogKey         string         `json:"logKey,omitempty"`
	Meta           *ArtifactMeta  `json:"meta,omitempty"`
	Error          *string        `json:"error,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// ArtifactMeta holds the participant summary gathered while the capture ran.
type ArtifactMeta struct {
	Participants []Participant      `json:"participants,omitempty"`
	Events       []ParticipantEvent `json:"events,omitempty"`
}
