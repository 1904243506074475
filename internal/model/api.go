package model

import "time"

// Request bodies of the public API, validated in the handlers.

type CreateSessionRequest struct {
	TargetURL      string     `json:"targetUrl" validate:"required,url"`
	Platform       Platform   `json:"platform" validate:"required,oneof=meet zoom teams generic"`
	ScheduledStart *time.Time `json:"scheduledStart,omitempty"`
	ScheduledEnd   *time.Time `json:"scheduledEnd,omitempty"`
	CredentialsRef string     `json:"credentialsRef,omitempty"`
}

type CreateDestinationRequest struct {
	SessionID      string      `json:"sessionId,omitempty" validate:"omitempty,uuid4"`
	Transport      Transport   `json:"transport" validate:"required,oneof=callback storage-notify stream-http stream-socket"`
	URL            string      `json:"url" validate:"required,url"`
	Secret         string      `json:"secret,omitempty"`
	Events         []EventType `json:"events,omitempty"`
	MaxRetries     int         `json:"maxRetries,omitempty" validate:"omitempty,min=0,max=10"`
	TimeoutSeconds int         `json:"timeoutSeconds,omitempty" validate:"omitempty,min=1,max=120"`
}

// UpdateDestinationRequest carries a partial update; nil fields are left
// unchanged.
type UpdateDestinationRequest struct {
	URL            *string      `json:"url,omitempty" validate:"omitempty,url"`
	Secret         *string      `json:"secret,omitempty"`
	Events         *[]EventType `json:"events,omitempty"`
	MaxRetries     *int         `json:"maxRetries,omitempty" validate:"omitempty,min=0,max=10"`
	TimeoutSeconds *int         `json:"timeoutSeconds,omitempty" validate:"omitempty,min=1,max=120"`
	Active         *bool        `json:"active,omitempty"`
}

// CreateSessionResponse pairs the created session with its queued job id.
type CreateSessionResponse struct {
	Session *Session `json:"session"`
	JobID   string   `json:"jobId"`
}

// ArtifactDownloadResponse carries a time-limited download URL.
type ArtifactDownloadResponse struct {
	ArtifactID string    `json:"artifactId"`
	URL        string    `json:"url"`
	ExpiresAt  time.Time `json:"expiresAt"`
}
