package model

// Job payloads are tagged variants per job kind, validated at enqueue time.

// CaptureJobPayload is the payload of a capture job.
type CaptureJobPayload struct {
	SessionID      string   `json:"sessionId" validate:"required,uuid4"`
	OrganizationID string   `json:"organizationId" validate:"required"`
	TargetURL      string   `json:"targetUrl" validate:"required,url"`
	Platform       Platform `json:"platform" validate:"required,oneof=meet zoom teams generic"`
	CredentialsRef string   `json:"credentialsRef,omitempty"`
}

// TranscodeJobPayload is the payload of a transcode job.
type TranscodeJobPayload struct {
	ArtifactID     string         `json:"artifactId" validate:"required,uuid4"`
	OrganizationID string         `json:"organizationId" validate:"required"`
	RawStorageKey  string         `json:"rawStorageKey" validate:"required"`
	OutputFormat   string         `json:"outputFormat" validate:"required,oneof=mp4 webm mp3"`
	Quality        QualityProfile `json:"quality,omitempty" validate:"omitempty,oneof=speed balanced quality"`
}
