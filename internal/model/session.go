package model

import "time"

// Session is the capture subject: one scheduled recording of a remote
// meeting. Status transitions are owned exclusively by the capture worker.
type Session struct {
	ID             string        `json:"id"`
	OrganizationID string        `json:"organizationId"`
	TargetURL      string        `json:"targetUrl"`
	Platform       Platform      `json:"platform"`
	Status         SessionStatus `json:"status"`
	ScheduledStart *time.Time    `json:"scheduledStart,omitempty"`
	ScheduledEnd   *time.Time    `json:"scheduledEnd,omitempty"`
	ActualStart    *time.Time    `json:"actualStart,omitempty"`
	ActualEnd      *time.Time    `json:"actualEnd,omitempty"`
	ArtifactID     string        `json:"artifactId,omitempty"`
	Error          *string       `json:"error,omitempty"`
	CreatedAt      time.Time     `json:"createdAt"`
	UpdatedAt      time.Time     `json:"updatedAt"`
}
