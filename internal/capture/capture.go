// Package capture defines the contract for the external automation engine
// that joins a remote meeting and records it. The engine itself (platform
// login, browser driving) lives outside this service; workers consume it as
// an opaque start/wait/stop operation plus a roster accessor.
package capture

import (
	"context"

	"github.com/meetscribe/api/internal/model"
	"github.com/meetscribe/api/internal/roster"
)

// Request describes one capture run.
type Request struct {
	SessionID      string
	OrganizationID string
	TargetURL      string
	Platform       model.Platform
	CredentialsRef string
	// OutputPath is where the engine must write the recording. Workers pick
	// a deterministic path per session so a retried job overwrites rather
	// than appends.
	OutputPath string
	// LogPath receives the engine's side-channel capture log, if any.
	LogPath string
}

// Result is the outcome of a finished capture.
type Result struct {
	Success    bool
	OutputPath string
	LogPath    string
	Error      string
}

// Meeting is a running capture session.
type Meeting interface {
	// Roster returns the current participant snapshot.
	Roster(ctx context.Context) ([]roster.Entry, error)
	// Wait blocks until the capture finishes or ctx is done.
	Wait(ctx context.Context) (Result, error)
	// Stop asks the engine to leave the meeting and finalize output.
	Stop(ctx context.Context) error
}

// Engine starts captures.
type Engine interface {
	Start(ctx context.Context, req Request) (Meeting, error)
}

// RosterSource adapts a running meeting to the tracker's source contract.
func RosterSource(m Meeting, transient bool) roster.Source {
	return &meetingSource{meeting: m, transient: transient}
}

type meetingSource struct {
	meeting   Meeting
	transient bool
}

func (s *meetingSource) Poll(ctx context.Context) ([]roster.Entry, error) {
	return s.meeting.Roster(ctx)
}

func (s *meetingSource) Transient() bool {
	return s.transient
}
