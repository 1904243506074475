package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/meetscribe/api/internal/model"
	"github.com/meetscribe/api/internal/queue"
	"github.com/meetscribe/api/internal/store"
)

// SessionService creates capture sessions and hands them to the job queue.
// It never mutates session status after creation; that is the capture
// worker's job.
type SessionService struct {
	sessions  store.Sessions
	artifacts store.Artifacts
	queue     *queue.Client

	maxAttempts int
	maxDuration time.Duration
}

func NewSessionService(sessions store.Sessions, artifacts store.Artifacts, queueClient *queue.Client, maxAttempts int, maxDuration time.Duration) *SessionService {
	return &SessionService{
		sessions:    sessions,
		artifacts:   artifacts,
		queue:       queueClient,
		maxAttempts: maxAttempts,
		maxDuration: maxDuration,
	}
}

// CreateSession persists a new PENDING session and enqueues its capture job.
func (s *SessionService) CreateSession(ctx context.Context, orgID string, req *model.CreateSessionRequest) (*model.CreateSessionResponse, error) {
	now := time.Now()
	sess := &model.Session{
		ID:             uuid.New().String(),
		OrganizationID: orgID,
		TargetURL:      req.TargetURL,
		Platform:       req.Platform,
		Status:         model.SessionStatusPending,
		ScheduledStart: req.ScheduledStart,
		ScheduledEnd:   req.ScheduledEnd,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	jobID, err := s.queue.EnqueueCapture(ctx, &model.CaptureJobPayload{
		SessionID:      sess.ID,
		OrganizationID: orgID,
		TargetURL:      req.TargetURL,
		Platform:       req.Platform,
		CredentialsRef: req.CredentialsRef,
	}, s.maxAttempts, s.maxDuration)
	if err != nil {
		// The session record stays PENDING; a stuck record is visible and
		// re-creatable, a silently dropped one is not.
		return nil, fmt.Errorf("failed to enqueue capture: %w", err)
	}

	return &model.CreateSessionResponse{Session: sess, JobID: jobID}, nil
}

// GetSession returns the session if it belongs to the organization.
func (s *SessionService) GetSession(ctx context.Context, orgID, sessionID string) (*model.Session, error) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.OrganizationID != orgID {
		return nil, store.ErrNotFound
	}
	return sess, nil
}

// GetSessionArtifact returns the artifact produced by a completed session.
func (s *SessionService) GetSessionArtifact(ctx context.Context, orgID, sessionID string) (*model.Artifact, error) {
	sess, err := s.GetSession(ctx, orgID, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.ArtifactID == "" {
		return nil, store.ErrNotFound
	}
	return s.artifacts.Get(ctx, sess.ArtifactID)
}
