package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/meetscribe/api/internal/capture"
	"github.com/meetscribe/api/internal/fanout"
	"github.com/meetscribe/api/internal/model"
	"github.com/meetscribe/api/internal/queue"
	"github.com/meetscribe/api/internal/roster"
	"github.com/meetscribe/api/internal/store"
	"github.com/meetscribe/api/internal/storage"
	ws "github.com/meetscribe/api/internal/websocket"
)

// CaptureOptions tunes one capture worker.
type CaptureOptions struct {
	// WorkDir is where recordings are staged while the engine writes them.
	WorkDir string
	// RosterPollInterval drives the participant diff tracker. Zero disables
	// roster tracking.
	RosterPollInterval time.Duration
	// TransientRoster marks the engine's roster as one where absence from a
	// snapshot carries no meaning (chat-derived rosters). Such sources never
	// produce left events while the capture runs.
	TransientRoster bool
	// ChunkInterval drives the stream relay of the growing output file.
	ChunkInterval time.Duration
	MaxChunkBytes int
	// OutputFormat is the container the engine records into.
	OutputFormat string
	// TranscodeMaxAttempts and TranscodeTimeout configure the follow-up job.
	TranscodeMaxAttempts int
	TranscodeTimeout     time.Duration
	DefaultQuality       model.QualityProfile
}

func (o CaptureOptions) withDefaults() CaptureOptions {
	if o.WorkDir == "" {
		o.WorkDir = os.TempDir()
	}
	if o.ChunkInterval <= 0 {
		o.ChunkInterval = 3 * time.Second
	}
	if o.OutputFormat == "" {
		o.OutputFormat = "mp4"
	}
	if o.TranscodeMaxAttempts <= 0 {
		o.TranscodeMaxAttempts = 3
	}
	if o.TranscodeTimeout <= 0 {
		o.TranscodeTimeout = 2 * time.Hour
	}
	if o.DefaultQuality == "" {
		o.DefaultQuality = model.QualityBalanced
	}
	return o
}

// TranscodeEnqueuer enqueues the follow-up transcode job once a capture
// produced an artifact.
type TranscodeEnqueuer interface {
	EnqueueTranscode(ctx context.Context, payload *model.TranscodeJobPayload, maxAttempts int, timeout time.Duration) (string, error)
}

// CaptureWorker drives a session through PENDING → RECORDING →
// COMPLETED/FAILED. The session record is mutated only here; the actual
// capture is delegated to the engine.
type CaptureWorker struct {
	sessions  store.Sessions
	artifacts store.Artifacts
	storage   storage.Client
	queue     TranscodeEnqueuer
	fanout    *fanout.Service
	engine    capture.Engine
	hub       *ws.Hub
	opts      CaptureOptions
}

func NewCaptureWorker(sessions store.Sessions, artifacts store.Artifacts, storageClient storage.Client, queueClient TranscodeEnqueuer, fanoutService *fanout.Service, engine capture.Engine, hub *ws.Hub, opts CaptureOptions) *CaptureWorker {
	return &CaptureWorker{
		sessions:  sessions,
		artifacts: artifacts,
		storage:   storageClient,
		queue:     queueClient,
		fanout:    fanoutService,
		engine:    engine,
		hub:       hub,
		opts:      opts.withDefaults(),
	}
}

// ProcessTask handles one capture job lease. Safe to re-invoke after a
// crashed lease: a session already in a terminal state is acked without
// side effects, and uploads overwrite by key.
func (w *CaptureWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload model.CaptureJobPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return queue.Terminal(fmt.Errorf("failed to unmarshal capture payload: %w", err))
	}

	sess, err := w.sessions.Get(ctx, payload.SessionID)
	if err != nil {
		if err == store.ErrNotFound {
			return queue.Terminal(fmt.Errorf("session %s not found", payload.SessionID))
		}
		return fmt.Errorf("failed to load session %s: %w", payload.SessionID, err)
	}
	if sess.Status.Terminal() {
		log.Printf("Session %s already %s, nothing to do", sess.ID, sess.Status)
		return nil
	}

	log.Printf("Starting capture for session %s (%s)", sess.ID, sess.TargetURL)

	if sess.Status == model.SessionStatusPending {
		sess.Status = model.SessionStatusRecording
		now := time.Now()
		sess.ActualStart = &now
		if err := w.sessions.Update(ctx, sess); err != nil {
			return fmt.Errorf("failed to mark session recording: %w", err)
		}
	}
	w.publish(ctx, sess, model.EventSessionStarted, map[string]interface{}{
		"sessionId": sess.ID,
		"targetUrl": sess.TargetURL,
		"platform":  sess.Platform,
	})

	workDir := filepath.Join(w.opts.WorkDir, "capture-"+sess.ID)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return w.failIfLastAttempt(ctx, sess, fmt.Errorf("failed to create work dir: %w", err))
	}
	defer os.RemoveAll(workDir)

	outputPath := filepath.Join(workDir, "recording."+w.opts.OutputFormat)
	logPath := filepath.Join(workDir, "capture.log")

	relay, err := w.fanout.OpenStream(ctx, sess, w.opts.OutputFormat)
	if err != nil {
		return w.failIfLastAttempt(ctx, sess, fmt.Errorf("failed to open stream relay: %w", err))
	}

	meeting, err := w.engine.Start(ctx, capture.Request{
		SessionID:      sess.ID,
		OrganizationID: sess.OrganizationID,
		TargetURL:      sess.TargetURL,
		Platform:       sess.Platform,
		CredentialsRef: payload.CredentialsRef,
		OutputPath:     outputPath,
		LogPath:        logPath,
	})
	if err != nil {
		return w.fail(ctx, sess, relay, fmt.Errorf("failed to start capture: %w", err))
	}

	// Roster tracking and chunk relay run beside the capture until it ends.
	sideCtx, stopSide := context.WithCancel(ctx)
	var side sync.WaitGroup

	var tracker *roster.Tracker
	if w.opts.RosterPollInterval > 0 {
		source := capture.RosterSource(meeting, w.opts.TransientRoster)
		tracker = roster.NewTracker(source, w.opts.RosterPollInterval, func(evt model.ParticipantEvent) {
			relay.RelayEvent(context.Background(), evt)
		})
		side.Add(1)
		go func() {
			defer side.Done()
			tracker.Run(sideCtx)
		}()
	}

	chunker := fanout.NewChunker(outputPath, w.opts.MaxChunkBytes)
	if relay.HasDestinations() {
		side.Add(1)
		go func() {
			defer side.Done()
			w.relayChunks(sideCtx, relay, chunker)
		}()
	}

	result, waitErr := meeting.Wait(ctx)

	stopSide()
	side.Wait()
	if tracker != nil {
		tracker.Stop(time.Now())
	}

	if waitErr != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := meeting.Stop(stopCtx); err != nil {
			log.Printf("Failed to stop capture for session %s: %v", sess.ID, err)
		}
		cancel()
		return w.fail(ctx, sess, relay, fmt.Errorf("capture did not finish: %w", waitErr))
	}
	if !result.Success {
		return w.fail(ctx, sess, relay, fmt.Errorf("capture failed: %s", result.Error))
	}

	// An engine that claims success but produced nothing is a failure; an
	// empty artifact must never be created.
	info, err := os.Stat(outputPath)
	if err != nil || info.Size() == 0 {
		return w.fail(ctx, sess, relay, fmt.Errorf("capture reported success but output is missing or empty"))
	}

	// Flush everything still unsent so the last chunk carries the final
	// marker, then close the stream channels. The tail can span several
	// chunks when the relay interval lagged behind the recording.
	flushStream(ctx, relay, chunker, sess.ID)
	relay.End(ctx)

	artifact, err := w.storeArtifact(ctx, sess, tracker, outputPath, logPath, info.Size())
	if err != nil {
		return w.failIfLastAttempt(ctx, sess, err)
	}

	if _, err := w.queue.EnqueueTranscode(ctx, &model.TranscodeJobPayload{
		ArtifactID:     artifact.ID,
		OrganizationID: sess.OrganizationID,
		RawStorageKey:  artifact.StorageKey,
		OutputFormat:   w.opts.OutputFormat,
		Quality:        w.opts.DefaultQuality,
	}, w.opts.TranscodeMaxAttempts, w.opts.TranscodeTimeout); err != nil {
		return w.failIfLastAttempt(ctx, sess, fmt.Errorf("failed to enqueue transcode: %w", err))
	}

	now := time.Now()
	sess.Status = model.SessionStatusCompleted
	sess.ActualEnd = &now
	sess.ArtifactID = artifact.ID
	if err := w.sessions.Update(ctx, sess); err != nil {
		return fmt.Errorf("failed to mark session completed: %w", err)
	}

	w.publish(ctx, sess, model.EventSessionCompleted, map[string]interface{}{
		"sessionId":  sess.ID,
		"artifactId": artifact.ID,
		"byteSize":   artifact.ByteSize,
	})
	w.publish(ctx, sess, model.EventArtifactReady, map[string]interface{}{
		"sessionId":  sess.ID,
		"artifactId": artifact.ID,
		"storageKey": artifact.StorageKey,
		"url":        w.storage.GetPublicURL(artifact.StorageKey),
		"byteSize":   artifact.ByteSize,
	})
	w.publish(ctx, sess, model.EventStreamEnded, map[string]interface{}{
		"sessionId": sess.ID,
	})
	if w.hub != nil {
		w.hub.BroadcastProgress(sess.ID, "captured", 100)
	}

	log.Printf("Capture for session %s completed, artifact %s", sess.ID, artifact.ID)
	return nil
}

// flushStream drains the chunker completely, marking only the very last
// chunk as final. A capture whose output outpaced the relay interval can
// leave more than one chunk's worth of unsent bytes behind.
func flushStream(ctx context.Context, relay *fanout.StreamRelay, chunker *fanout.Chunker, sessionID string) {
	pending, err := chunker.Next()
	if err != nil {
		log.Printf("Failed to read final chunk for session %s: %v", sessionID, err)
		pending = nil
	}
	for {
		next, err := chunker.Next()
		if err != nil {
			log.Printf("Failed to read final chunk for session %s: %v", sessionID, err)
			next = nil
		}
		if len(next) == 0 {
			relay.Send(ctx, pending, true)
			return
		}
		relay.Send(ctx, pending, false)
		pending = next
	}
}

// relayChunks streams new output bytes on an interval until stopped.
func (w *CaptureWorker) relayChunks(ctx context.Context, relay *fanout.StreamRelay, chunker *fanout.Chunker) {
	ticker := time.NewTicker(w.opts.ChunkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for {
				data, err := chunker.Next()
				if err != nil {
					log.Printf("Chunk read failed: %v", err)
					break
				}
				if len(data) == 0 {
					break
				}
				relay.Send(ctx, data, false)
			}
		}
	}
}

func (w *CaptureWorker) storeArtifact(ctx context.Context, sess *model.Session, tracker *roster.Tracker, outputPath, logPath string, size int64) (*model.Artifact, error) {
	key := fmt.Sprintf("recordings/%s/%s/raw.%s", sess.OrganizationID, sess.ID, w.opts.OutputFormat)

	f, err := os.Open(outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open recording: %w", err)
	}
	defer f.Close()

	if _, err := w.storage.Upload(ctx, key, f, "video/"+w.opts.OutputFormat); err != nil {
		return nil, fmt.Errorf("failed to upload recording: %w", err)
	}

	logKey := ""
	if logFile, err := os.Open(logPath); err == nil {
		logKey = fmt.Sprintf("recordings/%s/%s/capture.log", sess.OrganizationID, sess.ID)
		if _, err := w.storage.Upload(ctx, logKey, logFile, "text/plain"); err != nil {
			log.Printf("Failed to upload capture log for session %s: %v", sess.ID, err)
			logKey = ""
		}
		logFile.Close()
	}

	artifact := &model.Artifact{
		ID:             uuid.New().String(),
		SessionID:      sess.ID,
		OrganizationID: sess.OrganizationID,
		StorageKey:     key,
		ByteSize:       size,
		Status:         model.ArtifactStatusRaw,
		LogKey:         logKey,
	}
	if tracker != nil {
		artifact.Meta = &model.ArtifactMeta{
			Participants: tracker.Participants(),
			Events:       tracker.Events(),
		}
	}

	if err := w.artifacts.Create(ctx, artifact); err != nil {
		return nil, fmt.Errorf("failed to create artifact: %w", err)
	}
	return artifact, nil
}

// fail closes the stream channels and finalizes the failure if no attempts
// remain. While attempts remain, the session stays RECORDING and the error
// propagates so the broker schedules a retry.
func (w *CaptureWorker) fail(ctx context.Context, sess *model.Session, relay *fanout.StreamRelay, cause error) error {
	if relay != nil {
		relay.End(ctx)
	}
	return w.failIfLastAttempt(ctx, sess, cause)
}

func (w *CaptureWorker) failIfLastAttempt(ctx context.Context, sess *model.Session, cause error) error {
	if !lastAttempt(ctx) && !queue.IsTerminal(cause) {
		return cause
	}

	errMsg := cause.Error()
	now := time.Now()
	sess.Status = model.SessionStatusFailed
	sess.ActualEnd = &now
	sess.Error = &errMsg
	if err := w.sessions.Update(ctx, sess); err != nil {
		log.Printf("Failed to mark session %s failed: %v", sess.ID, err)
	}

	w.publish(ctx, sess, model.EventSessionFailed, map[string]interface{}{
		"sessionId": sess.ID,
		"error":     errMsg,
	})
	w.publish(ctx, sess, model.EventStreamEnded, map[string]interface{}{
		"sessionId": sess.ID,
	})
	if w.hub != nil {
		w.hub.BroadcastError(sess.ID, "CAPTURE_FAILED", errMsg)
	}
	return cause
}

func (w *CaptureWorker) publish(ctx context.Context, sess *model.Session, event model.EventType, data interface{}) {
	if err := w.fanout.Publish(ctx, sess.OrganizationID, sess.ID, event, data); err != nil {
		log.Printf("Failed to publish %s for session %s: %v", event, sess.ID, err)
	}
}

// lastAttempt reports whether the broker has no retries left for this lease.
// Outside a broker context (tests), every attempt is the last one.
func lastAttempt(ctx context.Context) bool {
	retried, ok := asynq.GetRetryCount(ctx)
	if !ok {
		return true
	}
	max, ok := asynq.GetMaxRetry(ctx)
	if !ok {
		return true
	}
	return retried >= max
}
