package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path"
	"path/filepath"

	"github.com/hibiken/asynq"

	"github.com/meetscribe/api/internal/encode"
	"github.com/meetscribe/api/internal/fanout"
	"github.com/meetscribe/api/internal/model"
	"github.com/meetscribe/api/internal/queue"
	"github.com/meetscribe/api/internal/store"
	"github.com/meetscribe/api/internal/storage"
	ws "github.com/meetscribe/api/internal/websocket"
)

// TranscodeOptions tunes one transcode worker.
type TranscodeOptions struct {
	// StagingDir holds the downloaded raw file and the encoder output for
	// the duration of one job.
	StagingDir     string
	DefaultQuality model.QualityProfile
}

func (o TranscodeOptions) withDefaults() TranscodeOptions {
	if o.StagingDir == "" {
		o.StagingDir = os.TempDir()
	}
	if o.DefaultQuality == "" {
		o.DefaultQuality = model.QualityBalanced
	}
	return o
}

// TranscodeWorker drives an artifact through RAW → ENCODING →
// ENCODED/FAILED. The artifact record is mutated only here; the encoding
// itself is delegated to the external encoder.
type TranscodeWorker struct {
	sessions  store.Sessions
	artifacts store.Artifacts
	storage   storage.Client
	fanout    *fanout.Service
	encoder   encode.Encoder
	hub       *ws.Hub
	opts      TranscodeOptions
}

func NewTranscodeWorker(sessions store.Sessions, artifacts store.Artifacts, storageClient storage.Client, fanoutService *fanout.Service, encoder encode.Encoder, hub *ws.Hub, opts TranscodeOptions) *TranscodeWorker {
	return &TranscodeWorker{
		sessions:  sessions,
		artifacts: artifacts,
		storage:   storageClient,
		fanout:    fanoutService,
		encoder:   encoder,
		hub:       hub,
		opts:      opts.withDefaults(),
	}
}

// ProcessTask handles one transcode job lease. Re-invocation after a
// crashed lease is safe: an already encoded artifact is acked without side
// effects, and the encoded upload overwrites by key.
func (w *TranscodeWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload model.TranscodeJobPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return queue.Terminal(fmt.Errorf("failed to unmarshal transcode payload: %w", err))
	}

	artifact, err := w.artifacts.Get(ctx, payload.ArtifactID)
	if err != nil {
		if err == store.ErrNotFound {
			return queue.Terminal(fmt.Errorf("artifact %s not found", payload.ArtifactID))
		}
		return fmt.Errorf("failed to load artifact %s: %w", payload.ArtifactID, err)
	}
	if artifact.Status == model.ArtifactStatusEncoded {
		log.Printf("Artifact %s already encoded, nothing to do", artifact.ID)
		return nil
	}

	// An artifact only exists once its session completed; a session in any
	// other state means the records are inconsistent and retrying cannot
	// help.
	sess, err := w.sessions.Get(ctx, artifact.SessionID)
	if err != nil {
		if err == store.ErrNotFound {
			return queue.Terminal(fmt.Errorf("session %s for artifact %s not found", artifact.SessionID, artifact.ID))
		}
		return fmt.Errorf("failed to load session %s: %w", artifact.SessionID, err)
	}
	if sess.Status != model.SessionStatusCompleted {
		return queue.Terminal(fmt.Errorf("session %s is %s, refusing to encode its artifact", sess.ID, sess.Status))
	}

	log.Printf("Starting transcode for artifact %s (session %s)", artifact.ID, artifact.SessionID)

	artifact.Status = model.ArtifactStatusEncoding
	if err := w.artifacts.Update(ctx, artifact); err != nil {
		return fmt.Errorf("failed to mark artifact encoding: %w", err)
	}
	w.publish(ctx, artifact, model.EventEncodingStarted, map[string]interface{}{
		"artifactId": artifact.ID,
		"sessionId":  artifact.SessionID,
	})

	// Staging files live and die with this invocation regardless of
	// outcome, so repeated retries cannot exhaust the disk.
	stagingDir := filepath.Join(w.opts.StagingDir, "transcode-"+artifact.ID)
	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		return w.failIfLastAttempt(ctx, artifact, fmt.Errorf("failed to create staging dir: %w", err))
	}
	defer os.RemoveAll(stagingDir)

	inputPath := filepath.Join(stagingDir, "input"+path.Ext(payload.RawStorageKey))
	if err := w.download(ctx, payload.RawStorageKey, inputPath); err != nil {
		return w.failIfLastAttempt(ctx, artifact, err)
	}

	quality := payload.Quality
	if quality == "" {
		quality = w.opts.DefaultQuality
	}
	outputPath := filepath.Join(stagingDir, "output."+payload.OutputFormat)

	// Progress is clamped to 99 until the encoder returns; only a confirmed
	// completion reports 100.
	lastReported := -1
	onProgress := func(percent float64) {
		p := int(percent)
		if p < 0 {
			p = 0
		}
		if p > 99 {
			p = 99
		}
		if p == lastReported || w.hub == nil {
			return
		}
		lastReported = p
		w.hub.BroadcastProgress(artifact.SessionID, "encoding", p)
	}

	if err := w.encoder.Encode(ctx, inputPath, outputPath, quality, onProgress); err != nil {
		return w.failIfLastAttempt(ctx, artifact, fmt.Errorf("encode failed: %w", err))
	}

	info, err := os.Stat(outputPath)
	if err != nil || info.Size() == 0 {
		return w.failIfLastAttempt(ctx, artifact, fmt.Errorf("encoder reported success but output is missing or empty"))
	}

	encodedKey := derivedEncodedKey(artifact.StorageKey, payload.OutputFormat)
	out, err := os.Open(outputPath)
	if err != nil {
		return w.failIfLastAttempt(ctx, artifact, fmt.Errorf("failed to open encoded output: %w", err))
	}
	defer out.Close()

	if _, err := w.storage.Upload(ctx, encodedKey, out, "video/"+payload.OutputFormat); err != nil {
		return w.failIfLastAttempt(ctx, artifact, fmt.Errorf("failed to upload encoded output: %w", err))
	}

	artifact.Status = model.ArtifactStatusEncoded
	artifact.EncodedKey = encodedKey
	artifact.EncodedSize = info.Size()
	artifact.Error = nil
	if err := w.artifacts.Update(ctx, artifact); err != nil {
		return fmt.Errorf("failed to mark artifact encoded: %w", err)
	}

	w.publish(ctx, artifact, model.EventEncodingCompleted, map[string]interface{}{
		"artifactId":  artifact.ID,
		"sessionId":   artifact.SessionID,
		"encodedKey":  encodedKey,
		"encodedSize": info.Size(),
		"url":         w.storage.GetPublicURL(encodedKey),
	})
	if w.hub != nil {
		w.hub.BroadcastProgress(artifact.SessionID, "encoding", 100)
	}

	log.Printf("Transcode for artifact %s completed (%d bytes)", artifact.ID, info.Size())
	return nil
}

func (w *TranscodeWorker) download(ctx context.Context, key, destPath string) error {
	rc, err := w.storage.Download(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to download %s: %w", key, err)
	}
	defer rc.Close()

	f, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create staging file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, rc); err != nil {
		return fmt.Errorf("failed to stage %s: %w", key, err)
	}
	return nil
}

func (w *TranscodeWorker) failIfLastAttempt(ctx context.Context, artifact *model.Artifact, cause error) error {
	if !lastAttempt(ctx) && !queue.IsTerminal(cause) {
		return cause
	}

	errMsg := cause.Error()
	artifact.Status = model.ArtifactStatusFailed
	artifact.Error = &errMsg
	if err := w.artifacts.Update(ctx, artifact); err != nil {
		log.Printf("Failed to mark artifact %s failed: %v", artifact.ID, err)
	}

	w.publish(ctx, artifact, model.EventEncodingFailed, map[string]interface{}{
		"artifactId": artifact.ID,
		"sessionId":  artifact.SessionID,
		"error":      errMsg,
	})
	if w.hub != nil {
		w.hub.BroadcastError(artifact.SessionID, "ENCODE_FAILED", errMsg)
	}
	return cause
}

func (w *TranscodeWorker) publish(ctx context.Context, artifact *model.Artifact, event model.EventType, data interface{}) {
	if err := w.fanout.Publish(ctx, artifact.OrganizationID, artifact.SessionID, event, data); err != nil {
		log.Printf("Failed to publish %s for artifact %s: %v", event, artifact.ID, err)
	}
}

// derivedEncodedKey puts the encoded object beside the raw one.
func derivedEncodedKey(rawKey, format string) string {
	dir := path.Dir(rawKey)
	if dir == "." {
		return "encoded." + format
	}
	return dir + "/encoded." + format
}
