package worker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/hibiken/asynq"

	"github.com/meetscribe/api/internal/model"
	"github.com/meetscribe/api/internal/queue"
	"github.com/meetscribe/api/internal/roster"
)

const (
	testSessionID = "7b7d1f3e-1111-4a2a-9c3d-000000000001"
	testOrgID     = "org-1"
)

func pendingSession() *model.Session {
	return &model.Session{
		ID:             testSessionID,
		OrganizationID: testOrgID,
		TargetURL:      "https://meet.example.com/abc-defg-hij",
		Platform:       model.PlatformMeet,
		Status:         model.SessionStatusPending,
		CreatedAt:      time.Now(),
	}
}

func captureTask(t *testing.T) *asynq.Task {
	t.Helper()
	payload, err := json.Marshal(&model.CaptureJobPayload{
		SessionID:      testSessionID,
		OrganizationID: testOrgID,
		TargetURL:      "https://meet.example.com/abc-defg-hij",
		Platform:       model.PlatformMeet,
	})
	if err != nil {
		t.Fatal(err)
	}
	return asynq.NewTask(queue.TaskTypeCapture, payload)
}

func newCaptureWorker(t *testing.T, sessions *fakeSessions, artifacts *fakeArtifacts, storage *fakeStorage, enqueuer *fakeEnqueuer, engine *fakeEngine, opts CaptureOptions) *CaptureWorker {
	t.Helper()
	if opts.WorkDir == "" {
		opts.WorkDir = t.TempDir()
	}
	fanoutService := newTestFanout()
	t.Cleanup(fanoutService.Close)
	return NewCaptureWorker(sessions, artifacts, storage, enqueuer, fanoutService, engine, nil, opts)
}

func TestCaptureWorkerHappyPath(t *testing.T) {
	sessions := newFakeSessions(pendingSession())
	artifacts := newFakeArtifacts()
	storage := newFakeStorage()
	enqueuer := &fakeEnqueuer{}
	engine := &fakeEngine{
		output:    []byte("recorded media bytes"),
		roster:    []roster.Entry{{Name: "Alice"}, {Name: "Bob", Muted: true}},
		waitDelay: 100 * time.Millisecond,
	}

	w := newCaptureWorker(t, sessions, artifacts, storage, enqueuer, engine, CaptureOptions{
		RosterPollInterval: 2 * time.Millisecond,
		ChunkInterval:      2 * time.Millisecond,
	})

	if err := w.ProcessTask(context.Background(), captureTask(t)); err != nil {
		t.Fatalf("capture job failed: %v", err)
	}

	sess, err := sessions.Get(context.Background(), testSessionID)
	if err != nil {
		t.Fatal(err)
	}
	if sess.Status != model.SessionStatusCompleted {
		t.Fatalf("expected session COMPLETED, got %s", sess.Status)
	}
	if sess.ActualStart == nil || sess.ActualEnd == nil {
		t.Fatal("expected actual start and end to be recorded")
	}
	if sess.ArtifactID == "" {
		t.Fatal("expected session to reference its artifact")
	}

	artifact, err := artifacts.Get(context.Background(), sess.ArtifactID)
	if err != nil {
		t.Fatalf("artifact not created: %v", err)
	}
	if artifact.Status != model.ArtifactStatusRaw {
		t.Fatalf("expected RAW artifact, got %s", artifact.Status)
	}
	if artifact.ByteSize != int64(len("recorded media bytes")) {
		t.Fatalf("bad artifact size: %d", artifact.ByteSize)
	}

	raw := storage.object("recordings/org-1/" + testSessionID + "/raw.mp4")
	if string(raw) != "recorded media bytes" {
		t.Fatalf("recording not uploaded, got %q", raw)
	}
	if storage.object("recordings/org-1/"+testSessionID+"/capture.log") == nil {
		t.Fatal("capture log not uploaded")
	}

	jobs := enqueuer.enqueued()
	if len(jobs) != 1 {
		t.Fatalf("expected one transcode job, got %d", len(jobs))
	}
	if jobs[0].ArtifactID != artifact.ID || jobs[0].RawStorageKey != artifact.StorageKey {
		t.Fatalf("transcode payload does not reference the artifact: %+v", jobs[0])
	}

	if artifact.Meta == nil || len(artifact.Meta.Participants) != 2 {
		t.Fatalf("expected roster metadata on the artifact, got %+v", artifact.Meta)
	}
	// The capture ended, so everyone observed must have a departure.
	for _, p := range artifact.Meta.Participants {
		if p.LeftAt == nil {
			t.Fatalf("participant %s has no departure after capture end", p.ID)
		}
	}
}

func TestCaptureWorkerEmptyOutputFails(t *testing.T) {
	sessions := newFakeSessions(pendingSession())
	engine := &fakeEngine{} // claims success, writes nothing

	w := newCaptureWorker(t, sessions, newFakeArtifacts(), newFakeStorage(), &fakeEnqueuer{}, engine, CaptureOptions{})

	err := w.ProcessTask(context.Background(), captureTask(t))
	if err == nil {
		t.Fatal("expected an empty capture to fail")
	}

	sess, _ := sessions.Get(context.Background(), testSessionID)
	if sess.Status != model.SessionStatusFailed {
		t.Fatalf("expected session FAILED on the final attempt, got %s", sess.Status)
	}
	if sess.Error == nil {
		t.Fatal("expected the failure reason to be recorded")
	}
}

func TestCaptureWorkerEngineFailure(t *testing.T) {
	sessions := newFakeSessions(pendingSession())
	engine := &fakeEngine{output: []byte("partial"), fail: "kicked from meeting"}

	w := newCaptureWorker(t, sessions, newFakeArtifacts(), newFakeStorage(), &fakeEnqueuer{}, engine, CaptureOptions{})

	if err := w.ProcessTask(context.Background(), captureTask(t)); err == nil {
		t.Fatal("expected a failed capture to return an error")
	}

	sess, _ := sessions.Get(context.Background(), testSessionID)
	if sess.Status != model.SessionStatusFailed {
		t.Fatalf("expected session FAILED, got %s", sess.Status)
	}
}

func TestCaptureWorkerMissingSessionIsTerminal(t *testing.T) {
	w := newCaptureWorker(t, newFakeSessions(), newFakeArtifacts(), newFakeStorage(), &fakeEnqueuer{}, &fakeEngine{}, CaptureOptions{})

	err := w.ProcessTask(context.Background(), captureTask(t))
	if err == nil {
		t.Fatal("expected an error for a missing session")
	}
	if !queue.IsTerminal(err) {
		t.Fatalf("expected a terminal error, got %v", err)
	}
}

func TestCaptureWorkerBadPayloadIsTerminal(t *testing.T) {
	w := newCaptureWorker(t, newFakeSessions(), newFakeArtifacts(), newFakeStorage(), &fakeEnqueuer{}, &fakeEngine{}, CaptureOptions{})

	err := w.ProcessTask(context.Background(), asynq.NewTask(queue.TaskTypeCapture, []byte("{not json")))
	if !queue.IsTerminal(err) {
		t.Fatalf("expected a terminal error for a bad payload, got %v", err)
	}
}

func TestCaptureWorkerIdempotentOnTerminalSession(t *testing.T) {
	sess := pendingSession()
	sess.Status = model.SessionStatusCompleted
	sessions := newFakeSessions(sess)
	engine := &fakeEngine{output: []byte("bytes")}

	w := newCaptureWorker(t, sessions, newFakeArtifacts(), newFakeStorage(), &fakeEnqueuer{}, engine, CaptureOptions{})

	if err := w.ProcessTask(context.Background(), captureTask(t)); err != nil {
		t.Fatalf("expected a redelivered job for a finished session to ack, got %v", err)
	}
	if engine.startCount() != 0 {
		t.Fatal("expected no capture to start for a finished session")
	}
}
