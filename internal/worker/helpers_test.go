package worker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/meetscribe/api/internal/capture"
	"github.com/meetscribe/api/internal/encode"
	"github.com/meetscribe/api/internal/fanout"
	"github.com/meetscribe/api/internal/model"
	"github.com/meetscribe/api/internal/roster"
	"github.com/meetscribe/api/internal/store"
)

type fakeSessions struct {
	mu       sync.Mutex
	sessions map[string]*model.Session
}

func newFakeSessions(seed ...*model.Session) *fakeSessions {
	f := &fakeSessions{sessions: make(map[string]*model.Session)}
	for _, s := range seed {
		cp := *s
		f.sessions[s.ID] = &cp
	}
	return f
}

func (f *fakeSessions) Create(ctx context.Context, s *model.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *s
	f.sessions[s.ID] = &cp
	return nil
}

func (f *fakeSessions) Get(ctx context.Context, id string) (*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSessions) Update(ctx context.Context, s *model.Session) error {
	return f.Create(ctx, s)
}

type fakeArtifacts struct {
	mu        sync.Mutex
	artifacts map[string]*model.Artifact
}

func newFakeArtifacts(seed ...*model.Artifact) *fakeArtifacts {
	f := &fakeArtifacts{artifacts: make(map[string]*model.Artifact)}
	for _, a := range seed {
		cp := *a
		f.artifacts[a.ID] = &cp
	}
	return f
}

func (f *fakeArtifacts) Create(ctx context.Context, a *model.Artifact) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *a
	f.artifacts[a.ID] = &cp
	return nil
}

func (f *fakeArtifacts) Get(ctx context.Context, id string) (*model.Artifact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.artifacts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeArtifacts) Update(ctx context.Context, a *model.Artifact) error {
	return f.Create(ctx, a)
}

func (f *fakeArtifacts) only() *model.Artifact {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.artifacts {
		cp := *a
		return &cp
	}
	return nil
}

type fakeStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: make(map[string][]byte)}
}

func (f *fakeStorage) Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
	return "https://cdn.test/" + key, nil
}

func (f *fakeStorage) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %s not found", key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeStorage) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	return nil
}

func (f *fakeStorage) GetSignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	return "https://signed.test/" + key, nil
}

func (f *fakeStorage) GetPublicURL(key string) string {
	return "https://cdn.test/" + key
}

func (f *fakeStorage) object(key string) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.objects[key]
}

type fakeEnqueuer struct {
	mu       sync.Mutex
	payloads []*model.TranscodeJobPayload
	err      error
}

func (f *fakeEnqueuer) EnqueueTranscode(ctx context.Context, payload *model.TranscodeJobPayload, maxAttempts int, timeout time.Duration) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, payload)
	return "job-1", nil
}

func (f *fakeEnqueuer) enqueued() []*model.TranscodeJobPayload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*model.TranscodeJobPayload(nil), f.payloads...)
}

// fakeEngine writes its scripted output on start and finishes immediately.
type fakeEngine struct {
	output   []byte
	roster   []roster.Entry
	startErr error
	fail     string
	// waitDelay keeps the meeting open so side loops get to run.
	waitDelay time.Duration

	mu      sync.Mutex
	started int
}

func (e *fakeEngine) Start(ctx context.Context, req capture.Request) (capture.Meeting, error) {
	e.mu.Lock()
	e.started++
	e.mu.Unlock()

	if e.startErr != nil {
		return nil, e.startErr
	}
	if len(e.output) > 0 {
		if err := os.WriteFile(req.OutputPath, e.output, 0o644); err != nil {
			return nil, err
		}
	}
	if err := os.WriteFile(req.LogPath, []byte("capture log\n"), 0o644); err != nil {
		return nil, err
	}
	return &fakeMeeting{engine: e, req: req}, nil
}

func (e *fakeEngine) startCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.started
}

type fakeMeeting struct {
	engine *fakeEngine
	req    capture.Request
}

func (m *fakeMeeting) Roster(ctx context.Context) ([]roster.Entry, error) {
	return m.engine.roster, nil
}

func (m *fakeMeeting) Wait(ctx context.Context) (capture.Result, error) {
	if m.engine.waitDelay > 0 {
		select {
		case <-ctx.Done():
			return capture.Result{}, ctx.Err()
		case <-time.After(m.engine.waitDelay):
		}
	}
	res := capture.Result{
		Success:    m.engine.fail == "",
		OutputPath: m.req.OutputPath,
		LogPath:    m.req.LogPath,
		Error:      m.engine.fail,
	}
	return res, nil
}

func (m *fakeMeeting) Stop(ctx context.Context) error { return nil }

// fakeEncoder copies input to output, optionally reporting progress.
type fakeEncoder struct {
	err      error
	progress []float64
}

func (e *fakeEncoder) Encode(ctx context.Context, inputPath, outputPath string, profile model.QualityProfile, onProgress encode.Progress) error {
	if e.err != nil {
		return e.err
	}
	for _, p := range e.progress {
		if onProgress != nil {
			onProgress(p)
		}
	}
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return err
	}
	return os.WriteFile(outputPath, append([]byte("encoded:"), data...), 0o644)
}

func newTestFanout() *fanout.Service {
	return fanout.NewService(&noDestinations{}, &noDeliveries{}, fanout.Options{}, nil)
}

type noDestinations struct{}

func (noDestinations) Create(ctx context.Context, d *model.Destination) error { return nil }
func (noDestinations) Get(ctx context.Context, id string) (*model.Destination, error) {
	return nil, store.ErrNotFound
}
func (noDestinations) Update(ctx context.Context, d *model.Destination) error { return nil }
func (noDestinations) Delete(ctx context.Context, id string) error            { return nil }
func (noDestinations) ListByOrganization(ctx context.Context, orgID string) ([]*model.Destination, error) {
	return nil, nil
}

type noDeliveries struct{}

func (noDeliveries) Append(ctx context.Context, a *model.DeliveryAttempt) error { return nil }
func (noDeliveries) List(ctx context.Context, destinationID string) ([]*model.DeliveryAttempt, error) {
	return nil, nil
}
