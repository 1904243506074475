package fanout

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/meetscribe/api/internal/model"
)

func testSession() *model.Session {
	return &model.Session{ID: "sess-1", OrganizationID: "org-1"}
}

func streamDest(id, url string, transport model.Transport) *model.Destination {
	return &model.Destination{
		ID:             id,
		OrganizationID: "org-1",
		Transport:      transport,
		URL:            url,
		Secret:         "stream-secret",
		Active:         true,
	}
}

func TestStreamRelayHTTP(t *testing.T) {
	type chunk struct {
		frame   chunkFrame
		headers http.Header
		body    []byte
	}
	var mu sync.Mutex
	var chunks []chunk
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var frame chunkFrame
		if err := json.Unmarshal(body, &frame); err != nil {
			t.Errorf("bad chunk body: %v", err)
		}
		mu.Lock()
		chunks = append(chunks, chunk{frame: frame, headers: r.Header.Clone(), body: body})
		mu.Unlock()
	}))
	defer srv.Close()

	svc := NewService(&fakeDestinations{dests: []*model.Destination{
		streamDest("dest-1", srv.URL, model.TransportStreamHTTP),
	}}, &fakeDeliveries{}, testOptions(), nil)
	defer svc.Close()

	relay, err := svc.OpenStream(context.Background(), testSession(), "mp4")
	if err != nil {
		t.Fatalf("open stream failed: %v", err)
	}
	if !relay.HasDestinations() {
		t.Fatal("expected a stream destination")
	}

	ctx := context.Background()
	relay.Send(ctx, []byte("first"), false)
	relay.Send(ctx, nil, false) // empty non-final chunks are dropped
	relay.Send(ctx, []byte("second"), false)
	relay.Send(ctx, nil, true) // the final marker always goes out
	relay.End(ctx)

	mu.Lock()
	defer mu.Unlock()
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}

	for i, c := range chunks {
		if c.frame.ChunkIndex != i {
			t.Fatalf("chunk %d carries index %d; indices must be sequential from zero", i, c.frame.ChunkIndex)
		}
		if c.headers.Get(HeaderStreamSessionID) != "sess-1" {
			t.Fatalf("chunk %d missing session header", i)
		}
		if want := "sha256=" + Sign(c.body, "stream-secret"); c.headers.Get(HeaderStreamSignature) != want {
			t.Fatalf("chunk %d has bad signature", i)
		}
	}

	first, _ := base64.StdEncoding.DecodeString(chunks[0].frame.Data)
	if string(first) != "first" {
		t.Fatalf("bad chunk payload: %q", first)
	}
	if chunks[0].frame.Metadata.IsFinal || !chunks[2].frame.Metadata.IsFinal {
		t.Fatal("expected only the last chunk to carry the final marker")
	}
	if chunks[2].frame.Metadata.TotalBytes != int64(len("first")+len("second")) {
		t.Fatalf("bad running total: %d", chunks[2].frame.Metadata.TotalBytes)
	}
}

func TestStreamRelaySocket(t *testing.T) {
	upgrader := websocket.Upgrader{}
	frames := make(chan map[string]interface{}, 16)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			var frame map[string]interface{}
			if err := conn.ReadJSON(&frame); err != nil {
				return
			}
			frames <- frame
		}
	}))
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	svc := NewService(&fakeDestinations{dests: []*model.Destination{
		streamDest("dest-1", wsURL, model.TransportStreamSocket),
	}}, &fakeDeliveries{}, testOptions(), nil)
	defer svc.Close()

	relay, err := svc.OpenStream(context.Background(), testSession(), "mp4")
	if err != nil {
		t.Fatalf("open stream failed: %v", err)
	}

	ctx := context.Background()
	relay.Send(ctx, []byte("chunk-bytes"), false)
	relay.RelayEvent(ctx, model.ParticipantEvent{
		Type:        model.ParticipantJoined,
		Participant: model.Participant{ID: "alice", Name: "Alice"},
		Timestamp:   time.Now(),
	})
	relay.End(ctx)

	read := func() map[string]interface{} {
		select {
		case f := <-frames:
			return f
		case <-time.After(3 * time.Second):
			t.Fatal("socket frame never arrived")
			return nil
		}
	}

	// The handshake authenticates before any data flows.
	auth := read()
	if auth["type"] != frameTypeAuth || auth["secret"] != "stream-secret" {
		t.Fatalf("expected auth handshake first, got %v", auth)
	}

	chunk := read()
	if chunk["type"] != frameTypeChunk || chunk["chunkIndex"].(float64) != 0 {
		t.Fatalf("expected chunk frame, got %v", chunk)
	}

	participant := read()
	if participant["type"] != frameTypeParticipant {
		t.Fatalf("expected participant frame, got %v", participant)
	}

	end := read()
	if end["type"] != frameTypeStreamEnd {
		t.Fatalf("expected stream end frame, got %v", end)
	}
}

func TestOpenStreamScopesDestinations(t *testing.T) {
	otherSession := streamDest("dest-other", "http://example.invalid", model.TransportStreamHTTP)
	otherSession.SessionID = "sess-other"
	inactive := streamDest("dest-inactive", "http://example.invalid", model.TransportStreamHTTP)
	inactive.Active = false
	callback := callbackDest("dest-callback", "http://example.invalid", "s")

	svc := NewService(&fakeDestinations{dests: []*model.Destination{
		otherSession, inactive, callback,
	}}, &fakeDeliveries{}, testOptions(), nil)
	defer svc.Close()

	relay, err := svc.OpenStream(context.Background(), testSession(), "mp4")
	if err != nil {
		t.Fatal(err)
	}
	if relay.HasDestinations() {
		t.Fatal("expected no stream destinations for this session")
	}
}
