package fanout

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/meetscribe/api/internal/model"
)

// Stream delivery headers
const (
	HeaderStreamChunkIndex = "X-Stream-Chunk-Index"
	HeaderStreamSessionID  = "X-Stream-Session-Id"
	HeaderStreamTimestamp  = "X-Stream-Timestamp"
	HeaderStreamSignature  = "X-Stream-Signature"
)

// Socket frame types
const (
	frameTypeAuth        = "auth"
	frameTypeChunk       = "chunk"
	frameTypeParticipant = "participant_event"
	frameTypeStreamEnd   = "stream_end"
)

// chunkFrame is the wire form of one chunk, shared by the HTTP body and the
// socket transport (which adds the type discriminator).
type chunkFrame struct {
	Type           string    `json:"type,omitempty"`
	SessionID      string    `json:"sessionId"`
	OrganizationID string    `json:"organizationId"`
	ChunkIndex     int       `json:"chunkIndex"`
	Timestamp      time.Time `json:"timestamp"`
	Format         string    `json:"format"`
	Data           string    `json:"data"`
	Encoding       string    `json:"encoding"`
	Metadata       chunkMeta `json:"metadata"`
}

type chunkMeta struct {
	TotalBytes int64 `json:"totalBytes"`
	IsFinal    bool  `json:"isFinal"`
}

type authFrame struct {
	Type   string `json:"type"`
	Secret string `json:"secret"`
}

type participantFrame struct {
	Type      string                 `json:"type"`
	SessionID string                 `json:"sessionId"`
	Event     model.ParticipantEvent `json:"event"`
}

type endFrame struct {
	Type      string    `json:"type"`
	SessionID string    `json:"sessionId"`
	Timestamp time.Time `json:"timestamp"`
}

// StreamRelay fans chunks of one session's growing output file out to the
// session's stream destinations. One relay owns the chunk index sequence
// for its session; indices are strictly increasing with no gaps.
type StreamRelay struct {
	svc     *Service
	session *model.Session
	format  string
	dests   []*model.Destination
	next    int
	total   int64
}

// OpenStream resolves the active stream destinations for a session. A relay
// with no destinations is valid and sends nothing.
func (s *Service) OpenStream(ctx context.Context, session *model.Session, format string) (*StreamRelay, error) {
	all, err := s.destinations.ListByOrganization(ctx, session.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list destinations: %w", err)
	}

	var dests []*model.Destination
	for _, d := range all {
		if d.Active && d.IsStream() && d.AppliesTo(session.ID) {
			dests = append(dests, d)
		}
	}

	return &StreamRelay{svc: s, session: session, format: format, dests: dests}, nil
}

// HasDestinations reports whether sending is worthwhile at all.
func (r *StreamRelay) HasDestinations() bool {
	return len(r.dests) > 0
}

// Send relays one chunk of new bytes to every stream destination. Empty
// chunks are dropped unless they carry the final marker. Per-destination
// failures are logged and isolated; they never fail the capture job.
func (r *StreamRelay) Send(ctx context.Context, data []byte, isFinal bool) {
	if len(r.dests) == 0 || (len(data) == 0 && !isFinal) {
		return
	}

	r.total += int64(len(data))
	frame := chunkFrame{
		SessionID:      r.session.ID,
		OrganizationID: r.session.OrganizationID,
		ChunkIndex:     r.next,
		Timestamp:      time.Now(),
		Format:         r.format,
		Data:           base64.StdEncoding.EncodeToString(data),
		Encoding:       "base64",
		Metadata:       chunkMeta{TotalBytes: r.total, IsFinal: isFinal},
	}
	r.next++

	for _, dest := range r.dests {
		switch dest.Transport {
		case model.TransportStreamHTTP:
			if err := r.postChunk(ctx, dest, frame); err != nil {
				log.Printf("Stream chunk %d for session %s failed to destination %s: %v", frame.ChunkIndex, r.session.ID, dest.ID, err)
			}
		case model.TransportStreamSocket:
			socket := frame
			socket.Type = frameTypeChunk
			if err := r.svc.sockets.send(ctx, dest, socket); err != nil {
				log.Printf("Stream chunk %d for session %s failed to socket destination %s: %v", frame.ChunkIndex, r.session.ID, dest.ID, err)
			}
		}
	}
}

// RelayEvent forwards a participant event to socket destinations, which are
// the metadata-capable transport.
func (r *StreamRelay) RelayEvent(ctx context.Context, evt model.ParticipantEvent) {
	for _, dest := range r.dests {
		if dest.Transport != model.TransportStreamSocket {
			continue
		}
		frame := participantFrame{Type: frameTypeParticipant, SessionID: r.session.ID, Event: evt}
		if err := r.svc.sockets.send(ctx, dest, frame); err != nil {
			log.Printf("Participant event for session %s failed to socket destination %s: %v", r.session.ID, dest.ID, err)
		}
	}
}

// End tells socket destinations the stream is over and tears their
// connections down. Called on success and on failure so receivers can
// always close their channel cleanly.
func (r *StreamRelay) End(ctx context.Context) {
	frame := endFrame{Type: frameTypeStreamEnd, SessionID: r.session.ID, Timestamp: time.Now()}
	for _, dest := range r.dests {
		if dest.Transport != model.TransportStreamSocket {
			continue
		}
		r.svc.sockets.end(ctx, dest, frame)
	}
}

func (r *StreamRelay) postChunk(ctx context.Context, dest *model.Destination, frame chunkFrame) error {
	body, err := json.Marshal(frame)
	if err != nil {
		return err
	}

	timeout := r.svc.opts.Timeout
	if dest.TimeoutSeconds > 0 {
		timeout = time.Duration(dest.TimeoutSeconds) * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, dest.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderStreamChunkIndex, strconv.Itoa(frame.ChunkIndex))
	req.Header.Set(HeaderStreamSessionID, frame.SessionID)
	req.Header.Set(HeaderStreamTimestamp, frame.Timestamp.UTC().Format(time.RFC3339))
	if dest.Secret != "" {
		req.Header.Set(HeaderStreamSignature, "sha256="+Sign(body, dest.Secret))
	}

	resp, err := r.svc.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if !isSuccessStatus(resp.StatusCode) {
		return fmt.Errorf("destination returned status %d", resp.StatusCode)
	}
	return nil
}
