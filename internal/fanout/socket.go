package fanout

import (
	"context"
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/meetscribe/api/internal/model"
)

// socketRegistry holds one lazily dialed websocket connection per
// destination. Connections are private to a destination and all sends go
// through the registry lock, so concurrent relay calls can never interleave
// frames on one connection or race a dial.
type socketRegistry struct {
	dialer *websocket.Dialer

	mu    sync.Mutex
	conns map[string]*websocket.Conn
}

func newSocketRegistry(dialer *websocket.Dialer) *socketRegistry {
	return &socketRegistry{
		dialer: dialer,
		conns:  make(map[string]*websocket.Conn),
	}
}

// send writes one JSON frame, dialing and authenticating first if no
// connection exists. A failed connection is dropped, not retried; the next
// send attempt dials fresh.
func (r *socketRegistry) send(ctx context.Context, dest *model.Destination, frame interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, err := r.getOrDial(ctx, dest)
	if err != nil {
		return err
	}

	if err := conn.WriteJSON(frame); err != nil {
		r.drop(dest.ID)
		return err
	}
	return nil
}

// end sends the terminal frame on a best-effort basis and tears the
// connection down. A destination that never got a connection gets nothing.
func (r *socketRegistry) end(ctx context.Context, dest *model.Destination, frame interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[dest.ID]
	if !ok {
		return
	}
	if err := conn.WriteJSON(frame); err != nil {
		log.Printf("Stream end frame failed to destination %s: %v", dest.ID, err)
	}
	r.drop(dest.ID)
}

// getOrDial assumes r.mu is held.
func (r *socketRegistry) getOrDial(ctx context.Context, dest *model.Destination) (*websocket.Conn, error) {
	if conn, ok := r.conns[dest.ID]; ok {
		return conn, nil
	}

	conn, _, err := r.dialer.DialContext(ctx, dest.URL, nil)
	if err != nil {
		return nil, err
	}

	// The handshake frame authenticates before any data flows.
	if err := conn.WriteJSON(authFrame{Type: frameTypeAuth, Secret: dest.Secret}); err != nil {
		conn.Close()
		return nil, err
	}

	r.conns[dest.ID] = conn
	return conn, nil
}

// drop assumes r.mu is held.
func (r *socketRegistry) drop(destID string) {
	if conn, ok := r.conns[destID]; ok {
		conn.Close()
		delete(r.conns, destID)
	}
}

func (r *socketRegistry) closeAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, conn := range r.conns {
		conn.Close()
		delete(r.conns, id)
	}
}
