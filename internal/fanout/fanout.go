// Package fanout delivers domain events to external destinations over two
// transports: signed callback POSTs and real-time chunk relay. Deliveries to
// distinct destinations are concurrent and isolated; one destination
// exhausting its retry budget never affects another destination or the
// originating job.
package fanout

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/meetscribe/api/internal/model"
	"github.com/meetscribe/api/internal/store"
)

// Envelope is the canonical JSON body of a callback delivery. The signature
// is computed over exactly these serialized bytes.
type Envelope struct {
	Event     model.EventType `json:"event"`
	Timestamp time.Time       `json:"timestamp"`
	Data      interface{}     `json:"data"`
}

// Broadcaster receives a copy of every published event for live monitoring.
type Broadcaster interface {
	BroadcastEvent(sessionID string, event model.EventType, data interface{})
}

// Options tunes delivery behavior.
type Options struct {
	// Timeout bounds a single delivery attempt when the destination has no
	// timeout of its own.
	Timeout time.Duration
	// DefaultRetries is the retry budget for destinations that do not
	// configure one.
	DefaultRetries int
	// BackoffBase scales the retry schedule: retry after attempt n waits
	// BackoffBase * 2^n. One second gives the 2^attempt-seconds schedule.
	BackoffBase time.Duration
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Second
	}
	if o.DefaultRetries <= 0 {
		o.DefaultRetries = 5
	}
	if o.BackoffBase <= 0 {
		o.BackoffBase = time.Second
	}
	return o
}

// Service is the event fan-out instance. The socket registry is owned here,
// not module-level, so independent instances stay isolated.
type Service struct {
	destinations store.Destinations
	deliveries   store.Deliveries
	opts         Options
	client       *http.Client
	sockets      *socketRegistry
	hub          Broadcaster

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewService(destinations store.Destinations, deliveries store.Deliveries, opts Options, hub Broadcaster) *Service {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		destinations: destinations,
		deliveries:   deliveries,
		opts:         opts,
		client:       &http.Client{Timeout: opts.Timeout},
		sockets:      newSocketRegistry(websocket.DefaultDialer),
		hub:          hub,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Publish delivers an event to every active callback destination of the
// organization subscribed to the event type. Delivery runs in the
// background; the caller is never blocked on retries. Storage-notify
// destinations receive callbacks too since they are never sent raw data.
func (s *Service) Publish(ctx context.Context, orgID, sessionID string, event model.EventType, data interface{}) error {
	if s.hub != nil && sessionID != "" {
		s.hub.BroadcastEvent(sessionID, event, data)
	}

	destinations, err := s.destinations.ListByOrganization(ctx, orgID)
	if err != nil {
		return fmt.Errorf("failed to list destinations: %w", err)
	}

	envelope := Envelope{Event: event, Timestamp: time.Now(), Data: data}
	body, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}
	eventID := uuid.New().String()

	for _, dest := range destinations {
		if !dest.Active || !dest.AppliesTo(sessionID) || !dest.SubscribedTo(event) {
			continue
		}
		if dest.Transport != model.TransportCallback && dest.Transport != model.TransportStorageNotify {
			continue
		}

		d := &delivery{
			dest:      dest,
			eventID:   eventID,
			eventType: event,
			timestamp: envelope.Timestamp,
			body:      body,
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.deliver(d)
		}()
	}

	return nil
}

// Close stops pending retries and waits for delivery goroutines to drain.
func (s *Service) Close() {
	s.cancel()
	s.wg.Wait()
	s.sockets.closeAll()
}
