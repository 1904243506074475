package fanout

import (
	"log"
	"time"

	"github.com/meetscribe/api/internal/model"
)

// Delivery states. Retries are explicit transitions driven by the delivery
// loop, not recursive self-calls, so the state is inspectable at any point.
type deliveryState string

const (
	stateQueued   deliveryState = "queued"
	stateInFlight deliveryState = "in-flight"
	stateRetrying deliveryState = "retrying"
	stateTerminal deliveryState = "terminal"
)

// delivery is one event bound for one destination.
type delivery struct {
	dest      *model.Destination
	eventID   string
	eventType model.EventType
	timestamp time.Time
	body      []byte
	attempt   int
	state     deliveryState
}

func (s *Service) retryBudget(d *model.Destination) int {
	if d.MaxRetries > 0 {
		return d.MaxRetries
	}
	return s.opts.DefaultRetries
}

// deliver runs the delivery state machine: one initial attempt plus up to
// the destination's retry budget, each attempt recorded in the audit trail.
// The loop lives on the service's own context so deliveries survive the
// originating job but stop on Close.
func (s *Service) deliver(d *delivery) {
	d.state = stateQueued
	budget := s.retryBudget(d.dest)

	for d.attempt = 1; ; d.attempt++ {
		d.state = stateInFlight
		start := time.Now()
		code, err := s.post(s.ctx, d)
		elapsed := time.Since(start)

		attempt := &model.DeliveryAttempt{
			DestinationID:  d.dest.ID,
			EventID:        d.eventID,
			EventType:      d.eventType,
			Attempt:        d.attempt,
			Outcome:        model.DeliveryOutcomeSuccess,
			ResponseCode:   code,
			DurationMillis: elapsed.Milliseconds(),
			At:             start,
		}
		if err != nil {
			attempt.Outcome = model.DeliveryOutcomeFailure
			attempt.Error = err.Error()
		}
		if recordErr := s.deliveries.Append(s.ctx, attempt); recordErr != nil {
			log.Printf("Failed to record delivery attempt for destination %s: %v", d.dest.ID, recordErr)
		}

		if err == nil {
			d.state = stateTerminal
			return
		}

		if d.attempt > budget {
			d.state = stateTerminal
			log.Printf("Delivery %s to destination %s gave up after %d attempts: %v", d.eventID, d.dest.ID, d.attempt, err)
			return
		}

		d.state = stateRetrying
		wait := s.opts.BackoffBase << uint(d.attempt)
		log.Printf("Delivery %s to destination %s failed (attempt %d), retrying in %s: %v", d.eventID, d.dest.ID, d.attempt, wait, err)

		select {
		case <-s.ctx.Done():
			d.state = stateTerminal
			return
		case <-time.After(wait):
		}
	}
}
