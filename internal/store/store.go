// Package store implements the record-store contract the workers and the
// fan-out service depend on: create/update/find operations keyed by id.
// Records are JSON blobs in Redis with secondary index sets, matching how
// the rest of the system already uses Redis for queue state.
package store

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/meetscribe/api/internal/model"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// Sessions is the record store for capture subjects.
type Sessions interface {
	Create(ctx context.Context, s *model.Session) error
	Get(ctx context.Context, id string) (*model.Session, error)
	Update(ctx context.Context, s *model.Session) error
}

// Artifacts is the record store for transcode subjects.
type Artifacts interface {
	Create(ctx context.Context, a *model.Artifact) error
	Get(ctx context.Context, id string) (*model.Artifact, error)
	Update(ctx context.Context, a *model.Artifact) error
}

// Destinations is the record store for event/stream receivers.
type Destinations interface {
	Create(ctx context.Context, d *model.Destination) error
	Get(ctx context.Context, id string) (*model.Destination, error)
	Update(ctx context.Context, d *model.Destination) error
	Delete(ctx context.Context, id string) error
	ListByOrganization(ctx context.Context, orgID string) ([]*model.Destination, error)
}

// Deliveries is the append-only audit trail of delivery attempts.
type Deliveries interface {
	Append(ctx context.Context, a *model.DeliveryAttempt) error
	List(ctx context.Context, destinationID string) ([]*model.DeliveryAttempt, error)
}

// Stores bundles the Redis-backed implementations.
type Stores struct {
	Sessions     Sessions
	Artifacts    Artifacts
	Destinations Destinations
	Deliveries   Deliveries
}

// NewRedis builds all record stores over one Redis client.
func NewRedis(client *redis.Client) *Stores {
	return &Stores{
		Sessions:     &redisSessions{redis: client},
		Artifacts:    &redisArtifacts{redis: client},
		Destinations: &redisDestinations{redis: client},
		Deliveries:   &redisDeliveries{redis: client},
	}
}
