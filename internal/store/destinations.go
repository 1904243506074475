package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/meetscribe/api/internal/model"
)

type redisDestinations struct {
	redis *redis.Client
}

func destinationKey(id string) string {
	return fmt.Sprintf("destination:%s", id)
}

func destinationOrgKey(orgID string) string {
	return fmt.Sprintf("destinations:org:%s", orgID)
}

func (s *redisDestinations) Create(ctx context.Context, d *model.Destination) error {
	now := time.Now()
	d.CreatedAt = now
	d.UpdatedAt = now
	if err := s.save(ctx, d); err != nil {
		return err
	}
	return s.redis.SAdd(ctx, destinationOrgKey(d.OrganizationID), d.ID).Err()
}

func (s *redisDestinations) Get(ctx context.Context, id string) (*model.Destination, error) {
	data, err := s.redis.Get(ctx, destinationKey(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var d model.Destination
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *redisDestinations) Update(ctx context.Context, d *model.Destination) error {
	d.UpdatedAt = time.Now()
	return s.save(ctx, d)
}

func (s *redisDestinations) Delete(ctx context.Context, id string) error {
	d, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.redis.Del(ctx, destinationKey(id)).Err(); err != nil {
		return err
	}
	return s.redis.SRem(ctx, destinationOrgKey(d.OrganizationID), id).Err()
}

func (s *redisDestinations) ListByOrganization(ctx context.Context, orgID string) ([]*model.Destination, error) {
	ids, err := s.redis.SMembers(ctx, destinationOrgKey(orgID)).Result()
	if err != nil {
		return nil, err
	}

	destinations := make([]*model.Destination, 0, len(ids))
	for _, id := range ids {
		d, err := s.Get(ctx, id)
		if err != nil {
			if err == ErrNotFound {
				// Stale index entry; drop it and move on.
				log.Printf("Dropping stale destination index entry %s for org %s", id, orgID)
				s.redis.SRem(ctx, destinationOrgKey(orgID), id)
				continue
			}
			return nil, err
		}
		destinations = append(destinations, d)
	}
	return destinations, nil
}

func (s *redisDestinations) save(ctx context.Context, d *model.Destination) error {
	data, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, destinationKey(d.ID), data, 0).Err()
}
