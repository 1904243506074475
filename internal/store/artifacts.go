package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/meetscribe/api/internal/model"
)

type redisArtifacts struct {
	redis *redis.Client
}

func artifactKey(id string) string {
	return fmt.Sprintf("artifact:%s", id)
}

func (s *redisArtifacts) Create(ctx context.Context, a *model.Artifact) error {
	now := time.Now()
	a.CreatedAt = now
	a.UpdatedAt = now
	return s.save(ctx, a)
}

func (s *redisArtifacts) Get(ctx context.Context, id string) (*model.Artifact, error) {
	data, err := s.redis.Get(ctx, artifactKey(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var a model.Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *redisArtifacts) Update(ctx context.Context, a *model.Artifact) error {
	a.UpdatedAt = time.Now()
	return s.save(ctx, a)
}

func (s *redisArtifacts) save(ctx context.Context, a *model.Artifact) error {
	data, err := json.Marshal(a)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, artifactKey(a.ID), data, 0).Err()
}
