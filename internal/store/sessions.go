package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/meetscribe/api/internal/model"
)

type redisSessions struct {
	redis *redis.Client
}

func sessionKey(id string) string {
	return fmt.Sprintf("session:%s", id)
}

func (s *redisSessions) Create(ctx context.Context, sess *model.Session) error {
	now := time.Now()
	sess.CreatedAt = now
	sess.UpdatedAt = now
	return s.save(ctx, sess)
}

func (s *redisSessions) Get(ctx context.Context, id string) (*model.Session, error) {
	data, err := s.redis.Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var sess model.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *redisSessions) Update(ctx context.Context, sess *model.Session) error {
	sess.UpdatedAt = time.Now()
	return s.save(ctx, sess)
}

func (s *redisSessions) save(ctx context.Context, sess *model.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, sessionKey(sess.ID), data, 0).Err()
}
