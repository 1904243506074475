package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/meetscribe/api/internal/model"
)

// Delivery attempt lists are capped so a permanently failing destination
// cannot grow its audit trail without bound.
const maxDeliveryHistory = 1000

type redisDeliveries struct {
	redis *redis.Client
}

func deliveryKey(destinationID string) string {
	return fmt.Sprintf("deliveries:%s", destinationID)
}

func (s *redisDeliveries) Append(ctx context.Context, a *model.DeliveryAttempt) error {
	if a.At.IsZero() {
		a.At = time.Now()
	}
	data, err := json.Marshal(a)
	if err != nil {
		return err
	}
	key := deliveryKey(a.DestinationID)
	if err := s.redis.RPush(ctx, key, data).Err(); err != nil {
		return err
	}
	return s.redis.LTrim(ctx, key, -maxDeliveryHistory, -1).Err()
}

func (s *redisDeliveries) List(ctx context.Context, destinationID string) ([]*model.DeliveryAttempt, error) {
	rows, err := s.redis.LRange(ctx, deliveryKey(destinationID), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	attempts := make([]*model.DeliveryAttempt, 0, len(rows))
	for _, row := range rows {
		var a model.DeliveryAttempt
		if err := json.Unmarshal([]byte(row), &a); err != nil {
			return nil, err
		}
		attempts = append(attempts, &a)
	}
	return attempts, nil
}
