// Package queue wraps the asynq broker with typed, validated enqueue
// operations and the worker-server construction used by the capture and
// transcode pipelines. asynq owns all queue bookkeeping: leasing, acks,
// delayed retries, lease expiry for crashed workers, and the archive of
// exhausted tasks.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"

	"github.com/meetscribe/api/internal/model"
)

const (
	TaskTypeCapture   = "capture:process"
	TaskTypeTranscode = "transcode:process"

	QueueCapture   = "capture"
	QueueTranscode = "transcode"
)

// Client enqueues jobs after validating their payloads. Payload validation
// happens here, at enqueue time, so workers never lease a structurally
// invalid job.
type Client struct {
	asynq    *asynq.Client
	validate *validator.Validate
}

func NewClient(asynqClient *asynq.Client, validate *validator.Validate) *Client {
	return &Client{
		asynq:    asynqClient,
		validate: validate,
	}
}

// EnqueueCapture queues a capture job and returns the broker task id.
func (c *Client) EnqueueCapture(ctx context.Context, payload *model.CaptureJobPayload, maxAttempts int, timeout time.Duration) (string, error) {
	if err := c.validate.Struct(payload); err != nil {
		return "", fmt.Errorf("invalid capture payload: %w", err)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}

	info, err := c.asynq.EnqueueContext(ctx, asynq.NewTask(TaskTypeCapture, data),
		asynq.Queue(QueueCapture),
		asynq.MaxRetry(maxAttempts-1),
		asynq.Timeout(timeout),
		asynq.Retention(24*time.Hour),
	)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue capture task: %w", err)
	}
	return info.ID, nil
}

// EnqueueTranscode queues a transcode job and returns the broker task id.
func (c *Client) EnqueueTranscode(ctx context.Context, payload *model.TranscodeJobPayload, maxAttempts int, timeout time.Duration) (string, error) {
	if err := c.validate.Struct(payload); err != nil {
		return "", fmt.Errorf("invalid transcode payload: %w", err)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}

	info, err := c.asynq.EnqueueContext(ctx, asynq.NewTask(TaskTypeTranscode, data),
		asynq.Queue(QueueTranscode),
		asynq.MaxRetry(maxAttempts-1),
		asynq.Timeout(timeout),
		asynq.Retention(24*time.Hour),
	)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue transcode task: %w", err)
	}
	return info.ID, nil
}
