package queue

import (
	"time"

	"github.com/hibiken/asynq"
)

// Backoff is an exponential retry delay policy: attempt n waits
// base * 2^(n-1), capped at Cap.
type Backoff struct {
	Base time.Duration
	Cap  time.Duration
}

// Delay returns the wait before retry attempt n (1-based).
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := b.Base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= b.Cap {
			return b.Cap
		}
	}
	if d > b.Cap {
		return b.Cap
	}
	return d
}

// RetryDelayFunc adapts the policy to asynq, which passes the number of
// times the task has already been retried (0 before the first retry).
func (b Backoff) RetryDelayFunc(n int, _ error, _ *asynq.Task) time.Duration {
	return b.Delay(n + 1)
}
