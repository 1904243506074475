package queue

import (
	"context"
	"log"
	"time"

	"github.com/hibiken/asynq"
)

// ServerOptions configures the worker server shared by all queues.
type ServerOptions struct {
	Concurrency map[string]int // queue name -> concurrency weight
	Backoff     Backoff
	Metrics     Metrics
}

// NewServer builds the asynq worker server. Each queue's weight bounds how
// many of the server's worker slots it can occupy; capture gets a small
// weight because each job embeds a browser automation engine.
func NewServer(redisOpt asynq.RedisClientOpt, opts ServerOptions) *asynq.Server {
	total := 0
	for _, w := range opts.Concurrency {
		total += w
	}
	if total == 0 {
		total = 1
	}

	return asynq.NewServer(redisOpt, asynq.Config{
		Concurrency:    total,
		Queues:         opts.Concurrency,
		RetryDelayFunc: opts.Backoff.RetryDelayFunc,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			id, _ := asynq.GetTaskID(ctx)
			retried, _ := asynq.GetRetryCount(ctx)
			max, _ := asynq.GetMaxRetry(ctx)
			if IsTerminal(err) {
				log.Printf("Job %s (%s) failed terminally: %v", id, task.Type(), err)
				return
			}
			log.Printf("Job %s (%s) failed (attempt %d/%d): %v", id, task.Type(), retried+1, max+1, err)
		}),
	})
}

// Instrument wraps a handler with per-job logging and metrics. Every job
// logs its broker id so worker output can be correlated across retries.
func Instrument(metrics Metrics) asynq.MiddlewareFunc {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return func(next asynq.Handler) asynq.Handler {
		return asynq.HandlerFunc(func(ctx context.Context, task *asynq.Task) error {
			id, _ := asynq.GetTaskID(ctx)
			start := time.Now()
			metrics.JobStarted(task.Type())
			log.Printf("Job %s (%s) started", id, task.Type())

			err := next.ProcessTask(ctx, task)

			elapsed := time.Since(start)
			outcome := "success"
			if err != nil {
				outcome = "failure"
			}
			metrics.JobFinished(task.Type(), outcome, elapsed)
			log.Printf("Job %s (%s) finished: %s in %s", id, task.Type(), outcome, elapsed.Round(time.Millisecond))
			return err
		})
	}
}
