package queue

import (
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
)

// Terminal marks a handler error as non-retryable. The worker server acks
// the task and archives it instead of scheduling a retry. Used for
// validation failures (missing session/artifact) where re-running the job
// cannot succeed.
func Terminal(err error) error {
	return fmt.Errorf("%w: %w", asynq.SkipRetry, err)
}

// IsTerminal reports whether an error was marked with Terminal.
func IsTerminal(err error) bool {
	return errors.Is(err, asynq.SkipRetry)
}
