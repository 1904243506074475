package queue

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/hibiken/asynq"
)

func TestBackoffDelay(t *testing.T) {
	b := Backoff{Base: 5 * time.Second, Cap: 10 * time.Minute}

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 5 * time.Second},
		{2, 10 * time.Second},
		{3, 20 * time.Second},
		{4, 40 * time.Second},
		{0, 5 * time.Second}, // clamped to the first attempt
	}
	for _, c := range cases {
		if got := b.Delay(c.attempt); got != c.want {
			t.Errorf("Delay(%d) = %s, want %s", c.attempt, got, c.want)
		}
	}
}

func TestBackoffCap(t *testing.T) {
	b := Backoff{Base: 5 * time.Second, Cap: 12 * time.Second}
	if got := b.Delay(3); got != 12*time.Second {
		t.Errorf("Delay(3) = %s, want cap of 12s", got)
	}
	if got := b.Delay(10); got != 12*time.Second {
		t.Errorf("Delay(10) = %s, want cap of 12s", got)
	}
}

func TestRetryDelayFunc(t *testing.T) {
	b := Backoff{Base: time.Second, Cap: time.Minute}
	// asynq passes the retry count so far; zero retries means the first
	// retry is being scheduled.
	if got := b.RetryDelayFunc(0, nil, nil); got != time.Second {
		t.Errorf("RetryDelayFunc(0) = %s, want 1s", got)
	}
	if got := b.RetryDelayFunc(2, nil, nil); got != 4*time.Second {
		t.Errorf("RetryDelayFunc(2) = %s, want 4s", got)
	}
}

func TestTerminalErrors(t *testing.T) {
	cause := fmt.Errorf("session missing")
	err := Terminal(cause)

	if !IsTerminal(err) {
		t.Fatal("expected Terminal error to be terminal")
	}
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatal("expected Terminal error to skip asynq retries")
	}
	if IsTerminal(cause) {
		t.Fatal("expected plain error to be retryable")
	}
	if IsTerminal(nil) {
		t.Fatal("expected nil to be non-terminal")
	}
}
