package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	ferrors "git.home.luguber.info/inful/docpages/internal/foundation/errors"
	"git.home.luguber.info/inful/docpages/internal/gitops"
)

// RetryPolicy defines retry behavior for failed handlers.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
	IsRetryable func(error) bool
}

// DefaultRetryPolicy: 3 attempts, exponential backoff starting at 1s.
// Classified errors decide retryability themselves; permanent git failures
// (auth, missing repo, missing branch) are never retried.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Backoff:     time.Second,
		IsRetryable: func(err error) bool {
			if gitops.IsPermanentGitError(err) {
				return false
			}
			if ce, ok := ferrors.AsClassified(err); ok {
				return ce.CanRetry()
			}
			return false
		},
	}
}

// CaptureOnlyPolicy makes no retries; a failed event goes straight to
// the dead-letter queue.
func CaptureOnlyPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 1,
		Backoff:     time.Second,
		IsRetryable: func(error) bool { return false },
	}
}

// WithRetry wraps a handler with retry logic according to the policy.
// A cancelled context stops further attempts.
func WithRetry(h Handler, policy RetryPolicy, dlq *DeadLetterQueue) Handler {
	return func(ctx context.Context, e Event) error {
		var lastErr error
		for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
			lastErr = h(ctx, e)
			if lastErr == nil {
				return nil
			}
			if ctx.Err() != nil {
				break
			}
			if !policy.IsRetryable(lastErr) {
				slog.Warn("Non-retryable error encountered", "event", e.Name(), "error", lastErr)
				break
			}
			if attempt < policy.MaxAttempts {
				backoff := policy.Backoff * time.Duration(1<<uint(attempt-1))
				slog.Info("Retrying after failure", "event", e.Name(), "attempt", attempt, "backoff", backoff, "error", lastErr)
				time.Sleep(backoff)
			}
		}
		slog.Error("Handler failed after retries", "event", e.Name(), "attempts", policy.MaxAttempts, "error", lastErr)
		if dlq != nil {
			dlq.Enqueue(FailedEvent{Event: e, Error: lastErr, Timestamp: time.Now()})
		}
		return fmt.Errorf("handler failed after %d attempts: %w", policy.MaxAttempts, lastErr)
	}
}
