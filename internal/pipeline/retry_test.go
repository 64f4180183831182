package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/docpages/internal/foundation/errors"
	"git.home.luguber.info/inful/docpages/internal/gitops"
)

func fastPolicy(retryable bool) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Backoff:     time.Millisecond,
		IsRetryable: func(error) bool { return retryable },
	}
}

func TestWithRetrySucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	h := WithRetry(func(context.Context, Event) error {
		attempts++
		if attempts < 3 {
			return errors.New("flaky")
		}
		return nil
	}, fastPolicy(true), nil)

	require.NoError(t, h(context.Background(), testEvent{name: "x"}))
	assert.Equal(t, 3, attempts)
}

func TestWithRetryNonRetryableFailsFast(t *testing.T) {
	attempts := 0
	dlq := NewDeadLetterQueue()
	h := WithRetry(func(context.Context, Event) error {
		attempts++
		return errors.New("permanent")
	}, fastPolicy(false), dlq)

	err := h(context.Background(), testEvent{name: "x"})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, dlq.Count())
}

func TestWithRetryExhaustionGoesToDLQ(t *testing.T) {
	dlq := NewDeadLetterQueue()
	h := WithRetry(func(context.Context, Event) error { return errors.New("always") }, fastPolicy(true), dlq)

	err := h(context.Background(), testEvent{name: "x", runID: "run-9"})
	require.Error(t, err)
	require.Equal(t, 1, dlq.Count())

	failed := dlq.GetAll()
	assert.Equal(t, "x", failed[0].Event.Name())
	assert.Error(t, failed[0].Error)

	byRun := dlq.ByRun("run-9")
	require.Len(t, byRun, 1)
	assert.Equal(t, "run-9", byRun[0].RunID())
	assert.Empty(t, dlq.ByRun("other-run"))

	dlq.Clear()
	assert.Zero(t, dlq.Count())
}

func TestDefaultRetryPolicyClassification(t *testing.T) {
	pol := DefaultRetryPolicy()

	// permanent git failures are never retried, even when wrapped
	authErr := &gitops.AuthError{Op: "push", URL: "x", Err: errors.New("denied")}
	assert.False(t, pol.IsRetryable(authErr))

	// classified retryable errors are
	transient := ferrors.NetworkError("connection dropped").Retryable().Build()
	assert.True(t, pol.IsRetryable(transient))

	// unclassified errors are not
	assert.False(t, pol.IsRetryable(errors.New("mystery")))
}
