package daemon

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docpages/internal/trigger"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestQueueProcessesJobs(t *testing.T) {
	var executed atomic.Int32
	q := NewRunQueue(10, 1, ExecutorFunc(func(_ context.Context, _ *RunJob) error {
		executed.Add(1)
		return nil
	}))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)
	defer q.Stop(ctx)

	for i := 0; i < 3; i++ {
		require.NoError(t, q.Enqueue(&RunJob{
			ID:        "job-" + string(rune('a'+i)),
			Trigger:   trigger.KindDispatch,
			Actor:     "tester",
			CreatedAt: time.Now(),
		}))
	}

	waitFor(t, func() bool { return executed.Load() == 3 })

	history := q.History()
	require.Len(t, history, 3)
	for _, job := range history {
		assert.Equal(t, RunStatusCompleted, job.Status)
		assert.NotNil(t, job.CompletedAt)
	}
}

func TestQueueRecordsFailure(t *testing.T) {
	q := NewRunQueue(10, 1, ExecutorFunc(func(_ context.Context, _ *RunJob) error {
		return errors.New("generator exploded")
	}))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)
	defer q.Stop(ctx)

	require.NoError(t, q.Enqueue(&RunJob{ID: "boom", Trigger: trigger.KindPush, CreatedAt: time.Now()}))
	waitFor(t, func() bool { return len(q.History()) == 1 })

	job := q.History()[0]
	assert.Equal(t, RunStatusFailed, job.Status)
	assert.Contains(t, job.Error, "generator exploded")
}

func TestQueueRejectsWhenFull(t *testing.T) {
	block := make(chan struct{})
	q := NewRunQueue(1, 1, ExecutorFunc(func(_ context.Context, _ *RunJob) error {
		<-block
		return nil
	}))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)
	defer func() {
		close(block)
		q.Stop(ctx)
	}()

	require.NoError(t, q.Enqueue(&RunJob{ID: "running", CreatedAt: time.Now()}))
	waitFor(t, func() bool {
		_, active := q.JobSnapshot("running")
		return active
	})
	require.NoError(t, q.Enqueue(&RunJob{ID: "queued", CreatedAt: time.Now()}))

	err := q.Enqueue(&RunJob{ID: "overflow", CreatedAt: time.Now()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "queue is full")
}

func TestQueueSnapshotWhileRunning(t *testing.T) {
	block := make(chan struct{})
	q := NewRunQueue(5, 1, ExecutorFunc(func(_ context.Context, _ *RunJob) error {
		<-block
		return nil
	}))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)
	defer func() {
		close(block)
		q.Stop(ctx)
	}()

	require.NoError(t, q.Enqueue(&RunJob{ID: "slow", Trigger: trigger.KindScheduled, CreatedAt: time.Now()}))
	waitFor(t, func() bool {
		job, ok := q.JobSnapshot("slow")
		return ok && job.Status == RunStatusRunning
	})

	job, ok := q.JobSnapshot("slow")
	require.True(t, ok)
	assert.NotNil(t, job.StartedAt)
}

func TestQueueStopHonorsDeadline(t *testing.T) {
	block := make(chan struct{})
	q := NewRunQueue(5, 1, ExecutorFunc(func(_ context.Context, _ *RunJob) error {
		<-block
		return nil
	}))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)
	defer close(block)

	require.NoError(t, q.Enqueue(&RunJob{ID: "stuck", CreatedAt: time.Now()}))
	waitFor(t, func() bool {
		_, active := q.JobSnapshot("stuck")
		return active
	})

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer stopCancel()
	start := time.Now()
	q.Stop(stopCtx)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestQueueStopCancelsActiveJob(t *testing.T) {
	var canceled atomic.Bool
	q := NewRunQueue(5, 1, ExecutorFunc(func(ctx context.Context, _ *RunJob) error {
		<-ctx.Done()
		canceled.Store(true)
		return ctx.Err()
	}))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)

	require.NoError(t, q.Enqueue(&RunJob{ID: "long-run", CreatedAt: time.Now()}))
	waitFor(t, func() bool {
		_, active := q.JobSnapshot("long-run")
		return active
	})

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	q.Stop(stopCtx)
	assert.True(t, canceled.Load())
}

func TestNewRunQueueRequiresExecutor(t *testing.T) {
	assert.Panics(t, func() { NewRunQueue(1, 1, nil) })
}
