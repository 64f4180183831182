package daemon

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docpages/internal/trigger"
)

type captureEnqueuer struct {
	mu   sync.Mutex
	jobs []*RunJob
}

func (c *captureEnqueuer) Enqueue(job *RunJob) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.jobs = append(c.jobs, job)
	return nil
}

func (c *captureEnqueuer) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.jobs)
}

func TestSchedulerEnqueuesPeriodicRuns(t *testing.T) {
	sched, err := NewScheduler()
	require.NoError(t, err)

	capture := &captureEnqueuer{}
	sched.SetEnqueuer(capture)

	jobID, err := sched.SchedulePeriodicRun(50 * time.Millisecond)
	require.NoError(t, err)
	assert.NotEmpty(t, jobID)

	ctx := context.Background()
	sched.Start(ctx)
	defer func() { require.NoError(t, sched.Stop(ctx)) }()

	waitFor(t, func() bool { return capture.count() >= 2 })

	capture.mu.Lock()
	defer capture.mu.Unlock()
	job := capture.jobs[0]
	assert.Equal(t, trigger.KindScheduled, job.Trigger)
	assert.Equal(t, "scheduler", job.Actor)
	assert.NotEmpty(t, job.ID)
}

func TestSchedulerWithoutEnqueuerDoesNotPanic(t *testing.T) {
	sched, err := NewScheduler()
	require.NoError(t, err)

	assert.NotPanics(t, func() { sched.executeRun() })
}
