package daemon

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"git.home.luguber.info/inful/docpages/internal/logfields"
	"git.home.luguber.info/inful/docpages/internal/metrics"
	"git.home.luguber.info/inful/docpages/internal/trigger"
)

// RunStatus is the lifecycle state of a queued run.
type RunStatus string

const (
	RunStatusQueued    RunStatus = "queued"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// RunJob is one queued publication run.
type RunJob struct {
	ID          string        `json:"id"`
	Trigger     trigger.Kind  `json:"trigger"`
	Actor       string        `json:"actor"`
	Status      RunStatus     `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	StartedAt   *time.Time    `json:"started_at,omitempty"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	Duration    time.Duration `json:"duration,omitempty"`
	Error       string        `json:"error,omitempty"`

	cancel context.CancelFunc
}

// Executor runs one job to completion.
type Executor interface {
	Execute(ctx context.Context, job *RunJob) error
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, job *RunJob) error

func (f ExecutorFunc) Execute(ctx context.Context, job *RunJob) error { return f(ctx, job) }

// RunQueue serializes publication runs through a bounded queue. The default
// single worker matches the one-job-per-repository semantics; overlapping
// runs are possible only with more workers, and then last push wins.
type RunQueue struct {
	jobs        chan *RunJob
	workers     int
	maxSize     int
	mu          sync.RWMutex
	active      map[string]*RunJob
	history     []*RunJob
	historySize int
	stopChan    chan struct{}
	wg          sync.WaitGroup
	executor    Executor
	recorder    metrics.Recorder
}

// NewRunQueue creates a queue with the given capacity and worker count.
func NewRunQueue(maxSize, workers int, executor Executor) *RunQueue {
	if maxSize <= 0 {
		maxSize = 100
	}
	if workers <= 0 {
		workers = 1
	}
	if executor == nil {
		panic("NewRunQueue: executor is required")
	}

	return &RunQueue{
		jobs:        make(chan *RunJob, maxSize),
		workers:     workers,
		maxSize:     maxSize,
		active:      make(map[string]*RunJob),
		history:     make([]*RunJob, 0),
		historySize: 50,
		stopChan:    make(chan struct{}),
		executor:    executor,
		recorder:    metrics.NoopRecorder{},
	}
}

// SetRecorder injects a metrics recorder (optional).
func (q *RunQueue) SetRecorder(r metrics.Recorder) {
	if r == nil {
		r = metrics.NoopRecorder{}
	}
	q.recorder = r
}

// Start begins processing jobs with the configured number of workers.
func (q *RunQueue) Start(ctx context.Context) {
	slog.Info("Starting run queue", "workers", q.workers, "max_size", q.maxSize)
	for i := range q.workers {
		q.wg.Add(1)
		go q.worker(ctx, fmt.Sprintf("worker-%d", i))
	}
}

// Stop cancels active jobs and waits for workers to drain, giving up
// when ctx expires so shutdown stays bounded.
func (q *RunQueue) Stop(ctx context.Context) {
	close(q.stopChan)

	q.mu.Lock()
	for _, job := range q.active {
		if job.cancel != nil {
			job.cancel()
		}
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		slog.Warn("Run queue shutdown timed out with jobs still running")
	}
}

// Length returns the current queue length.
func (q *RunQueue) Length() int {
	return len(q.jobs)
}

// Enqueue adds a run to the queue; a full queue rejects the job.
func (q *RunQueue) Enqueue(job *RunJob) error {
	if job == nil {
		return stdErrors.New("job cannot be nil")
	}
	if job.ID == "" {
		return stdErrors.New("job ID is required")
	}

	job.Status = RunStatusQueued

	select {
	case q.jobs <- job:
		q.recorder.SetQueueDepth(len(q.jobs))
		return nil
	default:
		return stdErrors.New("run queue is full")
	}
}

// JobSnapshot returns a copy of a job (active first, then history).
func (q *RunQueue) JobSnapshot(id string) (*RunJob, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if j, ok := q.active[id]; ok {
		cp := *j
		return &cp, true
	}
	for _, j := range q.history {
		if j.ID == id {
			cp := *j
			return &cp, true
		}
	}
	return nil, false
}

// History returns copies of completed jobs, newest last.
func (q *RunQueue) History() []*RunJob {
	q.mu.RLock()
	defer q.mu.RUnlock()

	out := make([]*RunJob, 0, len(q.history))
	for _, j := range q.history {
		cp := *j
		out = append(out, &cp)
	}
	return out
}

func (q *RunQueue) worker(ctx context.Context, workerID string) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.stopChan:
			return
		case job := <-q.jobs:
			if job != nil {
				q.recorder.SetQueueDepth(len(q.jobs))
				q.processJob(ctx, job, workerID)
			}
		}
	}
}

func (q *RunQueue) processJob(ctx context.Context, job *RunJob, workerID string) {
	jobCtx, cancel := context.WithCancel(ctx)
	job.cancel = cancel
	defer cancel()

	startTime := time.Now()
	q.mu.Lock()
	job.StartedAt = &startTime
	job.Status = RunStatusRunning
	q.active[job.ID] = job
	q.mu.Unlock()

	slog.Info("Processing run",
		logfields.RunID(job.ID),
		logfields.Worker(workerID),
		logfields.Trigger(string(job.Trigger)))

	err := q.executor.Execute(jobCtx, job)

	endTime := time.Now()
	q.mu.Lock()
	job.CompletedAt = &endTime
	job.Duration = endTime.Sub(startTime)
	delete(q.active, job.ID)
	if err != nil {
		job.Status = RunStatusFailed
		job.Error = err.Error()
	} else {
		job.Status = RunStatusCompleted
	}
	q.addToHistory(job)
	q.mu.Unlock()

	if err != nil {
		slog.Error("Run failed",
			logfields.RunID(job.ID),
			logfields.Worker(workerID),
			logfields.Error(err))
	}
}

func (q *RunQueue) addToHistory(job *RunJob) {
	q.history = append(q.history, job)
	if len(q.history) > q.historySize {
		copy(q.history, q.history[len(q.history)-q.historySize:])
		q.history = q.history[:q.historySize]
	}
}
