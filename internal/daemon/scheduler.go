package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"

	"git.home.luguber.info/inful/docpages/internal/logfields"
	"git.home.luguber.info/inful/docpages/internal/trigger"
)

// Scheduler wraps gocron for periodic rebuild runs.
type Scheduler struct {
	scheduler gocron.Scheduler
	enqueuer  interface {
		Enqueue(job *RunJob) error
	}
}

// NewScheduler creates a new scheduler instance.
func NewScheduler() (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	return &Scheduler{scheduler: s}, nil
}

// SetEnqueuer injects the run queue.
func (s *Scheduler) SetEnqueuer(e interface{ Enqueue(job *RunJob) error }) { s.enqueuer = e }

// Start begins the scheduler.
func (s *Scheduler) Start(_ context.Context) {
	slog.Info("Starting scheduler")
	s.scheduler.Start()
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop(_ context.Context) error {
	slog.Info("Stopping scheduler")
	return s.scheduler.Shutdown()
}

// SchedulePeriodicRun schedules a rebuild every interval.
// Returns the job ID for later management.
func (s *Scheduler) SchedulePeriodicRun(interval time.Duration) (string, error) {
	job, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(s.executeRun),
		gocron.WithName("scheduled-rebuild"),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create periodic run job: %w", err)
	}

	return job.ID().String(), nil
}

// executeRun is called by gocron to enqueue a scheduled run.
func (s *Scheduler) executeRun() {
	if s.enqueuer == nil {
		slog.Error("Scheduler enqueuer not set")
		return
	}

	job := &RunJob{
		ID:        uuid.NewString(),
		Trigger:   trigger.KindScheduled,
		Actor:     "scheduler",
		CreatedAt: time.Now(),
	}
	slog.Info("Enqueueing scheduled run", logfields.RunID(job.ID))

	if err := s.enqueuer.Enqueue(job); err != nil {
		slog.Error("Failed to enqueue scheduled run",
			logfields.RunID(job.ID),
			logfields.Error(err))
	}
}
