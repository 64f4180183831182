// Package pipeline orchestrates one publication run as a chain of events:
// CheckoutRequested, BuildRequested, PublishRequested, RunCompleted. Handlers
// are wired on a synchronous bus; a failure anywhere stops the chain, so a
// broken build can never reach the publish stage.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"git.home.luguber.info/inful/docpages/internal/gitops"
	"git.home.luguber.info/inful/docpages/internal/logfields"
	"git.home.luguber.info/inful/docpages/internal/metrics"
	"git.home.luguber.info/inful/docpages/internal/workspace"
)

// RunResult summarizes one finished run.
type RunResult struct {
	RunID    string
	Publish  gitops.PublishResult
	Duration time.Duration
}

// Runner wires the stage handlers and executes runs. Safe for sequential
// reuse; the daemon queue serializes runs through one Runner.
type Runner struct {
	bus      *Bus
	recorder metrics.Recorder
	dlq      *DeadLetterQueue
	policy   RetryPolicy

	mu        sync.Mutex
	completed map[string]gitops.PublishResult
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithEventStore journals every pipeline event.
func WithEventStore(store EventStore) RunnerOption {
	return func(r *Runner) { r.bus = NewBusWithEventStore(store) }
}

// WithRecorder injects a metrics recorder.
func WithRecorder(rec metrics.Recorder) RunnerOption {
	return func(r *Runner) { r.recorder = rec }
}

// WithRetryPolicy overrides the stage retry policy. The default makes a
// single attempt per stage, so failed events only land in the DLQ; remote
// git operations retry separately per build config.
func WithRetryPolicy(policy RetryPolicy) RunnerOption {
	return func(r *Runner) { r.policy = policy }
}

// NewRunner builds a Runner with the standard handler chain subscribed.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		bus:       NewBus(),
		recorder:  metrics.NoopRecorder{},
		dlq:       NewDeadLetterQueue(),
		policy:    CaptureOnlyPolicy(),
		completed: map[string]gitops.PublishResult{},
	}
	for _, opt := range opts {
		opt(r)
	}

	r.bus.Subscribe(EventCheckoutRequested, WithRetry(NewCheckoutHandler(r.bus, r.recorder), r.policy, r.dlq))
	r.bus.Subscribe(EventBuildRequested, WithRetry(NewBuildHandler(r.bus, r.recorder), r.policy, r.dlq))
	r.bus.Subscribe(EventPublishRequested, WithRetry(NewPublishHandler(r.bus, r.recorder), r.policy, r.dlq))
	r.bus.Subscribe(EventRunCompleted, func(_ context.Context, e Event) error {
		rc, ok := e.(RunCompleted)
		if !ok || rc.Plan == nil {
			return nil
		}
		r.mu.Lock()
		r.completed[rc.Plan.RunID] = rc.Publish
		r.mu.Unlock()
		return nil
	})
	return r
}

// Bus exposes the underlying bus for additional subscribers (daemon notify).
func (r *Runner) Bus() *Bus { return r.bus }

// DLQ exposes failed events for inspection.
func (r *Runner) DLQ() *DeadLetterQueue { return r.dlq }

// Run executes a full publication run for the plan. When the plan carries no
// workspace an ephemeral one is created and removed afterwards.
func (r *Runner) Run(ctx context.Context, plan *RunPlan) (*RunResult, error) {
	if plan == nil || plan.Config == nil {
		return nil, fmt.Errorf("nil run plan")
	}
	start := time.Now()

	if plan.WorkspaceDir == "" {
		mgr := workspace.NewManager("")
		if err := mgr.Create(); err != nil {
			return nil, fmt.Errorf("create workspace: %w", err)
		}
		defer func() {
			if err := mgr.Cleanup(); err != nil {
				slog.Warn("Workspace cleanup failed", logfields.RunID(plan.RunID), logfields.Error(err))
			}
		}()
		// re-derive the staging dir now that the workspace exists
		plan = NewRunPlanBuilder(plan.Config).
			WithRunID(plan.RunID).
			WithTrigger(plan.Trigger, plan.Actor).
			WithWorkspace(mgr.GetPath()).
			WithLinkCheck(plan.CheckLinks).
			WithDryRun(plan.DryRun).
			Build()
	}

	slog.Info("Starting run",
		logfields.RunID(plan.RunID),
		logfields.Trigger(string(plan.Trigger)),
		logfields.Actor(plan.Actor))
	r.recorder.IncTrigger(string(plan.Trigger))

	if err := r.bus.Publish(ctx, CheckoutRequested{Plan: plan}); err != nil {
		r.recorder.IncRunOutcome(metrics.OutcomeFailed)
		r.recorder.ObserveRunDuration(time.Since(start))
		slog.Error("Run failed",
			logfields.RunID(plan.RunID),
			logfields.RunStatus("failed"),
			logfields.Error(err))
		return nil, err
	}

	r.mu.Lock()
	publish := r.completed[plan.RunID]
	delete(r.completed, plan.RunID)
	r.mu.Unlock()

	result := &RunResult{RunID: plan.RunID, Publish: publish, Duration: time.Since(start)}
	r.recorder.IncRunOutcome(metrics.OutcomeSuccess)
	r.recorder.ObserveRunDuration(result.Duration)
	slog.Info("Run completed",
		logfields.RunID(plan.RunID),
		logfields.RunStatus("success"),
		logfields.DurationMS(float64(result.Duration.Milliseconds())))
	return result, nil
}
