package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/docpages/internal/builder"
	"git.home.luguber.info/inful/docpages/internal/gitops"
	"git.home.luguber.info/inful/docpages/internal/linkcheck"
	"git.home.luguber.info/inful/docpages/internal/logfields"
	"git.home.luguber.info/inful/docpages/internal/metrics"
)

// NewCheckoutHandler clones the source repository and emits BuildRequested.
func NewCheckoutHandler(bus *Bus, rec metrics.Recorder) Handler {
	return func(ctx context.Context, e Event) error {
		cr, ok := e.(CheckoutRequested)
		if !ok || cr.Plan == nil || cr.Plan.Config == nil {
			return fmt.Errorf("invalid checkout event: %#v", e)
		}
		plan := cr.Plan
		start := time.Now()

		client := gitops.NewClient(plan.WorkspaceDir).WithBuildConfig(&plan.Config.Build).WithRecorder(rec)
		if err := client.EnsureWorkspace(); err != nil {
			return fmt.Errorf("prepare workspace: %w", err)
		}

		slog.Info("Checking out source",
			logfields.RunID(plan.RunID),
			logfields.URL(plan.Config.Source.URL),
			logfields.Branch(plan.Config.Source.Branch))
		res, err := client.CloneSource(plan.Config.Source)
		if err != nil {
			return fmt.Errorf("checkout source: %w", err)
		}
		rec.ObserveStageDuration("checkout", time.Since(start))

		slog.Info("Checked out source",
			logfields.RunID(plan.RunID),
			logfields.Commit(gitops.ShortHash(res.Commit)),
			logfields.Path(res.Path))
		return bus.Publish(ctx, BuildRequested{Plan: plan, Checkout: res})
	}
}

// NewBuildHandler runs the configured generator and emits PublishRequested.
// A build failure aborts the run here; no publication is attempted.
func NewBuildHandler(bus *Bus, rec metrics.Recorder) Handler {
	return func(ctx context.Context, e Event) error {
		br, ok := e.(BuildRequested)
		if !ok || br.Plan == nil || br.Plan.Config == nil {
			return fmt.Errorf("invalid build event: %#v", e)
		}
		plan := br.Plan
		start := time.Now()

		b, err := builder.New(plan.Config.Generator, plan.Config.Build, plan.Config.Source.WatchPath)
		if err != nil {
			return err
		}

		slog.Info("Building site",
			logfields.RunID(plan.RunID),
			logfields.Stage(b.Name()),
			logfields.Commit(gitops.ShortHash(br.Checkout.Commit)))
		res, err := b.Build(ctx, builder.BuildRequest{
			SourceDir: br.Checkout.Path,
			OutputDir: plan.OutputDir,
			Commit:    br.Checkout.Commit,
		})
		if err != nil {
			return fmt.Errorf("build: %w", err)
		}
		rec.ObserveStageDuration("build", time.Since(start))

		var report linkcheck.Report
		if plan.CheckLinks {
			report, err = linkcheck.Check(res.OutputDir)
			if err != nil {
				slog.Warn("Link check failed", logfields.RunID(plan.RunID), logfields.Error(err))
			} else if !report.Clean() {
				slog.Warn("Link check found broken internal links",
					logfields.RunID(plan.RunID),
					slog.Int("broken", len(report.Findings)))
			}
		}

		slog.Info("Built site",
			logfields.RunID(plan.RunID),
			slog.Int("files", res.Files),
			logfields.DurationMS(float64(res.Duration.Milliseconds())))
		return bus.Publish(ctx, PublishRequested{Plan: plan, Checkout: br.Checkout, Build: res, LinkCheck: report})
	}
}

// NewPublishHandler pushes the generated output to the hosting branch and
// emits RunCompleted.
func NewPublishHandler(bus *Bus, rec metrics.Recorder) Handler {
	return func(ctx context.Context, e Event) error {
		pr, ok := e.(PublishRequested)
		if !ok || pr.Plan == nil || pr.Plan.Config == nil || pr.Build == nil {
			return fmt.Errorf("invalid publish event: %#v", e)
		}
		plan := pr.Plan
		start := time.Now()

		if plan.DryRun {
			slog.Info("Dry run, skipping publication", logfields.RunID(plan.RunID))
			if err := bus.Publish(ctx, PublishSkipped{Plan: plan}); err != nil {
				return err
			}
			return bus.Publish(ctx, RunCompleted{Plan: plan})
		}

		client := gitops.NewClient(plan.WorkspaceDir).WithBuildConfig(&plan.Config.Build).WithRecorder(rec)
		res, err := client.Publish(ctx, plan.Config.Source.URL, plan.Config.Publish, gitops.PublishRequest{
			OutputDir:    pr.Build.OutputDir,
			Actor:        plan.Actor,
			SourceCommit: pr.Checkout.Commit,
		})
		if err != nil {
			return fmt.Errorf("publish: %w", err)
		}
		rec.ObserveStageDuration("publish", time.Since(start))
		rec.IncPublish(res.Pushed)
		rec.ObservePublishedFiles(res.Files)

		slog.Info("Published site",
			logfields.RunID(plan.RunID),
			logfields.Branch(plan.Config.Publish.Branch),
			logfields.Commit(gitops.ShortHash(res.Commit)),
			slog.Int("files", res.Files))
		return bus.Publish(ctx, RunCompleted{Plan: plan, Publish: res})
	}
}
