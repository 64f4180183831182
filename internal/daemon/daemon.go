// Package daemon runs docpages in continuous mode: a webhook server and
// optional schedule feed publication runs through a bounded queue, with
// config hot-reload, a run journal, and Prometheus metrics.
package daemon

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/docpages/internal/config"
	"git.home.luguber.info/inful/docpages/internal/eventstore"
	ferrors "git.home.luguber.info/inful/docpages/internal/foundation/errors"
	"git.home.luguber.info/inful/docpages/internal/logfields"
	"git.home.luguber.info/inful/docpages/internal/metrics"
	"git.home.luguber.info/inful/docpages/internal/pipeline"
	"git.home.luguber.info/inful/docpages/internal/trigger"
)

// Daemon owns the long-running pieces of continuous mode.
type Daemon struct {
	configPath string

	mu  sync.RWMutex
	cfg *config.Config

	runner    *pipeline.Runner
	queue     *RunQueue
	scheduler *Scheduler
	webhook   *WebhookServer
	watcher   *ConfigWatcher
	dispatch  *DispatchListener
	store     eventstore.Store
	recorder  metrics.Recorder

	metricsServer *http.Server
}

// New assembles a daemon from a validated config. The config must carry
// a daemon section.
func New(configPath string, cfg *config.Config) (*Daemon, error) {
	if cfg.Daemon == nil {
		return nil, ferrors.ConfigError("config has no daemon section").
			WithContext("path", configPath).
			Build()
	}

	d := &Daemon{
		configPath: configPath,
		cfg:        cfg,
		recorder:   metrics.NoopRecorder{},
	}
	dc := cfg.Daemon

	var runnerOpts []pipeline.RunnerOption
	if dc.MetricsAddr != "" {
		registry := prom.NewRegistry()
		d.recorder = metrics.NewPrometheusRecorder(registry)
		runnerOpts = append(runnerOpts, pipeline.WithRecorder(d.recorder))
		d.metricsServer = &http.Server{
			Addr:              dc.MetricsAddr,
			Handler:           metrics.HTTPHandler(registry),
			ReadHeaderTimeout: 10 * time.Second,
		}
	}
	if dc.EventStorePath != "" {
		store, err := eventstore.NewSQLiteStore(dc.EventStorePath)
		if err != nil {
			return nil, err
		}
		d.store = store
		runnerOpts = append(runnerOpts, pipeline.WithEventStore(store))
	}
	d.runner = pipeline.NewRunner(runnerOpts...)

	d.queue = NewRunQueue(dc.QueueSize, dc.Workers, ExecutorFunc(d.executeJob))
	d.queue.SetRecorder(d.recorder)

	evaluator := trigger.NewEvaluator(cfg.Source.Branch, cfg.Source.WatchPath)
	d.webhook = NewWebhookServer(dc.WebhookAddr, dc.WebhookSecret, evaluator, d.queue)
	if d.store != nil {
		d.webhook.SetJournal(d.store)
	}

	if dc.Schedule != "" {
		interval, err := time.ParseDuration(dc.Schedule)
		if err != nil {
			return nil, ferrors.ConfigError("invalid daemon schedule").
				WithContext("schedule", dc.Schedule).
				WithCause(err).
				Build()
		}
		sched, err := NewScheduler()
		if err != nil {
			return nil, err
		}
		sched.SetEnqueuer(d.queue)
		if _, err := sched.SchedulePeriodicRun(interval); err != nil {
			return nil, err
		}
		d.scheduler = sched
	}

	if dc.NATS != nil && dc.NATS.URL != "" {
		dl, err := NewDispatchListener(dc.NATS, d.queue)
		if err != nil {
			return nil, err
		}
		d.dispatch = dl
	}

	watcher, err := NewConfigWatcher(configPath, d.ReloadConfig)
	if err != nil {
		return nil, err
	}
	d.watcher = watcher

	return d, nil
}

// Start brings all components up and blocks until ctx is cancelled.
func (d *Daemon) Start(ctx context.Context) error {
	slog.Info("Starting daemon", logfields.Repository(d.config().Source.URL))

	d.queue.Start(ctx)
	d.watcher.Start()
	if d.scheduler != nil {
		d.scheduler.Start(ctx)
	}
	if d.dispatch != nil {
		if err := d.dispatch.Start(); err != nil {
			return err
		}
	}
	if d.metricsServer != nil {
		go func() {
			slog.Info("Starting metrics server", "addr", d.metricsServer.Addr)
			if err := d.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("Metrics server failed", logfields.Error(err))
			}
		}()
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- d.webhook.Start()
	}()

	select {
	case <-ctx.Done():
		return d.Stop()
	case err := <-errChan:
		if err != nil {
			stopErr := d.Stop()
			if stopErr != nil {
				slog.Warn("Shutdown after server failure reported errors", logfields.Error(stopErr))
			}
			return err
		}
		return d.Stop()
	}
}

// Stop shuts components down in reverse dependency order.
func (d *Daemon) Stop() error {
	slog.Info("Stopping daemon")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var firstErr error
	if err := d.webhook.Stop(shutdownCtx); err != nil {
		firstErr = err
	}
	if d.metricsServer != nil {
		if err := d.metricsServer.Shutdown(shutdownCtx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if d.dispatch != nil {
		d.dispatch.Stop()
	}
	if d.scheduler != nil {
		if err := d.scheduler.Stop(shutdownCtx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	d.watcher.Stop()
	d.queue.Stop(shutdownCtx)
	if d.store != nil {
		if err := d.store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// ReloadConfig swaps in a new validated config. Queue sizing and listen
// addresses are fixed for the process lifetime; run parameters (source,
// generator, publish, build) take effect on the next run, and push
// filtering follows the new watched branch and path immediately.
func (d *Daemon) ReloadConfig(cfg *config.Config) {
	d.mu.Lock()
	d.cfg = cfg
	d.mu.Unlock()
	d.webhook.SetEvaluator(trigger.NewEvaluator(cfg.Source.Branch, cfg.Source.WatchPath))
	slog.Info("Daemon config updated")
}

func (d *Daemon) config() *config.Config {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cfg
}

// executeJob adapts a queued job into a pipeline run. The job context
// carries queue shutdown and per-job cancellation into the stages.
func (d *Daemon) executeJob(ctx context.Context, job *RunJob) error {
	cfg := d.config()
	plan := pipeline.NewRunPlanBuilder(cfg).
		WithRunID(job.ID).
		WithTrigger(job.Trigger, job.Actor).
		Build()

	result, err := d.runner.Run(ctx, plan)
	d.notify(job, result, err)
	return err
}

func (d *Daemon) notify(job *RunJob, result *pipeline.RunResult, runErr error) {
	if d.dispatch == nil {
		return
	}
	notice := RunNotice{
		RunID:      job.ID,
		Trigger:    string(job.Trigger),
		Actor:      job.Actor,
		Status:     "success",
		FinishedAt: time.Now(),
	}
	if runErr != nil {
		notice.Status = "failed"
		notice.Error = runErr.Error()
	}
	if result != nil {
		notice.Duration = result.Duration.String()
	}
	d.dispatch.PublishResult(notice)
}
