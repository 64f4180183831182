package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"git.home.luguber.info/inful/docpages/internal/config"
	"git.home.luguber.info/inful/docpages/internal/daemon"
	"git.home.luguber.info/inful/docpages/internal/gitops"
	"git.home.luguber.info/inful/docpages/internal/logfields"
	"git.home.luguber.info/inful/docpages/internal/pipeline"
	"git.home.luguber.info/inful/docpages/internal/trigger"
)

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"docpages.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Build struct {
		Workdir    string `short:"w" help:"Keep the checkout and generated site under this directory" default:"./docpages-build"`
		CheckLinks bool   `help:"Report internal links with missing targets"`
	} `cmd:"" help:"Clone the source and build the site without publishing"`

	Publish struct {
		Output string `short:"o" help:"Previously generated output directory" required:""`
		Actor  string `help:"Acting identity recorded in the publish commit" default:"manual"`
		Commit string `help:"Source commit hash recorded in the publish commit"`
	} `cmd:"" help:"Publish an already generated output directory to the hosting branch"`

	Run struct {
		Actor      string `help:"Acting identity recorded in the publish commit" default:"manual"`
		CheckLinks bool   `help:"Report internal links with missing targets"`
		DryRun     bool   `help:"Build but skip the publication step"`
	} `cmd:"" help:"Execute one full build-and-publish run"`

	Daemon struct{} `cmd:"" help:"Run continuously: webhook, schedule, and dispatch triggers"`

	Init struct {
		Force bool `help:"Overwrite existing configuration file"`
	} `cmd:"" help:"Write a starter configuration file"`
}

func main() {
	// Secrets like DOCPAGES_TOKEN may live in a local .env file.
	_ = godotenv.Load()

	ctx := kong.Parse(&CLI)

	logLevel := slog.LevelInfo
	if CLI.Verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})))

	var err error
	switch ctx.Command() {
	case "build":
		err = runBuild()
	case "publish":
		err = runPublish()
	case "run":
		err = runOnce()
	case "daemon":
		err = runDaemon()
	case "init":
		err = config.Init(CLI.Config, CLI.Init.Force)
	}
	if err != nil {
		slog.Error("Command failed", logfields.Error(err))
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// runBuild performs checkout and generation into a kept working
// directory so the result can be inspected or published later.
func runBuild() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	workdir, err := filepath.Abs(CLI.Build.Workdir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(workdir, 0o755); err != nil {
		return fmt.Errorf("create working directory: %w", err)
	}

	plan := pipeline.NewRunPlanBuilder(cfg).
		WithRunID(uuid.NewString()).
		WithTrigger(trigger.KindDispatch, "manual").
		WithWorkspace(workdir).
		WithLinkCheck(CLI.Build.CheckLinks).
		WithDryRun(true).
		Build()

	runner := pipeline.NewRunner()
	if _, err := runner.Run(context.Background(), plan); err != nil {
		return err
	}
	slog.Info("Site generated", logfields.Path(plan.OutputDir))
	return nil
}

// runPublish pushes a previously generated output directory.
func runPublish() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	output, err := filepath.Abs(CLI.Publish.Output)
	if err != nil {
		return err
	}
	if _, err := os.Stat(output); err != nil {
		return fmt.Errorf("output directory: %w", err)
	}

	client := gitops.NewClient(filepath.Dir(output)).WithBuildConfig(&cfg.Build)
	result, err := client.Publish(context.Background(), cfg.Source.URL, cfg.Publish, gitops.PublishRequest{
		OutputDir:    output,
		Actor:        CLI.Publish.Actor,
		SourceCommit: CLI.Publish.Commit,
	})
	if err != nil {
		return err
	}
	if !result.Pushed {
		slog.Info("Hosting branch already up to date")
		return nil
	}
	slog.Info("Published",
		logfields.Branch(cfg.Publish.Branch),
		logfields.Commit(result.Commit),
		"files", result.Files)
	return nil
}

// runOnce executes one full pipeline run with an ephemeral workspace.
func runOnce() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	plan := pipeline.NewRunPlanBuilder(cfg).
		WithRunID(uuid.NewString()).
		WithTrigger(trigger.KindDispatch, CLI.Run.Actor).
		WithLinkCheck(CLI.Run.CheckLinks).
		WithDryRun(CLI.Run.DryRun).
		Build()

	runner := pipeline.NewRunner()
	result, err := runner.Run(context.Background(), plan)
	if err != nil {
		return err
	}
	if result.Publish.Pushed {
		slog.Info("Run published",
			logfields.RunID(result.RunID),
			logfields.Commit(result.Publish.Commit),
			"files", result.Publish.Files)
	} else {
		slog.Info("Run finished without publishing", logfields.RunID(result.RunID))
	}
	return nil
}

func runDaemon() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	d, err := daemon.New(CLI.Config, cfg)
	if err != nil {
		return fmt.Errorf("failed to create daemon: %w", err)
	}

	slog.Info("Daemon running, press Ctrl-C to stop")
	return d.Start(ctx)
}
