package pipeline

import (
	"path/filepath"

	"git.home.luguber.info/inful/docpages/internal/config"
	"git.home.luguber.info/inful/docpages/internal/trigger"
)

// RunPlan is an immutable execution plan for one publication run, derived
// from config plus the trigger that started it.
type RunPlan struct {
	Config       *config.Config
	RunID        string
	Trigger      trigger.Kind
	Actor        string
	WorkspaceDir string
	OutputDir    string // staging directory the generator writes into
	CheckLinks   bool
	DryRun       bool // stop before the push
}

// RunPlanBuilder constructs a RunPlan with resolved paths.
type RunPlanBuilder struct {
	plan RunPlan
}

// NewRunPlanBuilder creates a builder with base config.
func NewRunPlanBuilder(cfg *config.Config) *RunPlanBuilder {
	return &RunPlanBuilder{plan: RunPlan{Config: cfg, Trigger: trigger.KindDispatch, Actor: "unknown"}}
}

// WithRunID sets the run identifier.
func (b *RunPlanBuilder) WithRunID(id string) *RunPlanBuilder {
	b.plan.RunID = id
	return b
}

// WithTrigger records what started the run and who asked for it.
func (b *RunPlanBuilder) WithTrigger(kind trigger.Kind, actor string) *RunPlanBuilder {
	b.plan.Trigger = kind
	if actor != "" {
		b.plan.Actor = actor
	}
	return b
}

// WithWorkspace sets the workspace root and derives the staging directory
// from the generator's configured output_dir.
func (b *RunPlanBuilder) WithWorkspace(dir string) *RunPlanBuilder {
	b.plan.WorkspaceDir = dir
	out := b.plan.Config.Generator.OutputDir
	if out == "" {
		out = "build"
	}
	b.plan.OutputDir = filepath.Join(dir, filepath.FromSlash(out))
	return b
}

// WithLinkCheck enables the advisory pre-publish link check.
func (b *RunPlanBuilder) WithLinkCheck(enabled bool) *RunPlanBuilder {
	b.plan.CheckLinks = enabled
	return b
}

// WithDryRun stops the run before anything touches the remote.
func (b *RunPlanBuilder) WithDryRun(dry bool) *RunPlanBuilder {
	b.plan.DryRun = dry
	return b
}

// Build returns the constructed RunPlan.
func (b *RunPlanBuilder) Build() *RunPlan {
	return &b.plan
}
