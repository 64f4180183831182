package pipeline

import (
	"git.home.luguber.info/inful/docpages/internal/builder"
	"git.home.luguber.info/inful/docpages/internal/eventstore"
	"git.home.luguber.info/inful/docpages/internal/gitops"
	"git.home.luguber.info/inful/docpages/internal/linkcheck"
)

// Event is a domain event published by stages and consumed by handlers.
type Event interface{ Name() string }

// Event names used in the run pipeline. They double as the journal's
// event types, so the eventstore owns the vocabulary.
const (
	EventCheckoutRequested = eventstore.EventCheckoutRequested
	EventBuildRequested    = eventstore.EventBuildRequested
	EventPublishRequested  = eventstore.EventPublishRequested
	EventPublishSkipped    = eventstore.EventPublishSkipped
	EventRunCompleted      = eventstore.EventRunCompleted
)

// CheckoutRequested starts a run: clone the source repository.
type CheckoutRequested struct{ Plan *RunPlan }

func (CheckoutRequested) Name() string       { return EventCheckoutRequested }
func (e CheckoutRequested) GetRunID() string { return e.Plan.RunID }

// BuildRequested carries the checked-out source to the build stage.
type BuildRequested struct {
	Plan     *RunPlan
	Checkout gitops.CloneResult
}

func (BuildRequested) Name() string       { return EventBuildRequested }
func (e BuildRequested) GetRunID() string { return e.Plan.RunID }

// PublishRequested carries the generated output to the publication stage.
type PublishRequested struct {
	Plan      *RunPlan
	Checkout  gitops.CloneResult
	Build     *builder.BuildResult
	LinkCheck linkcheck.Report
}

func (PublishRequested) Name() string       { return EventPublishRequested }
func (e PublishRequested) GetRunID() string { return e.Plan.RunID }

// PublishSkipped records a dry run ending without publication.
type PublishSkipped struct{ Plan *RunPlan }

func (PublishSkipped) Name() string       { return EventPublishSkipped }
func (e PublishSkipped) GetRunID() string { return e.Plan.RunID }

// RunCompleted closes a successful run.
type RunCompleted struct {
	Plan    *RunPlan
	Publish gitops.PublishResult
}

func (RunCompleted) Name() string       { return EventRunCompleted }
func (e RunCompleted) GetRunID() string { return e.Plan.RunID }
