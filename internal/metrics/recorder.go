package metrics

import "time"

// OutcomeLabel enumerates final run outcomes for counters.
type OutcomeLabel string

const (
	OutcomeSuccess  OutcomeLabel = "success"
	OutcomeFailed   OutcomeLabel = "failed"
	OutcomeSkipped  OutcomeLabel = "skipped"
	OutcomeCanceled OutcomeLabel = "canceled"
)

// Recorder defines observability hooks for run and stage metrics. All methods
// must be safe on the NoopRecorder so injection stays optional.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	ObserveRunDuration(d time.Duration)
	IncRunOutcome(outcome OutcomeLabel)
	IncTrigger(kind string)
	IncPublish(pushed bool)
	ObservePublishedFiles(n int)
	SetQueueDepth(n int)
	IncGitRetry(op string)
}

// NoopRecorder is a Recorder that does nothing (default when metrics are not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) ObserveRunDuration(time.Duration)           {}
func (NoopRecorder) IncRunOutcome(OutcomeLabel)                 {}
func (NoopRecorder) IncTrigger(string)                          {}
func (NoopRecorder) IncPublish(bool)                            {}
func (NoopRecorder) ObservePublishedFiles(int)                  {}
func (NoopRecorder) SetQueueDepth(int)                          {}
func (NoopRecorder) IncGitRetry(string)                         {}
