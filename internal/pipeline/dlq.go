package pipeline

import (
	"sync"
	"time"
)

// maxFailedEvents bounds DLQ growth in long-lived daemons; oldest
// entries are dropped first.
const maxFailedEvents = 256

// FailedEvent is a stage event that exhausted its attempts, kept for
// inspection.
type FailedEvent struct {
	Event     Event
	Error     error
	Timestamp time.Time
}

// RunID returns the run the failed event belonged to, or "unknown".
func (fe FailedEvent) RunID() string {
	if re, ok := fe.Event.(interface{ GetRunID() string }); ok {
		return re.GetRunID()
	}
	return "unknown"
}

// DeadLetterQueue collects stage events whose handlers failed.
type DeadLetterQueue struct {
	mu     sync.RWMutex
	failed []FailedEvent
}

func NewDeadLetterQueue() *DeadLetterQueue {
	return &DeadLetterQueue{}
}

// Enqueue records a failed event, evicting the oldest past the cap.
func (dlq *DeadLetterQueue) Enqueue(fe FailedEvent) {
	dlq.mu.Lock()
	dlq.failed = append(dlq.failed, fe)
	if len(dlq.failed) > maxFailedEvents {
		dlq.failed = dlq.failed[len(dlq.failed)-maxFailedEvents:]
	}
	dlq.mu.Unlock()
}

// GetAll returns a copy of all failed events, oldest first.
func (dlq *DeadLetterQueue) GetAll() []FailedEvent {
	dlq.mu.RLock()
	defer dlq.mu.RUnlock()
	out := make([]FailedEvent, len(dlq.failed))
	copy(out, dlq.failed)
	return out
}

// ByRun returns the failed events recorded for one run.
func (dlq *DeadLetterQueue) ByRun(runID string) []FailedEvent {
	dlq.mu.RLock()
	defer dlq.mu.RUnlock()
	var out []FailedEvent
	for _, fe := range dlq.failed {
		if fe.RunID() == runID {
			out = append(out, fe)
		}
	}
	return out
}

// Clear drops all recorded failures.
func (dlq *DeadLetterQueue) Clear() {
	dlq.mu.Lock()
	dlq.failed = nil
	dlq.mu.Unlock()
}

// Count returns the number of recorded failures.
func (dlq *DeadLetterQueue) Count() int {
	dlq.mu.RLock()
	defer dlq.mu.RUnlock()
	return len(dlq.failed)
}
