package eventstore

import (
	"context"
	"time"
)

// RunSummary is a condensed view of one run derived from its journal.
type RunSummary struct {
	RunID     string    `json:"run_id"`
	LastEvent string    `json:"last_event"`
	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Events    int       `json:"events"`
}

// Store is an append-only journal of run events.
type Store interface {
	// Append adds a new event to the journal.
	Append(ctx context.Context, runID, eventType string, payload []byte, metadata map[string]string) error

	// GetByRunID retrieves all events for a specific run in append order.
	GetByRunID(ctx context.Context, runID string) ([]Event, error)

	// GetRange retrieves events within a time range.
	GetRange(ctx context.Context, start, end time.Time) ([]Event, error)

	// RecentRuns summarizes the most recently touched runs, newest first.
	RecentRuns(ctx context.Context, limit int) ([]RunSummary, error)

	// Close closes the store and releases resources.
	Close() error
}
