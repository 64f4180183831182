package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"git.home.luguber.info/inful/docpages/internal/logfields"
)

// EventStore is the subset of eventstore.Store the bus needs, kept local to
// avoid a package cycle.
type EventStore interface {
	Append(ctx context.Context, runID, eventType string, payload []byte, metadata map[string]string) error
}

// Handler processes an Event; return error to signal failure. The
// context carries run cancellation from the daemon queue.
type Handler func(context.Context, Event) error

// Bus is a simple synchronous pub/sub event bus.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string][]Handler
	eventStore  EventStore // optional journal
}

func NewBus() *Bus { return &Bus{subscribers: map[string][]Handler{}} }

// NewBusWithEventStore creates a bus that journals every published event.
func NewBusWithEventStore(store EventStore) *Bus {
	return &Bus{
		subscribers: map[string][]Handler{},
		eventStore:  store,
	}
}

// Subscribe registers a handler for a given event name.
func (b *Bus) Subscribe(event string, h Handler) {
	if h == nil {
		return
	}
	b.mu.Lock()
	b.subscribers[event] = append(b.subscribers[event], h)
	b.mu.Unlock()
}

// Publish delivers an event to all handlers synchronously. A configured
// journal records the event first; journal failures are logged, never fatal.
func (b *Bus) Publish(ctx context.Context, e Event) error {
	if b.eventStore != nil {
		runID := "unknown"
		if re, ok := e.(interface{ GetRunID() string }); ok {
			runID = re.GetRunID()
		}
		payload, err := json.Marshal(e)
		if err != nil {
			payload = []byte("{}")
		}
		if err := b.eventStore.Append(ctx, runID, e.Name(), payload, nil); err != nil {
			slog.Warn("Failed to journal event",
				logfields.RunID(runID),
				slog.String("event", e.Name()),
				logfields.Error(err))
		}
	}

	b.mu.RLock()
	hs := append([]Handler(nil), b.subscribers[e.Name()]...)
	b.mu.RUnlock()
	for _, h := range hs {
		if err := h(ctx, e); err != nil {
			return err
		}
	}
	return nil
}
