package eventstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestAppendAndGetByRunID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "run-1", EventCheckoutRequested, []byte(`{"actor":"alice"}`), map[string]string{"trigger": "push"}))
	require.NoError(t, store.Append(ctx, "run-1", EventBuildRequested, []byte(`{}`), nil))
	require.NoError(t, store.Append(ctx, "run-2", EventCheckoutRequested, []byte(`{}`), nil))

	events, err := store.GetByRunID(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, EventCheckoutRequested, events[0].Type())
	assert.Equal(t, EventBuildRequested, events[1].Type())
	assert.Equal(t, "run-1", events[0].RunID())
	assert.Equal(t, "push", events[0].Metadata()["trigger"])
	assert.JSONEq(t, `{"actor":"alice"}`, string(events[0].Payload()))
	assert.Less(t, events[0].ID(), events[1].ID())
}

func TestGetByRunIDUnknown(t *testing.T) {
	store := newTestStore(t)
	events, err := store.GetByRunID(context.Background(), "no-such-run")
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestGetRange(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Append(ctx, "run-1", EventCheckoutRequested, []byte(`{}`), nil))

	now := time.Now()
	events, err := store.GetRange(ctx, now.Add(-time.Minute), now.Add(time.Minute))
	require.NoError(t, err)
	assert.Len(t, events, 1)

	events, err = store.GetRange(ctx, now.Add(time.Hour), now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestRecentRuns(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "run-1", EventCheckoutRequested, []byte(`{}`), nil))
	require.NoError(t, store.Append(ctx, "run-1", EventRunCompleted, []byte(`{}`), nil))
	require.NoError(t, store.Append(ctx, "run-2", EventCheckoutRequested, []byte(`{}`), nil))
	require.NoError(t, store.Append(ctx, "run-2", EventPublishSkipped, []byte(`{}`), nil))

	summaries, err := store.RecentRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	// newest run first
	assert.Equal(t, "run-2", summaries[0].RunID)
	assert.Equal(t, EventPublishSkipped, summaries[0].LastEvent)
	assert.Equal(t, 2, summaries[0].Events)
	assert.Equal(t, "run-1", summaries[1].RunID)
	assert.Equal(t, EventRunCompleted, summaries[1].LastEvent)
}

func TestPersistentJournal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	ctx := context.Background()

	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Append(ctx, "run-1", EventCheckoutRequested, []byte(`{}`), nil))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	events, err := reopened.GetByRunID(ctx, "run-1")
	require.NoError(t, err)
	assert.Len(t, events, 1)
}
