package trigger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPushOutsideWatchedPathDoesNotFire(t *testing.T) {
	e := NewEvaluator("main", "website")

	d := e.EvaluatePush(PushEvent{
		Actor:        "alice",
		Branch:       "main",
		Commit:       "abc1234",
		ChangedPaths: []string{"internal/server/handler.go", "README.md"},
	})
	assert.False(t, d.Fire)
	assert.Equal(t, KindPush, d.Kind)
}

func TestPushInsideWatchedPathFires(t *testing.T) {
	e := NewEvaluator("main", "website")

	d := e.EvaluatePush(PushEvent{
		Actor:        "alice",
		Branch:       "main",
		Commit:       "abc1234",
		ChangedPaths: []string{"README.md", "website/pages/index.md"},
	})
	assert.True(t, d.Fire)
	assert.Contains(t, d.Reason, "website/pages/index.md")
}

func TestPushOnOtherBranchDoesNotFire(t *testing.T) {
	e := NewEvaluator("main", "website")

	d := e.EvaluatePush(PushEvent{
		Branch:       "feature/docs",
		ChangedPaths: []string{"website/index.md"},
	})
	assert.False(t, d.Fire)
}

func TestEmptyChangeSetDoesNotFire(t *testing.T) {
	e := NewEvaluator("main", "website")
	d := e.EvaluatePush(PushEvent{Branch: "main"})
	assert.False(t, d.Fire)
}

func TestDispatchAlwaysFires(t *testing.T) {
	e := NewEvaluator("main", "website")

	d := e.EvaluateDispatch(DispatchEvent{Actor: "bob"})
	assert.True(t, d.Fire)
	assert.Equal(t, KindDispatch, d.Kind)
	assert.Contains(t, d.Reason, "bob")

	// no actor still fires
	d = e.EvaluateDispatch(DispatchEvent{})
	assert.True(t, d.Fire)
}

func TestPathWatched(t *testing.T) {
	e := NewEvaluator("main", "website")

	tests := []struct {
		path string
		want bool
	}{
		{"website/index.md", true},
		{"website", true},
		{"/website/css/site.css", true},
		{"website-old/index.md", false},
		{"docs/website/index.md", false},
		{"", false},
		{".", false},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, e.PathWatched(tc.path), "path %q", tc.path)
	}
}

func TestEmptyWatchPathWatchesEverything(t *testing.T) {
	e := NewEvaluator("main", "")
	d := e.EvaluatePush(PushEvent{Branch: "main", ChangedPaths: []string{"anything.txt"}})
	assert.True(t, d.Fire)
}
