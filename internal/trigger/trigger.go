// Package trigger decides whether an incoming event should start a run.
//
// The evaluator is a pure filter: a push fires only when it lands on the
// watched branch and touches the watched subdirectory; a manual dispatch
// always fires. No state is retained between evaluations.
package trigger

import (
	"fmt"
	"path"
	"strings"
	"time"
)

// Kind labels the event source of a run.
type Kind string

const (
	KindPush      Kind = "push"
	KindDispatch  Kind = "dispatch"
	KindScheduled Kind = "scheduled"
)

// PushEvent describes a push to the source repository.
type PushEvent struct {
	Actor        string
	Branch       string
	Commit       string
	ChangedPaths []string
	ReceivedAt   time.Time
}

// DispatchEvent describes an explicit manual invocation. It accepts no
// parameters beyond the acting identity.
type DispatchEvent struct {
	Actor      string
	ReceivedAt time.Time
}

// Decision is the evaluator's verdict for a single event.
type Decision struct {
	Fire   bool
	Kind   Kind
	Reason string
}

// Evaluator filters events against the watched branch and path prefix.
type Evaluator struct {
	branch    string
	watchPath string
}

// NewEvaluator creates an evaluator for the given watched branch and
// subdirectory prefix.
func NewEvaluator(branch, watchPath string) *Evaluator {
	return &Evaluator{
		branch:    branch,
		watchPath: normalizePrefix(watchPath),
	}
}

// EvaluatePush fires iff the push is on the watched branch and at least one
// changed path is under the watched subdirectory.
func (e *Evaluator) EvaluatePush(evt PushEvent) Decision {
	if evt.Branch != e.branch {
		return Decision{Kind: KindPush, Reason: fmt.Sprintf("branch %q is not watched", evt.Branch)}
	}
	for _, p := range evt.ChangedPaths {
		if e.PathWatched(p) {
			return Decision{Fire: true, Kind: KindPush, Reason: fmt.Sprintf("push touched %s", p)}
		}
	}
	return Decision{Kind: KindPush, Reason: "no changed path under " + e.watchPath}
}

// EvaluateDispatch always fires, regardless of changed paths.
func (e *Evaluator) EvaluateDispatch(evt DispatchEvent) Decision {
	actor := evt.Actor
	if actor == "" {
		actor = "unknown"
	}
	return Decision{Fire: true, Kind: KindDispatch, Reason: "manual dispatch by " + actor}
}

// PathWatched reports whether a single changed path falls under the watched
// subdirectory. Matching is prefix-based on clean slash paths, so
// "website" matches "website/index.md" but not "website-old/x".
func (e *Evaluator) PathWatched(p string) bool {
	p = path.Clean(strings.TrimPrefix(strings.ReplaceAll(p, "\\", "/"), "/"))
	if p == "." || p == "" {
		return false
	}
	if p == strings.TrimSuffix(e.watchPath, "/") {
		return true
	}
	return strings.HasPrefix(p, e.watchPath)
}

func normalizePrefix(p string) string {
	p = path.Clean(strings.TrimPrefix(strings.ReplaceAll(p, "\\", "/"), "/"))
	if p == "." {
		p = ""
	}
	if p != "" && !strings.HasSuffix(p, "/") {
		p += "/"
	}
	return p
}
