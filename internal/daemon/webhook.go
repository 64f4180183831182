package daemon

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/docpages/internal/eventstore"
	"git.home.luguber.info/inful/docpages/internal/logfields"
	"git.home.luguber.info/inful/docpages/internal/trigger"
)

// pushPayload is the subset of a forge push webhook we act on. GitHub,
// GitLab and Forgejo all carry these fields under compatible names.
type pushPayload struct {
	Ref        string `json:"ref"`
	After      string `json:"after"`
	HeadCommit *struct {
		ID string `json:"id"`
	} `json:"head_commit"`
	Pusher struct {
		Name string `json:"name"`
	} `json:"pusher"`
	UserName string `json:"user_name"` // GitLab
	Commits  []struct {
		Added    []string `json:"added"`
		Modified []string `json:"modified"`
		Removed  []string `json:"removed"`
	} `json:"commits"`
}

func (p *pushPayload) branch() string {
	return strings.TrimPrefix(p.Ref, "refs/heads/")
}

func (p *pushPayload) actor() string {
	if p.Pusher.Name != "" {
		return p.Pusher.Name
	}
	return p.UserName
}

func (p *pushPayload) commit() string {
	if p.HeadCommit != nil && p.HeadCommit.ID != "" {
		return p.HeadCommit.ID
	}
	return p.After
}

func (p *pushPayload) changedPaths() []string {
	var paths []string
	for _, c := range p.Commits {
		paths = append(paths, c.Added...)
		paths = append(paths, c.Modified...)
		paths = append(paths, c.Removed...)
	}
	return paths
}

// WebhookServer receives forge push events and manual dispatch requests.
type WebhookServer struct {
	addr   string
	secret string
	queue  *RunQueue
	server *http.Server

	mu        sync.RWMutex
	evaluator *trigger.Evaluator
	journal   eventstore.Store
}

// NewWebhookServer wires the webhook endpoints onto a mux.
func NewWebhookServer(addr, secret string, evaluator *trigger.Evaluator, queue *RunQueue) *WebhookServer {
	ws := &WebhookServer{
		addr:      addr,
		secret:    secret,
		evaluator: evaluator,
		queue:     queue,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/webhook", ws.handlePush)
	mux.HandleFunc("/dispatch", ws.handleDispatch)
	mux.HandleFunc("/runs", ws.handleRuns)
	mux.HandleFunc("/healthz", ws.handleHealth)
	ws.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return ws
}

// SetJournal attaches the run event journal, letting /runs report
// journaled runs alongside the in-memory queue history.
func (ws *WebhookServer) SetJournal(store eventstore.Store) {
	ws.journal = store
}

// SetEvaluator swaps the trigger evaluator, so config hot-reloads
// change push filtering without a restart.
func (ws *WebhookServer) SetEvaluator(e *trigger.Evaluator) {
	if e == nil {
		return
	}
	ws.mu.Lock()
	ws.evaluator = e
	ws.mu.Unlock()
}

func (ws *WebhookServer) currentEvaluator() *trigger.Evaluator {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	return ws.evaluator
}

// Start begins serving; it returns once the listener stops.
func (ws *WebhookServer) Start() error {
	slog.Info("Starting webhook server", "addr", ws.addr)
	err := ws.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop shuts the server down gracefully.
func (ws *WebhookServer) Stop(ctx context.Context) error {
	return ws.server.Shutdown(ctx)
}

// handlePush evaluates a forge push event against the trigger rules.
func (ws *WebhookServer) handlePush(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "POST required"})
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "unreadable payload"})
		return
	}
	if !ws.verifySignature(r, body) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "invalid signature"})
		return
	}

	var payload pushPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid JSON payload"})
		return
	}

	event := trigger.PushEvent{
		Actor:        payload.actor(),
		Branch:       payload.branch(),
		Commit:       payload.commit(),
		ChangedPaths: payload.changedPaths(),
		ReceivedAt:   time.Now(),
	}
	decision := ws.currentEvaluator().EvaluatePush(event)
	if !decision.Fire {
		slog.Info("Ignoring push",
			logfields.Branch(event.Branch),
			slog.String("reason", decision.Reason))
		writeJSON(w, http.StatusOK, map[string]any{"status": "ignored", "reason": decision.Reason})
		return
	}

	job := &RunJob{
		ID:        uuid.NewString(),
		Trigger:   trigger.KindPush,
		Actor:     event.Actor,
		CreatedAt: time.Now(),
	}
	if err := ws.queue.Enqueue(job); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": err.Error()})
		return
	}

	slog.Info("Enqueued push-triggered run",
		logfields.RunID(job.ID),
		logfields.Actor(event.Actor),
		logfields.Commit(event.Commit))
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "queued", "run_id": job.ID})
}

// handleDispatch is the manual trigger endpoint: fires unconditionally.
func (ws *WebhookServer) handleDispatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "POST required"})
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "unreadable payload"})
		return
	}
	if !ws.verifySignature(r, body) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "invalid signature"})
		return
	}

	var req struct {
		Actor string `json:"actor"`
	}
	_ = json.Unmarshal(body, &req)

	actor := req.Actor
	if actor == "" {
		actor = "unknown"
	}
	decision := ws.currentEvaluator().EvaluateDispatch(trigger.DispatchEvent{Actor: actor, ReceivedAt: time.Now()})
	job := &RunJob{
		ID:        uuid.NewString(),
		Trigger:   trigger.KindDispatch,
		Actor:     actor,
		CreatedAt: time.Now(),
	}
	if err := ws.queue.Enqueue(job); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": err.Error()})
		return
	}

	slog.Info("Enqueued dispatched run",
		logfields.RunID(job.ID),
		logfields.Actor(job.Actor),
		slog.String("reason", decision.Reason))
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "queued", "run_id": job.ID})
}

// handleRuns lists the queue history, newest first, plus journal
// summaries when an event store is attached.
func (ws *WebhookServer) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "GET required"})
		return
	}
	history := ws.queue.History()
	for i, j := 0, len(history)-1; i < j; i, j = i+1, j-1 {
		history[i], history[j] = history[j], history[i]
	}
	resp := map[string]any{"runs": history, "queued": ws.queue.Length()}
	if ws.journal != nil {
		summaries, err := ws.journal.RecentRuns(r.Context(), 20)
		if err != nil {
			slog.Warn("Listing journaled runs failed", logfields.Error(err))
		} else {
			resp["journal"] = summaries
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (ws *WebhookServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// verifySignature validates the X-Hub-Signature-256 HMAC when a secret is set.
func (ws *WebhookServer) verifySignature(r *http.Request, body []byte) bool {
	if ws.secret == "" {
		return true
	}
	sig := r.Header.Get("X-Hub-Signature-256")
	if !strings.HasPrefix(sig, "sha256=") {
		return false
	}
	mac := hmac.New(sha256.New, []byte(ws.secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(strings.TrimPrefix(sig, "sha256=")), []byte(expected))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to write response", logfields.Error(err))
	}
}
