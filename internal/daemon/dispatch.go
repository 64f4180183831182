package daemon

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/docpages/internal/config"
	ferrors "git.home.luguber.info/inful/docpages/internal/foundation/errors"
	"git.home.luguber.info/inful/docpages/internal/logfields"
	"git.home.luguber.info/inful/docpages/internal/trigger"
)

const (
	defaultDispatchSubject = "docpages.dispatch"
	defaultResultSubject   = "docpages.runs"
)

// DispatchRequest is the message body accepted on the dispatch subject.
type DispatchRequest struct {
	Actor string `json:"actor,omitempty"`
}

// RunNotice is published after each run finishes.
type RunNotice struct {
	RunID      string    `json:"run_id"`
	Trigger    string    `json:"trigger"`
	Actor      string    `json:"actor"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	Duration   string    `json:"duration"`
	FinishedAt time.Time `json:"finished_at"`
}

// DispatchListener bridges NATS subjects to the run queue: inbound
// messages enqueue manual runs, finished runs are announced back out.
type DispatchListener struct {
	conn            *nats.Conn
	queue           *RunQueue
	dispatchSubject string
	resultSubject   string
	sub             *nats.Subscription
}

// NewDispatchListener connects to the configured NATS server.
func NewDispatchListener(cfg *config.NATSConfig, queue *RunQueue) (*DispatchListener, error) {
	conn, err := nats.Connect(cfg.URL,
		nats.Name("docpages-daemon"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, ferrors.NetworkError("failed to connect to NATS").
			WithContext("url", cfg.URL).
			WithCause(err).
			Build()
	}

	dl := &DispatchListener{
		conn:            conn,
		queue:           queue,
		dispatchSubject: cfg.DispatchSubject,
		resultSubject:   cfg.ResultSubject,
	}
	if dl.dispatchSubject == "" {
		dl.dispatchSubject = defaultDispatchSubject
	}
	if dl.resultSubject == "" {
		dl.resultSubject = defaultResultSubject
	}
	return dl, nil
}

// Start subscribes to the dispatch subject.
func (dl *DispatchListener) Start() error {
	sub, err := dl.conn.Subscribe(dl.dispatchSubject, dl.handleDispatch)
	if err != nil {
		return ferrors.NetworkError("failed to subscribe to dispatch subject").
			WithContext("subject", dl.dispatchSubject).
			WithCause(err).
			Build()
	}
	dl.sub = sub
	slog.Info("Listening for dispatch requests", logfields.Subject(dl.dispatchSubject))
	return nil
}

func (dl *DispatchListener) handleDispatch(msg *nats.Msg) {
	var req DispatchRequest
	if len(msg.Data) > 0 {
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			slog.Warn("Ignoring malformed dispatch message", logfields.Error(err))
			return
		}
	}
	if req.Actor == "" {
		req.Actor = "unknown"
	}

	job := &RunJob{
		ID:        uuid.NewString(),
		Trigger:   trigger.KindDispatch,
		Actor:     req.Actor,
		CreatedAt: time.Now(),
	}
	if err := dl.queue.Enqueue(job); err != nil {
		slog.Warn("Failed to enqueue dispatched run", logfields.Error(err))
		return
	}
	slog.Info("Enqueued dispatched run",
		logfields.RunID(job.ID),
		logfields.Actor(job.Actor),
		logfields.Subject(msg.Subject))
}

// PublishResult announces a finished run on the result subject.
func (dl *DispatchListener) PublishResult(notice RunNotice) {
	data, err := json.Marshal(notice)
	if err != nil {
		slog.Warn("Failed to encode run notice", logfields.Error(err))
		return
	}
	if err := dl.conn.Publish(dl.resultSubject, data); err != nil {
		slog.Warn("Failed to publish run notice",
			logfields.Subject(dl.resultSubject),
			logfields.Error(err))
	}
}

// Stop drains the subscription and closes the connection.
func (dl *DispatchListener) Stop() {
	if dl.sub != nil {
		if err := dl.sub.Drain(); err != nil {
			slog.Warn("Failed to drain dispatch subscription", logfields.Error(err))
		}
	}
	dl.conn.Close()
}
