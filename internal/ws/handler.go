// Package ws streams job progress over WebSocket, generalizing the
// teacher's call-session socket into a one-way progress feed for a
// single job.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kushagrasharma/censorly/internal/jobs"
	"github.com/kushagrasharma/censorly/internal/registry"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// pollInterval is how often the handler re-reads job state from the
// registry while the job is not yet terminal.
const pollInterval = 500 * time.Millisecond

// Handler streams progress events for a single job until it reaches a
// terminal status or the client disconnects.
type Handler struct {
	store registry.Store
}

// NewHandler creates a progress-stream handler backed by store.
func NewHandler(store registry.Store) *Handler {
	return &Handler{store: store}
}

// progressEvent carries a job's status and progress as get_job reports
// them, but under its own keys: job_id rather than id, and error rather
// than error_detail.
type progressEvent struct {
	JobID    string      `json:"job_id"`
	Status   jobs.Status `json:"status"`
	Progress int         `json:"progress"`
	Error    string      `json:"error,omitempty"`
}

// ServeHTTP upgrades the connection and streams progress for the job
// named by the {id} path value until it reaches a terminal state.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		http.Error(w, "missing job id", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	h.streamJob(r.Context(), conn, jobID)
}

func (h *Handler) streamJob(ctx context.Context, conn *websocket.Conn, jobID string) {
	send := newEventSender(conn)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	lastProgress := -1
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		job, err := h.store.Get(ctx, jobID)
		if err != nil {
			send(progressEvent{JobID: jobID, Error: "job not found"})
			return
		}

		if job.Progress != lastProgress || job.Terminal() {
			lastProgress = job.Progress
			send(progressEvent{
				JobID:    job.ID,
				Status:   job.Status,
				Progress: job.Progress,
				Error:    job.ErrorDetail,
			})
		}

		if job.Terminal() {
			return
		}
	}
}

func newEventSender(conn *websocket.Conn) func(progressEvent) {
	var mu sync.Mutex
	return func(ev progressEvent) {
		mu.Lock()
		defer mu.Unlock()

		data, err := json.Marshal(ev)
		if err != nil {
			return
		}
		if err = conn.WriteMessage(websocket.TextMessage, data); err != nil {
			slog.Error("write progress event", "error", err)
		}
	}
}
