package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/notechat/internal/store"
	"github.com/go-chi/chi/v5"
)

const defaultHealthCheckTimeout = 5 * time.Second

// SessionCounter reports the number of live chat sessions.
type SessionCounter interface {
	Count() int
}

// HealthHandler handles the readiness endpoint. Liveness is served by chi's Heartbeat.
type HealthHandler struct {
	notes    store.NoteRepository
	sessions SessionCounter
	timeout  time.Duration
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(notes store.NoteRepository, sessions SessionCounter) *HealthHandler {
	return &HealthHandler{notes: notes, sessions: sessions, timeout: defaultHealthCheckTimeout}
}

// Ready reports whether the note store answers.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	checks := map[string]string{"api": "ok"}
	status := map[string]interface{}{
		"status": "healthy",
		"checks": checks,
	}
	if h.sessions != nil {
		status["sessions"] = h.sessions.Count()
	}
	statusCode := http.StatusOK

	if err := h.notes.Ping(ctx); err != nil {
		slog.Error("Health check failed", "error", err)
		status["status"] = "degraded"
		checks["note_store"] = "unreachable"
		statusCode = http.StatusServiceUnavailable
	} else {
		checks["note_store"] = "ok"
	}

	JSON(w, statusCode, status)
}

// RegisterHealth registers the readiness route.
func (h *HealthHandler) RegisterHealth(r chi.Router) {
	r.Get("/health/ready", h.Ready)
}
