package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Pinger is implemented by dependencies the health check verifies.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports whether the server and its database are reachable.
type HealthHandler struct {
	db Pinger
}

// NewHealthHandler creates a new HealthHandler. db may be nil.
func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

// HandleHealthz responds with 200 and {"status":"ok"}, or 503 when the
// database does not answer.
func (h *HealthHandler) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			slog.Error("health check", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
