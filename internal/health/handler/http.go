// Package handler serves readiness/liveness checks for load balancers and CI.
package handler

import (
	"context"
	"net/http"
	"time"

	"watchtrack/backend/internal/httpx"
)

// Pinger is the subset of *sql.DB the health check needs.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Handler serves GET /health.
type Handler struct {
	db Pinger
}

// New returns a health Handler. db may be nil when no database is configured;
// the check then reports only process liveness.
func New(db Pinger) *Handler {
	return &Handler{db: db}
}

type response struct {
	Status   string `json:"status"`
	Database string `json:"database,omitempty"`
}

// Check reports 200 when the process and its database are reachable, 503
// otherwise.
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	if h.db == nil {
		httpx.WriteJSON(w, http.StatusOK, response{Status: "ok"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.db.PingContext(ctx); err != nil {
		httpx.WriteJSON(w, http.StatusServiceUnavailable, response{Status: "degraded", Database: "unreachable"})
		return
	}
	httpx.WriteJSON(w, http.StatusOK, response{Status: "ok", Database: "ok"})
}
