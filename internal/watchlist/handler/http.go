// Package handler exposes watchlist item CRUD over HTTP, with every
// item-level operation checked against the ownership policy.
package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"watchtrack/backend/internal/guard"
	"watchtrack/backend/internal/httpx"
	"watchtrack/backend/internal/logging"
	"watchtrack/backend/internal/server/middleware"
	"watchtrack/backend/internal/watchlist/domain"
	"watchtrack/backend/internal/watchlist/repository"
)

// Handler serves the /watchlist and /admin/users/{id}/watchlist endpoints.
type Handler struct {
	repo  repository.Repository
	guard *guard.Engine
	log   logging.Logger
}

func New(repo repository.Repository, g *guard.Engine, log logging.Logger) *Handler {
	return &Handler{repo: repo, guard: g, log: log}
}

type itemRequest struct {
	TMDBID    int64      `json:"tmdb_id"`
	Title     string     `json:"title"`
	Status    string     `json:"status"`
	Platform  string     `json:"platform"`
	Notes     string     `json:"notes"`
	WatchedAt *time.Time `json:"watched_at"`
}

// List handles GET /watchlist: the caller's own items.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.GetIdentity(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}
	items, err := h.repo.ListByUser(r.Context(), identity.UserID)
	if err != nil {
		h.writeInternal(w, r, err)
		return
	}
	if items == nil {
		items = []*domain.Item{}
	}
	httpx.WriteJSON(w, http.StatusOK, items)
}

// Create handles POST /watchlist.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.GetIdentity(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}
	var req itemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Status == "" {
		req.Status = domain.StatusToWatch
	}
	item := &domain.Item{
		UserID:    identity.UserID,
		TMDBID:    req.TMDBID,
		Title:     req.Title,
		Status:    req.Status,
		Platform:  req.Platform,
		Notes:     req.Notes,
		WatchedAt: req.WatchedAt,
		CreatedAt: time.Now().UTC(),
	}
	if err := item.Validate(); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.repo.Create(r.Context(), item); err != nil {
		h.writeInternal(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, item)
}

// Update handles PUT /watchlist/{id}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	item, ok := h.loadOwned(w, r, guard.Operation{Name: "watchlist.update"})
	if !ok {
		return
	}
	var req itemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	item.TMDBID = req.TMDBID
	item.Title = req.Title
	item.Status = req.Status
	item.Platform = req.Platform
	item.Notes = req.Notes
	item.WatchedAt = req.WatchedAt
	if err := item.Validate(); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.repo.Update(r.Context(), item); err != nil {
		h.writeInternal(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, item)
}

// Delete handles DELETE /watchlist/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	item, ok := h.loadOwned(w, r, guard.Operation{Name: "watchlist.delete"})
	if !ok {
		return
	}
	if err := h.repo.Delete(r.Context(), item.ID); err != nil {
		h.writeInternal(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AdminList handles GET /admin/users/{id}/watchlist. Only admins pass the
// guard; regular users get 403 even for their own id through this route.
func (h *Handler) AdminList(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.GetIdentity(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}
	targetID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || targetID <= 0 {
		httpx.WriteError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	op := guard.Operation{Name: "watchlist.admin_list", AdminScoped: true}
	// Owner id 0 keeps the ownership rule out of play; only the admin rule
	// can allow here.
	if d := h.guard.Authorize(r.Context(), identity, 0, op); !d.Allowed {
		h.writeDenied(w, d)
		return
	}
	items, err := h.repo.ListByUser(r.Context(), targetID)
	if err != nil {
		h.writeInternal(w, r, err)
		return
	}
	if items == nil {
		items = []*domain.Item{}
	}
	httpx.WriteJSON(w, http.StatusOK, items)
}

// loadOwned fetches the {id} item and authorizes the caller against its
// owner. On failure it writes the response and returns ok=false.
func (h *Handler) loadOwned(w http.ResponseWriter, r *http.Request, op guard.Operation) (*domain.Item, bool) {
	identity, ok := middleware.GetIdentity(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthenticated")
		return nil, false
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.WriteError(w, http.StatusBadRequest, "invalid item id")
		return nil, false
	}
	item, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		h.writeInternal(w, r, err)
		return nil, false
	}
	if item == nil {
		httpx.WriteError(w, http.StatusNotFound, "item not found")
		return nil, false
	}
	if d := h.guard.Authorize(r.Context(), identity, item.UserID, op); !d.Allowed {
		h.writeDenied(w, d)
		return nil, false
	}
	return item, true
}

func (h *Handler) writeDenied(w http.ResponseWriter, d guard.Decision) {
	if d.Reason == guard.ReasonUnauthenticated {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}
	httpx.WriteError(w, http.StatusForbidden, "forbidden")
}

func (h *Handler) writeInternal(w http.ResponseWriter, r *http.Request, err error) {
	h.log.Error(r.Context(), "watchlist handler error", "path", r.URL.Path, "error", err)
	httpx.WriteError(w, http.StatusInternalServerError, "internal error")
}
