package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/marmos91/dittosmb/internal/logger"
	"github.com/marmos91/dittosmb/pkg/history"
)

// DefaultHistoryLimit caps GET /api/v1/history without a limit parameter.
const DefaultHistoryLimit = 100

// HistoryStore reads the closed-connection journal. *history.Store
// implements it.
type HistoryStore interface {
	List(ctx context.Context, limit int) ([]history.Entry, error)
	Get(ctx context.Context, id string) (*history.Entry, error)
}

// HistoryHandler serves the connection journal.
type HistoryHandler struct {
	store HistoryStore
}

func NewHistoryHandler(store HistoryStore) *HistoryHandler {
	return &HistoryHandler{store: store}
}

// List handles GET /api/v1/history?limit=N.
func (h *HistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := DefaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			BadRequest(w, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	entries, err := h.store.List(r.Context(), limit)
	if err != nil {
		logger.Error("Failed to list connection history", logger.Err(err))
		InternalServerError(w, "failed to read history")
		return
	}
	writeJSON(w, http.StatusOK, okResponse(entries))
}

// Get handles GET /api/v1/history/{id}.
func (h *HistoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	entry, err := h.store.Get(r.Context(), id)
	if errors.Is(err, history.ErrNotFound) {
		NotFound(w, "no history for connection "+id)
		return
	}
	if err != nil {
		logger.Error("Failed to read connection history", logger.ConnectionID(id), logger.Err(err))
		InternalServerError(w, "failed to read history")
		return
	}
	writeJSON(w, http.StatusOK, okResponse(entry))
}
