package handlers

import (
	"net/http"
	"time"
)

// HealthHandler handles the unauthenticated health endpoints.
type HealthHandler struct {
	ready   func() error
	started time.Time
}

// NewHealthHandler creates a health handler. ready reports whether the SMB
// listener is accepting connections; nil means never ready.
func NewHealthHandler(ready func() error) *HealthHandler {
	return &HealthHandler{ready: ready, started: time.Now()}
}

// Liveness handles GET /health. It succeeds as long as the HTTP server is
// responsive.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthyResponse(map[string]any{
		"service": "dittosmb",
		"uptime":  time.Since(h.started).Round(time.Second).String(),
	}))
}

// Readiness handles GET /health/ready. It returns 503 until the SMB
// listener is up.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.ready == nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("SMB adapter not configured"))
		return
	}
	if err := h.ready(); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, healthyResponse(nil))
}
