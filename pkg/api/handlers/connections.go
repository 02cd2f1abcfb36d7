package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	smbadapter "github.com/marmos91/dittosmb/pkg/adapter/smb"
)

// ConnectionSource lists live SMB connections. *smb.Adapter implements it.
type ConnectionSource interface {
	Connections() []smbadapter.ConnectionInfo
	Connection(id string) (smbadapter.ConnectionInfo, bool)
}

// ConnectionsHandler serves the live connection registry.
type ConnectionsHandler struct {
	source ConnectionSource
}

func NewConnectionsHandler(source ConnectionSource) *ConnectionsHandler {
	return &ConnectionsHandler{source: source}
}

// ConnectionList is the body of GET /api/v1/connections.
type ConnectionList struct {
	Count       int                         `json:"count"`
	Connections []smbadapter.ConnectionInfo `json:"connections"`
}

// List handles GET /api/v1/connections.
func (h *ConnectionsHandler) List(w http.ResponseWriter, r *http.Request) {
	conns := h.source.Connections()
	writeJSON(w, http.StatusOK, okResponse(ConnectionList{Count: len(conns), Connections: conns}))
}

// Get handles GET /api/v1/connections/{id}.
func (h *ConnectionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	info, ok := h.source.Connection(id)
	if !ok {
		NotFound(w, "connection "+id+" is not open")
		return
	}
	writeJSON(w, http.StatusOK, okResponse(info))
}
