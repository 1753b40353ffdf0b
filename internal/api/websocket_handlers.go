package api

import (
	"net/http"
)

// WebSocket endpoints

// HandleWebSocket handles WebSocket connections for document collaboration
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	h.wsHandler(w, r)
}
