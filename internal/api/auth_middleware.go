package api

import (
	"log"
	"net/http"
	"strings"

	"collab-editor/internal/auth"
)

/*
LEARNING: ROUTE-GROUP MIDDLEWARE

gorilla/mux lets a subrouter carry its own middleware chain. Everything that
exposes document content or presence hangs off one subrouter wrapped with
RequireAuth, so a new read endpoint is protected by where it is registered,
not by remembering a check inside the handler.

Same rule as /checkAuth:
  no bearer token      → 401 Unauthorized
  invalid/expired one  → 403 Forbidden
*/

// verifyRequest checks the Authorization header and returns the claims,
// or the status code to answer with
func (h *Handler) verifyRequest(r *http.Request) (*auth.Claims, int) {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || token == "" {
		return nil, http.StatusUnauthorized
	}

	claims, err := h.auth.Verify(token)
	if err != nil {
		return nil, http.StatusForbidden
	}
	return claims, http.StatusOK
}

// RequireAuth rejects requests without a valid bearer token
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, status := h.verifyRequest(r); status != http.StatusOK {
			log.Printf("⚠️  Rejected %s %s: %s", r.Method, r.URL.Path, http.StatusText(status))
			writeJSON(w, status, messageResponse{Message: http.StatusText(status)})
			return
		}
		next.ServeHTTP(w, r)
	})
}
