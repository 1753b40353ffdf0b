package collaboration

import (
	"context"
	"log"
	"net/http"
	"strings"

	"collab-editor/internal/middleware"
	"collab-editor/internal/models"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
)

/*
LEARNING: WEBSOCKET UPGRADER

The upgrader converts HTTP connections to WebSocket connections.

Key settings:
- ReadBufferSize/WriteBufferSize: Memory for I/O operations
- CheckOrigin: CORS validation for WebSocket connections

Authentication happens BEFORE the upgrade, so a bad token gets a plain
HTTP 401 instead of an open socket.
*/

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// IdentityProvider turns a bearer token into a username
type IdentityProvider interface {
	Authenticate(ctx context.Context, token string) (string, error)
}

// WebSocketHandler handles WebSocket connections for document collaboration
type WebSocketHandler struct {
	sessionManager *SessionManager
	identity       IdentityProvider
	allowAnonymous bool
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(sessionManager *SessionManager, identity IdentityProvider, allowAnonymous bool) *WebSocketHandler {
	return &WebSocketHandler{
		sessionManager: sessionManager,
		identity:       identity,
		allowAnonymous: allowAnonymous,
	}
}

// HandleConnection authenticates, upgrades and serves one client until it disconnects
func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity := ""
	if token := bearerToken(r); token != "" {
		user, err := h.identity.Authenticate(ctx, token)
		if err != nil {
			log.Printf("WebSocket authentication failed: %v", err)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		identity = user
	} else if !h.allowAnonymous {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	// Create span for connection
	ctx, span := middleware.StartSpan(ctx, "WebSocket.Connect",
		attribute.String("user.identity", identity),
	)

	// Upgrade HTTP connection to WebSocket
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Failed to upgrade WebSocket: %v", err)
		middleware.AddSpanError(ctx, err)
		span.End()
		return
	}
	span.End()

	conn := h.sessionManager.NewConnection(models.NewSession(identity), ws)
	log.Printf("✓ WebSocket connection %s established (user: %q)", conn.ID, identity)

	// Learning: The read pump runs on the handler goroutine so the request
	// context stays valid for as long as the client is connected
	go conn.WritePump()
	conn.ReadPump(ctx, h.sessionManager)
}

// bearerToken reads the token from the Authorization header or ?token=
// (browsers cannot set headers on WebSocket requests).
func bearerToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return r.URL.Query().Get("token")
}
