package collaboration

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"collab-editor/internal/models"
	"collab-editor/internal/services"

	"github.com/gorilla/websocket"
)

type staticIdentity map[string]string

func (s staticIdentity) Authenticate(ctx context.Context, token string) (string, error) {
	if user, ok := s[token]; ok {
		return user, nil
	}
	return "", errors.New("invalid token")
}

func newWebSocketServer(t *testing.T, allowAnonymous bool) (*httptest.Server, *SessionManager) {
	t.Helper()
	persistence := services.NewPersistenceService(newFakeRepo(), 2, 16, time.Second)
	persistence.Start()
	sm := NewSessionManager(persistence, 32)
	sm.Start()

	handler := NewWebSocketHandler(sm, staticIdentity{"tok-alice": "alice", "tok-bob": "bob"}, allowAnonymous)
	srv := httptest.NewServer(http.HandlerFunc(handler.HandleConnection))
	t.Cleanup(func() {
		srv.Close()
		sm.Shutdown()
		persistence.Shutdown()
	})
	return srv, sm
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func readFrame(t *testing.T, ws *websocket.Conn) frame {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var f frame
	if err := ws.ReadJSON(&f); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	return f
}

func TestWebSocketRejectsMissingToken(t *testing.T) {
	srv, _ := newWebSocketServer(t, false)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("Dial() succeeded without a token")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("response = %v, want 401", resp)
	}

	_, resp, err = websocket.DefaultDialer.Dial(url+"?token=forged", nil)
	if err == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("forged token: err = %v, resp = %v", err, resp)
	}
}

func TestWebSocketCollaborationFlow(t *testing.T) {
	srv, sm := newWebSocketServer(t, false)

	alice := dial(t, srv, "?token=tok-alice")
	if err := alice.WriteJSON(map[string]string{"type": "join", "docId": "d1"}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	if f := readFrame(t, alice); f.Type != models.EventInitialContent || f.Content != "" {
		t.Fatalf("frame = %+v, want initialContent", f)
	}
	if f := readFrame(t, alice); !slices.Equal(f.Identities, []string{"alice"}) {
		t.Fatalf("presence = %v", f.Identities)
	}

	header := http.Header{"Authorization": []string{"Bearer tok-bob"}}
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	bob, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer bob.Close()

	bob.WriteJSON(map[string]string{"type": "join", "docId": "d1"})
	readFrame(t, bob) // initialContent
	readFrame(t, bob) // presence
	readFrame(t, alice)

	if err := alice.WriteJSON(map[string]string{"type": "change", "docId": "d1", "content": "hi"}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	if f := readFrame(t, bob); f.Type != models.EventChange || f.Content != "hi" {
		t.Fatalf("bob frame = %+v, want change hi", f)
	}

	alice.Close()
	if f := readFrame(t, bob); f.Type != models.EventPresence || !slices.Equal(f.Identities, []string{"bob"}) {
		t.Fatalf("bob frame = %+v, want presence [bob]", f)
	}

	if got := sm.Presence("d1").Identities; !slices.Equal(got, []string{"bob"}) {
		t.Fatalf("Presence() = %v", got)
	}
}

func TestWebSocketAnonymousJoin(t *testing.T) {
	srv, _ := newWebSocketServer(t, true)

	ws := dial(t, srv, "")
	ws.WriteJSON(map[string]string{"type": "join", "docId": "d1"})
	if f := readFrame(t, ws); f.Type != models.EventSyncError || f.Message != "Identity is required" {
		t.Fatalf("frame = %+v, want syncError", f)
	}

	ws.WriteJSON(map[string]string{"type": "join", "docId": "d1", "identity": "guest"})
	if f := readFrame(t, ws); f.Type != models.EventInitialContent {
		t.Fatalf("frame = %+v, want initialContent", f)
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
		query  string
		want   string
	}{
		{name: "header", header: "Bearer abc", want: "abc"},
		{name: "query", query: "?token=xyz", want: "xyz"},
		{name: "header wins", header: "Bearer abc", query: "?token=xyz", want: "abc"},
		{name: "non bearer header falls back", header: "Basic Zm9v", query: "?token=xyz", want: "xyz"},
		{name: "none", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/ws"+tt.query, nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			if got := bearerToken(r); got != tt.want {
				t.Fatalf("bearerToken() = %q, want %q", got, tt.want)
			}
		})
	}
}
