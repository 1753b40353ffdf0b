package models

import (
	"time"

	"github.com/segmentio/ksuid"
)

// Session describes one live client connection.
// Identity is bound when the connection authenticates (or at join for
// anonymous connections); DocumentID is bound once, at join time.
type Session struct {
	ID          string    `json:"id"`
	DocumentID  string    `json:"document_id"`
	Identity    string    `json:"identity"`
	ConnectedAt time.Time `json:"connected_at"`
}

// NewSession creates connection metadata for an identity (possibly empty)
func NewSession(identity string) *Session {
	return &Session{
		ID:          ksuid.New().String(),
		Identity:    identity,
		ConnectedAt: time.Now(),
	}
}

// PresenceSnapshot is the set of identities present on a document
type PresenceSnapshot struct {
	DocumentID string   `json:"docId"`
	Identities []string `json:"identities"`
	Source     string   `json:"source"` // "local" or "redis"
}
