package api

import (
	"context"

	"collab-editor/internal/auth"
	"collab-editor/internal/models"
)

/*
LEARNING: CONSUMER-DRIVEN INTERFACES (Go Idiom)

This package (api/handlers) is the CONSUMER of services, so service interfaces live HERE.

The handler doesn't care about service implementation details - it only cares about
the methods it needs to call. This is the "Interface Segregation Principle" from SOLID.

Benefits:
- Handler package defines exactly what it needs
- Service implementations can change without affecting handler
- Easy to create mock services for testing handlers
- No circular dependencies
*/

// DocumentReader is the read-only view of the document store used by the REST API
// Only methods called by handlers are declared
type DocumentReader interface {
	GetByID(ctx context.Context, id string) (*models.Document, error)
	List(ctx context.Context, limit, offset int) ([]*models.Document, error)
}

// AuthService for signup, login and token checks
type AuthService interface {
	SignUp(ctx context.Context, username, email, password string) (string, error)
	Login(ctx context.Context, username, password string) (string, error)
	Verify(token string) (*auth.Claims, error)
}

// CollaborationService exposes the live state of the sync coordinator
type CollaborationService interface {
	Presence(docID string) models.PresenceSnapshot
	ActiveDocuments() []string
	ConnectionCount() int
}

// PersistenceService reports the write backlog
type PersistenceService interface {
	QueueLength() int
}

// PresenceSource is the cross-instance presence mirror (optional)
type PresenceSource interface {
	Members(ctx context.Context, docID string) ([]string, error)
	Documents(ctx context.Context) ([]string, error)
	Ping(ctx context.Context) error
}
