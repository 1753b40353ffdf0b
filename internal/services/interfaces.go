package services

import (
	"context"

	"collab-editor/internal/models"
)

/*
LEARNING: GO INTERFACE BEST PRACTICE

"Accept interfaces, return structs" - Rob Pike

Interfaces are defined where they are USED, not where implemented.
This package (services) is the CONSUMER of repositories, so the document
store interface lives here. The GORM and MongoDB repositories both satisfy
it without knowing it exists.
*/

// DocumentRepository defines what the persistence pipeline needs from document storage
type DocumentRepository interface {
	LoadOrCreate(ctx context.Context, id string) (*models.Document, error)
	ReplaceContent(ctx context.Context, id, content string) error
}
