package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"collab-editor/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DocumentRepositoryImpl handles all database operations for documents using GORM
// Learning: This is the IMPLEMENTATION. It doesn't know about any interface.
// The services package declares the interface it needs.
type DocumentRepositoryImpl struct {
	db *gorm.DB
}

// NewDocumentRepository creates a new document repository
// Returns concrete type - "Accept interfaces, return structs"
func NewDocumentRepository(db *gorm.DB) *DocumentRepositoryImpl {
	return &DocumentRepositoryImpl{db: db}
}

// LoadOrCreate returns the document, creating it with empty content if absent.
// Learning: INSERT ... ON CONFLICT DO NOTHING followed by a read is atomic
// with respect to concurrent creators: two joiners racing on a new id both
// end up reading the single row, and neither sees a unique-key error.
func (r *DocumentRepositoryImpl) LoadOrCreate(ctx context.Context, id string) (*models.Document, error) {
	now := time.Now()
	seed := &models.Document{
		ID:        id,
		Content:   "",
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(seed).Error; err != nil {
		return nil, fmt.Errorf("failed to create document %s: %w", id, unavailable(err))
	}

	var doc models.Document
	if err := r.db.WithContext(ctx).First(&doc, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("failed to load document %s: %w", id, unavailable(err))
	}

	return &doc, nil
}

// ReplaceContent overwrites the full content of a document (upsert).
// There is no version check: the last call to land wins.
func (r *DocumentRepositoryImpl) ReplaceContent(ctx context.Context, id, content string) error {
	now := time.Now()
	doc := &models.Document{
		ID:        id,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"content":    content,
				"updated_at": now,
			}),
		}).
		Create(doc).Error
	if err != nil {
		return fmt.Errorf("failed to replace content of document %s: %w", id, unavailable(err))
	}

	return nil
}

// GetByID retrieves a document without creating it
func (r *DocumentRepositoryImpl) GetByID(ctx context.Context, id string) (*models.Document, error) {
	var doc models.Document

	err := r.db.WithContext(ctx).First(&doc, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document %s: %w", id, unavailable(err))
	}

	return &doc, nil
}

// List returns documents ordered by most recent modification
func (r *DocumentRepositoryImpl) List(ctx context.Context, limit, offset int) ([]*models.Document, error) {
	var documents []*models.Document

	err := r.db.WithContext(ctx).
		Order("updated_at DESC").
		Order("id ASC").
		Limit(limit).
		Offset(offset).
		Find(&documents).Error

	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", unavailable(err))
	}

	return documents, nil
}
