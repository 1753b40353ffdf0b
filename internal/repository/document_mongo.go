package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"collab-editor/internal/models"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// DocumentCollection is the MongoDB collection holding documents
const DocumentCollection = "documents"

// MongoDocumentRepository stores documents in MongoDB, keyed by doc id (_id)
type MongoDocumentRepository struct {
	coll *mongo.Collection
}

// NewMongoDocumentRepository creates a repository over the documents collection
func NewMongoDocumentRepository(db *mongo.Database) *MongoDocumentRepository {
	return &MongoDocumentRepository{coll: db.Collection(DocumentCollection)}
}

// LoadOrCreate upserts an empty document if none exists and returns the stored one.
// $setOnInsert only writes on creation, so an existing document is returned untouched.
func (r *MongoDocumentRepository) LoadOrCreate(ctx context.Context, id string) (*models.Document, error) {
	now := time.Now().UTC()
	update := bson.M{
		"$setOnInsert": bson.M{
			"content":    "",
			"created_at": now,
			"updated_at": now,
		},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var doc models.Document
	if err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to load document %s: %w", id, unavailable(err))
	}

	return &doc, nil
}

// ReplaceContent overwrites content and updated_at, creating the document if absent
func (r *MongoDocumentRepository) ReplaceContent(ctx context.Context, id, content string) error {
	now := time.Now().UTC()
	update := bson.M{
		"$set": bson.M{
			"content":    content,
			"updated_at": now,
		},
		"$setOnInsert": bson.M{
			"created_at": now,
		},
	}

	if _, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, update, options.UpdateOne().SetUpsert(true)); err != nil {
		return fmt.Errorf("failed to replace content of document %s: %w", id, unavailable(err))
	}

	return nil
}

// GetByID retrieves a document without creating it
func (r *MongoDocumentRepository) GetByID(ctx context.Context, id string) (*models.Document, error) {
	var doc models.Document

	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document %s: %w", id, unavailable(err))
	}

	return &doc, nil
}

// List returns documents ordered by most recent modification
func (r *MongoDocumentRepository) List(ctx context.Context, limit, offset int) ([]*models.Document, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "updated_at", Value: -1}, {Key: "_id", Value: 1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := r.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", unavailable(err))
	}
	defer cursor.Close(ctx)

	documents := []*models.Document{}
	if err := cursor.All(ctx, &documents); err != nil {
		return nil, fmt.Errorf("failed to decode documents: %w", unavailable(err))
	}

	return documents, nil
}
