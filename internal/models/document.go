package models

import (
	"time"
)

// Document is the persisted state of one collaboratively edited text buffer.
// Learning: The ID is assigned by the caller (the client picks the doc id it
// joins), so there is no BeforeCreate hook generating one here.
// Content is always the full current text, never a diff.
type Document struct {
	ID        string    `json:"docId" gorm:"type:varchar(255);primaryKey" bson:"_id"`
	Content   string    `json:"content" gorm:"type:text;not null" bson:"content"`
	CreatedAt time.Time `json:"createdAt" gorm:"column:created_at;autoCreateTime" bson:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"column:updated_at;autoUpdateTime" bson:"updated_at"`
}

// TableName override
func (Document) TableName() string {
	return "documents"
}

// DocumentSummary is the list view of a document (content omitted)
type DocumentSummary struct {
	ID        string    `json:"docId"`
	Length    int       `json:"length"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Summary returns the list view of the document
func (d *Document) Summary() DocumentSummary {
	return DocumentSummary{
		ID:        d.ID,
		Length:    len([]rune(d.Content)),
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}
