package domain

import (
	"context"
	"errors"
	"time"
)

var (
	ErrDocumentExists   = errors.New("document already exists")
	ErrDocumentNotFound = errors.New("document not found")
)

// Document is one river output stored locally. Body is the JSON document.
type Document struct {
	Collection string    `json:"collection"`
	ID         string    `json:"id"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// DocumentStore keeps documents grouped by collection.
type DocumentStore interface {
	// CreateDocument fails with ErrDocumentExists when the id is taken.
	CreateDocument(ctx context.Context, d *Document) error
	UpsertDocument(ctx context.Context, d *Document) error
	// DeleteDocument is a no-op for unknown ids.
	DeleteDocument(ctx context.Context, collection, id string) error
	GetDocument(ctx context.Context, collection, id string) (*Document, error)
	ListDocuments(ctx context.Context, collection string, limit int) ([]Document, error)
}
