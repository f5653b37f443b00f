package interfaces

import (
	"context"

	"github.com/ternarybob/doceo/internal/models"
)

// ListOptions controls pagination for list operations
type ListOptions struct {
	Limit  int
	Offset int
}

// DocumentStore - interface for normalized corpus document persistence
type DocumentStore interface {
	// CRUD operations
	SaveDocument(ctx context.Context, doc *models.Document) error
	SaveDocuments(ctx context.Context, docs []*models.Document) error
	GetDocument(ctx context.Context, id string) (*models.Document, error)

	// GetDocumentBySource returns the document ingested from the given origin,
	// or models.ErrNotFound. Used for idempotent re-ingestion.
	GetDocumentBySource(ctx context.Context, source string) (*models.Document, error)

	DeleteDocument(ctx context.Context, id string) error

	// List operations
	ListDocuments(ctx context.Context, opts *ListOptions) ([]*models.Document, error)

	// Stats operations
	CountDocuments(ctx context.Context) (int, error)

	// ClearDocuments removes every document. Used by reset_on_startup.
	ClearDocuments(ctx context.Context) error
}
