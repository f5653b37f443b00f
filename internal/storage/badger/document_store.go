package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/doceo/internal/interfaces"
	"github.com/ternarybob/doceo/internal/models"
)

// DocumentStore implements the DocumentStore interface for Badger
type DocumentStore struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewDocumentStore creates a new DocumentStore instance
func NewDocumentStore(db *BadgerDB, logger arbor.ILogger) interfaces.DocumentStore {
	return &DocumentStore{
		db:     db,
		logger: logger,
	}
}

func (s *DocumentStore) SaveDocument(ctx context.Context, doc *models.Document) error {
	if doc == nil || doc.ID == "" {
		return fmt.Errorf("%w: document ID is required", models.ErrInvalidArgument)
	}

	doc.UpdatedAt = time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = doc.UpdatedAt
	}

	if err := s.db.Store().Upsert(doc.ID, doc); err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}
	return nil
}

func (s *DocumentStore) SaveDocuments(ctx context.Context, docs []*models.Document) error {
	for _, doc := range docs {
		if err := s.SaveDocument(ctx, doc); err != nil {
			return err
		}
	}
	return nil
}

func (s *DocumentStore) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	var doc models.Document
	if err := s.db.Store().Get(id, &doc); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("%w: document %s", models.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return &doc, nil
}

func (s *DocumentStore) GetDocumentBySource(ctx context.Context, source string) (*models.Document, error) {
	var docs []models.Document
	if err := s.db.Store().Find(&docs, badgerhold.Where("Source").Eq(source).Limit(1)); err != nil {
		return nil, fmt.Errorf("failed to query document by source: %w", err)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: document with source %s", models.ErrNotFound, source)
	}
	return &docs[0], nil
}

func (s *DocumentStore) DeleteDocument(ctx context.Context, id string) error {
	if err := s.db.Store().Delete(id, &models.Document{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return fmt.Errorf("%w: document %s", models.ErrNotFound, id)
		}
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

func (s *DocumentStore) ListDocuments(ctx context.Context, opts *interfaces.ListOptions) ([]*models.Document, error) {
	query := badgerhold.Where("ID").Ne("").SortBy("CreatedAt").Reverse()

	if opts != nil {
		if opts.Limit > 0 {
			query = query.Limit(opts.Limit)
		}
		if opts.Offset > 0 {
			query = query.Skip(opts.Offset)
		}
	}

	var docs []models.Document
	if err := s.db.Store().Find(&docs, query); err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	result := make([]*models.Document, len(docs))
	for i := range docs {
		result[i] = &docs[i]
	}
	return result, nil
}

func (s *DocumentStore) CountDocuments(ctx context.Context) (int, error) {
	count, err := s.db.Store().Count(&models.Document{}, badgerhold.Where("ID").Ne(""))
	if err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return int(count), nil
}

func (s *DocumentStore) ClearDocuments(ctx context.Context) error {
	if err := s.db.Store().DeleteMatching(&models.Document{}, badgerhold.Where("ID").Ne("")); err != nil {
		return fmt.Errorf("failed to clear documents: %w", err)
	}
	return nil
}
