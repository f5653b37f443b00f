package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ternarybob/doceo/internal/interfaces"
	"github.com/ternarybob/doceo/internal/models"
)

// DocumentStore implements the DocumentStore interface with an in-memory map
type DocumentStore struct {
	mu   sync.RWMutex
	docs map[string]*models.Document
}

// NewDocumentStore creates a new in-memory DocumentStore
func NewDocumentStore() interfaces.DocumentStore {
	return &DocumentStore{
		docs: make(map[string]*models.Document),
	}
}

func (s *DocumentStore) SaveDocument(ctx context.Context, doc *models.Document) error {
	if doc == nil || doc.ID == "" {
		return fmt.Errorf("%w: document ID is required", models.ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.save(doc)
	return nil
}

func (s *DocumentStore) SaveDocuments(ctx context.Context, docs []*models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, doc := range docs {
		if doc == nil || doc.ID == "" {
			return fmt.Errorf("%w: document ID is required", models.ErrInvalidArgument)
		}
		s.save(doc)
	}
	return nil
}

// save upserts under the write lock, preserving CreatedAt across updates
func (s *DocumentStore) save(doc *models.Document) {
	stored := doc.Clone()
	stored.UpdatedAt = time.Now()
	if existing, ok := s.docs[doc.ID]; ok {
		stored.CreatedAt = existing.CreatedAt
	} else if stored.CreatedAt.IsZero() {
		stored.CreatedAt = stored.UpdatedAt
	}
	s.docs[doc.ID] = stored
}

func (s *DocumentStore) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[id]
	if !ok {
		return nil, fmt.Errorf("%w: document %s", models.ErrNotFound, id)
	}
	return doc.Clone(), nil
}

func (s *DocumentStore) GetDocumentBySource(ctx context.Context, source string) (*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, doc := range s.docs {
		if doc.Source == source {
			return doc.Clone(), nil
		}
	}
	return nil, fmt.Errorf("%w: document with source %s", models.ErrNotFound, source)
}

func (s *DocumentStore) DeleteDocument(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[id]; !ok {
		return fmt.Errorf("%w: document %s", models.ErrNotFound, id)
	}
	delete(s.docs, id)
	return nil
}

func (s *DocumentStore) ListDocuments(ctx context.Context, opts *interfaces.ListOptions) ([]*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*models.Document
	for _, doc := range s.docs {
		result = append(result, doc.Clone())
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if opts != nil {
		if opts.Offset > 0 {
			if opts.Offset >= len(result) {
				return nil, nil
			}
			result = result[opts.Offset:]
		}
		if opts.Limit > 0 && len(result) > opts.Limit {
			result = result[:opts.Limit]
		}
	}

	return result, nil
}

func (s *DocumentStore) CountDocuments(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs), nil
}

func (s *DocumentStore) ClearDocuments(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = make(map[string]*models.Document)
	return nil
}
