package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ternarybob/doceo/internal/interfaces"
	"github.com/ternarybob/doceo/internal/models"
)

// DatasetStore implements the DatasetStore interface with an in-memory map
type DatasetStore struct {
	mu      sync.RWMutex
	records map[string]*models.DatasetRecord
}

// NewDatasetStore creates a new in-memory DatasetStore
func NewDatasetStore() interfaces.DatasetStore {
	return &DatasetStore{
		records: make(map[string]*models.DatasetRecord),
	}
}

func (s *DatasetStore) SaveDataset(ctx context.Context, record *models.DatasetRecord) error {
	if record == nil || record.ID == "" {
		return fmt.Errorf("%w: dataset ID is required", models.ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[record.ID]; exists {
		return fmt.Errorf("%w: dataset %s already exists", models.ErrStateConflict, record.ID)
	}
	s.records[record.ID] = record.Clone()
	return nil
}

func (s *DatasetStore) GetDataset(ctx context.Context, id string) (*models.DatasetRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: dataset %s", models.ErrNotFound, id)
	}
	return record.Clone(), nil
}

func (s *DatasetStore) UpdateDataset(ctx context.Context, id string, mutate interfaces.DatasetMutator) (*models.DatasetRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: dataset %s", models.ErrNotFound, id)
	}

	if stored.State.IsTerminal() {
		return nil, fmt.Errorf("%w: dataset %s is %s", models.ErrStateConflict, id, stored.State)
	}

	record := stored.Clone()
	if err := mutate(record); err != nil {
		return nil, err
	}

	s.records[id] = record
	return record.Clone(), nil
}

func (s *DatasetStore) ListDatasets(ctx context.Context, filter *interfaces.DatasetFilter) ([]*models.DatasetRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*models.DatasetRecord
	for _, record := range s.records {
		if filter != nil && filter.State != "" && record.State != filter.State {
			continue
		}
		result = append(result, record.Clone())
	}

	// Newest first
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if filter != nil {
		if filter.Skip > 0 {
			if filter.Skip >= len(result) {
				return nil, nil
			}
			result = result[filter.Skip:]
		}
		if filter.Limit > 0 && len(result) > filter.Limit {
			result = result[:filter.Limit]
		}
	}

	return result, nil
}

func (s *DatasetStore) CountDatasets(ctx context.Context, state models.DatasetState) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if state == "" {
		return len(s.records), nil
	}

	count := 0
	for _, record := range s.records {
		if record.State == state {
			count++
		}
	}
	return count, nil
}

func (s *DatasetStore) DeleteDataset(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; !ok {
		return fmt.Errorf("%w: dataset %s", models.ErrNotFound, id)
	}
	delete(s.records, id)
	return nil
}
