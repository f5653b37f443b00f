package badger

import (
	"context"
	"fmt"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/doceo/internal/interfaces"
	"github.com/ternarybob/doceo/internal/models"
)

// DatasetStore implements the DatasetStore interface for Badger
type DatasetStore struct {
	db     *BadgerDB
	logger arbor.ILogger

	updateMu sync.Mutex
}

// NewDatasetStore creates a new DatasetStore instance
func NewDatasetStore(db *BadgerDB, logger arbor.ILogger) interfaces.DatasetStore {
	return &DatasetStore{
		db:     db,
		logger: logger,
	}
}

func (s *DatasetStore) SaveDataset(ctx context.Context, record *models.DatasetRecord) error {
	if record == nil || record.ID == "" {
		return fmt.Errorf("%w: dataset ID is required", models.ErrInvalidArgument)
	}

	if err := s.db.Store().Insert(record.ID, record); err != nil {
		if err == badgerhold.ErrKeyExists {
			return fmt.Errorf("%w: dataset %s already exists", models.ErrStateConflict, record.ID)
		}
		return fmt.Errorf("failed to save dataset: %w", err)
	}
	return nil
}

func (s *DatasetStore) GetDataset(ctx context.Context, id string) (*models.DatasetRecord, error) {
	var record models.DatasetRecord
	if err := s.db.Store().Get(id, &record); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("%w: dataset %s", models.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get dataset: %w", err)
	}
	return &record, nil
}

// UpdateDataset applies the mutator under the store lock. Terminal records
// are immutable.
func (s *DatasetStore) UpdateDataset(ctx context.Context, id string, mutate interfaces.DatasetMutator) (*models.DatasetRecord, error) {
	s.updateMu.Lock()
	defer s.updateMu.Unlock()

	var record models.DatasetRecord
	if err := s.db.Store().Get(id, &record); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("%w: dataset %s", models.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get dataset: %w", err)
	}

	if record.State.IsTerminal() {
		return nil, fmt.Errorf("%w: dataset %s is %s", models.ErrStateConflict, id, record.State)
	}

	if err := mutate(&record); err != nil {
		return nil, err
	}

	if err := s.db.Store().Upsert(id, &record); err != nil {
		return nil, fmt.Errorf("failed to update dataset: %w", err)
	}

	return record.Clone(), nil
}

func (s *DatasetStore) ListDatasets(ctx context.Context, filter *interfaces.DatasetFilter) ([]*models.DatasetRecord, error) {
	query := badgerhold.Where("ID").Ne("")

	if filter != nil && filter.State != "" {
		query = query.And("State").Eq(filter.State)
	}

	// Newest first
	query = query.SortBy("CreatedAt").Reverse()

	if filter != nil {
		if filter.Limit > 0 {
			query = query.Limit(filter.Limit)
		}
		if filter.Skip > 0 {
			query = query.Skip(filter.Skip)
		}
	}

	var records []models.DatasetRecord
	if err := s.db.Store().Find(&records, query); err != nil {
		return nil, fmt.Errorf("failed to list datasets: %w", err)
	}

	result := make([]*models.DatasetRecord, len(records))
	for i := range records {
		result[i] = &records[i]
	}
	return result, nil
}

func (s *DatasetStore) CountDatasets(ctx context.Context, state models.DatasetState) (int, error) {
	query := badgerhold.Where("ID").Ne("")
	if state != "" {
		query = query.And("State").Eq(state)
	}

	count, err := s.db.Store().Count(&models.DatasetRecord{}, query)
	if err != nil {
		return 0, fmt.Errorf("failed to count datasets: %w", err)
	}
	return int(count), nil
}

func (s *DatasetStore) DeleteDataset(ctx context.Context, id string) error {
	if err := s.db.Store().Delete(id, &models.DatasetRecord{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return fmt.Errorf("%w: dataset %s", models.ErrNotFound, id)
		}
		return fmt.Errorf("failed to delete dataset: %w", err)
	}
	return nil
}
