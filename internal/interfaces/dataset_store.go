package interfaces

import (
	"context"

	"github.com/ternarybob/doceo/internal/models"
)

// DatasetFilter narrows ListDatasets results. Zero values mean "no filter".
type DatasetFilter struct {
	State models.DatasetState
	Limit int
	Skip  int
}

// DatasetMutator is applied to a record inside the store's update lock
type DatasetMutator func(record *models.DatasetRecord) error

// DatasetStore - interface for dataset record persistence
type DatasetStore interface {
	// SaveDataset persists a new record. Fails if the ID already exists.
	SaveDataset(ctx context.Context, record *models.DatasetRecord) error

	// GetDataset returns the record or models.ErrNotFound
	GetDataset(ctx context.Context, id string) (*models.DatasetRecord, error)

	// UpdateDataset applies the mutator atomically and returns the updated snapshot
	UpdateDataset(ctx context.Context, id string, mutate DatasetMutator) (*models.DatasetRecord, error)

	// ListDatasets returns records matching the filter, newest first
	ListDatasets(ctx context.Context, filter *DatasetFilter) ([]*models.DatasetRecord, error)

	// CountDatasets counts records in the given state ("" counts everything)
	CountDatasets(ctx context.Context, state models.DatasetState) (int, error)

	// DeleteDataset removes a record
	DeleteDataset(ctx context.Context, id string) error
}
