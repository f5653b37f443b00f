package interfaces

import (
	"context"

	"github.com/ternarybob/doceo/internal/models"
)

// DatasetService coordinates dataset builds.
// CreateDataset persists a pending record and kicks off the build pipeline
// in the background; callers poll the record or subscribe to the hub for
// completion.
type DatasetService interface {
	// CreateDataset validates the request, persists a pending record, and
	// starts the build. The returned record is the pending snapshot.
	CreateDataset(ctx context.Context, req *models.DatasetRequest, identity models.Identity) (*models.DatasetRecord, error)

	// GetDataset returns the record or models.ErrNotFound
	GetDataset(ctx context.Context, id string) (*models.DatasetRecord, error)

	// ListDatasets returns records matching the filter, newest first
	ListDatasets(ctx context.Context, filter *DatasetFilter) ([]*models.DatasetRecord, error)
}
