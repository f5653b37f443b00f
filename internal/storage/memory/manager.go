// Package memory provides an in-memory StorageManager used by tests and
// ephemeral runs (storage.type = "memory"). Semantics mirror the Badger
// implementation, including state machine enforcement on updates.
package memory

import (
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/doceo/internal/interfaces"
)

// Manager implements the StorageManager interface in memory
type Manager struct {
	job      interfaces.JobStore
	dataset  interfaces.DatasetStore
	document interfaces.DocumentStore
	log      interfaces.LogStore
	logger   arbor.ILogger
}

// NewManager creates a new in-memory storage manager
func NewManager(logger arbor.ILogger) interfaces.StorageManager {
	return &Manager{
		job:      NewJobStore(),
		dataset:  NewDatasetStore(),
		document: NewDocumentStore(),
		log:      NewLogStore(),
		logger:   logger,
	}
}

// JobStore returns the training job store
func (m *Manager) JobStore() interfaces.JobStore {
	return m.job
}

// DatasetStore returns the dataset record store
func (m *Manager) DatasetStore() interfaces.DatasetStore {
	return m.dataset
}

// DocumentStore returns the corpus document store
func (m *Manager) DocumentStore() interfaces.DocumentStore {
	return m.document
}

// LogStore returns the job log store
func (m *Manager) LogStore() interfaces.LogStore {
	return m.log
}

// Close is a no-op for the in-memory manager
func (m *Manager) Close() error {
	return nil
}
