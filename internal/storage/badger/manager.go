package badger

import (
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/doceo/internal/common"
	"github.com/ternarybob/doceo/internal/interfaces"
)

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db       *BadgerDB
	job      interfaces.JobStore
	dataset  interfaces.DatasetStore
	document interfaces.DocumentStore
	log      interfaces.LogStore
	logger   arbor.ILogger
}

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (interfaces.StorageManager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:       db,
		job:      NewJobStore(db, logger),
		dataset:  NewDatasetStore(db, logger),
		document: NewDocumentStore(db, logger),
		log:      NewLogStore(db, logger),
		logger:   logger,
	}

	logger.Info().Msg("Badger storage manager initialized")

	return manager, nil
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

// Close closes the underlying database
func (m *Manager) Close() error {
	m.logger.Debug().Msg("Closing Badger storage manager")
	return m.db.Close()
}
