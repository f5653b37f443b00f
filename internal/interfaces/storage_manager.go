package interfaces

// StorageManager owns the storage backends and hands out typed stores.
// The badger implementation shares one database across stores; the memory
// implementation backs tests and ephemeral runs.
type StorageManager interface {
	JobStore() JobStore
	DatasetStore() DatasetStore
	DocumentStore() DocumentStore
	LogStore() LogStore

	// Close releases underlying resources. Safe to call once.
	Close() error
}
