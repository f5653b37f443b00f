package badger

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/doceo/internal/interfaces"
	"github.com/ternarybob/doceo/internal/models"
)

// logSequence is a global counter to ensure unique sequence values even when
// entries are written within the same nanosecond
var logSequence uint64

// LogStore implements the LogStore interface on the raw Badger key space.
// Entries live under "joblog:{jobID}:{line:020d}" keys, so a prefix scan
// returns a job's logs in write order without sorting.
type LogStore struct {
	db     *BadgerDB
	logger arbor.ILogger

	// lineCounters tracks the next line number per job
	// Key: jobID, Value: *uint64
	lineCounters sync.Map
}

// NewLogStore creates a new LogStore instance
func NewLogStore(db *BadgerDB, logger arbor.ILogger) interfaces.LogStore {
	return &LogStore{
		db:     db,
		logger: logger,
	}
}

func logKey(jobID string, line uint64) []byte {
	return []byte(fmt.Sprintf("joblog:%s:%020d", jobID, line))
}

func logPrefix(jobID string) []byte {
	return []byte(fmt.Sprintf("joblog:%s:", jobID))
}

// counterFor returns the line counter for a job, initializing it from the
// stored entry count so line numbers stay contiguous across restarts
func (s *LogStore) counterFor(ctx context.Context, jobID string) (*uint64, error) {
	if c, ok := s.lineCounters.Load(jobID); ok {
		return c.(*uint64), nil
	}

	count, err := s.CountJobLogs(ctx, jobID)
	if err != nil {
		return nil, err
	}

	counter := uint64(count)
	actual, _ := s.lineCounters.LoadOrStore(jobID, &counter)
	return actual.(*uint64), nil
}

func (s *LogStore) AppendJobLogs(ctx context.Context, jobID string, entries []*models.LogEntry) error {
	if jobID == "" {
		return fmt.Errorf("%w: job ID is required", models.ErrInvalidArgument)
	}
	if len(entries) == 0 {
		return nil
	}

	counter, err := s.counterFor(ctx, jobID)
	if err != nil {
		return err
	}

	return s.db.Store().Badger().Update(func(txn *badgerdb.Txn) error {
		for _, entry := range entries {
			line := atomic.AddUint64(counter, 1)
			seq := atomic.AddUint64(&logSequence, 1)

			entry.JobIDField = jobID
			entry.LineNumber = int(line)
			if entry.Sequence == "" {
				entry.Sequence = fmt.Sprintf("%d_%010d", time.Now().UnixNano(), seq)
			}

			data, err := json.Marshal(entry)
			if err != nil {
				return fmt.Errorf("failed to marshal log entry: %w", err)
			}
			if err := txn.Set(logKey(jobID, line), data); err != nil {
				return fmt.Errorf("failed to write log entry: %w", err)
			}
		}
		return nil
	})
}

func (s *LogStore) GetJobLogs(ctx context.Context, jobID string, limit, offset int) ([]*models.LogEntry, error) {
	var entries []*models.LogEntry

	err := s.db.Store().Badger().View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = logPrefix(jobID)
		it := txn.NewIterator(opts)
		defer it.Close()

		skipped := 0
		for it.Rewind(); it.Valid(); it.Next() {
			if offset > 0 && skipped < offset {
				skipped++
				continue
			}
			if limit > 0 && len(entries) >= limit {
				break
			}

			err := it.Item().Value(func(val []byte) error {
				var entry models.LogEntry
				if err := json.Unmarshal(val, &entry); err != nil {
					return fmt.Errorf("failed to unmarshal log entry: %w", err)
				}
				entries = append(entries, &entry)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get job logs: %w", err)
	}

	return entries, nil
}

func (s *LogStore) CountJobLogs(ctx context.Context, jobID string) (int, error) {
	count := 0
	err := s.db.Store().Badger().View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = logPrefix(jobID)
		opts.PrefetchValues = false // keys only
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count job logs: %w", err)
	}
	return count, nil
}

func (s *LogStore) DeleteJobLogs(ctx context.Context, jobID string) error {
	// Collect keys first; deleting while iterating invalidates the iterator
	var keys [][]byte
	err := s.db.Store().Badger().View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = logPrefix(jobID)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().KeyCopy(nil)
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to scan job logs: %w", err)
	}

	if len(keys) == 0 {
		return nil
	}

	err = s.db.Store().Badger().Update(func(txn *badgerdb.Txn) error {
		for _, key := range keys {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete job logs: %w", err)
	}

	s.lineCounters.Delete(jobID)
	return nil
}
