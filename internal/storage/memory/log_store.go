package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/doceo/internal/interfaces"
	"github.com/ternarybob/doceo/internal/models"
)

// LogStore implements the LogStore interface with in-memory per-job slices
type LogStore struct {
	mu      sync.RWMutex
	entries map[string][]*models.LogEntry
	seq     uint64
}

// NewLogStore creates a new in-memory LogStore
func NewLogStore() interfaces.LogStore {
	return &LogStore{
		entries: make(map[string][]*models.LogEntry),
	}
}

func (s *LogStore) AppendJobLogs(ctx context.Context, jobID string, entries []*models.LogEntry) error {
	if jobID == "" {
		return fmt.Errorf("%w: job ID is required", models.ErrInvalidArgument)
	}
	if len(entries) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.entries[jobID]
	line := len(existing)
	for _, entry := range entries {
		if entry == nil {
			continue
		}
		line++
		s.seq++
		entry.JobIDField = jobID
		entry.LineNumber = line
		if entry.Sequence == "" {
			entry.Sequence = fmt.Sprintf("%d_%010d", time.Now().UnixNano(), s.seq)
		}
		stored := *entry
		existing = append(existing, &stored)
	}
	s.entries[jobID] = existing
	return nil
}

func (s *LogStore) GetJobLogs(ctx context.Context, jobID string, limit, offset int) ([]*models.LogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.entries[jobID]
	if offset >= len(stored) {
		return nil, nil
	}
	if offset > 0 {
		stored = stored[offset:]
	}
	if limit > 0 && len(stored) > limit {
		stored = stored[:limit]
	}

	result := make([]*models.LogEntry, 0, len(stored))
	for _, entry := range stored {
		clone := *entry
		result = append(result, &clone)
	}
	return result, nil
}

func (s *LogStore) CountJobLogs(ctx context.Context, jobID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries[jobID]), nil
}

func (s *LogStore) DeleteJobLogs(ctx context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, jobID)
	return nil
}
