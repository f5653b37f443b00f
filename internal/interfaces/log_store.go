package interfaces

import (
	"context"

	"github.com/ternarybob/doceo/internal/models"
)

// LogStore - interface for persistent job log storage
//
// Entries are appended under monotonically increasing sequence keys so a
// job's logs read back in write order without sorting.
type LogStore interface {
	// AppendJobLogs writes a batch of entries for a job, assigning line numbers
	AppendJobLogs(ctx context.Context, jobID string, entries []*models.LogEntry) error

	// GetJobLogs returns entries for a job in line order
	GetJobLogs(ctx context.Context, jobID string, limit, offset int) ([]*models.LogEntry, error)

	// CountJobLogs returns the number of stored entries for a job
	CountJobLogs(ctx context.Context, jobID string) (int, error)

	// DeleteJobLogs removes all entries for a job
	DeleteJobLogs(ctx context.Context, jobID string) error
}
