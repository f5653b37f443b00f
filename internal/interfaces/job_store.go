package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/doceo/internal/models"
)

// JobFilter narrows ListJobs results. Zero values mean "no filter".
type JobFilter struct {
	State models.JobState
	Kind  models.JobKind
	Tag   string
	Limit int
	Skip  int
}

// JobMutator is applied to a job inside the store's update lock.
// Returning an error aborts the update without persisting anything.
type JobMutator func(job *models.TrainingJob) error

// JobStore - interface for training job persistence
//
// Implementations must enforce the job state machine: an update whose
// mutator produces an illegal state transition fails with ErrStateConflict.
// All reads return defensive copies.
type JobStore interface {
	// SaveJob persists a new job. Fails if the ID already exists.
	SaveJob(ctx context.Context, job *models.TrainingJob) error

	// GetJob returns the job or models.ErrNotFound
	GetJob(ctx context.Context, id string) (*models.TrainingJob, error)

	// UpdateJob applies the mutator atomically and returns the updated snapshot.
	// State transitions are validated after the mutator runs.
	UpdateJob(ctx context.Context, id string, mutate JobMutator) (*models.TrainingJob, error)

	// ListJobs returns jobs matching the filter, newest first
	ListJobs(ctx context.Context, filter *JobFilter) ([]*models.TrainingJob, error)

	// CountJobs counts jobs in the given state ("" counts everything)
	CountJobs(ctx context.Context, state models.JobState) (int, error)

	// DeleteJob removes a job record
	DeleteJob(ctx context.Context, id string) error

	// DeleteTerminalJobsBefore removes terminal jobs completed before the cutoff.
	// Returns the number of jobs deleted. Used by the retention scheduler.
	DeleteTerminalJobsBefore(ctx context.Context, cutoff time.Time) (int, error)
}
