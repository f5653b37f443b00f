package badger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/doceo/internal/interfaces"
	"github.com/ternarybob/doceo/internal/models"
)

// JobStore implements the JobStore interface for Badger
type JobStore struct {
	db     *BadgerDB
	logger arbor.ILogger

	// updateMu serializes read-mutate-write cycles so concurrent updates
	// cannot interleave and skip state machine validation
	updateMu sync.Mutex
}

// NewJobStore creates a new JobStore instance
func NewJobStore(db *BadgerDB, logger arbor.ILogger) interfaces.JobStore {
	return &JobStore{
		db:     db,
		logger: logger,
	}
}

func (s *JobStore) SaveJob(ctx context.Context, job *models.TrainingJob) error {
	if job == nil || job.ID == "" {
		return fmt.Errorf("%w: job ID is required", models.ErrInvalidArgument)
	}

	if err := s.db.Store().Insert(job.ID, job); err != nil {
		if err == badgerhold.ErrKeyExists {
			return fmt.Errorf("%w: job %s already exists", models.ErrStateConflict, job.ID)
		}
		return fmt.Errorf("failed to save job: %w", err)
	}
	return nil
}

func (s *JobStore) GetJob(ctx context.Context, id string) (*models.TrainingJob, error) {
	var job models.TrainingJob
	if err := s.db.Store().Get(id, &job); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("%w: job %s", models.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &job, nil
}

// UpdateJob applies the mutator under the store lock and validates the state
// machine before persisting. Terminal jobs are immutable.
func (s *JobStore) UpdateJob(ctx context.Context, id string, mutate interfaces.JobMutator) (*models.TrainingJob, error) {
	s.updateMu.Lock()
	defer s.updateMu.Unlock()

	var job models.TrainingJob
	if err := s.db.Store().Get(id, &job); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("%w: job %s", models.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	prevState := job.State
	if prevState.IsTerminal() {
		return nil, fmt.Errorf("%w: job %s is %s", models.ErrStateConflict, id, prevState)
	}

	if err := mutate(&job); err != nil {
		return nil, err
	}

	if job.State != prevState && !prevState.CanTransitionTo(job.State) {
		return nil, fmt.Errorf("%w: job %s cannot move %s -> %s", models.ErrStateConflict, id, prevState, job.State)
	}

	if err := s.db.Store().Upsert(id, &job); err != nil {
		return nil, fmt.Errorf("failed to update job: %w", err)
	}

	return job.Clone(), nil
}

func (s *JobStore) ListJobs(ctx context.Context, filter *interfaces.JobFilter) ([]*models.TrainingJob, error) {
	query := badgerhold.Where("ID").Ne("")

	if filter != nil {
		if filter.State != "" {
			query = query.And("State").Eq(filter.State)
		}
		if filter.Kind != "" {
			query = query.And("Kind").Eq(filter.Kind)
		}
		if filter.Tag != "" {
			query = query.And("Tags").Contains(filter.Tag)
		}
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

	var jobs []models.TrainingJob
	if err := s.db.Store().Find(&jobs, query); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	result := make([]*models.TrainingJob, len(jobs))
	for i := range jobs {
		result[i] = &jobs[i]
	}
	return result, nil
}

func (s *JobStore) CountJobs(ctx context.Context, state models.JobState) (int, error) {
	query := badgerhold.Where("ID").Ne("")
	if state != "" {
		query = query.And("State").Eq(state)
	}

	count, err := s.db.Store().Count(&models.TrainingJob{}, query)
	if err != nil {
		return 0, fmt.Errorf("failed to count jobs: %w", err)
	}
	return int(count), nil
}

func (s *JobStore) DeleteJob(ctx context.Context, id string) error {
	if err := s.db.Store().Delete(id, &models.TrainingJob{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return fmt.Errorf("%w: job %s", models.ErrNotFound, id)
		}
		return fmt.Errorf("failed to delete job: %w", err)
	}
	return nil
}

// DeleteTerminalJobsBefore removes terminal jobs whose CompletedAt is before
// the cutoff. CompletedAt is a pointer field, so filtering happens in code
// rather than in the badgerhold query.
func (s *JobStore) DeleteTerminalJobsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	var jobs []models.TrainingJob
	query := badgerhold.Where("State").In(
		models.JobStateCompleted, models.JobStateFailed, models.JobStateCancelled)
	if err := s.db.Store().Find(&jobs, query); err != nil {
		return 0, fmt.Errorf("failed to find terminal jobs: %w", err)
	}

	deleted := 0
	for i := range jobs {
		if jobs[i].CompletedAt == nil || !jobs[i].CompletedAt.Before(cutoff) {
			continue
		}
		if err := s.db.Store().Delete(jobs[i].ID, &models.TrainingJob{}); err != nil {
			s.logger.Warn().Err(err).Str("job_id", jobs[i].ID).Msg("Failed to delete expired job")
			continue
		}
		deleted++
	}
	return deleted, nil
}
