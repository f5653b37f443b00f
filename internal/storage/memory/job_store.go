package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ternarybob/doceo/internal/interfaces"
	"github.com/ternarybob/doceo/internal/models"
)

// JobStore implements the JobStore interface with an in-memory map.
// Reads and writes operate on clones so callers never share memory with
// the stored records.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]*models.TrainingJob
}

// NewJobStore creates a new in-memory JobStore
func NewJobStore() interfaces.JobStore {
	return &JobStore{
		jobs: make(map[string]*models.TrainingJob),
	}
}

func (s *JobStore) SaveJob(ctx context.Context, job *models.TrainingJob) error {
	if job == nil || job.ID == "" {
		return fmt.Errorf("%w: job ID is required", models.ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.ID]; exists {
		return fmt.Errorf("%w: job %s already exists", models.ErrStateConflict, job.ID)
	}
	s.jobs[job.ID] = job.Clone()
	return nil
}

func (s *JobStore) GetJob(ctx context.Context, id string) (*models.TrainingJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: job %s", models.ErrNotFound, id)
	}
	return job.Clone(), nil
}

// UpdateJob applies the mutator under the write lock and validates the state
// machine before persisting. Terminal jobs are immutable.
func (s *JobStore) UpdateJob(ctx context.Context, id string, mutate interfaces.JobMutator) (*models.TrainingJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: job %s", models.ErrNotFound, id)
	}

	prevState := stored.State
	if prevState.IsTerminal() {
		return nil, fmt.Errorf("%w: job %s is %s", models.ErrStateConflict, id, prevState)
	}

	// Mutate a clone so a failed update leaves the stored record untouched
	job := stored.Clone()
	if err := mutate(job); err != nil {
		return nil, err
	}

	if job.State != prevState && !prevState.CanTransitionTo(job.State) {
		return nil, fmt.Errorf("%w: job %s cannot move %s -> %s", models.ErrStateConflict, id, prevState, job.State)
	}

	s.jobs[id] = job
	return job.Clone(), nil
}

func (s *JobStore) ListJobs(ctx context.Context, filter *interfaces.JobFilter) ([]*models.TrainingJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*models.TrainingJob
	for _, job := range s.jobs {
		if filter != nil {
			if filter.State != "" && job.State != filter.State {
				continue
			}
			if filter.Kind != "" && job.Kind != filter.Kind {
				continue
			}
			if filter.Tag != "" && !hasTag(job.Tags, filter.Tag) {
				continue
			}
		}
		result = append(result, job.Clone())
	}

	// Newest first
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if filter != nil {
		if filter.Skip > 0 {
			if filter.Skip >= len(result) {
				return nil, nil
			}
			result = result[filter.Skip:]
		}
		if filter.Limit > 0 && len(result) > filter.Limit {
			result = result[:filter.Limit]
		}
	}

	return result, nil
}

func (s *JobStore) CountJobs(ctx context.Context, state models.JobState) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if state == "" {
		return len(s.jobs), nil
	}

	count := 0
	for _, job := range s.jobs {
		if job.State == state {
			count++
		}
	}
	return count, nil
}

func (s *JobStore) DeleteJob(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[id]; !ok {
		return fmt.Errorf("%w: job %s", models.ErrNotFound, id)
	}
	delete(s.jobs, id)
	return nil
}

func (s *JobStore) DeleteTerminalJobsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for id, job := range s.jobs {
		if !job.State.IsTerminal() {
			continue
		}
		if job.CompletedAt == nil || !job.CompletedAt.Before(cutoff) {
			continue
		}
		delete(s.jobs, id)
		deleted++
	}
	return deleted, nil
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}
