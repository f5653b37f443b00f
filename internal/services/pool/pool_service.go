package pool

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/doceo/internal/common"
	"github.com/ternarybob/doceo/internal/interfaces"
	"github.com/ternarybob/doceo/internal/models"
)

// errStale marks a queue item or progress tick whose job has moved on
// (cancelled while queued, or no longer running). Not an error condition.
var errStale = errors.New("job state moved on")

// errNotCancellable is returned by the cancel mutator when the job has
// already been picked up by a worker
var errNotCancellable = errors.New("job already started")

// Service is a bounded worker pool executing training jobs in FIFO order.
// Admission is serialized so the order jobs enter the queue matches the
// order the store observed their pending to queued transitions.
type Service struct {
	jobs    interfaces.JobStore
	trainer interfaces.Trainer
	hub     interfaces.HubService
	logger  arbor.ILogger

	maxConcurrent int
	queueCapacity int
	gracePeriod   time.Duration
	pollInterval  time.Duration

	queue chan string
	wg    sync.WaitGroup

	// ctx stops job pickup; trainerCtx is cancelled later, only when the
	// grace period elapses, so in-flight trainers get a chance to finish.
	ctx           context.Context
	cancel        context.CancelFunc
	trainerCtx    context.Context
	trainerCancel context.CancelFunc

	mu      sync.Mutex
	running bool
	stopped bool

	active    int32
	processed int64
	failures  int64
	cancelled int64
}

// NewService creates a worker pool over the given store, trainer and hub
func NewService(jobs interfaces.JobStore, trainer interfaces.Trainer, hubSvc interfaces.HubService, logger arbor.ILogger, config *common.WorkersConfig) *Service {
	maxConcurrent := config.MaxConcurrentJobs
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	queueCapacity := config.QueueCapacity
	if queueCapacity < 1 {
		queueCapacity = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	trainerCtx, trainerCancel := context.WithCancel(context.Background())

	return &Service{
		jobs:          jobs,
		trainer:       trainer,
		hub:           hubSvc,
		logger:        logger,
		maxConcurrent: maxConcurrent,
		queueCapacity: queueCapacity,
		gracePeriod:   config.GracePeriodDuration(),
		pollInterval:  config.PollIntervalDuration(),
		queue:         make(chan string, queueCapacity),
		ctx:           ctx,
		cancel:        cancel,
		trainerCtx:    trainerCtx,
		trainerCancel: trainerCancel,
	}
}

// Start launches the worker goroutines. Calling Start on a running pool is
// a no-op; a stopped pool cannot be restarted.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return fmt.Errorf("%w: pool cannot be restarted", models.ErrShuttingDown)
	}
	if s.running {
		return nil
	}
	s.running = true

	s.logger.Info().
		Int("max_concurrent", s.maxConcurrent).
		Int("queue_capacity", s.queueCapacity).
		Str("trainer", s.trainer.Name()).
		Msg("Starting worker pool")

	for i := 0; i < s.maxConcurrent; i++ {
		s.wg.Add(1)
		go s.worker(i + 1)
	}
	return nil
}

// Stop shuts the pool down. Workers finish their current job within the
// grace period; stragglers have their trainer context cancelled and are
// abandoned with the job left in the running state. Stop returns within
// the grace period plus a small margin.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.stopped = true
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.stopped = true
	s.mu.Unlock()

	s.logger.Info().Msg("Stopping worker pool...")
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	grace := time.NewTimer(s.gracePeriod)
	defer grace.Stop()

	select {
	case <-done:
		s.trainerCancel()
		s.logger.Info().
			Int64("processed", atomic.LoadInt64(&s.processed)).
			Msg("Worker pool stopped")
		return nil
	case <-grace.C:
	case <-ctx.Done():
	}

	// Grace elapsed. Kill in-flight trainers and walk away; the abandoned
	// jobs keep their running state in the store.
	abandoned := atomic.LoadInt32(&s.active)
	s.trainerCancel()
	s.logger.Warn().
		Int("abandoned", int(abandoned)).
		Msg("Grace period elapsed, abandoning running jobs")
	return nil
}

// Submit queues a pending job for execution. The capacity check, the state
// transition and the enqueue happen under one lock: workers only ever drain
// the queue, so a send after a successful capacity check cannot block, and
// a full queue is reported before any state changes.
func (s *Service) Submit(ctx context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return models.ErrShuttingDown
	}
	if len(s.queue) >= s.queueCapacity {
		return models.ErrQueueFull
	}

	job, err := s.jobs.UpdateJob(ctx, jobID, func(j *models.TrainingJob) error {
		if j.State != models.JobStatePending {
			return fmt.Errorf("%w: job is %s, want %s", models.ErrStateConflict, j.State, models.JobStatePending)
		}
		j.MarkQueued()
		return nil
	})
	if err != nil {
		return err
	}

	// Publish before the enqueue: a worker can dequeue the instant the send
	// lands, and its job_started event must not overtake job_queued.
	s.hub.Publish(models.NewJobEvent(models.EventJobQueued, job))
	s.queue <- jobID

	s.logger.Info().
		Str("job_id", jobID).
		Str("kind", string(job.Kind)).
		Int("queued", len(s.queue)).
		Msg("Job queued")
	return nil
}

// Cancel stops a job before a worker picks it up. Returns true when the
// job was cancelled, false when it already started or finished. The queue
// item stays behind; workers discard it on pickup.
func (s *Service) Cancel(ctx context.Context, jobID string) (bool, error) {
	// Serialized with Submit so a job_cancelled event can never overtake
	// the job_queued event for the same job
	s.mu.Lock()
	defer s.mu.Unlock()

	job, err := s.jobs.UpdateJob(ctx, jobID, func(j *models.TrainingJob) error {
		if j.State != models.JobStatePending && j.State != models.JobStateQueued {
			return errNotCancellable
		}
		j.MarkCancelled()
		return nil
	})
	if err != nil {
		if errors.Is(err, errNotCancellable) || errors.Is(err, models.ErrStateConflict) {
			return false, nil
		}
		return false, err
	}

	atomic.AddInt64(&s.cancelled, 1)
	s.logger.Info().
		Str("job_id", jobID).
		Msg("Job cancelled")
	s.hub.Publish(models.NewJobEvent(models.EventJobCancelled, job))
	return true, nil
}

// Stats returns a snapshot of pool counters
func (s *Service) Stats() interfaces.PoolStats {
	return interfaces.PoolStats{
		Running:       int(atomic.LoadInt32(&s.active)),
		Queued:        len(s.queue),
		MaxConcurrent: s.maxConcurrent,
		QueueCapacity: s.queueCapacity,
		Processed:     atomic.LoadInt64(&s.processed),
		Failed:        atomic.LoadInt64(&s.failures),
		Cancelled:     atomic.LoadInt64(&s.cancelled),
	}
}

// IsRunning returns true between Start and Stop
func (s *Service) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// worker is the main worker loop
func (s *Service) worker(workerID int) {
	defer s.wg.Done()

	s.logger.Debug().
		Int("worker_id", workerID).
		Msg("Worker started")

	for {
		select {
		case <-s.ctx.Done():
			s.logger.Debug().
				Int("worker_id", workerID).
				Msg("Worker stopping")
			return
		case jobID := <-s.queue:
			s.runJob(workerID, jobID)
		case <-time.After(s.pollInterval):
			// Re-check shutdown on an idle queue
		}
	}
}

// runJob takes one queue item through pickup, training and the terminal
// state transition. A panicking trainer fails its own job and nothing else.
func (s *Service) runJob(workerID int, jobID string) {
	logger := s.logger.WithCorrelationId(jobID)

	defer func() {
		if r := recover(); r != nil {
			logger.Error().
				Str("job_id", jobID).
				Str("panic", fmt.Sprintf("%v", r)).
				Str("stack", string(debug.Stack())).
				Msg("Recovered panic in worker")
			s.markFailed(jobID, fmt.Sprintf("panic: %v", r))
		}
	}()

	job, err := s.jobs.UpdateJob(context.Background(), jobID, func(j *models.TrainingJob) error {
		if j.State != models.JobStateQueued {
			return errStale
		}
		j.MarkRunning(fmt.Sprintf("worker-%d", workerID))
		return nil
	})
	if err != nil {
		if errors.Is(err, errStale) || errors.Is(err, models.ErrStateConflict) {
			// Cancelled while queued
			logger.Debug().
				Str("job_id", jobID).
				Msg("Discarding stale queue item")
		} else {
			logger.Error().
				Err(err).
				Str("job_id", jobID).
				Msg("Failed to pick up queued job")
		}
		return
	}

	atomic.AddInt32(&s.active, 1)
	defer atomic.AddInt32(&s.active, -1)

	logger.Info().
		Str("job_id", jobID).
		Int("worker_id", workerID).
		Str("kind", string(job.Kind)).
		Str("dataset_ref", job.DatasetRef).
		Msg("Job started")
	s.hub.Publish(models.NewJobEvent(models.EventJobStarted, job))

	result, runErr := s.trainer.Run(s.trainerCtx, job, func(currentEpoch, totalEpochs int) {
		s.reportProgress(jobID, currentEpoch, totalEpochs)
	})

	if runErr != nil {
		if s.trainerCtx.Err() != nil {
			// Shutdown abandonment: the job keeps its running state
			logger.Warn().
				Str("job_id", jobID).
				Msg("Job abandoned during shutdown")
			return
		}
		s.markFailed(jobID, runErr.Error())
		return
	}

	completed, err := s.jobs.UpdateJob(context.Background(), jobID, func(j *models.TrainingJob) error {
		j.MarkCompleted(result.ArtifactRef, result.Metrics)
		return nil
	})
	if err != nil {
		logger.Error().
			Err(err).
			Str("job_id", jobID).
			Msg("Failed to mark job completed")
		return
	}

	atomic.AddInt64(&s.processed, 1)
	logger.Info().
		Str("job_id", jobID).
		Str("artifact_ref", result.ArtifactRef).
		Msg("Job completed")
	s.hub.Publish(models.NewJobEvent(models.EventJobCompleted, completed))
}

// reportProgress persists an epoch tick and fans it out. Ticks that arrive
// after the job left the running state are dropped.
func (s *Service) reportProgress(jobID string, currentEpoch, totalEpochs int) {
	job, err := s.jobs.UpdateJob(context.Background(), jobID, func(j *models.TrainingJob) error {
		if j.State != models.JobStateRunning {
			return errStale
		}
		j.UpdateProgress(currentEpoch, totalEpochs)
		return nil
	})
	if err != nil {
		s.logger.Debug().
			Str("job_id", jobID).
			Int("epoch", currentEpoch).
			Msg("Dropped progress update")
		return
	}
	s.hub.Publish(models.NewJobEvent(models.EventJobProgress, job))
}

// markFailed records a terminal failure and publishes the event
func (s *Service) markFailed(jobID, message string) {
	failed, err := s.jobs.UpdateJob(context.Background(), jobID, func(j *models.TrainingJob) error {
		j.MarkFailed(message)
		return nil
	})
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("job_id", jobID).
			Msg("Failed to mark job failed")
		return
	}

	atomic.AddInt64(&s.failures, 1)
	s.logger.Warn().
		Str("job_id", jobID).
		Str("error", message).
		Msg("Job failed")
	s.hub.Publish(models.NewJobEvent(models.EventJobFailed, failed))
}
