package interfaces

import (
	"context"
)

// PoolStats is a point-in-time snapshot of worker pool state
type PoolStats struct {
	Running       int   `json:"running"`        // Jobs currently executing
	Queued        int   `json:"queued"`         // Jobs waiting for a worker
	MaxConcurrent int   `json:"max_concurrent"` // Configured worker count
	QueueCapacity int   `json:"queue_capacity"` // Configured backlog limit
	Processed     int64 `json:"processed"`      // Jobs finished successfully since start
	Failed        int64 `json:"failed"`         // Jobs that ended in failure since start
	Cancelled     int64 `json:"cancelled"`      // Jobs cancelled before running since start
}

// PoolService - bounded worker pool executing training jobs in FIFO order
//
// The pool never runs more than MaxConcurrent jobs at once. Submit enqueues
// an already-persisted job; Cancel only takes effect before a worker picks
// the job up.
type PoolService interface {
	// Start launches the worker goroutines. Idempotent.
	Start(ctx context.Context) error

	// Stop drains the pool: no new jobs are accepted, running jobs get the
	// grace period to finish. Stragglers are abandoned and left in the
	// running state; Stop itself returns within a bounded time.
	Stop(ctx context.Context) error

	// Submit queues a pending job for execution. The job moves to queued and
	// a job_queued event is published. Fails with models.ErrQueueFull when
	// the backlog is at capacity and models.ErrShuttingDown after Stop.
	Submit(ctx context.Context, jobID string) error

	// Cancel removes a queued job before execution. Returns true if the job
	// was cancelled, false if it already started or finished.
	Cancel(ctx context.Context, jobID string) (bool, error)

	// Stats returns a snapshot of pool counters
	Stats() PoolStats

	// IsRunning returns true between Start and Stop
	IsRunning() bool
}
