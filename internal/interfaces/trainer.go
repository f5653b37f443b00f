package interfaces

import (
	"context"

	"github.com/ternarybob/doceo/internal/models"
)

// TrainerResult is what a trainer reports on successful completion
type TrainerResult struct {
	// ArtifactRef points at the produced adapter weights
	ArtifactRef string `json:"artifact_ref"`

	// Metrics are final training metrics (loss, perplexity, etc.)
	Metrics map[string]float64 `json:"metrics,omitempty"`
}

// TrainerProgressFunc receives epoch ticks while training runs.
// Implementations call it from the training goroutine; receivers must not block.
type TrainerProgressFunc func(currentEpoch, totalEpochs int)

// Trainer executes the actual fine-tuning for one job.
// This interface abstracts the training implementation, allowing different
// backends (simulated, external process, remote service) to be used
// interchangeably. Implementations must honor context cancellation promptly:
// a cancelled context means the worker is being abandoned.
type Trainer interface {
	// Run trains the adapter described by the job and returns the result.
	// Progress may be nil when the caller does not need epoch ticks.
	Run(ctx context.Context, job *models.TrainingJob, progress TrainerProgressFunc) (*TrainerResult, error)

	// Name identifies the trainer implementation for logs and stats
	Name() string
}
