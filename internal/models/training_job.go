// -----------------------------------------------------------------------
// Training Job - Adapter fine-tuning job structure and state machine
// -----------------------------------------------------------------------

package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// JobKind represents the type of adapter training a job performs
type JobKind string

const (
	// JobKindLoRA trains a low-rank adapter against a frozen base model
	JobKindLoRA JobKind = "lora"
	// JobKindQLoRA trains a low-rank adapter over a quantized base model
	JobKindQLoRA JobKind = "qlora"
	// JobKindContinuous runs continued pretraining on a raw text corpus
	JobKindContinuous JobKind = "continuous"
)

// JobState represents the lifecycle state of a training job
type JobState string

const (
	JobStatePending   JobState = "pending"
	JobStateQueued    JobState = "queued"
	JobStateRunning   JobState = "running"
	JobStateCompleted JobState = "completed"
	JobStateFailed    JobState = "failed"
	JobStateCancelled JobState = "cancelled"
)

// IsTerminal returns true for states a job can never leave
func (s JobState) IsTerminal() bool {
	return s == JobStateCompleted || s == JobStateFailed || s == JobStateCancelled
}

// CanTransitionTo reports whether the state machine allows moving to next.
// Valid paths: pending -> queued -> running -> completed/failed, and
// pending/queued -> cancelled. Terminal states are immutable.
func (s JobState) CanTransitionTo(next JobState) bool {
	switch s {
	case JobStatePending:
		return next == JobStateQueued || next == JobStateCancelled
	case JobStateQueued:
		return next == JobStateRunning || next == JobStateCancelled
	case JobStateRunning:
		return next == JobStateCompleted || next == JobStateFailed
	default:
		return false
	}
}

// JobProgress tracks training progress reported by the worker
type JobProgress struct {
	CurrentEpoch int     `json:"current_epoch"`
	TotalEpochs  int     `json:"total_epochs"`
	Percent      float64 `json:"percent"` // 0-100, derived from epochs unless the trainer reports finer granularity
}

// TrainingJob represents a single adapter fine-tuning job.
//
// Job State Lifecycle:
//  1. JobSubmission (API request) - validated caller input
//  2. TrainingJob (this struct) - persisted record, owned by the job store
//  3. Progress events - state changes published to hub subscribers
//
// All state mutations go through the store's Update method so that state
// machine rules are enforced in one place.
type TrainingJob struct {
	ID   string  `json:"id"` // job_{uuid}
	Kind JobKind `json:"kind"`

	Name        string `json:"name"`        // Human-readable job name
	Description string `json:"description"` // User-provided description

	State JobState `json:"state" badgerhold:"index"`

	// References (immutable after submission)
	ConfigRef  string `json:"config_ref"`  // Training config the trainer consumes (file path or registry key)
	DatasetRef string `json:"dataset_ref"` // Dataset the trainer consumes (dataset ID or export path)

	Priority int      `json:"priority"`       // Stored for callers; dispatch order is strictly FIFO
	Tags     []string `json:"tags,omitempty"` // User-defined tags for filtering

	CreatedBy string `json:"created_by,omitempty"` // Subject of the submitting identity

	// Timestamps
	CreatedAt   time.Time  `json:"created_at" badgerhold:"index"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	Progress JobProgress `json:"progress"`

	// Metrics reported by the trainer on completion (loss, perplexity, etc.)
	Metrics map[string]float64 `json:"metrics,omitempty"`

	// ArtifactRef points at the produced adapter weights, set on completion
	ArtifactRef string `json:"artifact_ref,omitempty"`

	// Error contains a concise description of why the job failed.
	// Only populated when job state is 'failed'.
	Error string `json:"error,omitempty"`

	// WorkerID identifies the pool worker that executed the job
	WorkerID string `json:"worker_id,omitempty"`
}

// JobSubmission is the caller-supplied request to create a training job
type JobSubmission struct {
	Kind        string   `json:"kind" validate:"required,oneof=lora qlora continuous"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	ConfigRef   string   `json:"config_ref" validate:"required"`
	DatasetRef  string   `json:"dataset_ref" validate:"required"`
	Priority    int      `json:"priority" validate:"gte=0,lte=100"`
	Tags        []string `json:"tags"`
}

// Validate validates the submission using go-playground/validator.
// Returns an error if any required fields are missing or invalid.
func (s *JobSubmission) Validate() error {
	validate := validator.New()
	return validate.Struct(s)
}

// NewTrainingJob creates a pending job from a validated submission
func NewTrainingJob(id string, sub *JobSubmission, createdBy string) *TrainingJob {
	name := sub.Name
	if name == "" {
		name = fmt.Sprintf("%s %s", sub.Kind, sub.DatasetRef)
	}
	return &TrainingJob{
		ID:          id,
		Kind:        JobKind(sub.Kind),
		Name:        name,
		Description: sub.Description,
		State:       JobStatePending,
		ConfigRef:   sub.ConfigRef,
		DatasetRef:  sub.DatasetRef,
		Priority:    sub.Priority,
		Tags:        sub.Tags,
		CreatedBy:   createdBy,
		CreatedAt:   time.Now().UTC(),
		Progress:    JobProgress{},
		Metrics:     map[string]float64{},
	}
}

// MarkQueued moves the job into the queued state
func (j *TrainingJob) MarkQueued() {
	j.State = JobStateQueued
}

// MarkRunning marks the job as picked up by a worker
func (j *TrainingJob) MarkRunning(workerID string) {
	j.State = JobStateRunning
	j.WorkerID = workerID
	now := time.Now().UTC()
	j.StartedAt = &now
}

// MarkCompleted marks the job as successfully finished
func (j *TrainingJob) MarkCompleted(artifactRef string, metrics map[string]float64) {
	j.State = JobStateCompleted
	j.ArtifactRef = artifactRef
	if metrics != nil {
		j.Metrics = metrics
	}
	j.Progress.Percent = 100
	now := time.Now().UTC()
	j.CompletedAt = &now
}

// MarkFailed marks the job as failed with an error message
func (j *TrainingJob) MarkFailed(errorMsg string) {
	j.State = JobStateFailed
	j.Error = errorMsg
	now := time.Now().UTC()
	j.CompletedAt = &now
}

// MarkCancelled marks the job as cancelled
func (j *TrainingJob) MarkCancelled() {
	j.State = JobStateCancelled
	now := time.Now().UTC()
	j.CompletedAt = &now
}

// IsTerminal returns true if the job is in a terminal state
func (j *TrainingJob) IsTerminal() bool {
	return j.State.IsTerminal()
}

// UpdateProgress records epoch progress and derives the overall percentage
func (j *TrainingJob) UpdateProgress(currentEpoch, totalEpochs int) {
	j.Progress.CurrentEpoch = currentEpoch
	j.Progress.TotalEpochs = totalEpochs
	if totalEpochs > 0 {
		j.Progress.Percent = float64(currentEpoch) / float64(totalEpochs) * 100
	}
}

// Clone creates a deep copy of the job. Stores return clones so callers
// can never mutate persisted state in place.
func (j *TrainingJob) Clone() *TrainingJob {
	clone := *j

	if j.Tags != nil {
		clone.Tags = make([]string, len(j.Tags))
		copy(clone.Tags, j.Tags)
	}
	if j.Metrics != nil {
		clone.Metrics = make(map[string]float64, len(j.Metrics))
		for k, v := range j.Metrics {
			clone.Metrics[k] = v
		}
	}
	if j.StartedAt != nil {
		t := *j.StartedAt
		clone.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		clone.CompletedAt = &t
	}

	return &clone
}

// ToJSON serializes the job for transport
func (j *TrainingJob) ToJSON() ([]byte, error) {
	data, err := json.Marshal(j)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal training job: %w", err)
	}
	return data, nil
}

// TrainingJobFromJSON deserializes a job from JSON
func TrainingJobFromJSON(data []byte) (*TrainingJob, error) {
	var job TrainingJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal training job: %w", err)
	}
	return &job, nil
}
