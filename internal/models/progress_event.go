// -----------------------------------------------------------------------
// Progress Event - Hub fan-out payload for job and dataset lifecycle
// -----------------------------------------------------------------------

package models

import (
	"time"
)

// ProgressEventType identifies what a progress event reports
type ProgressEventType string

const (
	// Job lifecycle events, one per state transition
	EventJobQueued    ProgressEventType = "job_queued"
	EventJobStarted   ProgressEventType = "job_started"
	EventJobCompleted ProgressEventType = "job_completed"
	EventJobFailed    ProgressEventType = "job_failed"
	EventJobCancelled ProgressEventType = "job_cancelled"

	// EventJobProgress reports epoch ticks while a job is running
	EventJobProgress ProgressEventType = "job_progress"

	// Dataset build lifecycle events
	EventDatasetCreated   ProgressEventType = "dataset_created"
	EventDatasetProgress  ProgressEventType = "dataset_progress"
	EventDatasetCompleted ProgressEventType = "dataset_completed"
	EventDatasetFailed    ProgressEventType = "dataset_failed"
)

// ProgressEvent is the payload delivered to hub subscribers.
// Events for a given job are published in transition order; subscribers
// that cannot keep up are disconnected rather than blocking publishers.
type ProgressEvent struct {
	Type ProgressEventType `json:"type"`

	JobID     string `json:"job_id,omitempty"`
	DatasetID string `json:"dataset_id,omitempty"`

	// State is the job or dataset state after the transition
	State string `json:"state,omitempty"`

	// Epoch progress, populated for job_progress and job terminal events
	CurrentEpoch int     `json:"current_epoch,omitempty"`
	TotalEpochs  int     `json:"total_epochs,omitempty"`
	Percent      float64 `json:"percent,omitempty"`

	// DocumentCount is the running total of kept documents for dataset_progress
	DocumentCount int `json:"document_count,omitempty"`

	// Message carries the error text for failure events, or a short note
	Message string `json:"message,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// NewJobEvent builds an event from a job snapshot
func NewJobEvent(eventType ProgressEventType, job *TrainingJob) ProgressEvent {
	evt := ProgressEvent{
		Type:      eventType,
		JobID:     job.ID,
		State:     string(job.State),
		Timestamp: time.Now().UTC(),
	}
	evt.CurrentEpoch = job.Progress.CurrentEpoch
	evt.TotalEpochs = job.Progress.TotalEpochs
	evt.Percent = job.Progress.Percent
	if eventType == EventJobFailed {
		evt.Message = job.Error
	}
	return evt
}

// NewDatasetEvent builds an event from a dataset record snapshot
func NewDatasetEvent(eventType ProgressEventType, record *DatasetRecord) ProgressEvent {
	evt := ProgressEvent{
		Type:      eventType,
		DatasetID: record.ID,
		State:     string(record.State),
		Timestamp: time.Now().UTC(),
	}
	if eventType == EventDatasetFailed {
		evt.Message = record.Error
	}
	return evt
}

// NewDatasetProgressEvent reports the running document count during a build
func NewDatasetProgressEvent(datasetID string, documentCount int) ProgressEvent {
	return ProgressEvent{
		Type:          EventDatasetProgress,
		DatasetID:     datasetID,
		State:         string(DatasetStateProcessing),
		DocumentCount: documentCount,
		Timestamp:     time.Now().UTC(),
	}
}
