package models

// LogEntry represents a single log entry with extensible context.
// Used for all persistent logging: job logs, dataset build logs, system logs.
//
// All metadata is stored in the Context map for consistency and flexibility.
// Badgerhold indexes on the dedicated fields enable efficient queries.
//
// Common Context Keys:
//   - dataset_id: Dataset build that generated this log
//   - worker_id: Pool worker that generated this log
//   - kind: Job kind (lora, qlora, continuous)
//   - phase: "submit", "train", "export"
//   - originator: "worker", "pipeline", "system"
//
// Timestamp Format:
//   - Timestamp: "15:04:05.000" (HH:MM:SS.mmm) for display
//   - FullTimestamp: RFC3339Nano for accurate sorting
//
// Log Levels: "debug", "info", "warn", "error"
type LogEntry struct {
	// Core fields
	Timestamp     string `json:"timestamp"`                // HH:MM:SS.mmm format for display
	FullTimestamp string `json:"full_timestamp"`           // RFC3339Nano for sorting
	Level         string `json:"level" badgerhold:"index"` // Log level (indexed)
	Message       string `json:"message"`                  // Log message

	// LineNumber is a per-job monotonically increasing counter (1-based)
	// This provides stable, contiguous line numbers for each job's logs
	LineNumber int `json:"line_number" badgerhold:"index"`

	// Sequence is a global counter for stable ordering when timestamps are identical
	// Format: UnixNano timestamp + sequence counter (e.g., "1702393191123456789_0000000001")
	Sequence string `json:"sequence" badgerhold:"index"`

	// JobIDField is the primary query field - stored separately for efficient
	// badgerhold indexing (badgerhold cannot query into map fields)
	// Access via JobID() method for consistency with other getters
	JobIDField string `json:"job_id" badgerhold:"index"`

	// Context stores additional metadata as key-value pairs
	// Standard keys: dataset_id, worker_id, kind, phase, originator
	Context map[string]string `json:"context,omitempty"`
}

// JobLogBatch is the payload published on the internal event bus when a
// batch of entries has been persisted for a job. WebSocket subscribers use
// it for live log tailing.
type JobLogBatch struct {
	JobID   string      `json:"job_id"`
	Entries []*LogEntry `json:"entries"`
}

// Context key constants for consistent access
const (
	LogCtxJobID      = "job_id"
	LogCtxDatasetID  = "dataset_id"
	LogCtxWorkerID   = "worker_id"
	LogCtxKind       = "kind"
	LogCtxPhase      = "phase"
	LogCtxOriginator = "originator"
)

// GetContext safely retrieves a context value
func (e *LogEntry) GetContext(key string) string {
	if e.Context == nil {
		return ""
	}
	return e.Context[key]
}

// SetContext safely sets a context value (initializes map if needed)
func (e *LogEntry) SetContext(key, value string) {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	if value != "" {
		e.Context[key] = value
	}
}

// Convenience getters for common fields
// JobID returns the job ID from the dedicated indexed field
func (e *LogEntry) JobID() string      { return e.JobIDField }
func (e *LogEntry) DatasetID() string  { return e.GetContext(LogCtxDatasetID) }
func (e *LogEntry) WorkerID() string   { return e.GetContext(LogCtxWorkerID) }
func (e *LogEntry) Kind() string       { return e.GetContext(LogCtxKind) }
func (e *LogEntry) Phase() string      { return e.GetContext(LogCtxPhase) }
func (e *LogEntry) Originator() string { return e.GetContext(LogCtxOriginator) }
