package models

import "errors"

// Sentinel errors shared across stores, services, and handlers.
// Wrap with fmt.Errorf("%w: detail", ...) and test with errors.Is.
var (
	// ErrNotFound indicates the requested job, dataset, or document does not exist
	ErrNotFound = errors.New("not found")

	// ErrInvalidArgument indicates the caller supplied an unusable value
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrStateConflict indicates an operation that the state machine forbids,
	// such as mutating a terminal job
	ErrStateConflict = errors.New("state conflict")

	// ErrQueueFull indicates the worker pool backlog is at capacity
	ErrQueueFull = errors.New("queue full")

	// ErrShuttingDown indicates the service is stopping and rejects new work
	ErrShuttingDown = errors.New("shutting down")

	// ErrUnsupportedFormat indicates an export format the pipeline does not
	// produce, or an upload media type the corpus cannot ingest
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrUnauthorized indicates a missing or unknown bearer token
	ErrUnauthorized = errors.New("unauthorized")
)
