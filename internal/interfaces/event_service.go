package interfaces

import "context"

// EventType represents different event types in the system
type EventType string

const (
	// EventJobLogs carries a batch of persisted job log entries for live tails
	EventJobLogs EventType = "job_logs"

	// EventCleanupTriggered signals that terminal-job retention cleanup ran
	EventCleanupTriggered EventType = "cleanup_triggered"

	// EventCorpusIngested signals that a corpus scan finished
	EventCorpusIngested EventType = "corpus_ingested"
)

// Event represents a system event
type Event struct {
	Type    EventType
	Payload interface{}
}

// EventHandler is a function that handles events
type EventHandler func(ctx context.Context, event Event) error

// EventService manages the in-process pub/sub event bus.
// This is distinct from HubService: the hub fans progress events out to
// external subscribers, while this bus connects internal components
// (log consumer, scheduler, websocket bridge).
type EventService interface {
	// Subscribe to an event type
	Subscribe(eventType EventType, handler EventHandler) error

	// Unsubscribe from an event type
	Unsubscribe(eventType EventType, handler EventHandler) error

	// Publish an event to all subscribers asynchronously
	Publish(ctx context.Context, event Event) error

	// PublishSync publishes event and waits for all handlers to complete
	PublishSync(ctx context.Context, event Event) error

	// Close shuts down the event service
	Close() error
}
