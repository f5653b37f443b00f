package events

import (
	"context"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/doceo/internal/interfaces"
	"github.com/ternarybob/doceo/internal/models"
)

// NewLoggerSubscriber creates an event handler that logs bus traffic at
// debug level. Useful as a default subscriber during development.
func NewLoggerSubscriber(logger arbor.ILogger) interfaces.EventHandler {
	return func(ctx context.Context, event interfaces.Event) error {
		logEvent := logger.Debug().
			Str("event_type", string(event.Type))

		switch payload := event.Payload.(type) {
		case *models.JobLogBatch:
			logEvent = logEvent.
				Str("job_id", payload.JobID).
				Int("entries", len(payload.Entries))
		case map[string]interface{}:
			if id, ok := payload["job_id"].(string); ok && id != "" {
				logEvent = logEvent.Str("job_id", id)
			}
			if id, ok := payload["dataset_id"].(string); ok && id != "" {
				logEvent = logEvent.Str("dataset_id", id)
			}
		}

		logEvent.Msg("Event received")
		return nil
	}
}
