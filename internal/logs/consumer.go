package logs

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/phuslu/log"
	"github.com/ternarybob/arbor"
	arborlevels "github.com/ternarybob/arbor/levels"
	arbormodels "github.com/ternarybob/arbor/models"

	"github.com/ternarybob/doceo/internal/interfaces"
	"github.com/ternarybob/doceo/internal/models"
)

// Consumer drains log batches from arbor's context channel, persists
// job-scoped entries and republishes notable lines on the event bus.
//
// Workers log through logger.WithCorrelationId(jobID); the correlation id
// is the grouping key, so entries without one never reach job storage.
type Consumer struct {
	store         interfaces.LogStore
	eventService  interfaces.EventService
	logger        arbor.ILogger
	channel       chan []arbormodels.LogEvent
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	minEventLevel arbor.LogLevel // Minimum log level to publish as events
}

// NewConsumer creates a new log consumer
func NewConsumer(store interfaces.LogStore, eventService interfaces.EventService, logger arbor.ILogger, minEventLevel string) *Consumer {
	ctx, cancel := context.WithCancel(context.Background())
	return &Consumer{
		store:         store,
		eventService:  eventService,
		logger:        logger,
		channel:       make(chan []arbormodels.LogEvent, 10),
		ctx:           ctx,
		cancel:        cancel,
		minEventLevel: parseLogLevel(minEventLevel),
	}
}

// parseLogLevel converts string log level to arbor.LogLevel
func parseLogLevel(levelStr string) arbor.LogLevel {
	switch strings.ToLower(levelStr) {
	case "debug":
		return arbor.DebugLevel
	case "info":
		return arbor.InfoLevel
	case "warn", "warning":
		return arbor.WarnLevel
	case "error":
		return arbor.ErrorLevel
	default:
		return arbor.InfoLevel
	}
}

// normalizeLevel maps arbor/phuslu level names to the stored lowercase form
func normalizeLevel(level string) string {
	lower := strings.ToLower(level)
	if lower == "warning" {
		return "warn"
	}
	return lower
}

// GetChannel returns the channel for arbor to send log batches to
func (c *Consumer) GetChannel() chan []arbormodels.LogEvent {
	return c.channel
}

// Start launches the consumer goroutine
func (c *Consumer) Start() error {
	c.wg.Add(1)
	go c.consume()
	return nil
}

// Stop gracefully shuts down the consumer
func (c *Consumer) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	c.logger.Info().Msg("Log consumer stopped")
	return nil
}

// consume processes log batches from arbor and dispatches to destinations
func (c *Consumer) consume() {
	defer c.wg.Done()

	defer func() {
		if r := recover(); r != nil {
			// Log without correlation ID so the entry cannot re-enter the channel path
			c.logger.Error().
				Str("panic", fmt.Sprintf("%v", r)).
				Msg("Log consumer panic recovered")
		}
	}()

	for {
		select {
		case batch, ok := <-c.channel:
			if !ok {
				return
			}
			c.processBatch(batch)

		case <-c.ctx.Done():
			return
		}
	}
}

// processBatch groups a batch by job id, persists each group and publishes
// entries at or above the event threshold
func (c *Consumer) processBatch(batch []arbormodels.LogEvent) {
	entriesByJob := make(map[string][]*models.LogEntry)
	notableByJob := make(map[string][]*models.LogEntry)

	for _, event := range batch {
		// Transport-level noise carries a correlation ID for request tracing
		// but does not belong in job logs
		if isTransportNoise(event.Message) {
			continue
		}

		jobID := event.CorrelationID
		if jobID == "" {
			continue
		}

		entry := transformEvent(event)
		entriesByJob[jobID] = append(entriesByJob[jobID], entry)

		if c.eventService != nil && c.shouldPublish(event.Level) {
			notableByJob[jobID] = append(notableByJob[jobID], entry)
		}
	}

	// Batch write per job with concurrent goroutines
	var wg sync.WaitGroup
	for jobID, entries := range entriesByJob {
		wg.Add(1)
		go func(jid string, logs []*models.LogEntry) {
			defer wg.Done()

			if err := c.store.AppendJobLogs(c.ctx, jid, logs); err != nil {
				c.logger.Warn().
					Err(err).
					Str("job_id", jid).
					Int("log_count", len(logs)).
					Msg("Failed to persist job log batch")
			}
		}(jobID, entries)
	}
	wg.Wait()

	// Publish after persistence so line numbers are assigned.
	// Deterministic job order keeps interleaved tails stable.
	jobIDs := make([]string, 0, len(notableByJob))
	for jobID := range notableByJob {
		jobIDs = append(jobIDs, jobID)
	}
	sort.Strings(jobIDs)

	for _, jobID := range jobIDs {
		payload := &models.JobLogBatch{JobID: jobID, Entries: notableByJob[jobID]}
		if err := c.eventService.Publish(c.ctx, interfaces.Event{
			Type:    interfaces.EventJobLogs,
			Payload: payload,
		}); err != nil {
			c.logger.Warn().
				Err(err).
				Str("job_id", jobID).
				Msg("Failed to publish job log event")
		}
	}
}

// shouldPublish checks if a log event meets the publish threshold
func (c *Consumer) shouldPublish(level log.Level) bool {
	return arborlevels.FromLogLevel(level) >= c.minEventLevel
}

// isTransportNoise filters HTTP/WebSocket middleware chatter out of job logs
func isTransportNoise(message string) bool {
	return message == "HTTP request" ||
		message == "HTTP request - client error" ||
		message == "HTTP request - server error" ||
		strings.Contains(message, "WebSocket client")
}

// transformEvent converts an arbor LogEvent to a stored LogEntry.
// Known context fields move into the Context map; everything else is
// appended to the message for persistence.
func transformEvent(event arbormodels.LogEvent) *models.LogEntry {
	entry := &models.LogEntry{
		Timestamp:     event.Timestamp.Format("15:04:05.000"),
		FullTimestamp: event.Timestamp.Format(time.RFC3339Nano),
		Level:         normalizeLevel(event.Level.String()),
		Message:       event.Message,
		JobIDField:    event.CorrelationID,
	}

	if len(event.Fields) > 0 {
		var extraFields []string
		for key, value := range event.Fields {
			switch key {
			case models.LogCtxDatasetID, models.LogCtxWorkerID, models.LogCtxKind,
				models.LogCtxPhase, models.LogCtxOriginator:
				entry.SetContext(key, fmt.Sprintf("%v", value))
			default:
				extraFields = append(extraFields, fmt.Sprintf("%s=%v", key, value))
			}
		}
		sort.Strings(extraFields)
		for _, field := range extraFields {
			entry.Message += " " + field
		}
	}

	return entry
}
