package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/doceo/internal/common"
	"github.com/ternarybob/doceo/internal/interfaces"
	"github.com/ternarybob/doceo/internal/models"
	"golang.org/x/time/rate"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// wsWriteTimeout bounds a single frame write so one dead client cannot
// stall a pump goroutine
const wsWriteTimeout = 10 * time.Second

// WSMessage is the envelope for every server -> client message
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// wsCommand is a client -> server control message. A "subscribe" action
// replaces the client's current event filter.
type wsCommand struct {
	Action    string   `json:"action"`
	JobID     string   `json:"job_id,omitempty"`
	DatasetID string   `json:"dataset_id,omitempty"`
	Types     []string `json:"types,omitempty"`
}

// wsClient is one connected WebSocket client and its hub subscription
type wsClient struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	// Subscription state, replaced by resubscribe commands
	subMu     sync.Mutex
	subID     string
	subGen    int
	jobID     string
	datasetID string

	limiters map[models.ProgressEventType]*rate.Limiter
}

// write marshals and sends one message under the client's write lock.
// Pumps and event-bus broadcasts share the connection, so every write
// goes through here.
func (c *wsClient) write(msg WSMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// matchesJob reports whether the client's current filter covers events
// for the given job
func (c *wsClient) matchesJob(jobID string) bool {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	if c.jobID != "" {
		return c.jobID == jobID
	}
	return c.datasetID == ""
}

// WebSocketHandler bridges the progress hub and the internal event bus
// onto WebSocket connections at GET /ws.
//
// Each client gets its own hub subscription; progress ticks inside a
// running job or dataset build are rate limited per client while state
// transitions always go through.
type WebSocketHandler struct {
	hubService   interfaces.HubService
	eventService interfaces.EventService
	logger       arbor.ILogger

	mu      sync.RWMutex
	clients map[*wsClient]bool

	allowedEvents map[string]bool // Whitelist of events to send (empty = allow all)
	throttles     map[models.ProgressEventType]time.Duration

	serverInstanceID string // Unique ID generated on startup - clients use to detect server restart
}

func NewWebSocketHandler(hubService interfaces.HubService, eventService interfaces.EventService, logger arbor.ILogger, config *common.WebSocketConfig) *WebSocketHandler {
	h := &WebSocketHandler{
		hubService:       hubService,
		eventService:     eventService,
		logger:           logger,
		clients:          make(map[*wsClient]bool),
		allowedEvents:    make(map[string]bool),
		throttles:        make(map[models.ProgressEventType]time.Duration),
		serverInstanceID: uuid.New().String(),
	}

	if config != nil && len(config.AllowedEvents) > 0 {
		for _, eventType := range config.AllowedEvents {
			h.allowedEvents[eventType] = true
		}
	}

	if config != nil {
		for eventType, intervalStr := range config.ThrottleIntervals {
			duration, err := time.ParseDuration(intervalStr)
			if err != nil {
				h.logger.Warn().
					Err(err).
					Str("event_type", eventType).
					Str("interval", intervalStr).
					Msg("Invalid throttle interval - throttling disabled for event type")
				continue
			}
			h.throttles[models.ProgressEventType(eventType)] = duration
		}
	}

	// Forward persisted job log batches for live tails
	if eventService != nil {
		eventService.Subscribe(interfaces.EventJobLogs, h.handleJobLogsEvent)
		eventService.Subscribe(interfaces.EventCorpusIngested, h.handleNoticeEvent(interfaces.EventCorpusIngested))
		eventService.Subscribe(interfaces.EventCleanupTriggered, h.handleNoticeEvent(interfaces.EventCleanupTriggered))
	}

	h.logger.Info().
		Str("server_instance_id", h.serverInstanceID).
		Int("throttled_types", len(h.throttles)).
		Msg("WebSocket handler initialized")

	return h
}

// HandleWebSocket upgrades the connection and streams matching events
// until the client disconnects.
// GET /ws?job_id=...&dataset_id=...&types=job_completed,job_failed
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	client := &wsClient{
		conn:     conn,
		limiters: h.newLimiters(),
	}

	h.mu.Lock()
	h.clients[client] = true
	clientCount := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug().Msgf("WebSocket client connected (total: %d)", clientCount)

	filter := filterFromQuery(r)
	h.subscribe(client, filter)

	defer func() {
		h.mu.Lock()
		delete(h.clients, client)
		remaining := len(h.clients)
		h.mu.Unlock()

		client.subMu.Lock()
		subID := client.subID
		client.subMu.Unlock()
		h.hubService.Unsubscribe(subID)

		conn.Close()
		h.logger.Debug().Msgf("WebSocket client disconnected (remaining: %d)", remaining)
	}()

	// Read loop: handles resubscribe commands and detects disconnect
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.logger.Warn().Err(err).Msg("WebSocket error")
			}
			return
		}

		var cmd wsCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			client.write(WSMessage{Type: "error", Payload: map[string]string{"error": "invalid command: " + err.Error()}})
			continue
		}

		switch cmd.Action {
		case "subscribe":
			h.resubscribe(client, filterFromCommand(&cmd))
		case "ping":
			client.write(WSMessage{Type: "pong", Payload: map[string]string{"server_instance_id": h.serverInstanceID}})
		default:
			client.write(WSMessage{Type: "error", Payload: map[string]string{"error": "unknown action: " + cmd.Action}})
		}
	}
}

// subscribe attaches a hub subscription to the client and starts its pump
func (h *WebSocketHandler) subscribe(client *wsClient, filter *interfaces.SubscriptionFilter) {
	sub := h.hubService.Subscribe(filter)

	client.subMu.Lock()
	client.subID = sub.ID
	client.subGen++
	gen := client.subGen
	client.jobID = filter.JobID
	client.datasetID = filter.DatasetID
	client.subMu.Unlock()

	client.write(WSMessage{Type: "connected", Payload: map[string]interface{}{
		"server_instance_id": h.serverInstanceID,
		"subscription_id":    sub.ID,
		"job_id":             filter.JobID,
		"dataset_id":         filter.DatasetID,
	}})

	go h.pump(client, sub, gen)
}

// resubscribe replaces the client's filter. Unsubscribing closes the old
// event channel, which ends the old pump before the new one starts
// delivering.
func (h *WebSocketHandler) resubscribe(client *wsClient, filter *interfaces.SubscriptionFilter) {
	client.subMu.Lock()
	oldID := client.subID
	client.subMu.Unlock()

	h.hubService.Unsubscribe(oldID)
	h.subscribe(client, filter)
}

// pump delivers hub events to one client until its subscription closes
func (h *WebSocketHandler) pump(client *wsClient, sub *interfaces.Subscription, gen int) {
	for event := range sub.Events {
		if len(h.allowedEvents) > 0 && !h.allowedEvents[string(event.Type)] {
			continue
		}

		// Progress ticks are throttled per client; state transitions
		// always pass
		if limiter, ok := client.limiters[event.Type]; ok && !limiter.Allow() {
			continue
		}

		if err := client.write(WSMessage{Type: string(event.Type), Payload: event}); err != nil {
			h.logger.Warn().Err(err).Msg("Failed to send event to client")
			return
		}
	}

	// The hub closes the channel when it drops a subscriber that cannot
	// keep up. Tell the client unless this pump ended because the client
	// replaced its own subscription.
	client.subMu.Lock()
	current := gen == client.subGen
	client.subMu.Unlock()

	h.mu.RLock()
	registered := h.clients[client]
	h.mu.RUnlock()

	if current && registered {
		client.write(WSMessage{Type: "subscription_dropped", Payload: map[string]string{
			"subscription_id": sub.ID,
			"reason":          "subscriber fell behind or hub closed",
		}})
	}
}

// handleJobLogsEvent forwards persisted log batches to clients whose
// filter covers the job
func (h *WebSocketHandler) handleJobLogsEvent(ctx context.Context, event interfaces.Event) error {
	batch, ok := event.Payload.(*models.JobLogBatch)
	if !ok || batch == nil {
		return nil
	}

	if len(h.allowedEvents) > 0 && !h.allowedEvents[string(interfaces.EventJobLogs)] {
		return nil
	}

	for _, client := range h.snapshotClients() {
		if !client.matchesJob(batch.JobID) {
			continue
		}
		if err := client.write(WSMessage{Type: string(interfaces.EventJobLogs), Payload: batch}); err != nil {
			h.logger.Warn().Err(err).Str("job_id", batch.JobID).Msg("Failed to send job logs to client")
		}
	}
	return nil
}

// handleNoticeEvent forwards system notices to clients without a
// job or dataset filter
func (h *WebSocketHandler) handleNoticeEvent(eventType interfaces.EventType) interfaces.EventHandler {
	return func(ctx context.Context, event interfaces.Event) error {
		if len(h.allowedEvents) > 0 && !h.allowedEvents[string(eventType)] {
			return nil
		}

		for _, client := range h.snapshotClients() {
			client.subMu.Lock()
			unfiltered := client.jobID == "" && client.datasetID == ""
			client.subMu.Unlock()
			if !unfiltered {
				continue
			}
			if err := client.write(WSMessage{Type: string(eventType), Payload: event.Payload}); err != nil {
				h.logger.Warn().Err(err).Msg("Failed to send notice to client")
			}
		}
		return nil
	}
}

// ClientCount returns the number of connected WebSocket clients
func (h *WebSocketHandler) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client so blocked read loops unwind during
// shutdown
func (h *WebSocketHandler) Close() {
	for _, client := range h.snapshotClients() {
		client.writeMu.Lock()
		client.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		client.writeMu.Unlock()
		client.conn.Close()
	}
}

func (h *WebSocketHandler) snapshotClients() []*wsClient {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients := make([]*wsClient, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	return clients
}

// newLimiters builds per-client throttles from the configured intervals
func (h *WebSocketHandler) newLimiters() map[models.ProgressEventType]*rate.Limiter {
	limiters := make(map[models.ProgressEventType]*rate.Limiter, len(h.throttles))
	for eventType, interval := range h.throttles {
		limiters[eventType] = rate.NewLimiter(rate.Every(interval), 1)
	}
	return limiters
}

func filterFromQuery(r *http.Request) *interfaces.SubscriptionFilter {
	filter := &interfaces.SubscriptionFilter{
		JobID:     r.URL.Query().Get("job_id"),
		DatasetID: r.URL.Query().Get("dataset_id"),
	}
	if typesStr := r.URL.Query().Get("types"); typesStr != "" {
		filter.Types = parseEventTypes(strings.Split(typesStr, ","))
	}
	return filter
}

func filterFromCommand(cmd *wsCommand) *interfaces.SubscriptionFilter {
	return &interfaces.SubscriptionFilter{
		JobID:     cmd.JobID,
		DatasetID: cmd.DatasetID,
		Types:     parseEventTypes(cmd.Types),
	}
}

func parseEventTypes(raw []string) []models.ProgressEventType {
	types := make([]models.ProgressEventType, 0, len(raw))
	for _, t := range raw {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		types = append(types, models.ProgressEventType(t))
	}
	if len(types) == 0 {
		return nil
	}
	return types
}
