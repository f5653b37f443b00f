package hub

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/doceo/internal/common"
	"github.com/ternarybob/doceo/internal/interfaces"
	"github.com/ternarybob/doceo/internal/models"
)

// subscriber pairs an event channel with a send guard. The mutex serializes
// sends against close so a disconnect can never race a delivery.
type subscriber struct {
	id     string
	filter *interfaces.SubscriptionFilter
	events chan models.ProgressEvent

	mu     sync.Mutex
	closed bool
}

type sendResult int

const (
	sendDelivered sendResult = iota
	sendClosed
	sendTimedOut
)

// send delivers the event within the timeout
func (sub *subscriber) send(event models.ProgressEvent, timeout time.Duration) sendResult {
	sub.mu.Lock()
	defer sub.mu.Unlock()

	if sub.closed {
		return sendClosed
	}

	select {
	case sub.events <- event:
		return sendDelivered
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case sub.events <- event:
		return sendDelivered
	case <-timer.C:
		return sendTimedOut
	}
}

// close closes the event channel exactly once
func (sub *subscriber) close() {
	sub.mu.Lock()
	defer sub.mu.Unlock()

	if !sub.closed {
		sub.closed = true
		close(sub.events)
	}
}

// Service implements HubService: bounded fan-out of progress events.
//
// Each subscriber gets its own buffered channel. Publish snapshots the
// subscriber set under RLock and delivers outside the lock; a subscriber
// whose buffer stays full past the send timeout is disconnected so one
// slow consumer cannot stall the publishing worker.
type Service struct {
	mu          sync.RWMutex
	subscribers map[string]*subscriber
	logger      arbor.ILogger
	sendTimeout time.Duration
	bufferSize  int
	shut        bool

	published uint64
	delivered uint64
	dropped   uint64
}

// NewService creates a new hub service
func NewService(logger arbor.ILogger, config *common.HubConfig) interfaces.HubService {
	bufferSize := config.BufferSize
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Service{
		subscribers: make(map[string]*subscriber),
		logger:      logger,
		sendTimeout: config.SendTimeoutDuration(),
		bufferSize:  bufferSize,
	}
}

// Subscribe registers a new subscriber and returns its event feed
func (s *Service) Subscribe(filter *interfaces.SubscriptionFilter) *interfaces.Subscription {
	sub := &subscriber{
		id:     common.NewSubscriberID(),
		filter: filter,
		events: make(chan models.ProgressEvent, s.bufferSize),
	}

	s.mu.Lock()
	if s.shut {
		s.mu.Unlock()
		sub.close()
		return &interfaces.Subscription{ID: sub.id, Events: sub.events}
	}
	s.subscribers[sub.id] = sub
	count := len(s.subscribers)
	s.mu.Unlock()

	s.logger.Debug().
		Str("subscriber_id", sub.id).
		Int("subscriber_count", count).
		Msg("Hub subscriber connected")

	return &interfaces.Subscription{ID: sub.id, Events: sub.events}
}

// Unsubscribe disconnects a subscriber and closes its channel. Idempotent.
func (s *Service) Unsubscribe(id string) {
	s.mu.Lock()
	sub, ok := s.subscribers[id]
	if ok {
		delete(s.subscribers, id)
	}
	count := len(s.subscribers)
	s.mu.Unlock()

	if !ok {
		return
	}

	sub.close()
	s.logger.Debug().
		Str("subscriber_id", id).
		Int("subscriber_count", count).
		Msg("Hub subscriber disconnected")
}

// Publish fans an event out to matching subscribers. Events published for
// a given job from a single goroutine arrive at every surviving subscriber
// in publish order.
func (s *Service) Publish(event models.ProgressEvent) {
	s.mu.RLock()
	if s.shut {
		s.mu.RUnlock()
		return
	}
	subs := make([]*subscriber, 0, len(s.subscribers))
	for _, sub := range s.subscribers {
		subs = append(subs, sub)
	}
	s.mu.RUnlock()

	atomic.AddUint64(&s.published, 1)

	for _, sub := range subs {
		if !matches(sub.filter, event) {
			continue
		}
		switch sub.send(event, s.sendTimeout) {
		case sendDelivered:
			atomic.AddUint64(&s.delivered, 1)
		case sendClosed:
			// Raced a disconnect, nothing to do
		case sendTimedOut:
			// Fell behind: cut the subscriber loose rather than block the worker
			atomic.AddUint64(&s.dropped, 1)
			s.Unsubscribe(sub.id)
			s.logger.Warn().
				Str("subscriber_id", sub.id).
				Str("event_type", string(event.Type)).
				Msg("Hub subscriber fell behind, disconnected")
		}
	}
}

// SubscriberCount returns the number of connected subscribers
func (s *Service) SubscriberCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subscribers)
}

// Stats returns a snapshot of hub counters
func (s *Service) Stats() interfaces.HubStats {
	s.mu.RLock()
	count := len(s.subscribers)
	s.mu.RUnlock()

	return interfaces.HubStats{
		Subscribers: count,
		Published:   atomic.LoadUint64(&s.published),
		Delivered:   atomic.LoadUint64(&s.delivered),
		Dropped:     atomic.LoadUint64(&s.dropped),
	}
}

// Close disconnects every subscriber. Publish becomes a no-op.
func (s *Service) Close() {
	s.mu.Lock()
	if s.shut {
		s.mu.Unlock()
		return
	}
	s.shut = true
	subs := make([]*subscriber, 0, len(s.subscribers))
	for _, sub := range s.subscribers {
		subs = append(subs, sub)
	}
	s.subscribers = make(map[string]*subscriber)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.close()
	}
	s.logger.Debug().Int("subscriber_count", len(subs)).Msg("Hub closed")
}

// matches reports whether an event passes a subscription filter
func matches(filter *interfaces.SubscriptionFilter, event models.ProgressEvent) bool {
	if filter == nil {
		return true
	}
	if filter.JobID != "" && event.JobID != filter.JobID {
		return false
	}
	if filter.DatasetID != "" && event.DatasetID != filter.DatasetID {
		return false
	}
	if len(filter.Types) > 0 {
		for _, t := range filter.Types {
			if event.Type == t {
				return true
			}
		}
		return false
	}
	return true
}
