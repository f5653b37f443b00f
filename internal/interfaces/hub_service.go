package interfaces

import (
	"github.com/ternarybob/doceo/internal/models"
)

// SubscriptionFilter narrows which events a subscriber receives.
// Zero values mean "all events".
type SubscriptionFilter struct {
	JobID     string
	DatasetID string
	Types     []models.ProgressEventType
}

// Subscription is a live event feed handed to a subscriber.
// The Events channel is closed when the subscriber is disconnected, either
// by Unsubscribe or because it could not keep up with the publish rate.
type Subscription struct {
	ID     string
	Events <-chan models.ProgressEvent
}

// HubStats is a point-in-time snapshot of hub counters
type HubStats struct {
	Subscribers int    `json:"subscribers"`
	Published   uint64 `json:"published"` // Events accepted for fan-out since start
	Delivered   uint64 `json:"delivered"` // Events placed on subscriber channels since start
	Dropped     uint64 `json:"dropped"`   // Subscribers disconnected for falling behind
}

// HubService - bounded fan-out of progress events to subscribers
//
// Publish never blocks the caller beyond the configured send timeout per
// subscriber; a subscriber that cannot absorb an event within the timeout
// is disconnected so one slow consumer cannot stall the pool.
type HubService interface {
	// Subscribe registers a new subscriber and returns its event feed
	Subscribe(filter *SubscriptionFilter) *Subscription

	// Unsubscribe disconnects a subscriber and closes its channel. Idempotent.
	Unsubscribe(id string)

	// Publish fans an event out to matching subscribers
	Publish(event models.ProgressEvent)

	// SubscriberCount returns the number of connected subscribers
	SubscriberCount() int

	// Stats returns a snapshot of hub counters
	Stats() HubStats

	// Close disconnects every subscriber. Publish becomes a no-op.
	Close()
}
