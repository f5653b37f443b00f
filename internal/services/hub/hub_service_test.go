package hub

import (
	"testing"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/doceo/internal/common"
	"github.com/ternarybob/doceo/internal/interfaces"
	"github.com/ternarybob/doceo/internal/models"
)

func newTestHub(bufferSize int, sendTimeout string) interfaces.HubService {
	return NewService(arbor.NewLogger(), &common.HubConfig{
		SendTimeout: sendTimeout,
		BufferSize:  bufferSize,
	})
}

func jobEvent(eventType models.ProgressEventType, jobID string) models.ProgressEvent {
	return models.ProgressEvent{
		Type:      eventType,
		JobID:     jobID,
		Timestamp: time.Now(),
	}
}

func receiveOne(t *testing.T, sub *interfaces.Subscription) models.ProgressEvent {
	t.Helper()
	select {
	case event, ok := <-sub.Events:
		if !ok {
			t.Fatal("Subscription channel closed unexpectedly")
		}
		return event
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for event")
	}
	return models.ProgressEvent{}
}

func TestHubFanOutToAllSubscribers(t *testing.T) {
	hub := newTestHub(8, "100ms")
	defer hub.Close()

	sub1 := hub.Subscribe(nil)
	sub2 := hub.Subscribe(nil)

	if count := hub.SubscriberCount(); count != 2 {
		t.Fatalf("Expected 2 subscribers, got %d", count)
	}

	hub.Publish(jobEvent(models.EventJobQueued, "job-1"))

	for _, sub := range []*interfaces.Subscription{sub1, sub2} {
		event := receiveOne(t, sub)
		if event.Type != models.EventJobQueued || event.JobID != "job-1" {
			t.Errorf("Unexpected event: %+v", event)
		}
	}

	stats := hub.Stats()
	if stats.Published != 1 || stats.Delivered != 2 || stats.Dropped != 0 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
}

func TestHubSubscriptionFilters(t *testing.T) {
	hub := newTestHub(8, "100ms")
	defer hub.Close()

	byJob := hub.Subscribe(&interfaces.SubscriptionFilter{JobID: "job-1"})
	byType := hub.Subscribe(&interfaces.SubscriptionFilter{
		Types: []models.ProgressEventType{models.EventJobCompleted},
	})

	hub.Publish(jobEvent(models.EventJobQueued, "job-1"))
	hub.Publish(jobEvent(models.EventJobQueued, "job-2"))
	hub.Publish(jobEvent(models.EventJobCompleted, "job-2"))

	// Job filter sees only job-1 events
	event := receiveOne(t, byJob)
	if event.JobID != "job-1" {
		t.Errorf("Job filter leaked event for %s", event.JobID)
	}
	select {
	case extra := <-byJob.Events:
		t.Errorf("Job filter received extra event: %+v", extra)
	case <-time.After(50 * time.Millisecond):
	}

	// Type filter sees only completions
	event = receiveOne(t, byType)
	if event.Type != models.EventJobCompleted {
		t.Errorf("Type filter leaked event type %s", event.Type)
	}
}

func TestHubPreservesPublishOrder(t *testing.T) {
	hub := newTestHub(16, "100ms")
	defer hub.Close()

	sub := hub.Subscribe(&interfaces.SubscriptionFilter{JobID: "job-1"})

	sequence := []models.ProgressEventType{
		models.EventJobQueued,
		models.EventJobStarted,
		models.EventJobProgress,
		models.EventJobProgress,
		models.EventJobCompleted,
	}
	for _, eventType := range sequence {
		hub.Publish(jobEvent(eventType, "job-1"))
	}

	for i, want := range sequence {
		event := receiveOne(t, sub)
		if event.Type != want {
			t.Fatalf("Event %d: expected %s, got %s", i, want, event.Type)
		}
	}
}

func TestHubDisconnectsSlowSubscriber(t *testing.T) {
	hub := newTestHub(1, "20ms")
	defer hub.Close()

	slow := hub.Subscribe(nil) // never drained
	fast := hub.Subscribe(nil)

	// First event fills the slow buffer. Drain the fast subscriber before
	// the second publish so only the slow one times out against it.
	hub.Publish(jobEvent(models.EventJobQueued, "job-1"))
	if event := receiveOne(t, fast); event.Type != models.EventJobQueued {
		t.Errorf("Unexpected first event: %s", event.Type)
	}

	hub.Publish(jobEvent(models.EventJobStarted, "job-1"))
	if event := receiveOne(t, fast); event.Type != models.EventJobStarted {
		t.Errorf("Unexpected second event: %s", event.Type)
	}

	// The slow subscriber was dropped: buffered event then channel close
	if event := receiveOne(t, slow); event.Type != models.EventJobQueued {
		t.Errorf("Unexpected buffered event: %s", event.Type)
	}
	select {
	case _, ok := <-slow.Events:
		if ok {
			t.Error("Expected closed channel for dropped subscriber")
		}
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for channel close")
	}

	if count := hub.SubscriberCount(); count != 1 {
		t.Errorf("Expected 1 surviving subscriber, got %d", count)
	}
	if stats := hub.Stats(); stats.Dropped != 1 {
		t.Errorf("Expected 1 dropped, got %d", stats.Dropped)
	}
}

func TestHubUnsubscribeIsIdempotent(t *testing.T) {
	hub := newTestHub(8, "100ms")
	defer hub.Close()

	sub := hub.Subscribe(nil)
	hub.Unsubscribe(sub.ID)
	hub.Unsubscribe(sub.ID) // second call is a no-op

	if _, ok := <-sub.Events; ok {
		t.Error("Expected closed channel after unsubscribe")
	}
	if count := hub.SubscriberCount(); count != 0 {
		t.Errorf("Expected 0 subscribers, got %d", count)
	}
}

func TestHubCloseDisconnectsEveryone(t *testing.T) {
	hub := newTestHub(8, "100ms")

	sub1 := hub.Subscribe(nil)
	sub2 := hub.Subscribe(nil)

	hub.Close()

	for _, sub := range []*interfaces.Subscription{sub1, sub2} {
		if _, ok := <-sub.Events; ok {
			t.Error("Expected closed channel after hub close")
		}
	}

	// Publish after close is a no-op
	hub.Publish(jobEvent(models.EventJobQueued, "job-1"))
	if stats := hub.Stats(); stats.Published != 0 {
		t.Errorf("Expected no published events after close, got %d", stats.Published)
	}

	// Subscribing after close yields an already-closed feed
	late := hub.Subscribe(nil)
	if _, ok := <-late.Events; ok {
		t.Error("Expected closed channel for late subscriber")
	}
}
