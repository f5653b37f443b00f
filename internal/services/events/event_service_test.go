package events

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/doceo/internal/interfaces"
	"github.com/ternarybob/doceo/internal/models"
)

func TestPublishSyncDeliversToAllHandlers(t *testing.T) {
	logger := arbor.NewLogger()
	service := NewService(logger)
	defer service.Close()

	ctx := context.Background()

	var calls int32
	for i := 0; i < 3; i++ {
		handler := func(ctx context.Context, event interfaces.Event) error {
			atomic.AddInt32(&calls, 1)
			return nil
		}
		if err := service.Subscribe(interfaces.EventJobLogs, handler); err != nil {
			t.Fatalf("Failed to subscribe: %v", err)
		}
	}

	event := interfaces.Event{
		Type:    interfaces.EventJobLogs,
		Payload: &models.JobLogBatch{JobID: "job-1"},
	}
	if err := service.PublishSync(ctx, event); err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Errorf("Expected 3 handler calls, got %d", calls)
	}
}

func TestPublishSyncReportsHandlerErrors(t *testing.T) {
	logger := arbor.NewLogger()
	service := NewService(logger)
	defer service.Close()

	ctx := context.Background()

	failing := func(ctx context.Context, event interfaces.Event) error {
		return errors.New("handler failed")
	}
	if err := service.Subscribe(interfaces.EventCleanupTriggered, failing); err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}

	err := service.PublishSync(ctx, interfaces.Event{Type: interfaces.EventCleanupTriggered})
	if err == nil {
		t.Error("Expected error from failing handler")
	}
}

func TestPublishAsyncDoesNotBlock(t *testing.T) {
	logger := arbor.NewLogger()
	service := NewService(logger)
	defer service.Close()

	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(1)
	slow := func(ctx context.Context, event interfaces.Event) error {
		defer wg.Done()
		time.Sleep(50 * time.Millisecond)
		return nil
	}
	if err := service.Subscribe(interfaces.EventCorpusIngested, slow); err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}

	start := time.Now()
	if err := service.Publish(ctx, interfaces.Event{Type: interfaces.EventCorpusIngested}); err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 25*time.Millisecond {
		t.Errorf("Publish blocked for %v", elapsed)
	}
	wg.Wait()
}

func TestPublishWithoutSubscribers(t *testing.T) {
	logger := arbor.NewLogger()
	service := NewService(logger)
	defer service.Close()

	ctx := context.Background()
	if err := service.Publish(ctx, interfaces.Event{Type: interfaces.EventJobLogs}); err != nil {
		t.Errorf("Expected no error publishing without subscribers, got: %v", err)
	}
	if err := service.PublishSync(ctx, interfaces.Event{Type: interfaces.EventJobLogs}); err != nil {
		t.Errorf("Expected no error publishing without subscribers, got: %v", err)
	}
}

func TestUnsubscribeRemovesHandler(t *testing.T) {
	logger := arbor.NewLogger()
	service := NewService(logger)
	defer service.Close()

	ctx := context.Background()

	var calls int32
	handler := func(ctx context.Context, event interfaces.Event) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}
	if err := service.Subscribe(interfaces.EventJobLogs, handler); err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}
	if err := service.Unsubscribe(interfaces.EventJobLogs, handler); err != nil {
		t.Fatalf("Failed to unsubscribe: %v", err)
	}

	if err := service.PublishSync(ctx, interfaces.Event{Type: interfaces.EventJobLogs}); err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Errorf("Expected 0 handler calls after unsubscribe, got %d", calls)
	}

	// Unsubscribing an unknown handler reports an error
	if err := service.Unsubscribe(interfaces.EventJobLogs, handler); err == nil {
		t.Error("Expected error unsubscribing unknown handler")
	}
}

func TestLoggerSubscriberHandlesAnyPayload(t *testing.T) {
	logger := arbor.NewLogger()
	subscriber := NewLoggerSubscriber(logger)
	ctx := context.Background()

	events := []interfaces.Event{
		{Type: interfaces.EventJobLogs, Payload: &models.JobLogBatch{JobID: "job-1"}},
		{Type: interfaces.EventCleanupTriggered, Payload: map[string]interface{}{"deleted": 3}},
		{Type: interfaces.EventCorpusIngested, Payload: nil},
	}
	for _, event := range events {
		if err := subscriber(ctx, event); err != nil {
			t.Errorf("Expected no error for %s, got: %v", event.Type, err)
		}
	}
}
