package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/doceo/internal/common"
	"github.com/ternarybob/doceo/internal/models"
)

func newHTTPTestBackend(t *testing.T, handler http.HandlerFunc) *HTTPBackend {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewHTTPBackend(arbor.NewLogger(), &common.SearchConfig{
		Backend:        "http",
		BaseURL:        server.URL,
		RequestTimeout: "2s",
		MaxRetries:     3,
		MaxElapsedTime: "5s",
	})
}

func pageResult(id string) models.SearchResult {
	return models.SearchResult{
		DocumentID:   id,
		Content:      "remote content for " + id,
		Score:        0.9,
		QualityScore: 0.8,
	}
}

func TestHTTPBackendPagesThroughResults(t *testing.T) {
	backend := newHTTPTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, "/search") {
			t.Errorf("Unexpected request: %s %s", r.Method, r.URL.Path)
		}

		var req searchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		if req.Query == nil || req.Query.QueryText != "adapters" || req.Limit != 2 {
			t.Errorf("Unexpected request body: %+v", req)
		}

		var resp searchResponse
		switch req.Offset {
		case 0:
			resp = searchResponse{Results: []models.SearchResult{pageResult("doc-1"), pageResult("doc-2")}, HasMore: true}
		case 2:
			resp = searchResponse{Results: []models.SearchResult{pageResult("doc-3")}, HasMore: false}
		default:
			t.Errorf("Unexpected offset: %d", req.Offset)
		}
		_ = json.NewEncoder(w).Encode(resp)
	})

	results, errs := backend.Stream(context.Background(), &models.DatasetQuery{QueryText: "adapters"}, 2)
	batches, err := drainStream(t, results, errs)
	if err != nil {
		t.Fatalf("Stream returned error: %v", err)
	}

	if len(batches) != 2 || len(batches[0]) != 2 || len(batches[1]) != 1 {
		t.Fatalf("Expected batches of 2+1, got %d batches", len(batches))
	}
	if batches[1][0].DocumentID != "doc-3" {
		t.Errorf("Unexpected final result: %+v", batches[1][0])
	}
}

func TestHTTPBackendRetriesTransientFailures(t *testing.T) {
	var attempts int32
	backend := newHTTPTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		switch atomic.AddInt32(&attempts, 1) {
		case 1:
			w.WriteHeader(http.StatusInternalServerError)
		case 2:
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			_ = json.NewEncoder(w).Encode(searchResponse{
				Results: []models.SearchResult{pageResult("doc-1")},
				HasMore: false,
			})
		}
	})

	results, errs := backend.Stream(context.Background(), &models.DatasetQuery{QueryText: "adapters"}, 10)
	batches, err := drainStream(t, results, errs)
	if err != nil {
		t.Fatalf("Expected retries to recover, got error: %v", err)
	}
	if len(batches) != 1 || len(batches[0]) != 1 {
		t.Fatalf("Expected one batch of 1, got %v", batches)
	}
	if got := atomic.LoadInt32(&attempts); got != 3 {
		t.Errorf("Expected 3 attempts, got %d", got)
	}
}

func TestHTTPBackendDoesNotRetryClientErrors(t *testing.T) {
	var attempts int32
	backend := newHTTPTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		http.Error(w, "bad query syntax", http.StatusBadRequest)
	})

	results, errs := backend.Stream(context.Background(), &models.DatasetQuery{QueryText: "adapters"}, 10)
	batches, err := drainStream(t, results, errs)
	if err == nil {
		t.Fatal("Expected error for client failure, got nil")
	}
	if !strings.Contains(err.Error(), "400") {
		t.Errorf("Expected status in error, got: %v", err)
	}
	if len(batches) != 0 {
		t.Errorf("Expected no batches, got %d", len(batches))
	}
	if got := atomic.LoadInt32(&attempts); got != 1 {
		t.Errorf("Client errors must not be retried, got %d attempts", got)
	}
}
