package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ternarybob/doceo/internal/models"
)

func TestClientSubmitJob(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/jobs" {
			t.Errorf("Request = %s %s, want POST /api/jobs", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok-mcp" {
			t.Errorf("Authorization = %q, want Bearer tok-mcp", got)
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("Content-Type = %q, want application/json", got)
		}

		var submission models.JobSubmission
		if err := json.NewDecoder(r.Body).Decode(&submission); err != nil {
			t.Errorf("Failed to decode submission: %v", err)
		}
		if submission.Kind != "lora" {
			t.Errorf("Submission kind = %q, want lora", submission.Kind)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":    "job_abc",
			"kind":  "lora",
			"state": "queued",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "tok-mcp", 5*time.Second)
	job, err := client.SubmitJob(context.Background(), &models.JobSubmission{
		Kind:       "lora",
		ConfigRef:  "configs/base.yaml",
		DatasetRef: "ds_weather",
	})
	if err != nil {
		t.Fatalf("SubmitJob failed: %v", err)
	}
	if job.ID != "job_abc" {
		t.Errorf("Job ID = %q, want job_abc", job.ID)
	}
	if job.State != models.JobStateQueued {
		t.Errorf("Job state = %q, want queued", job.State)
	}
}

func TestClientListJobsQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("state"); got != "running" {
			t.Errorf("state = %q, want running", got)
		}
		if got := r.URL.Query().Get("limit"); got != "5" {
			t.Errorf("limit = %q, want 5", got)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"jobs":   []interface{}{},
			"count":  0,
			"totals": map[string]int{"running": 0},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "", 5*time.Second)
	list, err := client.ListJobs(context.Background(), "running", 5)
	if err != nil {
		t.Fatalf("ListJobs failed: %v", err)
	}
	if list.Count != 0 {
		t.Errorf("Count = %d, want 0", list.Count)
	}
	if _, ok := list.Totals["running"]; !ok {
		t.Errorf("Totals missing running key: %v", list.Totals)
	}
}

func TestClientCancelJobPath(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/jobs/job_9/cancel" {
			t.Errorf("Path = %q, want /api/jobs/job_9/cancel", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"cancelled":     true,
			"current_state": "cancelled",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "", 5*time.Second)
	result, err := client.CancelJob(context.Background(), "job_9")
	if err != nil {
		t.Fatalf("CancelJob failed: %v", err)
	}
	if !result.Cancelled || result.CurrentState != "cancelled" {
		t.Errorf("Result = %+v, want cancelled", result)
	}
}

func TestClientSurfacesAPIErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		fmt.Fprint(w, `{"status":"error","error":"job is already running"}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", 5*time.Second)
	_, err := client.CancelJob(context.Background(), "job_1")
	if err == nil {
		t.Fatal("Expected error from 409 response")
	}
	if !strings.Contains(err.Error(), "job is already running") {
		t.Errorf("Error = %v, want API message included", err)
	}
	if !strings.Contains(err.Error(), "409") {
		t.Errorf("Error = %v, want status code included", err)
	}
}

func TestClientSearchCorpus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("q"); got != "channel buffering" {
			t.Errorf("q = %q, want channel buffering", got)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"query":   "channel buffering",
			"results": []map[string]interface{}{{"document_id": "doc_1", "score": 0.8}},
			"count":   1,
			"backend": "local",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "", 5*time.Second)
	response, err := client.SearchCorpus(context.Background(), "channel buffering", 10)
	if err != nil {
		t.Fatalf("SearchCorpus failed: %v", err)
	}
	if response.Count != 1 || len(response.Results) != 1 {
		t.Fatalf("Response = %+v, want one result", response)
	}
	if response.Results[0].DocumentID != "doc_1" {
		t.Errorf("Result document = %q, want doc_1", response.Results[0].DocumentID)
	}
}
