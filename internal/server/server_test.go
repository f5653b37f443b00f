package server

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ternarybob/doceo/internal/app"
	"github.com/ternarybob/doceo/internal/common"
	"github.com/ternarybob/doceo/internal/handlers"
	"github.com/ternarybob/doceo/internal/services/corpus"
	"github.com/ternarybob/doceo/internal/services/dataset"
	"github.com/ternarybob/doceo/internal/services/hub"
	"github.com/ternarybob/doceo/internal/services/identity"
	"github.com/ternarybob/doceo/internal/services/pdf"
	"github.com/ternarybob/doceo/internal/services/pool"
	"github.com/ternarybob/doceo/internal/services/search"
	"github.com/ternarybob/doceo/internal/services/trainer"
	"github.com/ternarybob/doceo/internal/storage/memory"
)

// newTestServer assembles the full router and middleware chain over in-memory
// stores. The worker pool is left unstarted so submitted jobs stay queued and
// tests stay deterministic.
func newTestServer(t *testing.T) (*httptest.Server, *Server) {
	t.Helper()

	cfg := common.NewDefaultConfig()
	cfg.Pipeline.ExportDir = t.TempDir()
	cfg.Pipeline.WriteReport = false
	logger := common.GetLogger()

	jobStore := memory.NewJobStore()
	logStore := memory.NewLogStore()
	datasetStore := memory.NewDatasetStore()
	documentStore := memory.NewDocumentStore()

	hubSvc := hub.NewService(logger, &cfg.Hub)
	t.Cleanup(hubSvc.Close)

	simTrainer := trainer.NewSimulatedTrainer(logger, &cfg.Trainer)
	poolSvc := pool.NewService(jobStore, simTrainer, hubSvc, logger, &cfg.Workers)

	searchBackend := search.NewLocalBackend(documentStore, logger)
	pdfSvc := pdf.NewService(logger)
	datasetSvc := dataset.NewService(datasetStore, searchBackend, hubSvc, pdfSvc, logger, &cfg.Pipeline)
	corpusSvc := corpus.NewService(documentStore, pdf.NewExtractor(logger), logger, &cfg.Corpus)
	identitySvc := identity.NewService(logger, &cfg.Auth)

	application := &app.App{
		Config: cfg,
		Logger: logger,
	}
	application.WSHandler = handlers.NewWebSocketHandler(hubSvc, nil, logger, &cfg.WebSocket)
	t.Cleanup(application.WSHandler.Close)
	application.APIHandler = handlers.NewAPIHandler(hubSvc)
	application.JobHandler = handlers.NewJobHandler(jobStore, logStore, poolSvc, identitySvc, logger)
	application.DatasetHandler = handlers.NewDatasetHandler(datasetSvc, identitySvc, logger)
	application.CorpusHandler = handlers.NewCorpusHandler(corpusSvc, documentStore, identitySvc, logger)
	application.SearchHandler = handlers.NewSearchHandler(searchBackend, logger)

	srv := New(application)
	ts := httptest.NewServer(srv.withConditionalMiddleware(srv.router))
	t.Cleanup(ts.Close)

	return ts, srv
}

func decodeJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()
	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response body: %v", err)
	}
	return body
}

func TestRouterHealthAndVersion(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatalf("GET /api/health failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Health status = %d, want 200", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("CORS header = %q, want *", got)
	}
	health := decodeJSON(t, resp)
	if health["status"] != "ok" {
		t.Errorf("Health body = %v, want status ok", health)
	}

	resp, err = http.Get(ts.URL + "/api/version")
	if err != nil {
		t.Fatalf("GET /api/version failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Version status = %d, want 200", resp.StatusCode)
	}
	version := decodeJSON(t, resp)
	if _, ok := version["version"]; !ok {
		t.Errorf("Version body missing version field: %v", version)
	}
}

func TestRouterJobLifecycle(t *testing.T) {
	ts, _ := newTestServer(t)

	payload, _ := json.Marshal(map[string]string{
		"kind":        "lora",
		"config_ref":  "configs/base.yaml",
		"dataset_ref": "ds_weather",
	})
	resp, err := http.Post(ts.URL+"/api/jobs", "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("POST /api/jobs failed: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Submit status = %d, want 201", resp.StatusCode)
	}
	job := decodeJSON(t, resp)
	jobID, _ := job["id"].(string)
	if jobID == "" {
		t.Fatalf("Submit response missing job id: %v", job)
	}
	if job["state"] != "queued" {
		t.Errorf("Submitted job state = %v, want queued", job["state"])
	}

	resp, err = http.Get(ts.URL + "/api/jobs")
	if err != nil {
		t.Fatalf("GET /api/jobs failed: %v", err)
	}
	list := decodeJSON(t, resp)
	if list["count"] != float64(1) {
		t.Errorf("List count = %v, want 1", list["count"])
	}

	resp, err = http.Get(ts.URL + "/api/jobs/" + jobID)
	if err != nil {
		t.Fatalf("GET /api/jobs/{id} failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Get job status = %d, want 200", resp.StatusCode)
	}
	fetched := decodeJSON(t, resp)
	if fetched["id"] != jobID {
		t.Errorf("Fetched job id = %v, want %s", fetched["id"], jobID)
	}

	resp, err = http.Get(ts.URL + "/api/jobs/stats")
	if err != nil {
		t.Fatalf("GET /api/jobs/stats failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Stats status = %d, want 200", resp.StatusCode)
	}
	stats := decodeJSON(t, resp)
	if _, ok := stats["pool"]; !ok {
		t.Errorf("Stats body missing pool: %v", stats)
	}

	resp, err = http.Post(ts.URL+"/api/jobs/"+jobID+"/cancel", "application/json", nil)
	if err != nil {
		t.Fatalf("POST cancel failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Cancel status = %d, want 200", resp.StatusCode)
	}
	cancel := decodeJSON(t, resp)
	if cancel["cancelled"] != true {
		t.Errorf("Cancel response = %v, want cancelled true", cancel)
	}
	if cancel["current_state"] != "cancelled" {
		t.Errorf("Current state = %v, want cancelled", cancel["current_state"])
	}

	resp, err = http.Get(ts.URL + "/api/jobs/" + jobID + "/logs")
	if err != nil {
		t.Fatalf("GET logs failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Logs status = %d, want 200", resp.StatusCode)
	}
	logsBody := decodeJSON(t, resp)
	if logsBody["count"] != float64(0) {
		t.Errorf("Log count = %v, want 0", logsBody["count"])
	}
}

func TestRouterMethodNotAllowed(t *testing.T) {
	ts, _ := newTestServer(t)
	client := ts.Client()

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/jobs", nil)
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("DELETE /api/jobs failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("DELETE /api/jobs status = %d, want 405", resp.StatusCode)
	}

	req, _ = http.NewRequest(http.MethodPut, ts.URL+"/api/corpus/doc_x", nil)
	resp, err = client.Do(req)
	if err != nil {
		t.Fatalf("PUT /api/corpus/doc_x failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("PUT /api/corpus/{id} status = %d, want 405", resp.StatusCode)
	}

	req, _ = http.NewRequest(http.MethodDelete, ts.URL+"/api/jobs/job_x", nil)
	resp, err = client.Do(req)
	if err != nil {
		t.Fatalf("DELETE /api/jobs/job_x failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("DELETE /api/jobs/{id} status = %d, want 405", resp.StatusCode)
	}
}

func TestRouterUnknownAPIRoute(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/bogus")
	if err != nil {
		t.Fatalf("GET /api/bogus failed: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("Unknown route status = %d, want 404", resp.StatusCode)
	}
	body := decodeJSON(t, resp)
	if body["error"] != "Not Found" {
		t.Errorf("Unknown route body = %v, want Not Found error", body)
	}
}

func TestRouterCORSPreflight(t *testing.T) {
	ts, _ := newTestServer(t)

	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/api/jobs", nil)
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("OPTIONS /api/jobs failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Preflight status = %d, want 200", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Methods"); !strings.Contains(got, "POST") {
		t.Errorf("Allow-Methods = %q, want POST included", got)
	}
}

func TestRouterDatasetValidation(t *testing.T) {
	ts, _ := newTestServer(t)

	// Missing name and query
	resp, err := http.Post(ts.URL+"/api/datasets", "application/json", strings.NewReader("{}"))
	if err != nil {
		t.Fatalf("POST /api/datasets failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Invalid dataset status = %d, want 400", resp.StatusCode)
	}

	payload, _ := json.Marshal(map[string]interface{}{
		"name": "weather-demo",
		"query": map[string]interface{}{
			"query_text": "storm forecasting",
		},
	})
	resp, err = http.Post(ts.URL+"/api/datasets", "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("POST valid dataset failed: %v", err)
	}
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("Create dataset status = %d, want 202", resp.StatusCode)
	}
	record := decodeJSON(t, resp)
	if record["state"] != "pending" {
		t.Errorf("Created dataset state = %v, want pending", record["state"])
	}
}

func TestRouterCorpusUploadRoundTrip(t *testing.T) {
	ts, _ := newTestServer(t)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, _ := writer.CreateFormFile("file", "notes.md")
	part.Write([]byte("# Notes\n\nGoroutines are cheap."))
	writer.Close()

	resp, err := http.Post(ts.URL+"/api/corpus", writer.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("POST /api/corpus failed: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Upload status = %d, want 201", resp.StatusCode)
	}
	doc := decodeJSON(t, resp)
	docID, _ := doc["id"].(string)
	if docID == "" {
		t.Fatalf("Upload response missing document id: %v", doc)
	}

	resp, err = http.Get(ts.URL + "/api/corpus")
	if err != nil {
		t.Fatalf("GET /api/corpus failed: %v", err)
	}
	list := decodeJSON(t, resp)
	if list["count"] != float64(1) {
		t.Errorf("Corpus count = %v, want 1", list["count"])
	}

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/corpus/"+docID, nil)
	resp, err = ts.Client().Do(req)
	if err != nil {
		t.Fatalf("DELETE /api/corpus/{id} failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Delete status = %d, want 200", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/api/corpus/" + docID)
	if err != nil {
		t.Fatalf("GET deleted document failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Deleted document status = %d, want 404", resp.StatusCode)
	}
}

func TestRouterCorpusSearch(t *testing.T) {
	ts, _ := newTestServer(t)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, _ := writer.CreateFormFile("file", "concurrency.md")
	part.Write([]byte("# Concurrency\n\nGoroutines multiplex onto OS threads. Channels synchronize goroutines."))
	writer.Close()

	resp, err := http.Post(ts.URL+"/api/corpus", writer.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("POST /api/corpus failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Upload status = %d, want 201", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/api/corpus/search?q=goroutines")
	if err != nil {
		t.Fatalf("GET /api/corpus/search failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Search status = %d, want 200", resp.StatusCode)
	}
	body := decodeJSON(t, resp)
	if body["count"] != float64(1) {
		t.Errorf("Search count = %v, want 1", body["count"])
	}
	if body["backend"] != "local" {
		t.Errorf("Search backend = %v, want local", body["backend"])
	}

	resp, err = http.Get(ts.URL + "/api/corpus/search?q=blockchain")
	if err != nil {
		t.Fatalf("GET search miss failed: %v", err)
	}
	miss := decodeJSON(t, resp)
	if miss["count"] != float64(0) {
		t.Errorf("Miss count = %v, want 0", miss["count"])
	}

	resp, err = http.Get(ts.URL + "/api/corpus/search")
	if err != nil {
		t.Fatalf("GET search without query failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Missing q status = %d, want 400", resp.StatusCode)
	}
}

func TestRouterWebSocketUpgrade(t *testing.T) {
	ts, _ := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("WebSocket dial through middleware failed: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg struct {
		Type string `json:"type"`
	}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("Failed to read connected message: %v", err)
	}
	if msg.Type != "connected" {
		t.Errorf("First message type = %q, want connected", msg.Type)
	}
}

func TestRouterShutdownEndpoint(t *testing.T) {
	ts, srv := newTestServer(t)

	// Without a wired channel the endpoint is disabled
	resp, err := http.Post(ts.URL+"/api/shutdown", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /api/shutdown failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Unwired shutdown status = %d, want 503", resp.StatusCode)
	}

	ch := make(chan struct{}, 1)
	srv.SetShutdownChannel(ch)

	resp, err = http.Get(ts.URL + "/api/shutdown")
	if err != nil {
		t.Fatalf("GET /api/shutdown failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET shutdown status = %d, want 405", resp.StatusCode)
	}

	resp, err = http.Post(ts.URL+"/api/shutdown", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /api/shutdown failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Shutdown status = %d, want 200", resp.StatusCode)
	}

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("Shutdown signal was not delivered")
	}
}
