package server

import (
	"net/http"
	"strings"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket route
	mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)

	// API routes - Jobs (training job management)
	// The stats route is registered before the /api/jobs/ prefix so the
	// exact-match pattern wins
	mux.HandleFunc("/api/jobs/stats", s.app.JobHandler.GetJobStatsHandler)
	mux.HandleFunc("/api/jobs", s.handleJobsCollection) // GET (list), POST (submit)
	mux.HandleFunc("/api/jobs/", s.handleJobRoutes)     // GET /{id}, GET /{id}/logs, POST /{id}/cancel

	// API routes - Datasets
	mux.HandleFunc("/api/datasets", s.handleDatasetsCollection) // GET (list), POST (create)
	mux.HandleFunc("/api/datasets/", s.handleDatasetRoutes)     // GET /{id}

	// API routes - Corpus
	mux.HandleFunc("/api/corpus/search", s.app.SearchHandler.SearchCorpusHandler)
	mux.HandleFunc("/api/corpus", s.handleCorpusCollection) // GET (list), POST (upload)
	mux.HandleFunc("/api/corpus/", s.handleCorpusRoutes)    // GET/DELETE /{id}

	// API routes - System
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)
	mux.HandleFunc("/api/hub/stats", s.app.APIHandler.HubStatsHandler)
	mux.HandleFunc("/api/shutdown", s.ShutdownHandler) // Graceful shutdown endpoint (dev mode)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.app.APIHandler.NotFoundHandler)

	return mux
}

// handleJobsCollection routes /api/jobs requests (list and submit)
func (s *Server) handleJobsCollection(w http.ResponseWriter, r *http.Request) {
	RouteResourceCollection(w, r, s.app.JobHandler.ListJobsHandler, s.app.JobHandler.SubmitJobHandler)
}

// handleJobRoutes routes /api/jobs/{id} requests and subpaths
func (s *Server) handleJobRoutes(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	// POST /api/jobs/{id}/cancel
	if r.Method == "POST" && strings.HasSuffix(path, "/cancel") {
		s.app.JobHandler.CancelJobHandler(w, r)
		return
	}

	// GET /api/jobs/{id}/logs
	if r.Method == "GET" && strings.HasSuffix(path, "/logs") {
		s.app.JobHandler.GetJobLogsHandler(w, r)
		return
	}

	// GET /api/jobs/{id}
	if r.Method == "GET" {
		s.app.JobHandler.GetJobHandler(w, r)
		return
	}

	http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
}

// handleDatasetsCollection routes /api/datasets requests (list and create)
func (s *Server) handleDatasetsCollection(w http.ResponseWriter, r *http.Request) {
	RouteResourceCollection(w, r, s.app.DatasetHandler.ListDatasetsHandler, s.app.DatasetHandler.CreateDatasetHandler)
}

// handleDatasetRoutes routes /api/datasets/{id} requests
func (s *Server) handleDatasetRoutes(w http.ResponseWriter, r *http.Request) {
	RouteResourceItem(w, r, s.app.DatasetHandler.GetDatasetHandler, nil, nil)
}

// handleCorpusCollection routes /api/corpus requests (list and upload)
func (s *Server) handleCorpusCollection(w http.ResponseWriter, r *http.Request) {
	RouteResourceCollection(w, r, s.app.CorpusHandler.ListCorpusHandler, s.app.CorpusHandler.UploadCorpusHandler)
}

// handleCorpusRoutes routes /api/corpus/{id} requests
func (s *Server) handleCorpusRoutes(w http.ResponseWriter, r *http.Request) {
	RouteResourceItem(w, r, s.app.CorpusHandler.GetCorpusDocumentHandler, nil, s.app.CorpusHandler.DeleteCorpusDocumentHandler)
}
