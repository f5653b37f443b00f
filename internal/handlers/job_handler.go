package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/doceo/internal/common"
	"github.com/ternarybob/doceo/internal/interfaces"
	"github.com/ternarybob/doceo/internal/models"
)

// jobStates in display order for totals maps
var jobStates = []models.JobState{
	models.JobStatePending,
	models.JobStateQueued,
	models.JobStateRunning,
	models.JobStateCompleted,
	models.JobStateFailed,
	models.JobStateCancelled,
}

// JobHandler handles training job API requests
type JobHandler struct {
	jobStore        interfaces.JobStore
	logStore        interfaces.LogStore
	poolService     interfaces.PoolService
	identityService interfaces.IdentityService
	logger          arbor.ILogger
}

// NewJobHandler creates a new job handler
func NewJobHandler(jobStore interfaces.JobStore, logStore interfaces.LogStore, poolService interfaces.PoolService, identityService interfaces.IdentityService, logger arbor.ILogger) *JobHandler {
	return &JobHandler{
		jobStore:        jobStore,
		logStore:        logStore,
		poolService:     poolService,
		identityService: identityService,
		logger:          logger,
	}
}

// SubmitJobHandler creates a training job and queues it for execution
// POST /api/jobs
func (h *JobHandler) SubmitJobHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity, ok := ResolveIdentity(w, r, h.identityService)
	if !ok {
		return
	}

	var submission models.JobSubmission
	if err := json.NewDecoder(r.Body).Decode(&submission); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if err := submission.Validate(); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	job := models.NewTrainingJob(common.NewJobID(), &submission, identity.Subject)
	if err := h.jobStore.SaveJob(ctx, job); err != nil {
		h.logger.Error().Err(err).Msg("Failed to save job")
		WriteServiceError(w, err)
		return
	}

	if err := h.poolService.Submit(ctx, job.ID); err != nil {
		// The record stays pending; return its ID so the caller can
		// inspect or cancel it
		h.logger.Warn().
			Err(err).
			Str("job_id", job.ID).
			Msg("Job persisted but not queued")
		WriteJSON(w, StatusForError(err), map[string]string{
			"status": "error",
			"error":  err.Error(),
			"job_id": job.ID,
		})
		return
	}

	snapshot, err := h.jobStore.GetJob(ctx, job.ID)
	if err != nil {
		snapshot = job
	}

	h.logger.Info().
		Str("job_id", job.ID).
		Str("kind", string(job.Kind)).
		Str("created_by", job.CreatedBy).
		Msg("Job submitted")

	WriteJSON(w, http.StatusCreated, snapshot)
}

// ListJobsHandler returns jobs matching the query, newest first
// GET /api/jobs?state=running&kind=lora&tag=nightly&limit=50&offset=0
func (h *JobHandler) ListJobsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit, offset := GetLimitOffset(r, 100, 1000)
	filter := &interfaces.JobFilter{
		Kind:  models.JobKind(r.URL.Query().Get("kind")),
		Tag:   r.URL.Query().Get("tag"),
		Limit: limit,
		Skip:  offset,
	}

	if stateStr := r.URL.Query().Get("state"); stateStr != "" {
		state := models.JobState(stateStr)
		if !validJobState(state) {
			WriteError(w, http.StatusBadRequest, "Invalid state filter: "+stateStr)
			return
		}
		filter.State = state
	}

	jobs, err := h.jobStore.ListJobs(ctx, filter)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list jobs")
		WriteServiceError(w, err)
		return
	}
	if jobs == nil {
		jobs = []*models.TrainingJob{}
	}

	totals, err := h.stateTotals(ctx)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to count jobs")
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":   jobs,
		"count":  len(jobs),
		"totals": totals,
	})
}

// GetJobHandler returns a single job snapshot
// GET /api/jobs/{id}
func (h *JobHandler) GetJobHandler(w http.ResponseWriter, r *http.Request) {
	jobID := PathSegment(r, 2)
	if jobID == "" {
		WriteError(w, http.StatusBadRequest, "Job ID is required")
		return
	}

	job, err := h.jobStore.GetJob(r.Context(), jobID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, job)
}

// CancelJobHandler cancels a job that has not started running.
// Only the submitting identity or an admin may cancel.
// POST /api/jobs/{id}/cancel
func (h *JobHandler) CancelJobHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	jobID := PathSegment(r, 2)
	if jobID == "" {
		WriteError(w, http.StatusBadRequest, "Job ID is required")
		return
	}

	identity, ok := ResolveIdentity(w, r, h.identityService)
	if !ok {
		return
	}

	job, err := h.jobStore.GetJob(ctx, jobID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	if !h.identityService.CanCancel(identity, job.CreatedBy) {
		h.logger.Warn().
			Str("job_id", jobID).
			Str("subject", identity.Subject).
			Str("created_by", job.CreatedBy).
			Msg("Cancel refused for non-owner")
		WriteError(w, http.StatusForbidden, "Only the job creator or an admin can cancel this job")
		return
	}

	cancelled, err := h.poolService.Cancel(ctx, jobID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	currentState := job.State
	if updated, err := h.jobStore.GetJob(ctx, jobID); err == nil {
		currentState = updated.State
	}

	h.logger.Info().
		Str("job_id", jobID).
		Bool("cancelled", cancelled).
		Str("current_state", string(currentState)).
		Msg("Cancel request processed")

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"cancelled":     cancelled,
		"current_state": currentState,
	})
}

// GetJobLogsHandler returns persisted log entries for a job in line order
// GET /api/jobs/{id}/logs?limit=500&offset=0
func (h *JobHandler) GetJobLogsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	jobID := PathSegment(r, 2)
	if jobID == "" {
		WriteError(w, http.StatusBadRequest, "Job ID is required")
		return
	}

	// 404 for unknown jobs rather than an empty log list
	if _, err := h.jobStore.GetJob(ctx, jobID); err != nil {
		WriteServiceError(w, err)
		return
	}

	limit, offset := GetLimitOffset(r, 500, 5000)

	entries, err := h.logStore.GetJobLogs(ctx, jobID, limit, offset)
	if err != nil {
		h.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to read job logs")
		WriteServiceError(w, err)
		return
	}
	if entries == nil {
		entries = []*models.LogEntry{}
	}

	total, err := h.logStore.CountJobLogs(ctx, jobID)
	if err != nil {
		total = len(entries)
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"job_id": jobID,
		"logs":   entries,
		"count":  len(entries),
		"total":  total,
	})
}

// GetJobStatsHandler returns pool counters and per-state job totals
// GET /api/jobs/stats
func (h *JobHandler) GetJobStatsHandler(w http.ResponseWriter, r *http.Request) {
	totals, err := h.stateTotals(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to count jobs")
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"pool":   h.poolService.Stats(),
		"totals": totals,
	})
}

// stateTotals counts jobs in every state for list and stats responses
func (h *JobHandler) stateTotals(ctx context.Context) (map[string]int, error) {
	totals := make(map[string]int, len(jobStates))
	for _, state := range jobStates {
		count, err := h.jobStore.CountJobs(ctx, state)
		if err != nil {
			return nil, err
		}
		totals[string(state)] = count
	}
	return totals, nil
}

func validJobState(state models.JobState) bool {
	for _, s := range jobStates {
		if s == state {
			return true
		}
	}
	return false
}
