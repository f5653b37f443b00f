package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/doceo/internal/interfaces"
	"github.com/ternarybob/doceo/internal/models"
)

var datasetStates = []models.DatasetState{
	models.DatasetStatePending,
	models.DatasetStateProcessing,
	models.DatasetStateCompleted,
	models.DatasetStateFailed,
}

// DatasetHandler handles dataset build API requests
type DatasetHandler struct {
	datasetService  interfaces.DatasetService
	identityService interfaces.IdentityService
	logger          arbor.ILogger
}

// NewDatasetHandler creates a new dataset handler
func NewDatasetHandler(datasetService interfaces.DatasetService, identityService interfaces.IdentityService, logger arbor.ILogger) *DatasetHandler {
	return &DatasetHandler{
		datasetService:  datasetService,
		identityService: identityService,
		logger:          logger,
	}
}

// CreateDatasetHandler validates the request and starts a build in the
// background. The response is the pending snapshot; callers poll the
// record or subscribe to /ws for completion.
// POST /api/datasets
func (h *DatasetHandler) CreateDatasetHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity, ok := ResolveIdentity(w, r, h.identityService)
	if !ok {
		return
	}

	var req models.DatasetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	record, err := h.datasetService.CreateDataset(ctx, &req, identity)
	if err != nil {
		h.logger.Error().Err(err).Str("name", req.Name).Msg("Failed to create dataset")
		WriteServiceError(w, err)
		return
	}

	h.logger.Info().
		Str("dataset_id", record.ID).
		Str("name", record.Name).
		Str("created_by", record.CreatedBy).
		Msg("Dataset build started")

	WriteJSON(w, http.StatusAccepted, record)
}

// ListDatasetsHandler returns dataset records, newest first
// GET /api/datasets?state=completed&limit=50&offset=0
func (h *DatasetHandler) ListDatasetsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit, offset := GetLimitOffset(r, 100, 1000)
	filter := &interfaces.DatasetFilter{
		Limit: limit,
		Skip:  offset,
	}

	if stateStr := r.URL.Query().Get("state"); stateStr != "" {
		state := models.DatasetState(stateStr)
		if !validDatasetState(state) {
			WriteError(w, http.StatusBadRequest, "Invalid state filter: "+stateStr)
			return
		}
		filter.State = state
	}

	records, err := h.datasetService.ListDatasets(ctx, filter)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list datasets")
		WriteServiceError(w, err)
		return
	}
	if records == nil {
		records = []*models.DatasetRecord{}
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"datasets": records,
		"count":    len(records),
	})
}

// GetDatasetHandler returns a single dataset record
// GET /api/datasets/{id}
func (h *DatasetHandler) GetDatasetHandler(w http.ResponseWriter, r *http.Request) {
	datasetID := PathSegment(r, 2)
	if datasetID == "" {
		WriteError(w, http.StatusBadRequest, "Dataset ID is required")
		return
	}

	record, err := h.datasetService.GetDataset(r.Context(), datasetID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, record)
}

func validDatasetState(state models.DatasetState) bool {
	for _, s := range datasetStates {
		if s == state {
			return true
		}
	}
	return false
}
