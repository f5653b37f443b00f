package handlers

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/doceo/internal/common"
	"github.com/ternarybob/doceo/internal/interfaces"
	"github.com/ternarybob/doceo/internal/models"
	"github.com/ternarybob/doceo/internal/services/identity"
)

// stubDatasetService implements interfaces.DatasetService for handler tests
type stubDatasetService struct {
	createFunc func(ctx context.Context, req *models.DatasetRequest, id models.Identity) (*models.DatasetRecord, error)
	records    []*models.DatasetRecord
}

func (s *stubDatasetService) CreateDataset(ctx context.Context, req *models.DatasetRequest, id models.Identity) (*models.DatasetRecord, error) {
	if s.createFunc != nil {
		return s.createFunc(ctx, req, id)
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", models.ErrInvalidArgument, err.Error())
	}
	return models.NewDatasetRecord(common.NewDatasetID(), req, []string{models.FormatJSONL}, id.Subject), nil
}

func (s *stubDatasetService) GetDataset(ctx context.Context, id string) (*models.DatasetRecord, error) {
	for _, record := range s.records {
		if record.ID == id {
			return record, nil
		}
	}
	return nil, fmt.Errorf("%w: dataset %s", models.ErrNotFound, id)
}

func (s *stubDatasetService) ListDatasets(ctx context.Context, filter *interfaces.DatasetFilter) ([]*models.DatasetRecord, error) {
	matched := make([]*models.DatasetRecord, 0, len(s.records))
	for _, record := range s.records {
		if filter != nil && filter.State != "" && record.State != filter.State {
			continue
		}
		matched = append(matched, record)
	}
	return matched, nil
}

func newDatasetHandlerFixture(t *testing.T) (*DatasetHandler, *stubDatasetService) {
	t.Helper()

	logger := arbor.NewLogger()
	service := &stubDatasetService{}
	identityService := identity.NewService(logger, &common.AuthConfig{AllowAnonymous: true})
	return NewDatasetHandler(service, identityService, logger), service
}

func testDatasetRecord(state models.DatasetState) *models.DatasetRecord {
	record := models.NewDatasetRecord(common.NewDatasetID(), &models.DatasetRequest{
		Name:  "weather notes",
		Query: models.DatasetQuery{QueryText: "weather"},
	}, []string{models.FormatJSONL}, "tester")
	record.State = state
	return record
}

func TestCreateDatasetAccepted(t *testing.T) {
	handler, _ := newDatasetHandlerFixture(t)

	rec := postJSON(t, handler.CreateDatasetHandler, "/api/datasets", "", &models.DatasetRequest{
		Name:    "weather notes",
		Query:   models.DatasetQuery{QueryText: "weather"},
		Formats: []string{"jsonl"},
	})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}

	var record models.DatasetRecord
	decodeBody(t, rec, &record)
	if record.State != models.DatasetStatePending {
		t.Errorf("state = %s, want pending", record.State)
	}
	if record.CreatedBy != "anonymous" {
		t.Errorf("created_by = %q, want anonymous", record.CreatedBy)
	}
}

func TestCreateDatasetValidationError(t *testing.T) {
	handler, _ := newDatasetHandlerFixture(t)

	rec := postJSON(t, handler.CreateDatasetHandler, "/api/datasets", "", &models.DatasetRequest{
		Name: "missing query",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestCreateDatasetUnsupportedFormat(t *testing.T) {
	handler, service := newDatasetHandlerFixture(t)
	service.createFunc = func(ctx context.Context, req *models.DatasetRequest, id models.Identity) (*models.DatasetRecord, error) {
		return nil, fmt.Errorf("%w: xml", models.ErrUnsupportedFormat)
	}

	rec := postJSON(t, handler.CreateDatasetHandler, "/api/datasets", "", &models.DatasetRequest{
		Name:    "notes",
		Query:   models.DatasetQuery{QueryText: "weather"},
		Formats: []string{"xml"},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestListDatasetsHandler(t *testing.T) {
	handler, service := newDatasetHandlerFixture(t)
	service.records = []*models.DatasetRecord{
		testDatasetRecord(models.DatasetStateCompleted),
		testDatasetRecord(models.DatasetStatePending),
	}

	rec := getRequest(t, handler.ListDatasetsHandler, "/api/datasets")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body struct {
		Datasets []*models.DatasetRecord `json:"datasets"`
		Count    int                     `json:"count"`
	}
	decodeBody(t, rec, &body)
	if body.Count != 2 {
		t.Errorf("count = %d, want 2", body.Count)
	}

	rec = getRequest(t, handler.ListDatasetsHandler, "/api/datasets?state=completed")
	decodeBody(t, rec, &body)
	if body.Count != 1 {
		t.Errorf("completed filter count = %d, want 1", body.Count)
	}

	rec = getRequest(t, handler.ListDatasetsHandler, "/api/datasets?state=bogus")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid state, got %d", rec.Code)
	}
}

func TestGetDatasetHandler(t *testing.T) {
	handler, service := newDatasetHandlerFixture(t)
	record := testDatasetRecord(models.DatasetStateCompleted)
	service.records = []*models.DatasetRecord{record}

	rec := getRequest(t, handler.GetDatasetHandler, "/api/datasets/"+record.ID)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var got models.DatasetRecord
	decodeBody(t, rec, &got)
	if got.ID != record.ID {
		t.Errorf("got dataset %s, want %s", got.ID, record.ID)
	}

	rec = getRequest(t, handler.GetDatasetHandler, "/api/datasets/ds_missing")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
