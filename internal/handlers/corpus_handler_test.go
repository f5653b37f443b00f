package handlers

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/doceo/internal/common"
	"github.com/ternarybob/doceo/internal/interfaces"
	"github.com/ternarybob/doceo/internal/models"
	"github.com/ternarybob/doceo/internal/services/corpus"
	"github.com/ternarybob/doceo/internal/services/identity"
	"github.com/ternarybob/doceo/internal/storage/memory"
)

func newCorpusHandlerFixture(t *testing.T) (*CorpusHandler, interfaces.DocumentStore) {
	t.Helper()

	logger := arbor.NewLogger()
	documents := memory.NewDocumentStore()
	corpusService := corpus.NewService(documents, nil, logger, &common.CorpusConfig{
		MaxFileSize: 1 << 20,
		Extensions:  []string{".md", ".txt", ".html"},
	})
	identityService := identity.NewService(logger, &common.AuthConfig{AllowAnonymous: true})
	return NewCorpusHandler(corpusService, documents, identityService, logger), documents
}

func uploadFile(t *testing.T, handler *CorpusHandler, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	writer.Close()

	req := httptest.NewRequest("POST", "/api/corpus", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	handler.UploadCorpusHandler(rec, req)
	return rec
}

func TestUploadCorpusDocument(t *testing.T) {
	handler, documents := newCorpusHandlerFixture(t)

	rec := uploadFile(t, handler, "go-notes.md", []byte("# Go Notes\n\nChannels carry values between goroutines.\n"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var doc models.Document
	decodeBody(t, rec, &doc)

	if doc.SourceType != "markdown" {
		t.Errorf("source_type = %s, want markdown", doc.SourceType)
	}
	if doc.Title != "Go Notes" {
		t.Errorf("title = %q, want Go Notes", doc.Title)
	}

	count, err := documents.CountDocuments(context.Background())
	if err != nil || count != 1 {
		t.Fatalf("document count = %d (err %v), want 1", count, err)
	}
}

func TestUploadCorpusRejectsBinary(t *testing.T) {
	handler, documents := newCorpusHandlerFixture(t)

	// PNG magic bytes are not an ingestible text format
	rec := uploadFile(t, handler, "diagram.png", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for binary upload, got %d", rec.Code)
	}

	count, _ := documents.CountDocuments(context.Background())
	if count != 0 {
		t.Errorf("rejected upload must not persist a document, found %d", count)
	}
}

func TestUploadCorpusRejectsOversize(t *testing.T) {
	handler, _ := newCorpusHandlerFixture(t)

	big := bytes.Repeat([]byte("a"), (1<<20)+1)
	rec := uploadFile(t, handler, "big.txt", big)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for oversized upload, got %d", rec.Code)
	}
}

func TestUploadCorpusMissingFileField(t *testing.T) {
	handler, _ := newCorpusHandlerFixture(t)

	req := httptest.NewRequest("POST", "/api/corpus", bytes.NewReader([]byte("not multipart")))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	handler.UploadCorpusHandler(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestListCorpusSummaries(t *testing.T) {
	handler, _ := newCorpusHandlerFixture(t)

	if rec := uploadFile(t, handler, "alpha.md", []byte("# Alpha\n\nFirst document body.\n")); rec.Code != http.StatusCreated {
		t.Fatalf("seed upload failed: %d", rec.Code)
	}
	if rec := uploadFile(t, handler, "beta.txt", []byte("Beta document body.\n")); rec.Code != http.StatusCreated {
		t.Fatalf("seed upload failed: %d", rec.Code)
	}

	rec := getRequest(t, handler.ListCorpusHandler, "/api/corpus")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body struct {
		Documents []documentSummary `json:"documents"`
		Count     int               `json:"count"`
		Total     int               `json:"total"`
	}
	decodeBody(t, rec, &body)

	if body.Count != 2 || body.Total != 2 {
		t.Fatalf("count=%d total=%d, want 2/2", body.Count, body.Total)
	}
	for _, summary := range body.Documents {
		if summary.ContentLength == 0 {
			t.Errorf("summary %s has zero content_length", summary.ID)
		}
	}
}

func TestGetAndDeleteCorpusDocument(t *testing.T) {
	handler, _ := newCorpusHandlerFixture(t)

	rec := uploadFile(t, handler, "gamma.md", []byte("# Gamma\n\nBody.\n"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("seed upload failed: %d", rec.Code)
	}
	var doc models.Document
	decodeBody(t, rec, &doc)

	rec = getRequest(t, handler.GetCorpusDocumentHandler, "/api/corpus/"+doc.ID)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got models.Document
	decodeBody(t, rec, &got)
	if got.ContentMarkdown == "" {
		t.Error("full document view must include content")
	}

	req := httptest.NewRequest("DELETE", "/api/corpus/"+doc.ID, nil)
	del := httptest.NewRecorder()
	handler.DeleteCorpusDocumentHandler(del, req)
	if del.Code != http.StatusOK {
		t.Fatalf("expected 200 on delete, got %d", del.Code)
	}

	rec = getRequest(t, handler.GetCorpusDocumentHandler, "/api/corpus/"+doc.ID)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rec.Code)
	}

	req = httptest.NewRequest("DELETE", "/api/corpus/"+doc.ID, nil)
	del = httptest.NewRecorder()
	handler.DeleteCorpusDocumentHandler(del, req)
	if del.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on double delete, got %d", del.Code)
	}
}
