package handlers

import (
	"io"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/doceo/internal/interfaces"
	"github.com/ternarybob/doceo/internal/models"
)

// maxUploadMemory caps how much of a multipart upload is buffered in
// memory before spilling to disk
const maxUploadMemory = 32 << 20

// CorpusHandler handles corpus document API requests
type CorpusHandler struct {
	corpusService   interfaces.CorpusService
	documentStore   interfaces.DocumentStore
	identityService interfaces.IdentityService
	logger          arbor.ILogger
}

// NewCorpusHandler creates a new corpus handler
func NewCorpusHandler(corpusService interfaces.CorpusService, documentStore interfaces.DocumentStore, identityService interfaces.IdentityService, logger arbor.ILogger) *CorpusHandler {
	return &CorpusHandler{
		corpusService:   corpusService,
		documentStore:   documentStore,
		identityService: identityService,
		logger:          logger,
	}
}

// documentSummary is the list view of a corpus document. Content stays
// out of list responses; fetch the document by ID for the full text.
type documentSummary struct {
	ID            string    `json:"id"`
	Source        string    `json:"source"`
	SourceType    string    `json:"source_type"`
	Title         string    `json:"title"`
	TokenCount    int       `json:"token_count"`
	ContentLength int       `json:"content_length"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func summarize(doc *models.Document) documentSummary {
	return documentSummary{
		ID:            doc.ID,
		Source:        doc.Source,
		SourceType:    doc.SourceType,
		Title:         doc.Title,
		TokenCount:    doc.TokenCount,
		ContentLength: len(doc.ContentMarkdown),
		CreatedAt:     doc.CreatedAt,
		UpdatedAt:     doc.UpdatedAt,
	}
}

// UploadCorpusHandler ingests an uploaded file into the corpus.
// Expects a multipart form with the file under the "file" field.
// POST /api/corpus
func (h *CorpusHandler) UploadCorpusHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity, ok := ResolveIdentity(w, r, h.identityService)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid multipart form: "+err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "Missing file field: "+err.Error())
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "Failed to read upload: "+err.Error())
		return
	}

	doc, err := h.corpusService.IngestUpload(ctx, header.Filename, data)
	if err != nil {
		h.logger.Warn().
			Err(err).
			Str("filename", header.Filename).
			Int("bytes", len(data)).
			Msg("Corpus upload rejected")
		WriteServiceError(w, err)
		return
	}

	h.logger.Info().
		Str("doc_id", doc.ID).
		Str("filename", header.Filename).
		Str("source_type", doc.SourceType).
		Str("uploaded_by", identity.Subject).
		Msg("Corpus document ingested")

	WriteJSON(w, http.StatusCreated, doc)
}

// ListCorpusHandler returns corpus document summaries, newest first
// GET /api/corpus?limit=100&offset=0
func (h *CorpusHandler) ListCorpusHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit, offset := GetLimitOffset(r, 100, 1000)

	docs, err := h.documentStore.ListDocuments(ctx, &interfaces.ListOptions{Limit: limit, Offset: offset})
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list corpus documents")
		WriteServiceError(w, err)
		return
	}

	summaries := make([]documentSummary, 0, len(docs))
	for _, doc := range docs {
		summaries = append(summaries, summarize(doc))
	}

	total, err := h.documentStore.CountDocuments(ctx)
	if err != nil {
		total = len(summaries)
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"documents": summaries,
		"count":     len(summaries),
		"total":     total,
	})
}

// GetCorpusDocumentHandler returns a full corpus document including content
// GET /api/corpus/{id}
func (h *CorpusHandler) GetCorpusDocumentHandler(w http.ResponseWriter, r *http.Request) {
	docID := PathSegment(r, 2)
	if docID == "" {
		WriteError(w, http.StatusBadRequest, "Document ID is required")
		return
	}

	doc, err := h.documentStore.GetDocument(r.Context(), docID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, doc)
}

// DeleteCorpusDocumentHandler removes a document from the corpus.
// The local search backend reads documents from storage per query, so
// no separate index cleanup is needed.
// DELETE /api/corpus/{id}
func (h *CorpusHandler) DeleteCorpusDocumentHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	docID := PathSegment(r, 2)
	if docID == "" {
		WriteError(w, http.StatusBadRequest, "Document ID is required")
		return
	}

	identity, ok := ResolveIdentity(w, r, h.identityService)
	if !ok {
		return
	}

	if err := h.documentStore.DeleteDocument(ctx, docID); err != nil {
		WriteServiceError(w, err)
		return
	}

	h.logger.Info().
		Str("doc_id", docID).
		Str("deleted_by", identity.Subject).
		Msg("Corpus document deleted")

	WriteSuccess(w, "Document deleted")
}
