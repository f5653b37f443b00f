package corpus

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/doceo/internal/common"
	"github.com/ternarybob/doceo/internal/interfaces"
	"github.com/ternarybob/doceo/internal/models"
)

// Service ingests source files into normalized markdown documents.
// Every document lands in the store with markdown content, a title, and
// a cached token count so the dataset pipeline never re-tokenizes.
type Service struct {
	documents    interfaces.DocumentStore
	extractor    interfaces.PDFExtractor
	eventService interfaces.EventService
	logger       arbor.ILogger
	maxFileSize  int64
	extensions   map[string]struct{}
}

// Compile-time interface assertion
var _ interfaces.CorpusService = (*Service)(nil)

// NewService creates a new corpus ingestion service
func NewService(
	documents interfaces.DocumentStore,
	extractor interfaces.PDFExtractor,
	logger arbor.ILogger,
	config *common.CorpusConfig,
) *Service {
	extensions := make(map[string]struct{}, len(config.Extensions))
	for _, ext := range config.Extensions {
		extensions[strings.ToLower(ext)] = struct{}{}
	}
	return &Service{
		documents:   documents,
		extractor:   extractor,
		logger:      logger,
		maxFileSize: config.MaxFileSize,
		extensions:  extensions,
	}
}

// SetEventService wires the internal event bus. When set, directory
// scans publish a corpus_ingested event with the scan result.
func (s *Service) SetEventService(eventService interfaces.EventService) {
	s.eventService = eventService
}

// IngestDirectory walks dir and ingests every file matching the configured
// extensions. Individual file failures are counted, not fatal.
func (s *Service) IngestDirectory(ctx context.Context, dir string) (*interfaces.CorpusIngestResult, error) {
	result := &interfaces.CorpusIngestResult{}

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}
		if _, ok := s.extensions[strings.ToLower(filepath.Ext(path))]; !ok {
			return nil
		}
		result.Scanned++

		info, err := d.Info()
		if err != nil {
			result.Failed++
			return nil
		}
		if s.maxFileSize > 0 && info.Size() > s.maxFileSize {
			result.Skipped++
			s.logger.Warn().
				Str("path", path).
				Int64("bytes", info.Size()).
				Msg("Skipping oversized corpus file")
			return nil
		}

		_, changed, err := s.ingestPath(ctx, path)
		switch {
		case err != nil:
			result.Failed++
			s.logger.Error().Err(err).Str("path", path).Msg("Failed to ingest corpus file")
		case changed:
			result.Ingested++
		default:
			result.Skipped++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("dir", dir).
		Int("scanned", result.Scanned).
		Int("ingested", result.Ingested).
		Int("skipped", result.Skipped).
		Int("failed", result.Failed).
		Msg("Corpus directory ingest completed")

	if s.eventService != nil {
		s.eventService.Publish(ctx, interfaces.Event{
			Type:    interfaces.EventCorpusIngested,
			Payload: result,
		})
	}
	return result, nil
}

// IngestFile ingests a single file, converting it to markdown
func (s *Service) IngestFile(ctx context.Context, path string) (*models.Document, error) {
	doc, _, err := s.ingestPath(ctx, path)
	return doc, err
}

// IngestUpload ingests uploaded content, converting it to markdown
func (s *Service) IngestUpload(ctx context.Context, filename string, data []byte) (*models.Document, error) {
	if s.maxFileSize > 0 && int64(len(data)) > s.maxFileSize {
		return nil, fmt.Errorf("%w: upload %s exceeds %d bytes", models.ErrInvalidArgument, filename, s.maxFileSize)
	}
	doc, _, err := s.ingest(ctx, filename, data, "")
	return doc, err
}

// Count returns the number of documents in the corpus
func (s *Service) Count(ctx context.Context) (int, error) {
	return s.documents.CountDocuments(ctx)
}

func (s *Service) ingestPath(ctx context.Context, path string) (*models.Document, bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, false, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if s.maxFileSize > 0 && info.Size() > s.maxFileSize {
		return nil, false, fmt.Errorf("%w: file %s exceeds %d bytes", models.ErrInvalidArgument, path, s.maxFileSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return s.ingest(ctx, path, data, path)
}

// ingest converts raw content to a markdown document and persists it.
// pdfPath is the on-disk location for PDF extraction, empty for uploads.
// Returns changed=false when the source is already stored with identical
// content.
func (s *Service) ingest(ctx context.Context, source string, data []byte, pdfPath string) (*models.Document, bool, error) {
	sourceType, err := detectSourceType(source, data)
	if err != nil {
		return nil, false, err
	}

	var content, title string
	switch sourceType {
	case SourceTypeHTML:
		content, title = s.htmlToMarkdown(string(data))
	case SourceTypePDF:
		content, err = s.extractPDF(ctx, pdfPath, data)
		if err != nil {
			return nil, false, err
		}
	default: // markdown, text, and json pass through unchanged
		content = string(data)
	}
	if strings.TrimSpace(content) == "" {
		return nil, false, fmt.Errorf("%w: no text content in %s", models.ErrUnsupportedFormat, source)
	}
	if title == "" {
		title = markdownTitle(content, source)
	}

	doc := &models.Document{
		ID:              common.NewDocumentID(),
		Source:          source,
		SourceType:      sourceType,
		Title:           title,
		ContentMarkdown: content,
		TokenCount:      common.CountTokensDefault(content),
		Metadata: map[string]interface{}{
			"bytes": len(data),
		},
	}

	// Re-ingesting a known source updates the existing document in place
	existing, err := s.documents.GetDocumentBySource(ctx, source)
	switch {
	case err == nil:
		if existing.ContentMarkdown == content {
			return existing, false, nil
		}
		doc.ID = existing.ID
	case !errors.Is(err, models.ErrNotFound):
		return nil, false, err
	}

	if err := s.documents.SaveDocument(ctx, doc); err != nil {
		return nil, false, fmt.Errorf("failed to save document: %w", err)
	}

	s.logger.Info().
		Str("document_id", doc.ID).
		Str("source", source).
		Str("source_type", sourceType).
		Int("tokens", doc.TokenCount).
		Msg("Corpus document ingested")
	return doc, true, nil
}

// htmlToMarkdown converts HTML to markdown, stripping tags as a fallback
// when conversion fails or produces nothing
func (s *Service) htmlToMarkdown(html string) (string, string) {
	title := htmlTitle(html)

	converter := md.NewConverter("", true, nil)
	converted, err := converter.ConvertString(html)
	if err != nil || strings.TrimSpace(converted) == "" {
		if err != nil {
			s.logger.Warn().Err(err).Msg("HTML to markdown conversion failed, stripping tags")
		}
		return stripHTMLTags(html), title
	}
	return converted, title
}

// extractPDF pulls text out of a PDF. Uploads arrive as bytes and are
// staged to a temp file because the extractor works on paths.
func (s *Service) extractPDF(ctx context.Context, path string, data []byte) (string, error) {
	if s.extractor == nil {
		return "", fmt.Errorf("%w: no PDF extractor configured", models.ErrUnsupportedFormat)
	}

	if path == "" {
		tmp, err := os.CreateTemp("", "doceo-upload-*.pdf")
		if err != nil {
			return "", fmt.Errorf("failed to stage upload: %w", err)
		}
		defer os.Remove(tmp.Name())

		if _, err := tmp.Write(data); err != nil {
			tmp.Close()
			return "", fmt.Errorf("failed to stage upload: %w", err)
		}
		tmp.Close()
		path = tmp.Name()
	}

	return s.extractor.ExtractText(ctx, path)
}
