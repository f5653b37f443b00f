package interfaces

import (
	"context"

	"github.com/ternarybob/doceo/internal/models"
)

// CorpusIngestResult summarizes a corpus directory scan
type CorpusIngestResult struct {
	Scanned  int `json:"scanned"`  // Files considered
	Ingested int `json:"ingested"` // Documents saved or updated
	Skipped  int `json:"skipped"`  // Unchanged, oversized, or unsupported files
	Failed   int `json:"failed"`   // Files that errored during extraction
}

// CorpusService ingests source files into normalized markdown documents
// that the local search backend indexes.
type CorpusService interface {
	// IngestDirectory walks dir and ingests every supported file
	IngestDirectory(ctx context.Context, dir string) (*CorpusIngestResult, error)

	// IngestFile ingests a single file, converting it to markdown
	IngestFile(ctx context.Context, path string) (*models.Document, error)

	// IngestUpload ingests uploaded content, converting it to markdown.
	// The filename determines the source identifier and format detection.
	IngestUpload(ctx context.Context, filename string, data []byte) (*models.Document, error)

	// Count returns the number of documents in the corpus
	Count(ctx context.Context) (int, error)
}
