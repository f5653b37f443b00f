// -----------------------------------------------------------------------
// PDF Extractor Interface - Extract text content from PDF documents
// -----------------------------------------------------------------------

package interfaces

import (
	"context"
)

// PDFPageContent represents extracted content from a single PDF page
type PDFPageContent struct {
	PageNumber int    `json:"page_number"`
	Text       string `json:"text"`
}

// PDFMetadata contains metadata about a PDF document
type PDFMetadata struct {
	Title       string `json:"title,omitempty"`
	Author      string `json:"author,omitempty"`
	PageCount   int    `json:"page_count"`
	FileSize    int64  `json:"file_size"`
	IsEncrypted bool   `json:"is_encrypted"`
}

// PDFExtractor defines the interface for extracting content from PDF documents.
// This interface abstracts the PDF extraction implementation so the corpus
// ingester does not depend on a specific library.
type PDFExtractor interface {
	// ExtractText extracts all text content from the PDF at path.
	// Returns the full text content concatenated from all pages.
	ExtractText(ctx context.Context, path string) (string, error)

	// ExtractPages extracts text content by page from a PDF.
	// Returns a slice of PDFPageContent with page numbers and text.
	ExtractPages(ctx context.Context, path string) ([]PDFPageContent, error)

	// GetMetadata retrieves PDF metadata without extracting text content.
	// This is a lightweight operation useful for checking document properties.
	GetMetadata(ctx context.Context, path string) (*PDFMetadata, error)
}

// PDFService handles PDF generation from various formats
type PDFService interface {
	// ConvertMarkdownToPDF converts markdown content to a PDF byte slice
	ConvertMarkdownToPDF(markdown, title string) ([]byte, error)
}
