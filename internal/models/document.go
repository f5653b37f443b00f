package models

import (
	"math"
	"strings"
	"time"
)

// Document represents a normalized corpus document from any source
// PRIMARY CONTENT FORMAT: Markdown (ContentMarkdown field)
type Document struct {
	// Identity
	ID         string `json:"id"`          // doc_{uuid}
	Source     string `json:"source"`      // Origin identifier (file path, URL, upload name)
	SourceType string `json:"source_type"` // markdown, text, html, pdf

	// Content (markdown-first)
	Title           string `json:"title"`
	ContentMarkdown string `json:"content_markdown"` // PRIMARY CONTENT: Markdown format

	// TokenCount caches the tokenizer count for pipeline budgeting
	TokenCount int `json:"token_count"`

	// Metadata (source-specific data stored as JSON)
	// Example: {"path": "notes/go.md", "bytes": 1824}
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	// Timestamps
	CreatedAt time.Time `json:"created_at" badgerhold:"index"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy of the document
func (d *Document) Clone() *Document {
	clone := *d
	if d.Metadata != nil {
		clone.Metadata = make(map[string]interface{}, len(d.Metadata))
		for k, v := range d.Metadata {
			clone.Metadata[k] = v
		}
	}
	return &clone
}

// ScoreQuality estimates intrinsic document quality from content alone.
// The heuristic favors documents long enough to carry training signal and
// discounts repetitive text. Scores are deterministic so pipeline runs
// over the same corpus are reproducible.
func ScoreQuality(content string) float64 {
	words := strings.Fields(content)
	if len(words) == 0 {
		return 0
	}

	// Length component saturates at 400 words
	lengthScore := float64(len(words)) / 400.0
	if lengthScore > 1.0 {
		lengthScore = 1.0
	}

	// Vocabulary diversity component
	seen := make(map[string]struct{}, len(words))
	for _, word := range words {
		seen[strings.ToLower(word)] = struct{}{}
	}
	diversity := float64(len(seen)) / float64(len(words))

	score := 0.7*lengthScore + 0.3*diversity
	return math.Round(score*100) / 100
}

// SearchResult is a scored document returned by a search backend.
// QualityScore may be zero when the backend does not assess quality, in
// which case the pipeline computes its own.
type SearchResult struct {
	DocumentID   string                 `json:"document_id"`
	Content      string                 `json:"content"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	Score        float64                `json:"score"`         // Relevance to the query, 0-1
	QualityScore float64                `json:"quality_score"` // Intrinsic document quality, 0-1
	TokenCount   int                    `json:"token_count,omitempty"`
}

// Source returns the origin recorded in the result metadata, if any
func (r *SearchResult) Source() string {
	if r.Metadata == nil {
		return ""
	}
	if s, ok := r.Metadata["source"].(string); ok {
		return s
	}
	return ""
}

// DatasetExample is a single training example as written to export files.
// This is the JSONL line schema; the other formats project the same fields.
type DatasetExample struct {
	Text           string                 `json:"text"`
	DocumentID     string                 `json:"document_id"`
	Source         string                 `json:"source"`
	QualityScore   float64                `json:"quality_score"`
	RelevanceScore float64                `json:"relevance_score"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}
