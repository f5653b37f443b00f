// -----------------------------------------------------------------------
// Dataset Record - Curated training dataset metadata and build request
// -----------------------------------------------------------------------

package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// DatasetState represents the lifecycle state of a dataset build
type DatasetState string

const (
	DatasetStatePending    DatasetState = "pending"
	DatasetStateProcessing DatasetState = "processing"
	DatasetStateCompleted  DatasetState = "completed"
	DatasetStateFailed     DatasetState = "failed"
)

// IsTerminal returns true for states a dataset build can never leave
func (s DatasetState) IsTerminal() bool {
	return s == DatasetStateCompleted || s == DatasetStateFailed
}

// Export format identifiers accepted by the dataset pipeline
const (
	FormatJSONL   = "jsonl"
	FormatJSON    = "json"
	FormatCSV     = "csv"
	FormatParquet = "parquet"
)

// ValidFormats lists every export format the pipeline understands
var ValidFormats = []string{FormatJSONL, FormatJSON, FormatCSV, FormatParquet}

// NormalizeFormats lowercases, de-duplicates, and validates the requested
// export formats. An empty request falls back to defaults.
func NormalizeFormats(requested, defaults []string) ([]string, error) {
	if len(requested) == 0 {
		requested = defaults
	}
	if len(requested) == 0 {
		requested = []string{FormatJSONL}
	}

	seen := make(map[string]bool, len(requested))
	normalized := make([]string, 0, len(requested))
	for _, f := range requested {
		format := strings.ToLower(strings.TrimSpace(f))
		if format == "" || seen[format] {
			continue
		}
		valid := false
		for _, v := range ValidFormats {
			if format == v {
				valid = true
				break
			}
		}
		if !valid {
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, f)
		}
		seen[format] = true
		normalized = append(normalized, format)
	}
	if len(normalized) == 0 {
		return nil, fmt.Errorf("%w: no usable formats requested", ErrUnsupportedFormat)
	}
	return normalized, nil
}

// DatasetStats summarizes the documents that survived the build pipeline
type DatasetStats struct {
	DocumentCount int     `json:"document_count"`
	TotalTokens   int     `json:"total_tokens"`
	AvgQuality    float64 `json:"avg_quality"`
}

// DatasetQuery is the structured search specification a build runs against
// the corpus. The pipeline itself consumes query_text, top_k, and
// min_quality_score; filters, search_kinds, and weights are carried through
// to the search backend, which owns their interpretation.
type DatasetQuery struct {
	QueryText string `json:"query_text" validate:"required"`
	// TopK caps the number of documents in the dataset (0 = unlimited)
	TopK int `json:"top_k" validate:"gte=0"`
	// Filters narrows the searched documents by metadata field values
	Filters map[string]interface{} `json:"filters,omitempty"`
	// MinQualityScore raises the configured quality floor for this build;
	// it can never lower it
	MinQualityScore float64 `json:"min_quality_score" validate:"gte=0,lte=1"`
	// SearchKinds restricts results to the named source kinds
	SearchKinds []string `json:"search_kinds,omitempty"`
	// Weights scales relevance per source kind (kind -> multiplier)
	Weights map[string]float64 `json:"weights,omitempty"`
}

// Clone creates a deep copy of the query
func (q *DatasetQuery) Clone() DatasetQuery {
	clone := *q
	if q.Filters != nil {
		clone.Filters = make(map[string]interface{}, len(q.Filters))
		for k, v := range q.Filters {
			clone.Filters[k] = v
		}
	}
	if q.SearchKinds != nil {
		clone.SearchKinds = make([]string, len(q.SearchKinds))
		copy(clone.SearchKinds, q.SearchKinds)
	}
	if q.Weights != nil {
		clone.Weights = make(map[string]float64, len(q.Weights))
		for k, v := range q.Weights {
			clone.Weights[k] = v
		}
	}
	return clone
}

// DatasetRecord represents a curated dataset produced by the build pipeline.
// The record is created in the pending state before the build starts and is
// updated as the pipeline progresses, so callers can poll or subscribe.
type DatasetRecord struct {
	ID          string `json:"id"` // ds_{uuid}
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at" badgerhold:"index"`

	State DatasetState `json:"state" badgerhold:"index"`

	// Query is the search specification the pipeline ran against the corpus
	Query DatasetQuery `json:"query"`

	// Formats requested for this build, normalized
	Formats []string `json:"export_formats"`

	Stats DatasetStats `json:"stats"`

	// ExportPaths maps format name to the written file path.
	// A parquet fallback is recorded under the "parquet" key even though
	// the file on disk is JSONL.
	ExportPaths map[string]string `json:"export_paths,omitempty"`

	// ReportPath points at the rendered PDF build report, when enabled
	ReportPath string `json:"report_path,omitempty"`

	// Error contains a concise description of why the build failed.
	// Only populated when state is 'failed'.
	Error string `json:"error,omitempty"`
}

// DatasetRequest is the caller-supplied request to build a dataset
type DatasetRequest struct {
	Name        string       `json:"name" validate:"required"`
	Description string       `json:"description"`
	Query       DatasetQuery `json:"query"`
	Formats     []string     `json:"export_formats"`
	// DedupEnabled overrides the configured dedup behavior when set
	DedupEnabled *bool `json:"dedup_enabled,omitempty"`
}

// Validate validates the request using go-playground/validator.
func (r *DatasetRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}

// NewDatasetRecord creates a pending dataset record from a validated request
func NewDatasetRecord(id string, req *DatasetRequest, formats []string, createdBy string) *DatasetRecord {
	return &DatasetRecord{
		ID:          id,
		Name:        req.Name,
		Description: req.Description,
		CreatedBy:   createdBy,
		CreatedAt:   time.Now().UTC(),
		State:       DatasetStatePending,
		Query:       req.Query.Clone(),
		Formats:     formats,
		ExportPaths: map[string]string{},
	}
}

// MarkProcessing moves the record into the processing state
func (d *DatasetRecord) MarkProcessing() {
	d.State = DatasetStateProcessing
}

// MarkCompleted records the final stats and export paths
func (d *DatasetRecord) MarkCompleted(stats DatasetStats, exportPaths map[string]string) {
	d.State = DatasetStateCompleted
	d.Stats = stats
	if exportPaths != nil {
		d.ExportPaths = exportPaths
	}
}

// MarkFailed marks the build as failed with an error message
func (d *DatasetRecord) MarkFailed(errorMsg string) {
	d.State = DatasetStateFailed
	d.Error = errorMsg
}

// Clone creates a deep copy of the record
func (d *DatasetRecord) Clone() *DatasetRecord {
	clone := *d
	clone.Query = d.Query.Clone()

	if d.Formats != nil {
		clone.Formats = make([]string, len(d.Formats))
		copy(clone.Formats, d.Formats)
	}
	if d.ExportPaths != nil {
		clone.ExportPaths = make(map[string]string, len(d.ExportPaths))
		for k, v := range d.ExportPaths {
			clone.ExportPaths[k] = v
		}
	}

	return &clone
}
