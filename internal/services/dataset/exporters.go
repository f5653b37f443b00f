package dataset

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ternarybob/doceo/internal/models"
)

// exporter writes dataset examples to a single export file. Write is called
// from one writer goroutine per exporter, so implementations need no locking.
type exporter interface {
	// Write appends one example to the export file
	Write(example *models.DatasetExample) error

	// Close finalizes the file and returns the written path
	Close() (string, error)

	// Format names the export format for logs and the export paths map
	Format() string
}

// newExporters opens one exporter per requested format inside dir.
// On any open failure the already-opened exporters are closed.
func newExporters(dir string, record *models.DatasetRecord) ([]exporter, error) {
	exporters := make([]exporter, 0, len(record.Formats))
	closeAll := func() {
		for _, e := range exporters {
			e.Close()
		}
	}

	for _, format := range record.Formats {
		var (
			exp exporter
			err error
		)
		switch format {
		case models.FormatJSONL:
			exp, err = newJSONLExporter(dir, "dataset.jsonl", models.FormatJSONL)
		case models.FormatJSON:
			exp = newJSONExporter(dir, record)
		case models.FormatCSV:
			exp, err = newCSVExporter(dir)
		case models.FormatParquet:
			// No parquet writer is wired in. The fallback exports JSONL
			// bytes under a .parquet.jsonl name so the substitution is
			// visible in the recorded path.
			exp, err = newJSONLExporter(dir, "dataset.parquet.jsonl", models.FormatParquet)
		default:
			err = fmt.Errorf("%w: %q", models.ErrUnsupportedFormat, format)
		}
		if err != nil {
			closeAll()
			return nil, err
		}
		exporters = append(exporters, exp)
	}

	return exporters, nil
}

// jsonlExporter writes one JSON object per line. It also backs the parquet
// fallback, which differs only in file name and recorded format.
type jsonlExporter struct {
	path   string
	format string
	file   *os.File
	writer *bufio.Writer
}

func newJSONLExporter(dir, filename, format string) (*jsonlExporter, error) {
	path := filepath.Join(dir, filename)
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &jsonlExporter{
		path:   path,
		format: format,
		file:   file,
		writer: bufio.NewWriter(file),
	}, nil
}

func (e *jsonlExporter) Write(example *models.DatasetExample) error {
	line, err := json.Marshal(example)
	if err != nil {
		return err
	}
	if _, err := e.writer.Write(line); err != nil {
		return err
	}
	return e.writer.WriteByte('\n')
}

func (e *jsonlExporter) Close() (string, error) {
	if err := e.writer.Flush(); err != nil {
		e.file.Close()
		return "", err
	}
	if err := e.file.Close(); err != nil {
		return "", err
	}
	return e.path, nil
}

func (e *jsonlExporter) Format() string { return e.format }

// jsonDocument is the single-object JSON export schema
type jsonDocument struct {
	DatasetID     string                   `json:"dataset_id"`
	Name          string                   `json:"name"`
	Description   string                   `json:"description,omitempty"`
	CreatedAt     time.Time                `json:"created_at"`
	CreatedBy     string                   `json:"created_by,omitempty"`
	DocumentCount int                      `json:"document_count"`
	Documents     []*models.DatasetExample `json:"documents"`
}

// jsonExporter accumulates examples and writes the whole document on Close.
// The schema carries document_count ahead of the documents array, so the
// object cannot be streamed out incrementally.
type jsonExporter struct {
	path     string
	document jsonDocument
}

func newJSONExporter(dir string, record *models.DatasetRecord) *jsonExporter {
	return &jsonExporter{
		path: filepath.Join(dir, "dataset.json"),
		document: jsonDocument{
			DatasetID:   record.ID,
			Name:        record.Name,
			Description: record.Description,
			CreatedAt:   record.CreatedAt,
			CreatedBy:   record.CreatedBy,
			Documents:   []*models.DatasetExample{},
		},
	}
}

func (e *jsonExporter) Write(example *models.DatasetExample) error {
	e.document.Documents = append(e.document.Documents, example)
	return nil
}

func (e *jsonExporter) Close() (string, error) {
	e.document.DocumentCount = len(e.document.Documents)
	data, err := json.MarshalIndent(e.document, "", "  ")
	if err != nil {
		return "", err
	}
	data = append(data, '\n')
	if err := os.WriteFile(e.path, data, 0644); err != nil {
		return "", err
	}
	return e.path, nil
}

func (e *jsonExporter) Format() string { return models.FormatJSON }

// csvHeader is the fixed column order of the CSV export
var csvHeader = []string{"document_id", "text", "source", "quality_score", "relevance_score"}

type csvExporter struct {
	path   string
	file   *os.File
	writer *csv.Writer
}

func newCSVExporter(dir string) (*csvExporter, error) {
	path := filepath.Join(dir, "dataset.csv")
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	writer := csv.NewWriter(file)
	if err := writer.Write(csvHeader); err != nil {
		file.Close()
		return nil, err
	}
	return &csvExporter{path: path, file: file, writer: writer}, nil
}

func (e *csvExporter) Write(example *models.DatasetExample) error {
	return e.writer.Write([]string{
		example.DocumentID,
		example.Text,
		example.Source,
		strconv.FormatFloat(example.QualityScore, 'f', -1, 64),
		strconv.FormatFloat(example.RelevanceScore, 'f', -1, 64),
	})
}

func (e *csvExporter) Close() (string, error) {
	e.writer.Flush()
	if err := e.writer.Error(); err != nil {
		e.file.Close()
		return "", err
	}
	if err := e.file.Close(); err != nil {
		return "", err
	}
	return e.path, nil
}

func (e *csvExporter) Format() string { return models.FormatCSV }
