package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ternarybob/doceo/internal/models"
)

// writeReport renders a PDF build summary next to the export files and
// returns its path
func (s *Service) writeReport(record *models.DatasetRecord, stats models.DatasetStats, exportPaths map[string]string) (string, error) {
	markdown := buildReportMarkdown(record, stats, exportPaths)
	data, err := s.pdf.ConvertMarkdownToPDF(markdown, record.Name)
	if err != nil {
		return "", err
	}

	path := filepath.Join(s.config.ExportDir, record.ID, "report.pdf")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", err
	}
	return path, nil
}

// buildReportMarkdown composes the markdown summary for a completed build
func buildReportMarkdown(record *models.DatasetRecord, stats models.DatasetStats, exportPaths map[string]string) string {
	var sb strings.Builder

	sb.WriteString("# Dataset Build Report\n\n")
	sb.WriteString("## Build\n\n")
	sb.WriteString("| Field | Value |\n")
	sb.WriteString("| --- | --- |\n")
	fmt.Fprintf(&sb, "| Dataset | %s |\n", record.Name)
	fmt.Fprintf(&sb, "| ID | %s |\n", record.ID)
	fmt.Fprintf(&sb, "| Query | %s |\n", record.Query.QueryText)
	if record.CreatedBy != "" {
		fmt.Fprintf(&sb, "| Created by | %s |\n", record.CreatedBy)
	}
	fmt.Fprintf(&sb, "| Created at | %s |\n", record.CreatedAt.Format(time.RFC3339))

	sb.WriteString("\n## Statistics\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("| --- | --- |\n")
	fmt.Fprintf(&sb, "| Documents | %d |\n", stats.DocumentCount)
	fmt.Fprintf(&sb, "| Total tokens | %d |\n", stats.TotalTokens)
	fmt.Fprintf(&sb, "| Average quality | %.2f |\n", stats.AvgQuality)

	if len(exportPaths) > 0 {
		formats := make([]string, 0, len(exportPaths))
		for format := range exportPaths {
			formats = append(formats, format)
		}
		sort.Strings(formats)

		sb.WriteString("\n## Export files\n\n")
		sb.WriteString("| Format | Path |\n")
		sb.WriteString("| --- | --- |\n")
		for _, format := range formats {
			fmt.Fprintf(&sb, "| %s | %s |\n", format, exportPaths[format])
		}
		if _, ok := exportPaths[models.FormatParquet]; ok {
			sb.WriteString("\nThe parquet export contains JSONL content written under a `.parquet.jsonl` name.\n")
		}
	}

	return sb.String()
}
