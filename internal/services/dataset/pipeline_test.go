package dataset

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/doceo/internal/common"
	"github.com/ternarybob/doceo/internal/interfaces"
	"github.com/ternarybob/doceo/internal/models"
	"github.com/ternarybob/doceo/internal/services/hub"
)

// stubBackend replays canned batches and then a terminal error, honoring
// the same channel contract as the real backends.
type stubBackend struct {
	batches [][]models.SearchResult
	err     error
}

func (s *stubBackend) Stream(ctx context.Context, query *models.DatasetQuery, batchSize int) (<-chan []models.SearchResult, <-chan error) {
	results := make(chan []models.SearchResult)
	errs := make(chan error, 1)

	go func() {
		defer close(results)
		for _, batch := range s.batches {
			select {
			case results <- batch:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
		errs <- s.err
	}()

	return results, errs
}

func (s *stubBackend) Name() string { return "stub" }

func scoredResult(id, content string, score, quality float64, tokens int) models.SearchResult {
	return models.SearchResult{
		DocumentID:   id,
		Content:      content,
		Metadata:     map[string]interface{}{"source": "corpus/" + id + ".md"},
		Score:        score,
		QualityScore: quality,
		TokenCount:   tokens,
	}
}

func testHub(t *testing.T) interfaces.HubService {
	t.Helper()
	svc := hub.NewService(arbor.NewLogger(), &common.HubConfig{
		SendTimeout: "100ms",
		BufferSize:  64,
	})
	t.Cleanup(svc.Close)
	return svc
}

func testPipelineConfig(t *testing.T) *common.PipelineConfig {
	t.Helper()
	return &common.PipelineConfig{
		BatchSize:        4,
		QualityThreshold: 0.5,
		DedupEnabled:     true,
		ExportDir:        t.TempDir(),
		Formats:          []string{models.FormatJSONL},
	}
}

// runBuild runs one pipeline pass against the backend and returns its outcome
func runBuild(t *testing.T, backend interfaces.SearchBackend, req *models.DatasetRequest, config *common.PipelineConfig) (models.DatasetStats, map[string]string, *models.DatasetRecord, error) {
	t.Helper()

	formats, err := models.NormalizeFormats(req.Formats, config.Formats)
	if err != nil {
		t.Fatalf("normalize formats: %v", err)
	}
	record := models.NewDatasetRecord(common.NewDatasetID(), req, formats, "tester")
	record.MarkProcessing()

	p := newPipeline(record, req, backend, testHub(t), arbor.NewLogger(), config)
	stats, paths, runErr := p.run(context.Background())
	return stats, paths, record, runErr
}

func TestPipelineQualityFilter(t *testing.T) {
	backend := &stubBackend{batches: [][]models.SearchResult{{
		scoredResult("doc_1", "kept first", 0.9, 0.9, 10),
		scoredResult("doc_2", "kept second", 0.8, 0.8, 10),
		scoredResult("doc_3", "kept third", 0.7, 0.7, 10),
		scoredResult("doc_4", "dropped low", 0.6, 0.4, 10),
		scoredResult("doc_5", "dropped lower", 0.5, 0.3, 10),
	}}}
	config := testPipelineConfig(t)
	config.QualityThreshold = 0.6

	stats, paths, _, err := runBuild(t, backend, &models.DatasetRequest{Name: "filter", Query: models.DatasetQuery{QueryText: "kept"}}, config)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stats.DocumentCount != 3 {
		t.Errorf("expected 3 documents, got %d", stats.DocumentCount)
	}
	if stats.TotalTokens != 30 {
		t.Errorf("expected 30 tokens, got %d", stats.TotalTokens)
	}
	if stats.AvgQuality != 0.8 {
		t.Errorf("expected avg quality 0.8, got %v", stats.AvgQuality)
	}

	lines := readLines(t, paths[models.FormatJSONL])
	if len(lines) != 3 {
		t.Errorf("expected 3 export lines, got %d", len(lines))
	}
}

func TestPipelineRequestRaisesThreshold(t *testing.T) {
	backend := &stubBackend{batches: [][]models.SearchResult{{
		scoredResult("doc_1", "high quality", 0.9, 0.9, 5),
		scoredResult("doc_2", "mid quality", 0.8, 0.6, 5),
	}}}
	config := testPipelineConfig(t)

	req := &models.DatasetRequest{Name: "strict", Query: models.DatasetQuery{QueryText: "quality", MinQualityScore: 0.7}}
	stats, _, _, err := runBuild(t, backend, req, config)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stats.DocumentCount != 1 {
		t.Errorf("expected 1 document above raised threshold, got %d", stats.DocumentCount)
	}

	// A request cannot lower the configured floor
	req = &models.DatasetRequest{Name: "loose", Query: models.DatasetQuery{QueryText: "quality", MinQualityScore: 0.1}}
	backend = &stubBackend{batches: [][]models.SearchResult{{
		scoredResult("doc_3", "below floor", 0.9, 0.3, 5),
	}}}
	stats, _, _, err = runBuild(t, backend, req, config)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stats.DocumentCount != 0 {
		t.Errorf("expected floor to hold, got %d documents", stats.DocumentCount)
	}
}

func TestPipelineComputesQualityWhenMissing(t *testing.T) {
	content := "Parameter efficient fine tuning keeps adapter weights small while the base model stays frozen during training runs"
	expected := models.ScoreQuality(content)
	if expected <= 0 {
		t.Fatalf("fixture content scored %v, expected positive", expected)
	}

	backend := &stubBackend{batches: [][]models.SearchResult{{
		scoredResult("doc_1", content, 0.9, 0, 0),
	}}}
	config := testPipelineConfig(t)
	config.QualityThreshold = 0.1

	stats, paths, _, err := runBuild(t, backend, &models.DatasetRequest{Name: "scored", Query: models.DatasetQuery{QueryText: "adapter"}}, config)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stats.DocumentCount != 1 {
		t.Fatalf("expected 1 document, got %d", stats.DocumentCount)
	}
	if stats.AvgQuality != expected {
		t.Errorf("expected computed quality %v, got %v", expected, stats.AvgQuality)
	}
	if stats.TotalTokens != common.CountTokensDefault(content) {
		t.Errorf("expected fallback token count %d, got %d", common.CountTokensDefault(content), stats.TotalTokens)
	}

	lines := readLines(t, paths[models.FormatJSONL])
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	if !strings.Contains(lines[0], "\"quality_score\"") {
		t.Errorf("exported line missing quality score: %s", lines[0])
	}
}

func TestPipelineDedup(t *testing.T) {
	batches := [][]models.SearchResult{{
		scoredResult("doc_1", "Adapters  Fine-Tune LLMs", 0.9, 0.9, 5),
		scoredResult("doc_2", "adapters fine-tune llms", 0.8, 0.9, 5),
		scoredResult("doc_3", "something else entirely", 0.7, 0.9, 5),
	}}

	config := testPipelineConfig(t)
	stats, _, _, err := runBuild(t, &stubBackend{batches: batches}, &models.DatasetRequest{Name: "dedup", Query: models.DatasetQuery{QueryText: "adapters"}}, config)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stats.DocumentCount != 2 {
		t.Errorf("expected duplicate dropped, got %d documents", stats.DocumentCount)
	}

	// Request override disables dedup
	disabled := false
	config = testPipelineConfig(t)
	req := &models.DatasetRequest{Name: "no-dedup", Query: models.DatasetQuery{QueryText: "adapters"}, DedupEnabled: &disabled}
	stats, _, _, err = runBuild(t, &stubBackend{batches: batches}, req, config)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stats.DocumentCount != 3 {
		t.Errorf("expected all documents kept, got %d", stats.DocumentCount)
	}
}

func TestPipelineDocumentCap(t *testing.T) {
	var batches [][]models.SearchResult
	for b := 0; b < 3; b++ {
		var batch []models.SearchResult
		for i := 0; i < 4; i++ {
			id := string(rune('a'+b)) + string(rune('0'+i))
			batch = append(batch, scoredResult("doc_"+id, "unique content "+id, 0.9, 0.9, 7))
		}
		batches = append(batches, batch)
	}

	config := testPipelineConfig(t)
	req := &models.DatasetRequest{Name: "capped", Query: models.DatasetQuery{QueryText: "unique", TopK: 5}}
	stats, paths, _, err := runBuild(t, &stubBackend{batches: batches}, req, config)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stats.DocumentCount != 5 {
		t.Errorf("expected cap at 5 documents, got %d", stats.DocumentCount)
	}
	if stats.TotalTokens != 35 {
		t.Errorf("expected 35 tokens, got %d", stats.TotalTokens)
	}
	lines := readLines(t, paths[models.FormatJSONL])
	if len(lines) != 5 {
		t.Errorf("expected 5 export lines, got %d", len(lines))
	}
}

func TestPipelineSourceFailure(t *testing.T) {
	backend := &stubBackend{
		batches: [][]models.SearchResult{{
			scoredResult("doc_1", "partial first", 0.9, 0.9, 5),
			scoredResult("doc_2", "partial second", 0.8, 0.9, 5),
		}},
		err: errors.New("search backend exploded"),
	}
	config := testPipelineConfig(t)

	_, paths, record, err := runBuild(t, backend, &models.DatasetRequest{Name: "broken", Query: models.DatasetQuery{QueryText: "partial"}}, config)
	if err == nil {
		t.Fatal("expected source failure")
	}
	if !strings.Contains(err.Error(), "search backend exploded") {
		t.Errorf("expected source error text, got %v", err)
	}
	if paths != nil {
		t.Errorf("expected no export paths on failure, got %v", paths)
	}

	// Partial file stays on disk but is never referenced
	partial := filepath.Join(config.ExportDir, record.ID, "dataset.jsonl")
	if _, statErr := os.Stat(partial); statErr != nil {
		t.Errorf("expected partial file on disk: %v", statErr)
	}
}

func TestPipelineFansOutToAllFormats(t *testing.T) {
	backend := &stubBackend{batches: [][]models.SearchResult{{
		scoredResult("doc_1", "fan out content", 0.9, 0.9, 5),
		scoredResult("doc_2", "more fan out content", 0.8, 0.9, 5),
	}}}
	config := testPipelineConfig(t)

	req := &models.DatasetRequest{
		Name:    "all-formats",
		Query:   models.DatasetQuery{QueryText: "fan"},
		Formats: []string{models.FormatJSONL, models.FormatJSON, models.FormatCSV, models.FormatParquet},
	}
	stats, paths, _, err := runBuild(t, backend, req, config)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stats.DocumentCount != 2 {
		t.Fatalf("expected 2 documents, got %d", stats.DocumentCount)
	}
	if len(paths) != 4 {
		t.Fatalf("expected 4 export paths, got %d", len(paths))
	}
	for format, path := range paths {
		info, statErr := os.Stat(path)
		if statErr != nil {
			t.Errorf("%s export missing: %v", format, statErr)
			continue
		}
		if info.Size() == 0 {
			t.Errorf("%s export is empty", format)
		}
	}
	if len(readLines(t, paths[models.FormatJSONL])) != 2 {
		t.Errorf("jsonl line count mismatch")
	}
	if len(readLines(t, paths[models.FormatParquet])) != 2 {
		t.Errorf("parquet fallback line count mismatch")
	}
}

func TestContentKeyNormalization(t *testing.T) {
	tests := []struct {
		name  string
		a     string
		b     string
		equal bool
	}{
		{"case and whitespace collapse", "Hello  World", "hello world", true},
		{"leading and trailing space", "  hello world  ", "hello world", true},
		{"tabs and newlines", "hello\tworld\n", "hello world", true},
		{"different words", "hello world", "hello there", false},
		{"joined words differ", "a b", "ab", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := contentKey(tt.a) == contentKey(tt.b)
			if got != tt.equal {
				t.Errorf("contentKey(%q) == contentKey(%q): expected %v", tt.a, tt.b, tt.equal)
			}
		})
	}
}
