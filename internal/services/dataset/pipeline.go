package dataset

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/doceo/internal/common"
	"github.com/ternarybob/doceo/internal/interfaces"
	"github.com/ternarybob/doceo/internal/models"
)

// stagingBuffer bounds how far the source can read ahead of the slowest
// exporter. A full staging channel blocks the whole build, so a slow disk
// slows ingestion instead of growing memory.
const stagingBuffer = 64

// pipeline runs one dataset build: a single pass over the search stream
// through quality filtering, dedup, and a writer goroutine per export format.
type pipeline struct {
	record    *models.DatasetRecord
	search    interfaces.SearchBackend
	hub       interfaces.HubService
	logger    arbor.ILogger
	batchSize int
	exportDir string

	threshold float64
	dedup     bool
	maxDocs   int

	lastProgress int
}

// buildTally accumulates pipeline statistics during the pass
type buildTally struct {
	kept       int
	tokens     int
	qualitySum float64
}

func newPipeline(
	record *models.DatasetRecord,
	req *models.DatasetRequest,
	search interfaces.SearchBackend,
	hub interfaces.HubService,
	logger arbor.ILogger,
	config *common.PipelineConfig,
) *pipeline {
	// The configured threshold is a floor; a query can raise it but
	// not lower it.
	threshold := config.QualityThreshold
	if req.Query.MinQualityScore > threshold {
		threshold = req.Query.MinQualityScore
	}
	dedup := config.DedupEnabled
	if req.DedupEnabled != nil {
		dedup = *req.DedupEnabled
	}
	batchSize := config.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}

	return &pipeline{
		record:    record,
		search:    search,
		hub:       hub,
		logger:    logger,
		batchSize: batchSize,
		exportDir: config.ExportDir,
		threshold: threshold,
		dedup:     dedup,
		maxDocs:   req.Query.TopK,
	}
}

// run executes the build and returns the final stats and export paths.
// On failure the partial files are left on disk but no paths are returned,
// so they are never surfaced on the record.
func (p *pipeline) run(ctx context.Context) (models.DatasetStats, map[string]string, error) {
	var stats models.DatasetStats

	dir := filepath.Join(p.exportDir, p.record.ID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return stats, nil, fmt.Errorf("create export directory: %w", err)
	}

	exporters, err := newExporters(dir, p.record)
	if err != nil {
		return stats, nil, err
	}

	p.logger.Info().
		Str("dataset_id", p.record.ID).
		Str("backend", p.search.Name()).
		Float64("quality_threshold", p.threshold).
		Bool("dedup", p.dedup).
		Int("formats", len(exporters)).
		Msg("Dataset build started")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// One writer goroutine per format. The first write error cancels the
	// build; the failing writer drains its staging channel so the source
	// loop never blocks on a dead consumer.
	var (
		writerWG sync.WaitGroup
		failOnce sync.Once
		writeErr error
	)
	fail := func(err error) {
		failOnce.Do(func() {
			writeErr = err
			cancel()
		})
	}

	stages := make([]chan *models.DatasetExample, len(exporters))
	for i := range exporters {
		stage := make(chan *models.DatasetExample, stagingBuffer)
		stages[i] = stage
		writerWG.Add(1)
		go func(exp exporter, stage <-chan *models.DatasetExample) {
			defer writerWG.Done()
			for example := range stage {
				if err := exp.Write(example); err != nil {
					fail(fmt.Errorf("%s exporter: %w", exp.Format(), err))
					for range stage {
					}
					return
				}
			}
		}(exporters[i], stage)
	}

	tally, srcErr := p.consume(ctx, stages)

	for _, stage := range stages {
		close(stage)
	}
	writerWG.Wait()

	// Close every exporter even on failure so file handles are released
	exportPaths := make(map[string]string, len(exporters))
	var closeErr error
	for _, exp := range exporters {
		path, err := exp.Close()
		if err != nil {
			if closeErr == nil {
				closeErr = fmt.Errorf("%s exporter: %w", exp.Format(), err)
			}
			continue
		}
		exportPaths[exp.Format()] = path
	}

	stats.DocumentCount = tally.kept
	stats.TotalTokens = tally.tokens
	if tally.kept > 0 {
		stats.AvgQuality = math.Round(tally.qualitySum/float64(tally.kept)*100) / 100
	}

	switch {
	case writeErr != nil:
		return stats, nil, writeErr
	case srcErr != nil:
		return stats, nil, srcErr
	case closeErr != nil:
		return stats, nil, closeErr
	}
	return stats, exportPaths, nil
}

// consume drains the search stream through the filter stages and fans kept
// examples out to every staging channel. It returns once the stream ends,
// the document cap is reached, or the context is cancelled.
func (p *pipeline) consume(ctx context.Context, stages []chan *models.DatasetExample) (buildTally, error) {
	var tally buildTally

	streamCtx, stopStream := context.WithCancel(ctx)
	defer stopStream()

	results, errs := p.search.Stream(streamCtx, &p.record.Query, p.batchSize)

	var seen map[uint64]struct{}
	if p.dedup {
		seen = make(map[uint64]struct{})
	}

	capReached := false
	aborted := false

consume:
	for batch := range results {
		for i := range batch {
			example, tokens, ok := p.admit(&batch[i], seen)
			if !ok {
				continue
			}
			for _, stage := range stages {
				select {
				case stage <- example:
				case <-ctx.Done():
					aborted = true
					break consume
				}
			}
			tally.kept++
			tally.tokens += tokens
			tally.qualitySum += example.QualityScore

			if p.maxDocs > 0 && tally.kept >= p.maxDocs {
				capReached = true
				stopStream()
				break consume
			}
		}
		p.publishProgress(tally.kept)
	}

	// Drain remaining batches so the backend goroutine can deliver its
	// terminal error and exit
	for range results {
	}
	srcErr := <-errs

	switch {
	case aborted:
		return tally, ctx.Err()
	case capReached && errors.Is(srcErr, context.Canceled):
		// The cancellation was ours; the build is complete
		return tally, nil
	case srcErr != nil:
		return tally, fmt.Errorf("search stream: %w", srcErr)
	}
	return tally, nil
}

// admit applies the quality filter and dedup stage to one result. It returns
// the export example and its token count, or ok=false when the document is
// dropped.
func (p *pipeline) admit(result *models.SearchResult, seen map[uint64]struct{}) (*models.DatasetExample, int, bool) {
	quality := result.QualityScore
	if quality == 0 {
		// Backend did not assess quality, compute it locally
		quality = models.ScoreQuality(result.Content)
	}
	if quality < p.threshold {
		return nil, 0, false
	}

	if seen != nil {
		key := contentKey(result.Content)
		if _, dup := seen[key]; dup {
			return nil, 0, false
		}
		seen[key] = struct{}{}
	}

	tokens := result.TokenCount
	if tokens <= 0 {
		tokens = common.CountTokensDefault(result.Content)
	}

	example := &models.DatasetExample{
		Text:           result.Content,
		DocumentID:     result.DocumentID,
		Source:         result.Source(),
		QualityScore:   quality,
		RelevanceScore: result.Score,
		Metadata:       result.Metadata,
	}
	return example, tokens, true
}

// publishProgress emits a running document count after each batch, skipping
// batches that kept nothing new
func (p *pipeline) publishProgress(kept int) {
	if kept == p.lastProgress {
		return
	}
	p.lastProgress = kept
	p.hub.Publish(models.NewDatasetProgressEvent(p.record.ID, kept))
}

// contentKey hashes the normalized content for dedup: lowercase with
// whitespace runs collapsed to single spaces
func contentKey(content string) uint64 {
	normalized := strings.Join(strings.Fields(strings.ToLower(content)), " ")
	h := fnv.New64a()
	h.Write([]byte(normalized))
	return h.Sum64()
}
