package dataset

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/doceo/internal/common"
	"github.com/ternarybob/doceo/internal/interfaces"
	"github.com/ternarybob/doceo/internal/models"
)

// Service coordinates dataset builds: it persists the record, runs the
// pipeline in the background, and publishes lifecycle events to the hub.
type Service struct {
	datasets interfaces.DatasetStore
	search   interfaces.SearchBackend
	hub      interfaces.HubService
	pdf      interfaces.PDFService
	logger   arbor.ILogger
	config   *common.PipelineConfig

	builds sync.WaitGroup
}

// Compile-time interface assertion
var _ interfaces.DatasetService = (*Service)(nil)

// NewService creates a new dataset build service
func NewService(
	datasets interfaces.DatasetStore,
	search interfaces.SearchBackend,
	hub interfaces.HubService,
	pdf interfaces.PDFService,
	logger arbor.ILogger,
	config *common.PipelineConfig,
) *Service {
	return &Service{
		datasets: datasets,
		search:   search,
		hub:      hub,
		pdf:      pdf,
		logger:   logger,
		config:   config,
	}
}

// CreateDataset validates the request, persists a pending record, and starts
// the build pipeline in the background. The returned snapshot is pending;
// callers poll the record or subscribe to the hub for completion.
func (s *Service) CreateDataset(ctx context.Context, req *models.DatasetRequest, identity models.Identity) (*models.DatasetRecord, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: missing request", models.ErrInvalidArgument)
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidArgument, err)
	}
	formats, err := models.NormalizeFormats(req.Formats, s.config.Formats)
	if err != nil {
		return nil, err
	}

	record := models.NewDatasetRecord(common.NewDatasetID(), req, formats, identity.Subject)
	if err := s.datasets.SaveDataset(ctx, record); err != nil {
		return nil, fmt.Errorf("save dataset record: %w", err)
	}

	s.logger.Info().
		Str("dataset_id", record.ID).
		Str("query", record.Query.QueryText).
		Str("formats", strings.Join(formats, ",")).
		Str("created_by", record.CreatedBy).
		Msg("Dataset build accepted")
	s.hub.Publish(models.NewDatasetEvent(models.EventDatasetCreated, record))

	s.builds.Add(1)
	go s.build(record.ID, req)

	return record.Clone(), nil
}

// GetDataset returns the record or models.ErrNotFound
func (s *Service) GetDataset(ctx context.Context, id string) (*models.DatasetRecord, error) {
	return s.datasets.GetDataset(ctx, id)
}

// ListDatasets returns records matching the filter, newest first
func (s *Service) ListDatasets(ctx context.Context, filter *interfaces.DatasetFilter) ([]*models.DatasetRecord, error) {
	return s.datasets.ListDatasets(ctx, filter)
}

// Wait blocks until every in-flight build has finished. Used during shutdown
// so export files are not truncated mid-write.
func (s *Service) Wait() {
	s.builds.Wait()
}

// build runs the pipeline for one dataset. It owns the record's state
// transitions from processing to a terminal state; failures are recorded on
// the record and published, never returned to the submitter.
func (s *Service) build(id string, req *models.DatasetRequest) {
	defer s.builds.Done()

	// The build outlives the submitting request, so it runs on its own
	// context
	ctx := context.Background()
	logger := s.logger.WithCorrelationId(id)

	record, err := s.datasets.UpdateDataset(ctx, id, func(r *models.DatasetRecord) error {
		r.MarkProcessing()
		return nil
	})
	if err != nil {
		logger.Error().Err(err).Str("dataset_id", id).Msg("Failed to mark dataset processing")
		return
	}

	p := newPipeline(record, req, s.search, s.hub, logger, s.config)
	stats, exportPaths, buildErr := p.run(ctx)
	if buildErr != nil {
		s.failBuild(ctx, logger, id, buildErr)
		return
	}

	var reportPath string
	if s.config.WriteReport && s.pdf != nil {
		reportPath, err = s.writeReport(record, stats, exportPaths)
		if err != nil {
			// The report is auxiliary, a rendering failure does not fail
			// the build
			logger.Warn().Err(err).Str("dataset_id", id).Msg("Dataset report rendering failed")
			reportPath = ""
		}
	}

	updated, err := s.datasets.UpdateDataset(ctx, id, func(r *models.DatasetRecord) error {
		r.MarkCompleted(stats, exportPaths)
		r.ReportPath = reportPath
		return nil
	})
	if err != nil {
		logger.Error().Err(err).Str("dataset_id", id).Msg("Failed to mark dataset completed")
		return
	}

	logger.Info().
		Str("dataset_id", id).
		Int("documents", stats.DocumentCount).
		Int("tokens", stats.TotalTokens).
		Float64("avg_quality", stats.AvgQuality).
		Msg("Dataset build completed")
	s.hub.Publish(models.NewDatasetEvent(models.EventDatasetCompleted, updated))
}

func (s *Service) failBuild(ctx context.Context, logger arbor.ILogger, id string, buildErr error) {
	updated, err := s.datasets.UpdateDataset(ctx, id, func(r *models.DatasetRecord) error {
		r.MarkFailed(buildErr.Error())
		return nil
	})
	if err != nil {
		logger.Error().Err(err).Str("dataset_id", id).Msg("Failed to mark dataset failed")
		return
	}

	logger.Warn().Err(buildErr).Str("dataset_id", id).Msg("Dataset build failed")
	s.hub.Publish(models.NewDatasetEvent(models.EventDatasetFailed, updated))
}
