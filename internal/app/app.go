package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/doceo/internal/common"
	"github.com/ternarybob/doceo/internal/handlers"
	"github.com/ternarybob/doceo/internal/interfaces"
	"github.com/ternarybob/doceo/internal/logs"
	"github.com/ternarybob/doceo/internal/services/corpus"
	"github.com/ternarybob/doceo/internal/services/dataset"
	"github.com/ternarybob/doceo/internal/services/events"
	"github.com/ternarybob/doceo/internal/services/hub"
	"github.com/ternarybob/doceo/internal/services/identity"
	"github.com/ternarybob/doceo/internal/services/pdf"
	"github.com/ternarybob/doceo/internal/services/pool"
	"github.com/ternarybob/doceo/internal/services/scheduler"
	"github.com/ternarybob/doceo/internal/services/search"
	"github.com/ternarybob/doceo/internal/services/trainer"
	"github.com/ternarybob/doceo/internal/storage"
)

// App holds all application dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	// Context for background goroutines, cancelled on Close
	ctx       context.Context
	cancelCtx context.CancelFunc

	// Storage
	StorageManager interfaces.StorageManager

	// Event bus and log plumbing
	EventService interfaces.EventService
	LogConsumer  *logs.Consumer

	// Progress fan-out
	HubService interfaces.HubService

	// Training execution
	Trainer     interfaces.Trainer
	PoolService interfaces.PoolService

	// Corpus and dataset pipeline
	SearchBackend  interfaces.SearchBackend
	PDFExtractor   interfaces.PDFExtractor
	PDFService     interfaces.PDFService
	CorpusService  *corpus.Service
	DatasetService *dataset.Service

	// Identity resolution for submit/cancel authorization
	IdentityService interfaces.IdentityService

	// Maintenance scheduling
	SchedulerService interfaces.SchedulerService
	Maintenance      *scheduler.Maintenance

	// HTTP handlers
	APIHandler     *handlers.APIHandler
	JobHandler     *handlers.JobHandler
	DatasetHandler *handlers.DatasetHandler
	CorpusHandler  *handlers.CorpusHandler
	SearchHandler  *handlers.SearchHandler
	WSHandler      *handlers.WebSocketHandler
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())
	app := &App{
		Config:    cfg,
		Logger:    logger,
		ctx:       ctx,
		cancelCtx: cancel,
	}

	// Initialize storage
	if err := app.initDatabase(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	// Event bus must exist before the log consumer and the WebSocket bridge,
	// both of which attach to it
	app.EventService = events.NewService(app.Logger)

	// The log consumer drains the arbor context channel into the log store
	// and republishes batches on the event bus for live tailing
	logConsumer := logs.NewConsumer(
		app.StorageManager.LogStore(),
		app.EventService,
		app.Logger,
		app.Config.Logging.MinEventLevel,
	)
	if err := logConsumer.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start log consumer: %w", err)
	}
	app.LogConsumer = logConsumer

	// Route correlation-tagged logs into the consumer channel so worker logs
	// written with WithCorrelationId land in the per-job log store
	logBatchChannel := logConsumer.GetChannel()
	app.Logger.SetChannel("context", logBatchChannel)

	app.Logger.Debug().
		Int("channel_capacity", cap(logBatchChannel)).
		Msg("Log consumer attached to arbor context channel")

	// Initialize services
	if err := app.initServices(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	// Initialize handlers
	if err := app.initHandlers(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize handlers: %w", err)
	}

	logger.Info().
		Str("trainer_mode", cfg.Trainer.Mode).
		Int("max_concurrent_jobs", cfg.Workers.MaxConcurrentJobs).
		Bool("scheduler_enabled", cfg.Scheduler.Enabled).
		Msg("Application initialization complete")

	return app, nil
}

// initDatabase initializes the storage layer
func (a *App) initDatabase() error {
	storageManager, err := storage.NewStorageManager(a.Logger, a.Config)
	if err != nil {
		return fmt.Errorf("failed to create storage manager: %w", err)
	}

	a.StorageManager = storageManager
	a.Logger.Debug().
		Str("storage", a.Config.Storage.Type).
		Str("path", a.Config.Storage.Badger.Path).
		Msg("Storage layer initialized")

	return nil
}

// initServices initializes all business services in dependency order.
//
// JOB EXECUTION ARCHITECTURE:
// 1. Hub - Fan-out of progress events to subscribers
// 2. Trainer - Executes one training run (simulated or external process)
// 3. Pool - Bounded workers claiming queued jobs from the job store
//
// DATASET ARCHITECTURE:
// 1. SearchBackend - Retrieves corpus documents per query (local or http)
// 2. CorpusService - Ingests source files into the document store
// 3. DatasetService - Builds training datasets from search results
func (a *App) initServices() error {
	var err error

	// Progress hub carries job and dataset events to WebSocket subscribers
	a.HubService = hub.NewService(a.Logger, &a.Config.Hub)

	a.Trainer, err = trainer.NewTrainer(a.Logger, &a.Config.Trainer)
	if err != nil {
		return fmt.Errorf("failed to initialize trainer: %w", err)
	}

	a.SearchBackend, err = search.NewSearchBackend(
		a.StorageManager.DocumentStore(),
		a.Logger,
		a.Config,
	)
	if err != nil {
		return fmt.Errorf("failed to initialize search backend: %w", err)
	}

	a.PDFExtractor = pdf.NewExtractor(a.Logger)
	a.PDFService = pdf.NewService(a.Logger)

	a.CorpusService = corpus.NewService(
		a.StorageManager.DocumentStore(),
		a.PDFExtractor,
		a.Logger,
		&a.Config.Corpus,
	)
	a.CorpusService.SetEventService(a.EventService)

	a.DatasetService = dataset.NewService(
		a.StorageManager.DatasetStore(),
		a.SearchBackend,
		a.HubService,
		a.PDFService,
		a.Logger,
		&a.Config.Pipeline,
	)

	a.PoolService = pool.NewService(
		a.StorageManager.JobStore(),
		a.Trainer,
		a.HubService,
		a.Logger,
		&a.Config.Workers,
	)

	a.IdentityService = identity.NewService(a.Logger, &a.Config.Auth)

	// Scheduler runs the retention and export sweeps on a cron schedule
	a.SchedulerService = scheduler.NewService(a.Logger)
	a.Maintenance = scheduler.NewMaintenance(
		a.StorageManager.JobStore(),
		a.StorageManager.LogStore(),
		a.StorageManager.DatasetStore(),
		&a.Config.Scheduler,
		a.Config.Pipeline.ExportDir,
		a.Logger,
	)
	a.Maintenance.SetEventService(a.EventService)
	if a.Config.Scheduler.Enabled {
		if err := a.Maintenance.Register(a.SchedulerService, a.Config.Scheduler.CleanupSchedule); err != nil {
			return fmt.Errorf("failed to register maintenance jobs: %w", err)
		}
	}

	return nil
}

// initHandlers initializes HTTP handlers
func (a *App) initHandlers() error {
	a.WSHandler = handlers.NewWebSocketHandler(a.HubService, a.EventService, a.Logger, &a.Config.WebSocket)
	a.Logger.Debug().
		Int("allowed_events", len(a.Config.WebSocket.AllowedEvents)).
		Int("throttle_intervals", len(a.Config.WebSocket.ThrottleIntervals)).
		Msg("WebSocket handler initialized")

	a.APIHandler = handlers.NewAPIHandler(a.HubService)

	a.JobHandler = handlers.NewJobHandler(
		a.StorageManager.JobStore(),
		a.StorageManager.LogStore(),
		a.PoolService,
		a.IdentityService,
		a.Logger,
	)

	a.DatasetHandler = handlers.NewDatasetHandler(a.DatasetService, a.IdentityService, a.Logger)

	a.CorpusHandler = handlers.NewCorpusHandler(
		a.CorpusService,
		a.StorageManager.DocumentStore(),
		a.IdentityService,
		a.Logger,
	)

	a.SearchHandler = handlers.NewSearchHandler(a.SearchBackend, a.Logger)

	return nil
}

// Start launches the worker pool, the maintenance scheduler, and the corpus
// startup scan. The HTTP server is started separately by the caller.
func (a *App) Start() error {
	if err := a.PoolService.Start(a.ctx); err != nil {
		return fmt.Errorf("failed to start worker pool: %w", err)
	}
	a.Logger.Debug().Msg("Worker pool started")

	if a.Config.Scheduler.Enabled {
		if err := a.SchedulerService.Start(); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		a.Logger.Debug().
			Str("schedule", a.Config.Scheduler.CleanupSchedule).
			Msg("Maintenance scheduler started")
	}

	// Scan the corpus directory in the background so a large corpus does not
	// delay serving requests
	if dir := a.Config.Corpus.Dir; dir != "" {
		common.SafeGoWithContext(a.ctx, a.Logger, "corpus-scan", func() {
			result, err := a.CorpusService.IngestDirectory(a.ctx, dir)
			if err != nil {
				a.Logger.Warn().Err(err).Str("dir", dir).Msg("Corpus startup scan failed")
				return
			}
			a.Logger.Info().
				Str("dir", dir).
				Int("ingested", result.Ingested).
				Int("skipped", result.Skipped).
				Int("failed", result.Failed).
				Msg("Corpus startup scan complete")
		})
	}

	return nil
}

// Close closes all application resources
func (a *App) Close() error {
	if a.cancelCtx != nil {
		a.Logger.Info().Msg("Cancelling background goroutines")
		a.cancelCtx()
	}

	// Stop the scheduler first so sweeps do not race the pool drain
	if a.SchedulerService != nil {
		if err := a.SchedulerService.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to stop scheduler service")
		}
	}

	// Drain the pool; running jobs get the configured grace period
	if a.PoolService != nil {
		if err := a.PoolService.Stop(context.Background()); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to stop worker pool")
		}
	}

	// Let in-flight dataset builds finish so export files are not truncated
	if a.DatasetService != nil {
		a.DatasetService.Wait()
	}

	// Disconnect WebSocket clients before closing the hub that feeds them
	if a.WSHandler != nil {
		a.WSHandler.Close()
	}

	if a.HubService != nil {
		a.HubService.Close()
	}

	// Stop the log consumer after the services that write job logs
	if a.LogConsumer != nil {
		if err := a.LogConsumer.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to stop log consumer")
		}
	}

	if a.EventService != nil {
		if err := a.EventService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close event service")
		}
	}

	// Storage closes last so every service above can still write during teardown
	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close storage")
			return err
		}
	}

	a.Logger.Info().Msg("Application closed")
	return nil
}
