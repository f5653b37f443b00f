package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production" - controls relaxed validation for local runs
	Server      ServerConfig    `toml:"server"`
	Workers     WorkersConfig   `toml:"workers"`
	Hub         HubConfig       `toml:"hub"`
	Pipeline    PipelineConfig  `toml:"pipeline"`
	Corpus      CorpusConfig    `toml:"corpus"`
	Trainer     TrainerConfig   `toml:"trainer"`
	Search      SearchConfig    `toml:"search"`
	Storage     StorageConfig   `toml:"storage"`
	Logging     LoggingConfig   `toml:"logging"`
	Scheduler   SchedulerConfig `toml:"scheduler"`
	Auth        AuthConfig      `toml:"auth"`
	WebSocket   WebSocketConfig `toml:"websocket"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

// WorkersConfig contains configuration for the training worker pool
type WorkersConfig struct {
	MaxConcurrentJobs int    `toml:"max_concurrent_jobs"` // Number of jobs allowed to run simultaneously
	QueueCapacity     int    `toml:"queue_capacity"`      // Max queued (not yet running) jobs before Submit is rejected
	GracePeriod       string `toml:"grace_period"`        // e.g., "30s" - how long Stop waits for running jobs before abandoning them
	PollInterval      string `toml:"poll_interval"`       // e.g., "100ms" - base interval workers wait when the queue is empty
}

// HubConfig contains configuration for the progress subscription hub
type HubConfig struct {
	SendTimeout string `toml:"send_timeout"` // e.g., "100ms" - max time to wait on a slow subscriber before dropping it
	BufferSize  int    `toml:"buffer_size"`  // Per-subscriber event buffer size
}

// PipelineConfig contains configuration for the dataset build pipeline
type PipelineConfig struct {
	BatchSize        int      `toml:"batch_size"`        // Documents requested per search batch
	QualityThreshold float64  `toml:"quality_threshold"` // Minimum quality score (0.0-1.0) for a document to be kept
	DedupEnabled     bool     `toml:"dedup_enabled"`     // Drop documents whose normalized content was already seen
	ExportDir        string   `toml:"export_dir"`        // Directory for exported dataset files
	Formats          []string `toml:"formats"`           // Default export formats when a request specifies none
	WriteReport      bool     `toml:"write_report"`      // Render a PDF build report alongside the export files
}

// CorpusConfig contains configuration for local corpus document ingestion
type CorpusConfig struct {
	Dir         string   `toml:"dir"`           // Directory scanned for corpus source files
	MaxFileSize int64    `toml:"max_file_size"` // Maximum ingestable file size in bytes
	Extensions  []string `toml:"extensions"`    // File extensions accepted by the ingest scan (default: .md, .txt, .html, .pdf)
}

// TrainerConfig contains configuration for the training backend
type TrainerConfig struct {
	Mode          string   `toml:"mode"`           // Trainer mode: "simulated" (default) or "process"
	Command       string   `toml:"command"`        // External trainer binary (process mode)
	Args          []string `toml:"args"`           // Extra arguments passed to the trainer binary
	OutputDir     string   `toml:"output_dir"`     // Directory for adapter artifacts
	EpochDuration string   `toml:"epoch_duration"` // e.g., "200ms" - simulated time per training epoch
}

// SearchConfig contains configuration for the document search backend
type SearchConfig struct {
	Backend        string `toml:"backend"`          // Search backend: "local" (default) or "http"
	BaseURL        string `toml:"base_url"`         // Remote search service URL (http backend)
	RequestTimeout string `toml:"request_timeout"`  // e.g., "30s" - per-request timeout for the http backend
	MaxRetries     int    `toml:"max_retries"`      // Retry attempts for transient http backend failures
	MaxElapsedTime string `toml:"max_elapsed_time"` // e.g., "2m" - total retry budget for the http backend
}

type StorageConfig struct {
	Type   string       `toml:"type"` // Storage backend: "badger" (default) or "memory"
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

type LoggingConfig struct {
	Level         string   `toml:"level"`           // "debug", "info", "warn", "error"
	Format        string   `toml:"format"`          // "json" or "text"
	Output        []string `toml:"output"`          // "stdout", "file"
	TimeFormat    string   `toml:"time_format"`     // Time format for logs (default: "15:04:05.000")
	MinEventLevel string   `toml:"min_event_level"` // Minimum log level to publish as live-tail events ("debug", "info", "warn", "error")
}

// SchedulerConfig contains configuration for background maintenance schedules
type SchedulerConfig struct {
	Enabled         bool   `toml:"enabled"`          // Run the maintenance scheduler
	CleanupSchedule string `toml:"cleanup_schedule"` // Cron schedule for terminal-job cleanup (5-field format)
	RetentionHours  int    `toml:"retention_hours"`  // Age in hours after which terminal jobs are purged
}

// AuthConfig contains configuration for bearer token authentication
type AuthConfig struct {
	AllowAnonymous bool              `toml:"allow_anonymous"` // Accept requests without a token (development convenience)
	Tokens         []AuthTokenConfig `toml:"tokens"`
}

// AuthTokenConfig maps a static bearer token to a caller identity
type AuthTokenConfig struct {
	Token   string   `toml:"token"`
	Subject string   `toml:"subject"`
	Email   string   `toml:"email"`
	Roles   []string `toml:"roles"`
}

// WebSocketConfig contains configuration for WebSocket event streaming
type WebSocketConfig struct {
	MinLevel string `toml:"min_level"` // Minimum log level to broadcast ("debug", "info", "warn", "error")
	// Whitelist of event types to broadcast via WebSocket. Empty list allows all events.
	// Example: ["job_queued", "job_completed", "dataset_progress"]
	AllowedEvents []string `toml:"allowed_events"`
	// Throttle intervals for high-frequency events. Map of event type to duration string.
	// Example: {"job_progress": "250ms"}
	ThrottleIntervals map[string]string `toml:"throttle_intervals"`
}

// NewDefaultConfig creates a configuration with default values
// Technical parameters are hardcoded here for production stability.
// Only user-facing settings should be exposed in doceo.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development", // Default to development mode - relaxed auth and local paths
		Server: ServerConfig{
			Port: 8085,
			Host: "localhost",
		},
		Workers: WorkersConfig{
			MaxConcurrentJobs: 2,       // Two adapter jobs per node keeps GPU memory predictable
			QueueCapacity:     256,     // Reject submissions beyond this backlog instead of growing unbounded
			GracePeriod:       "30s",   // Stop waits this long for running jobs before abandoning them
			PollInterval:      "100ms", // Base idle poll, backs off exponentially to 5s
		},
		Hub: HubConfig{
			SendTimeout: "100ms", // Slow subscribers are disconnected after this, never block publishers
			BufferSize:  64,      // Per-subscriber buffered events before the send timeout starts counting
		},
		Pipeline: PipelineConfig{
			BatchSize:        100,                // Documents per search batch - bounds pipeline memory
			QualityThreshold: 0.5,                // Drop documents scoring below this
			DedupEnabled:     true,               // Skip documents with previously seen content
			ExportDir:        "./data/datasets",  // Exported dataset files land here
			Formats:          []string{"jsonl"},  // Default export format when a request names none
			WriteReport:      true,               // Render a PDF build report next to the exports
		},
		Corpus: CorpusConfig{
			Dir:         "./corpus",
			MaxFileSize: 10 * 1024 * 1024, // 10MB
			Extensions:  []string{".md", ".txt", ".html", ".pdf"},
		},
		Trainer: TrainerConfig{
			Mode:          "simulated", // Simulated trainer by default - no GPU required (simulated|process)
			Command:       "",          // External trainer binary, required for process mode
			Args:          []string{},
			OutputDir:     "./data/artifacts",
			EpochDuration: "200ms", // Simulated epoch wall time
		},
		Search: SearchConfig{
			Backend:        "local", // Local corpus index by default (local|http)
			BaseURL:        "",
			RequestTimeout: "30s",
			MaxRetries:     3,
			MaxElapsedTime: "2m",
		},
		Storage: StorageConfig{
			Type: "badger", // Persistent storage by default (badger|memory)
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Logging: LoggingConfig{
			Level:         "info",                     // Info level for production (debug|info|warn|error)
			Format:        "text",                     // Human-readable text format (text|json)
			Output:        []string{"stdout", "file"}, // Log to both console and file
			MinEventLevel: "info",                     // Publish info and above to live tails (debug logs only to DB)
		},
		Scheduler: SchedulerConfig{
			Enabled:         true,
			CleanupSchedule: "0 * * * *", // Hourly terminal-job cleanup
			RetentionHours:  168,         // Keep terminal jobs for 7 days
		},
		Auth: AuthConfig{
			AllowAnonymous: true, // Development default - production configs should list tokens
			Tokens:         []AuthTokenConfig{},
		},
		WebSocket: WebSocketConfig{
			MinLevel:      "info", // Default: info level and above
			AllowedEvents: []string{},
			// Throttle high-frequency events to prevent WebSocket flooding during long training runs
			ThrottleIntervals: map[string]string{
				"job_progress":     "250ms", // Epoch ticks, max 4 per second per job
				"dataset_progress": "250ms",
			},
		},
	}
}

// LoadFromFile loads configuration with priority: default -> file -> env -> CLI
// Priority system: CLI flags > Environment variables > Config file > Defaults
func LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles()
	}
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration from multiple files with priority: default -> file1 -> file2 -> ... -> env -> CLI
// Later files override earlier files.
// Example: LoadFromFiles("base.toml", "override.toml") - override.toml settings take precedence over base.toml
func LoadFromFiles(paths ...string) (*Config, error) {
	// Start with defaults
	config := NewDefaultConfig()

	// Load and merge each config file in order (later files override earlier files)
	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		// Unmarshal into config (merges with existing values, later values override)
		err = toml.Unmarshal(data, config)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	// Apply environment variables (overrides all file configs)
	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	// Environment configuration (highest priority: DOCEO_ENV, fallback: GO_ENV)
	if env := os.Getenv("DOCEO_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Server configuration
	if port := os.Getenv("DOCEO_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("DOCEO_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Worker pool configuration
	if maxJobs := os.Getenv("DOCEO_WORKERS_MAX_CONCURRENT_JOBS"); maxJobs != "" {
		if mj, err := strconv.Atoi(maxJobs); err == nil {
			config.Workers.MaxConcurrentJobs = mj
		}
	}
	if queueCapacity := os.Getenv("DOCEO_WORKERS_QUEUE_CAPACITY"); queueCapacity != "" {
		if qc, err := strconv.Atoi(queueCapacity); err == nil {
			config.Workers.QueueCapacity = qc
		}
	}
	if gracePeriod := os.Getenv("DOCEO_WORKERS_GRACE_PERIOD"); gracePeriod != "" {
		config.Workers.GracePeriod = gracePeriod
	}
	if pollInterval := os.Getenv("DOCEO_WORKERS_POLL_INTERVAL"); pollInterval != "" {
		config.Workers.PollInterval = pollInterval
	}

	// Hub configuration
	if sendTimeout := os.Getenv("DOCEO_HUB_SEND_TIMEOUT"); sendTimeout != "" {
		config.Hub.SendTimeout = sendTimeout
	}
	if bufferSize := os.Getenv("DOCEO_HUB_BUFFER_SIZE"); bufferSize != "" {
		if bs, err := strconv.Atoi(bufferSize); err == nil {
			config.Hub.BufferSize = bs
		}
	}

	// Pipeline configuration
	if batchSize := os.Getenv("DOCEO_PIPELINE_BATCH_SIZE"); batchSize != "" {
		if bs, err := strconv.Atoi(batchSize); err == nil {
			config.Pipeline.BatchSize = bs
		}
	}
	if qualityThreshold := os.Getenv("DOCEO_PIPELINE_QUALITY_THRESHOLD"); qualityThreshold != "" {
		if qt, err := strconv.ParseFloat(qualityThreshold, 64); err == nil {
			config.Pipeline.QualityThreshold = qt
		}
	}
	if dedupEnabled := os.Getenv("DOCEO_PIPELINE_DEDUP_ENABLED"); dedupEnabled != "" {
		if de, err := strconv.ParseBool(dedupEnabled); err == nil {
			config.Pipeline.DedupEnabled = de
		}
	}
	if exportDir := os.Getenv("DOCEO_PIPELINE_EXPORT_DIR"); exportDir != "" {
		config.Pipeline.ExportDir = exportDir
	}

	// Corpus configuration
	if corpusDir := os.Getenv("DOCEO_CORPUS_DIR"); corpusDir != "" {
		config.Corpus.Dir = corpusDir
	}
	if maxFileSize := os.Getenv("DOCEO_CORPUS_MAX_FILE_SIZE"); maxFileSize != "" {
		if mfs, err := strconv.ParseInt(maxFileSize, 10, 64); err == nil {
			config.Corpus.MaxFileSize = mfs
		}
	}

	// Trainer configuration
	if trainerMode := os.Getenv("DOCEO_TRAINER_MODE"); trainerMode != "" {
		config.Trainer.Mode = trainerMode
	}
	if trainerCommand := os.Getenv("DOCEO_TRAINER_COMMAND"); trainerCommand != "" {
		config.Trainer.Command = trainerCommand
	}
	if outputDir := os.Getenv("DOCEO_TRAINER_OUTPUT_DIR"); outputDir != "" {
		config.Trainer.OutputDir = outputDir
	}
	if epochDuration := os.Getenv("DOCEO_TRAINER_EPOCH_DURATION"); epochDuration != "" {
		config.Trainer.EpochDuration = epochDuration
	}

	// Search configuration
	if searchBackend := os.Getenv("DOCEO_SEARCH_BACKEND"); searchBackend != "" {
		config.Search.Backend = searchBackend
	}
	if baseURL := os.Getenv("DOCEO_SEARCH_BASE_URL"); baseURL != "" {
		config.Search.BaseURL = baseURL
	}
	if requestTimeout := os.Getenv("DOCEO_SEARCH_REQUEST_TIMEOUT"); requestTimeout != "" {
		config.Search.RequestTimeout = requestTimeout
	}
	if maxRetries := os.Getenv("DOCEO_SEARCH_MAX_RETRIES"); maxRetries != "" {
		if mr, err := strconv.Atoi(maxRetries); err == nil {
			config.Search.MaxRetries = mr
		}
	}

	// Storage configuration
	if storageType := os.Getenv("DOCEO_STORAGE_TYPE"); storageType != "" {
		config.Storage.Type = storageType
	}
	if badgerPath := os.Getenv("DOCEO_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	// Logging configuration
	if level := os.Getenv("DOCEO_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := os.Getenv("DOCEO_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}
	if output := os.Getenv("DOCEO_LOG_OUTPUT"); output != "" {
		// Split comma-separated output types
		outputs := []string{}
		for _, o := range splitString(output, ",") {
			trimmed := trimSpace(o)
			if trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}
	if minEventLevel := os.Getenv("DOCEO_LOG_MIN_EVENT_LEVEL"); minEventLevel != "" {
		config.Logging.MinEventLevel = minEventLevel
	}

	// Scheduler configuration
	if schedulerEnabled := os.Getenv("DOCEO_SCHEDULER_ENABLED"); schedulerEnabled != "" {
		if se, err := strconv.ParseBool(schedulerEnabled); err == nil {
			config.Scheduler.Enabled = se
		}
	}
	if cleanupSchedule := os.Getenv("DOCEO_SCHEDULER_CLEANUP_SCHEDULE"); cleanupSchedule != "" {
		config.Scheduler.CleanupSchedule = cleanupSchedule
	}
	if retentionHours := os.Getenv("DOCEO_SCHEDULER_RETENTION_HOURS"); retentionHours != "" {
		if rh, err := strconv.Atoi(retentionHours); err == nil {
			config.Scheduler.RetentionHours = rh
		}
	}

	// Auth configuration
	if allowAnonymous := os.Getenv("DOCEO_AUTH_ALLOW_ANONYMOUS"); allowAnonymous != "" {
		if aa, err := strconv.ParseBool(allowAnonymous); err == nil {
			config.Auth.AllowAnonymous = aa
		}
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, port int, host string) {
	// Command-line flags have highest priority
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// Validate checks configuration values against their allowed ranges.
// Startup must fail on an invalid config rather than run with surprising limits.
func Validate(config *Config) error {
	if config.Workers.MaxConcurrentJobs < 1 {
		return fmt.Errorf("workers.max_concurrent_jobs must be at least 1, got %d", config.Workers.MaxConcurrentJobs)
	}
	if config.Workers.QueueCapacity < 1 {
		return fmt.Errorf("workers.queue_capacity must be at least 1, got %d", config.Workers.QueueCapacity)
	}
	if _, err := time.ParseDuration(config.Workers.GracePeriod); err != nil {
		return fmt.Errorf("workers.grace_period is not a valid duration: %w", err)
	}
	if d, err := time.ParseDuration(config.Hub.SendTimeout); err != nil {
		return fmt.Errorf("hub.send_timeout is not a valid duration: %w", err)
	} else if d <= 0 {
		return fmt.Errorf("hub.send_timeout must be positive, got %s", config.Hub.SendTimeout)
	}
	if config.Hub.BufferSize < 1 {
		return fmt.Errorf("hub.buffer_size must be at least 1, got %d", config.Hub.BufferSize)
	}
	if config.Pipeline.BatchSize < 1 {
		return fmt.Errorf("pipeline.batch_size must be at least 1, got %d", config.Pipeline.BatchSize)
	}
	if config.Pipeline.QualityThreshold < 0.0 || config.Pipeline.QualityThreshold > 1.0 {
		return fmt.Errorf("pipeline.quality_threshold must be between 0.0 and 1.0, got %f", config.Pipeline.QualityThreshold)
	}
	if config.Corpus.MaxFileSize <= 0 {
		return fmt.Errorf("corpus.max_file_size must be positive, got %d", config.Corpus.MaxFileSize)
	}
	switch config.Trainer.Mode {
	case "simulated":
	case "process":
		if config.Trainer.Command == "" {
			return fmt.Errorf("trainer.command is required when trainer.mode is \"process\"")
		}
	default:
		return fmt.Errorf("trainer.mode must be \"simulated\" or \"process\", got %q", config.Trainer.Mode)
	}
	switch config.Search.Backend {
	case "local":
	case "http":
		if config.Search.BaseURL == "" {
			return fmt.Errorf("search.base_url is required when search.backend is \"http\"")
		}
	default:
		return fmt.Errorf("search.backend must be \"local\" or \"http\", got %q", config.Search.Backend)
	}
	switch config.Storage.Type {
	case "badger", "memory":
	default:
		return fmt.Errorf("storage.type must be \"badger\" or \"memory\", got %q", config.Storage.Type)
	}
	if config.Scheduler.Enabled {
		if err := ValidateJobSchedule(config.Scheduler.CleanupSchedule); err != nil {
			return fmt.Errorf("scheduler.cleanup_schedule invalid: %w", err)
		}
		if config.Scheduler.RetentionHours < 1 {
			return fmt.Errorf("scheduler.retention_hours must be at least 1, got %d", config.Scheduler.RetentionHours)
		}
	}
	return nil
}

// GracePeriodDuration returns the parsed worker grace period, defaulting to 30s
func (w WorkersConfig) GracePeriodDuration() time.Duration {
	d, err := time.ParseDuration(w.GracePeriod)
	if err != nil || d < 0 {
		return 30 * time.Second
	}
	return d
}

// PollIntervalDuration returns the parsed idle poll interval, defaulting to 100ms
func (w WorkersConfig) PollIntervalDuration() time.Duration {
	d, err := time.ParseDuration(w.PollInterval)
	if err != nil || d <= 0 {
		return 100 * time.Millisecond
	}
	return d
}

// SendTimeoutDuration returns the parsed subscriber send timeout, defaulting to 100ms
func (h HubConfig) SendTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(h.SendTimeout)
	if err != nil || d <= 0 {
		return 100 * time.Millisecond
	}
	return d
}

// EpochDurationParsed returns the simulated epoch duration, defaulting to 200ms
func (t TrainerConfig) EpochDurationParsed() time.Duration {
	d, err := time.ParseDuration(t.EpochDuration)
	if err != nil || d <= 0 {
		return 200 * time.Millisecond
	}
	return d
}

// RequestTimeoutDuration returns the parsed search request timeout, defaulting to 30s
func (s SearchConfig) RequestTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(s.RequestTimeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// MaxElapsedTimeDuration returns the parsed retry budget, defaulting to 2m
func (s SearchConfig) MaxElapsedTimeDuration() time.Duration {
	d, err := time.ParseDuration(s.MaxElapsedTime)
	if err != nil || d <= 0 {
		return 2 * time.Minute
	}
	return d
}

// Helper functions for string manipulation
func splitString(s, sep string) []string {
	result := []string{}
	start := 0
	for i := 0; i < len(s); i++ {
		if i+len(sep) <= len(s) && s[i:i+len(sep)] == sep {
			result = append(result, s[start:i])
			start = i + len(sep)
			i = start - 1
		}
	}
	result = append(result, s[start:])
	return result
}

func trimSpace(s string) string {
	start := 0
	end := len(s)
	for start < end && (s[start] == ' ' || s[start] == '\t' || s[start] == '\n' || s[start] == '\r') {
		start++
	}
	for end > start && (s[end-1] == ' ' || s[end-1] == '\t' || s[end-1] == '\n' || s[end-1] == '\r') {
		end--
	}
	return s[start:end]
}

// ValidateJobSchedule validates a cron schedule expression and ensures minimum 5-minute interval
func ValidateJobSchedule(schedule string) error {
	// Parse the cron expression
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	_, err := parser.Parse(schedule)
	if err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}

	// Check for minimum 5-minute interval
	// Validate minute field (first field in standard cron)
	parts := strings.Fields(schedule)
	if len(parts) < 5 {
		return fmt.Errorf("invalid cron format: expected 5 fields")
	}

	minuteField := parts[0]

	// Check for patterns that violate 5-minute minimum
	if minuteField == "*" {
		return fmt.Errorf("schedule must have minimum 5-minute interval (every minute is not allowed)")
	}

	// Check for */n patterns where n < 5
	if strings.HasPrefix(minuteField, "*/") {
		intervalStr := strings.TrimPrefix(minuteField, "*/")
		interval, err := strconv.Atoi(intervalStr)
		if err == nil && interval < 5 {
			return fmt.Errorf("schedule interval must be at least 5 minutes, got %d", interval)
		}
	}

	return nil
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// DeepCloneConfig creates a deep copy of the Config struct
// Used to hand workers and services their own config without shared mutation.
func DeepCloneConfig(c *Config) *Config {
	if c == nil {
		return nil
	}

	// Clone the config struct (shallow copy first)
	clone := *c

	// Deep clone slice fields to prevent shared memory
	if len(c.Pipeline.Formats) > 0 {
		clone.Pipeline.Formats = make([]string, len(c.Pipeline.Formats))
		copy(clone.Pipeline.Formats, c.Pipeline.Formats)
	}

	if len(c.Corpus.Extensions) > 0 {
		clone.Corpus.Extensions = make([]string, len(c.Corpus.Extensions))
		copy(clone.Corpus.Extensions, c.Corpus.Extensions)
	}

	if len(c.Trainer.Args) > 0 {
		clone.Trainer.Args = make([]string, len(c.Trainer.Args))
		copy(clone.Trainer.Args, c.Trainer.Args)
	}

	if len(c.Logging.Output) > 0 {
		clone.Logging.Output = make([]string, len(c.Logging.Output))
		copy(clone.Logging.Output, c.Logging.Output)
	}

	if len(c.Auth.Tokens) > 0 {
		clone.Auth.Tokens = make([]AuthTokenConfig, len(c.Auth.Tokens))
		copy(clone.Auth.Tokens, c.Auth.Tokens)
		for i := range clone.Auth.Tokens {
			if len(c.Auth.Tokens[i].Roles) > 0 {
				clone.Auth.Tokens[i].Roles = make([]string, len(c.Auth.Tokens[i].Roles))
				copy(clone.Auth.Tokens[i].Roles, c.Auth.Tokens[i].Roles)
			}
		}
	}

	if len(c.WebSocket.AllowedEvents) > 0 {
		clone.WebSocket.AllowedEvents = make([]string, len(c.WebSocket.AllowedEvents))
		copy(clone.WebSocket.AllowedEvents, c.WebSocket.AllowedEvents)
	}

	if len(c.WebSocket.ThrottleIntervals) > 0 {
		clone.WebSocket.ThrottleIntervals = make(map[string]string, len(c.WebSocket.ThrottleIntervals))
		for k, v := range c.WebSocket.ThrottleIntervals {
			clone.WebSocket.ThrottleIntervals[k] = v
		}
	}

	return &clone
}
