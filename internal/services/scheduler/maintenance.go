package scheduler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/doceo/internal/common"
	"github.com/ternarybob/doceo/internal/interfaces"
)

const (
	// RetentionJobName is the terminal-job retention sweep
	RetentionJobName = "job-retention"

	// ExportGCJobName is the orphaned export directory sweep
	ExportGCJobName = "export-gc"

	// orphanGrace spares export directories younger than this, since a
	// build may create its directory before the record is visible
	orphanGrace = time.Hour
)

// Maintenance owns the background sweeps the scheduler runs
type Maintenance struct {
	jobs         interfaces.JobStore
	logs         interfaces.LogStore
	datasets     interfaces.DatasetStore
	eventService interfaces.EventService
	retention    time.Duration
	exportDir    string
	logger       arbor.ILogger
}

// NewMaintenance wires the sweeps over the given stores
func NewMaintenance(jobs interfaces.JobStore, logs interfaces.LogStore, datasets interfaces.DatasetStore, config *common.SchedulerConfig, exportDir string, logger arbor.ILogger) *Maintenance {
	retentionHours := config.RetentionHours
	if retentionHours <= 0 {
		retentionHours = 168
	}
	return &Maintenance{
		jobs:      jobs,
		logs:      logs,
		datasets:  datasets,
		retention: time.Duration(retentionHours) * time.Hour,
		exportDir: exportDir,
		logger:    logger,
	}
}

// SetEventService wires the internal event bus. When set, retention
// sweeps that delete jobs publish a cleanup_triggered event.
func (m *Maintenance) SetEventService(eventService interfaces.EventService) {
	m.eventService = eventService
}

// Register adds both sweeps to the scheduler on the same schedule
func (m *Maintenance) Register(sched interfaces.SchedulerService, schedule string) error {
	if err := sched.RegisterJob(RetentionJobName, schedule, "Purge terminal jobs past the retention window", m.SweepTerminalJobs); err != nil {
		return err
	}
	return sched.RegisterJob(ExportGCJobName, schedule, "Remove export directories no dataset references", m.SweepOrphanedExports)
}

// SweepTerminalJobs deletes terminal jobs whose completion predates the
// retention window, along with their persisted logs
func (m *Maintenance) SweepTerminalJobs() error {
	ctx := context.Background()
	cutoff := time.Now().UTC().Add(-m.retention)

	all, err := m.jobs.ListJobs(ctx, &interfaces.JobFilter{})
	if err != nil {
		return fmt.Errorf("list jobs: %w", err)
	}

	expired := 0
	for _, job := range all {
		if !job.IsTerminal() || job.CompletedAt == nil || job.CompletedAt.After(cutoff) {
			continue
		}
		expired++
		if err := m.logs.DeleteJobLogs(ctx, job.ID); err != nil {
			m.logger.Warn().
				Err(err).
				Str("job_id", job.ID).
				Msg("Failed to delete job logs")
		}
	}
	if expired == 0 {
		return nil
	}

	deleted, err := m.jobs.DeleteTerminalJobsBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("delete terminal jobs: %w", err)
	}

	m.logger.Info().
		Int("deleted", deleted).
		Str("cutoff", cutoff.Format(time.RFC3339)).
		Msg("Retention sweep removed expired jobs")

	if m.eventService != nil {
		m.eventService.Publish(ctx, interfaces.Event{
			Type: interfaces.EventCleanupTriggered,
			Payload: map[string]interface{}{
				"deleted": deleted,
				"cutoff":  cutoff.Format(time.RFC3339),
			},
		})
	}
	return nil
}

// SweepOrphanedExports removes export directories that no dataset record
// references. Directories younger than the grace window are left alone.
func (m *Maintenance) SweepOrphanedExports() error {
	ctx := context.Background()

	records, err := m.datasets.ListDatasets(ctx, &interfaces.DatasetFilter{})
	if err != nil {
		return fmt.Errorf("list datasets: %w", err)
	}
	live := make(map[string]bool, len(records))
	for _, record := range records {
		live[record.ID] = true
	}

	entries, err := os.ReadDir(m.exportDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read export dir: %w", err)
	}

	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), "ds_") {
			continue
		}
		if live[entry.Name()] {
			continue
		}
		info, err := entry.Info()
		if err != nil || time.Since(info.ModTime()) < orphanGrace {
			continue
		}
		if err := os.RemoveAll(filepath.Join(m.exportDir, entry.Name())); err != nil {
			m.logger.Warn().
				Err(err).
				Str("dataset_id", entry.Name()).
				Msg("Failed to remove orphaned export directory")
			continue
		}
		m.logger.Debug().
			Str("dataset_id", entry.Name()).
			Msg("Removed orphaned export directory")
		removed++
	}

	if removed > 0 {
		m.logger.Info().
			Int("removed", removed).
			Msg("Export sweep removed orphaned directories")
	}
	return nil
}
