package badger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/doceo/internal/interfaces"
	"github.com/ternarybob/doceo/internal/models"
)

func openTestDB(t *testing.T) *BadgerDB {
	t.Helper()

	options := badgerhold.DefaultOptions
	options.Dir = t.TempDir()
	options.ValueDir = options.Dir
	options.Logger = nil

	store, err := badgerhold.Open(options)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	return &BadgerDB{store: store}
}

func TestJobLifecyclePersistence(t *testing.T) {
	db := openTestDB(t)
	store := NewJobStore(db, arbor.NewLogger())
	ctx := context.Background()

	sub := &models.JobSubmission{
		Kind:       "lora",
		Name:       "style adapter",
		ConfigRef:  "configs/lora-small.yaml",
		DatasetRef: "ds_abc123",
		Priority:   10,
		Tags:       []string{"nightly"},
	}
	job := models.NewTrainingJob("job-1", sub, "tester")

	if err := store.SaveJob(ctx, job); err != nil {
		t.Fatalf("Failed to save job: %v", err)
	}

	loaded, err := store.GetJob(ctx, "job-1")
	if err != nil {
		t.Fatalf("Failed to get job: %v", err)
	}
	if loaded.State != models.JobStatePending {
		t.Errorf("Expected pending state, got %s", loaded.State)
	}
	if loaded.Kind != models.JobKindLoRA {
		t.Errorf("Expected lora kind, got %s", loaded.Kind)
	}

	// Walk the full lifecycle through the store
	if _, err := store.UpdateJob(ctx, "job-1", func(j *models.TrainingJob) error {
		j.MarkQueued()
		return nil
	}); err != nil {
		t.Fatalf("Failed to queue job: %v", err)
	}

	if _, err := store.UpdateJob(ctx, "job-1", func(j *models.TrainingJob) error {
		j.MarkRunning("worker-1")
		return nil
	}); err != nil {
		t.Fatalf("Failed to start job: %v", err)
	}

	updated, err := store.UpdateJob(ctx, "job-1", func(j *models.TrainingJob) error {
		j.UpdateProgress(2, 4)
		return nil
	})
	if err != nil {
		t.Fatalf("Failed to record progress: %v", err)
	}
	if updated.Progress.Percent != 50 {
		t.Errorf("Expected 50 percent, got %f", updated.Progress.Percent)
	}

	final, err := store.UpdateJob(ctx, "job-1", func(j *models.TrainingJob) error {
		j.MarkCompleted("artifacts/job-1/adapter.bin", map[string]float64{"loss": 0.42})
		return nil
	})
	if err != nil {
		t.Fatalf("Failed to complete job: %v", err)
	}
	if final.State != models.JobStateCompleted {
		t.Errorf("Expected completed state, got %s", final.State)
	}
	if final.CompletedAt == nil {
		t.Error("Expected CompletedAt to be set")
	}
	if final.Progress.Percent != 100 {
		t.Errorf("Expected 100 percent, got %f", final.Progress.Percent)
	}

	// Persisted record matches the returned snapshot
	persisted, err := store.GetJob(ctx, "job-1")
	if err != nil {
		t.Fatalf("Failed to reload job: %v", err)
	}
	if persisted.State != models.JobStateCompleted {
		t.Errorf("Expected persisted completed state, got %s", persisted.State)
	}
	if persisted.ArtifactRef != "artifacts/job-1/adapter.bin" {
		t.Errorf("Unexpected artifact ref: %s", persisted.ArtifactRef)
	}
	if persisted.Metrics["loss"] != 0.42 {
		t.Errorf("Unexpected metrics: %v", persisted.Metrics)
	}
	if persisted.WorkerID != "worker-1" {
		t.Errorf("Unexpected worker id: %s", persisted.WorkerID)
	}
}

func TestJobStateMachineEnforcement(t *testing.T) {
	db := openTestDB(t)
	store := NewJobStore(db, arbor.NewLogger())
	ctx := context.Background()

	job := &models.TrainingJob{
		ID:        "job-sm",
		Kind:      models.JobKindQLoRA,
		State:     models.JobStatePending,
		CreatedAt: time.Now(),
	}
	if err := store.SaveJob(ctx, job); err != nil {
		t.Fatalf("Failed to save job: %v", err)
	}

	// Duplicate IDs are rejected
	if err := store.SaveJob(ctx, job); !errors.Is(err, models.ErrStateConflict) {
		t.Errorf("Expected state conflict for duplicate save, got %v", err)
	}

	// Unknown job
	if _, err := store.UpdateJob(ctx, "missing", func(j *models.TrainingJob) error { return nil }); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected not found, got %v", err)
	}

	// pending cannot jump straight to running
	_, err := store.UpdateJob(ctx, "job-sm", func(j *models.TrainingJob) error {
		j.MarkRunning("worker-1")
		return nil
	})
	if !errors.Is(err, models.ErrStateConflict) {
		t.Errorf("Expected state conflict for pending->running, got %v", err)
	}

	// The rejected update must not leak into the store
	stored, err := store.GetJob(ctx, "job-sm")
	if err != nil {
		t.Fatalf("Failed to reload job: %v", err)
	}
	if stored.State != models.JobStatePending {
		t.Errorf("Expected job to stay pending, got %s", stored.State)
	}

	// Mutator errors abort without persisting
	mutatorErr := errors.New("boom")
	if _, err := store.UpdateJob(ctx, "job-sm", func(j *models.TrainingJob) error {
		j.Name = "should not persist"
		return mutatorErr
	}); !errors.Is(err, mutatorErr) {
		t.Errorf("Expected mutator error, got %v", err)
	}
	stored, _ = store.GetJob(ctx, "job-sm")
	if stored.Name == "should not persist" {
		t.Error("Aborted mutation leaked into the store")
	}

	// Cancel from pending, then verify terminal immutability
	if _, err := store.UpdateJob(ctx, "job-sm", func(j *models.TrainingJob) error {
		j.MarkCancelled()
		return nil
	}); err != nil {
		t.Fatalf("Failed to cancel job: %v", err)
	}
	_, err = store.UpdateJob(ctx, "job-sm", func(j *models.TrainingJob) error {
		j.MarkQueued()
		return nil
	})
	if !errors.Is(err, models.ErrStateConflict) {
		t.Errorf("Expected state conflict for terminal update, got %v", err)
	}
}

func TestListJobsFilterAndPagination(t *testing.T) {
	db := openTestDB(t)
	store := NewJobStore(db, arbor.NewLogger())
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	seed := []*models.TrainingJob{
		{ID: "job-a", Kind: models.JobKindLoRA, State: models.JobStatePending, Tags: []string{"nightly"}, CreatedAt: base},
		{ID: "job-b", Kind: models.JobKindQLoRA, State: models.JobStateQueued, CreatedAt: base.Add(1 * time.Minute)},
		{ID: "job-c", Kind: models.JobKindLoRA, State: models.JobStateRunning, Tags: []string{"nightly", "large"}, CreatedAt: base.Add(2 * time.Minute)},
		{ID: "job-d", Kind: models.JobKindContinuous, State: models.JobStateCompleted, CreatedAt: base.Add(3 * time.Minute)},
		{ID: "job-e", Kind: models.JobKindLoRA, State: models.JobStatePending, CreatedAt: base.Add(4 * time.Minute)},
	}
	for _, j := range seed {
		if err := store.SaveJob(ctx, j); err != nil {
			t.Fatalf("Failed to save %s: %v", j.ID, err)
		}
	}

	all, err := store.ListJobs(ctx, nil)
	if err != nil {
		t.Fatalf("Failed to list jobs: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("Expected 5 jobs, got %d", len(all))
	}
	if all[0].ID != "job-e" || all[4].ID != "job-a" {
		t.Errorf("Expected newest-first ordering, got %s .. %s", all[0].ID, all[4].ID)
	}

	pending, err := store.ListJobs(ctx, &interfaces.JobFilter{State: models.JobStatePending})
	if err != nil {
		t.Fatalf("Failed to list pending jobs: %v", err)
	}
	if len(pending) != 2 {
		t.Errorf("Expected 2 pending jobs, got %d", len(pending))
	}

	lora, err := store.ListJobs(ctx, &interfaces.JobFilter{Kind: models.JobKindLoRA})
	if err != nil {
		t.Fatalf("Failed to list lora jobs: %v", err)
	}
	if len(lora) != 3 {
		t.Errorf("Expected 3 lora jobs, got %d", len(lora))
	}

	tagged, err := store.ListJobs(ctx, &interfaces.JobFilter{Tag: "nightly"})
	if err != nil {
		t.Fatalf("Failed to list tagged jobs: %v", err)
	}
	if len(tagged) != 2 {
		t.Errorf("Expected 2 nightly jobs, got %d", len(tagged))
	}

	page, err := store.ListJobs(ctx, &interfaces.JobFilter{Limit: 2, Skip: 1})
	if err != nil {
		t.Fatalf("Failed to list page: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("Expected page of 2, got %d", len(page))
	}
	if page[0].ID != "job-d" || page[1].ID != "job-c" {
		t.Errorf("Expected job-d, job-c, got %s, %s", page[0].ID, page[1].ID)
	}

	count, err := store.CountJobs(ctx, models.JobStatePending)
	if err != nil {
		t.Fatalf("Failed to count pending jobs: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected 2 pending, got %d", count)
	}
	total, err := store.CountJobs(ctx, "")
	if err != nil {
		t.Fatalf("Failed to count jobs: %v", err)
	}
	if total != 5 {
		t.Errorf("Expected 5 total, got %d", total)
	}
}

func TestDeleteTerminalJobsBefore(t *testing.T) {
	db := openTestDB(t)
	store := NewJobStore(db, arbor.NewLogger())
	ctx := context.Background()

	old := time.Now().Add(-48 * time.Hour)
	recent := time.Now().Add(-1 * time.Hour)

	seed := []*models.TrainingJob{
		{ID: "job-old-done", State: models.JobStateCompleted, CreatedAt: old, CompletedAt: &old},
		{ID: "job-old-cancelled", State: models.JobStateCancelled, CreatedAt: old, CompletedAt: &old},
		{ID: "job-recent-done", State: models.JobStateCompleted, CreatedAt: recent, CompletedAt: &recent},
		{ID: "job-running", State: models.JobStateRunning, CreatedAt: old},
	}
	for _, j := range seed {
		if err := store.SaveJob(ctx, j); err != nil {
			t.Fatalf("Failed to save %s: %v", j.ID, err)
		}
	}

	cutoff := time.Now().Add(-24 * time.Hour)
	deleted, err := store.DeleteTerminalJobsBefore(ctx, cutoff)
	if err != nil {
		t.Fatalf("Failed to delete terminal jobs: %v", err)
	}
	if deleted != 2 {
		t.Errorf("Expected 2 deleted, got %d", deleted)
	}

	// Survivors: recent terminal job and the running job
	if _, err := store.GetJob(ctx, "job-recent-done"); err != nil {
		t.Errorf("Recent terminal job should survive: %v", err)
	}
	if _, err := store.GetJob(ctx, "job-running"); err != nil {
		t.Errorf("Running job should survive: %v", err)
	}
	if _, err := store.GetJob(ctx, "job-old-done"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected old completed job to be gone, got %v", err)
	}
}
