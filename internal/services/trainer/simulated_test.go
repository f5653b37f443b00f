package trainer

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/doceo/internal/common"
	"github.com/ternarybob/doceo/internal/models"
)

// progressRecorder captures epoch ticks so tests can assert on them
type progressRecorder struct {
	mu    sync.Mutex
	ticks [][2]int
}

func (r *progressRecorder) record(current, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ticks = append(r.ticks, [2]int{current, total})
}

func (r *progressRecorder) snapshot() [][2]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][2]int{}, r.ticks...)
}

func newTestJob(id, configRef string) *models.TrainingJob {
	return models.NewTrainingJob(id, &models.JobSubmission{
		Kind:       "lora",
		ConfigRef:  configRef,
		DatasetRef: "ds_test",
	}, "tester")
}

func newSimulatedTrainer(t *testing.T, epochDuration string) (*SimulatedTrainer, string) {
	t.Helper()
	dir := t.TempDir()
	trainer := NewSimulatedTrainer(arbor.NewLogger(), &common.TrainerConfig{
		OutputDir:     dir,
		EpochDuration: epochDuration,
	})
	return trainer, dir
}

func TestSimulatedTrainerCompletesJob(t *testing.T) {
	trainer, dir := newSimulatedTrainer(t, "1ms")
	job := newTestJob("job-sim-1", "")
	recorder := &progressRecorder{}

	result, err := trainer.Run(context.Background(), job, recorder.record)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	ticks := recorder.snapshot()
	if len(ticks) != DefaultEpochs {
		t.Fatalf("Expected %d progress ticks, got %d", DefaultEpochs, len(ticks))
	}
	for i, tick := range ticks {
		if tick[0] != i+1 || tick[1] != DefaultEpochs {
			t.Errorf("Tick %d: expected %d/%d, got %d/%d", i, i+1, DefaultEpochs, tick[0], tick[1])
		}
	}

	if result.Metrics["epochs"] != float64(DefaultEpochs) {
		t.Errorf("Expected epochs metric %d, got %f", DefaultEpochs, result.Metrics["epochs"])
	}
	if result.Metrics["loss"] <= 0 || result.Metrics["loss"] >= 2.0 {
		t.Errorf("Loss metric out of range: %f", result.Metrics["loss"])
	}
	if result.Metrics["perplexity"] <= 1.0 {
		t.Errorf("Perplexity metric out of range: %f", result.Metrics["perplexity"])
	}

	expectedRef := filepath.Join(dir, job.ID, "adapter.json")
	if result.ArtifactRef != expectedRef {
		t.Errorf("Expected artifact ref %s, got %s", expectedRef, result.ArtifactRef)
	}

	data, err := os.ReadFile(result.ArtifactRef)
	if err != nil {
		t.Fatalf("Failed to read artifact: %v", err)
	}
	var artifact map[string]interface{}
	if err := json.Unmarshal(data, &artifact); err != nil {
		t.Fatalf("Artifact is not valid JSON: %v", err)
	}
	if artifact["job_id"] != job.ID {
		t.Errorf("Artifact job_id mismatch: %v", artifact["job_id"])
	}
	if artifact["dataset_ref"] != "ds_test" {
		t.Errorf("Artifact dataset_ref mismatch: %v", artifact["dataset_ref"])
	}
}

func TestSimulatedTrainerReadsConfigFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "qlora.yaml")
	doc := "base_model: tinyllama\nepochs: 2\nquantization: nf4\n"
	if err := os.WriteFile(configPath, []byte(doc), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	trainer, _ := newSimulatedTrainer(t, "1ms")
	job := newTestJob("job-sim-2", configPath)
	recorder := &progressRecorder{}

	result, err := trainer.Run(context.Background(), job, recorder.record)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if len(recorder.snapshot()) != 2 {
		t.Errorf("Expected 2 progress ticks, got %d", len(recorder.snapshot()))
	}
	if result.Metrics["epochs"] != 2 {
		t.Errorf("Expected epochs metric 2, got %f", result.Metrics["epochs"])
	}
}

func TestSimulatedTrainerFailureInjection(t *testing.T) {
	trainer, dir := newSimulatedTrainer(t, "1ms")
	job := newTestJob("job-sim-3", "fail:CUDA out of memory")
	recorder := &progressRecorder{}

	result, err := trainer.Run(context.Background(), job, recorder.record)
	if err == nil {
		t.Fatal("Expected injected failure, got nil error")
	}
	if !strings.Contains(err.Error(), "CUDA out of memory") {
		t.Errorf("Expected injected message in error, got: %v", err)
	}
	if result != nil {
		t.Errorf("Expected nil result on failure, got %+v", result)
	}

	// One epoch runs before the injected failure
	if len(recorder.snapshot()) != 1 {
		t.Errorf("Expected 1 progress tick before failure, got %d", len(recorder.snapshot()))
	}
	if _, err := os.Stat(filepath.Join(dir, job.ID)); !os.IsNotExist(err) {
		t.Error("Failed job should not leave an artifact directory")
	}
}

func TestSimulatedTrainerHonorsCancellation(t *testing.T) {
	trainer, _ := newSimulatedTrainer(t, "1h")
	job := newTestJob("job-sim-4", "")

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	result, err := trainer.Run(ctx, job, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got: %v", err)
	}
	if result != nil {
		t.Errorf("Expected nil result on cancellation, got %+v", result)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Cancellation took too long: %v", elapsed)
	}
}

func TestTrainerFactory(t *testing.T) {
	logger := arbor.NewLogger()

	tests := []struct {
		mode     string
		command  string
		expected string
		wantErr  bool
	}{
		{"", "", "simulated", false},
		{"simulated", "", "simulated", false},
		{"process", "python", "process", false},
		{"process", "", "", true},
		{"remote", "", "simulated", false}, // Unknown mode falls back
	}

	for _, tt := range tests {
		trainer, err := NewTrainer(logger, &common.TrainerConfig{
			Mode:      tt.mode,
			Command:   tt.command,
			OutputDir: t.TempDir(),
		})
		if tt.wantErr {
			if err == nil {
				t.Errorf("Mode %q: expected error, got nil", tt.mode)
			}
			continue
		}
		if err != nil {
			t.Errorf("Mode %q: unexpected error: %v", tt.mode, err)
			continue
		}
		if trainer.Name() != tt.expected {
			t.Errorf("Mode %q: expected %s trainer, got %s", tt.mode, tt.expected, trainer.Name())
		}
	}
}
