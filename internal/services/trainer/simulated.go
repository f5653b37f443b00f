package trainer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/doceo/internal/common"
	"github.com/ternarybob/doceo/internal/interfaces"
	"github.com/ternarybob/doceo/internal/models"
)

// SimulatedTrainer runs an epoch loop without touching a GPU. It honors the
// same contract as the process trainer (progress ticks, artifact in the
// output dir, metrics) so the rest of the service cannot tell them apart.
type SimulatedTrainer struct {
	logger        arbor.ILogger
	outputDir     string
	epochDuration time.Duration
}

// NewSimulatedTrainer creates a simulated trainer
func NewSimulatedTrainer(logger arbor.ILogger, config *common.TrainerConfig) *SimulatedTrainer {
	return &SimulatedTrainer{
		logger:        logger,
		outputDir:     config.OutputDir,
		epochDuration: config.EpochDurationParsed(),
	}
}

// Name identifies the trainer implementation
func (t *SimulatedTrainer) Name() string {
	return "simulated"
}

// Run trains the adapter described by the job. Cancelling the context
// aborts between epochs.
func (t *SimulatedTrainer) Run(ctx context.Context, job *models.TrainingJob, progress interfaces.TrainerProgressFunc) (*interfaces.TrainerResult, error) {
	jobLogger := t.logger.WithCorrelationId(job.ID)

	cfg, err := LoadTrainingConfig(job.ConfigRef)
	if err != nil {
		return nil, err
	}

	failMsg, injectFailure := failMessage(job.ConfigRef)

	jobLogger.Info().
		Str("kind", string(job.Kind)).
		Str("dataset_ref", job.DatasetRef).
		Int("epochs", cfg.Epochs).
		Msg("Training started")

	for epoch := 1; epoch <= cfg.Epochs; epoch++ {
		select {
		case <-ctx.Done():
			jobLogger.Warn().Int("epoch", epoch).Msg("Training abandoned")
			return nil, ctx.Err()
		case <-time.After(t.epochDuration):
		}

		if progress != nil {
			progress(epoch, cfg.Epochs)
		}
		jobLogger.Info().
			Str("phase", "train").
			Int("epoch", epoch).
			Int("total_epochs", cfg.Epochs).
			Str("loss", fmt.Sprintf("%.4f", epochLoss(epoch, cfg.Epochs))).
			Msg("Epoch completed")

		if injectFailure && epoch == 1 {
			jobLogger.Error().Str("phase", "train").Msg(failMsg)
			return nil, errors.New(failMsg)
		}
	}

	result := &interfaces.TrainerResult{
		Metrics: finalMetrics(cfg.Epochs),
	}

	artifactRef, err := t.writeArtifact(job, cfg, result.Metrics)
	if err != nil {
		return nil, err
	}
	result.ArtifactRef = artifactRef

	jobLogger.Info().
		Str("artifact_ref", artifactRef).
		Msg("Training completed")

	return result, nil
}

// writeArtifact materializes the adapter metadata so the artifact_ref
// points at a real file, mirroring the process trainer's output contract
func (t *SimulatedTrainer) writeArtifact(job *models.TrainingJob, cfg *TrainingConfig, metrics map[string]float64) (string, error) {
	artifactDir := filepath.Join(t.outputDir, job.ID)
	if err := os.MkdirAll(artifactDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create artifact directory: %w", err)
	}

	artifact := map[string]interface{}{
		"job_id":      job.ID,
		"kind":        job.Kind,
		"base_model":  cfg.BaseModel,
		"dataset_ref": job.DatasetRef,
		"epochs":      cfg.Epochs,
		"rank":        cfg.Rank,
		"metrics":     metrics,
		"created_at":  time.Now().UTC().Format(time.RFC3339),
	}
	data, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal artifact: %w", err)
	}

	artifactPath := filepath.Join(artifactDir, "adapter.json")
	if err := os.WriteFile(artifactPath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write artifact: %w", err)
	}
	return artifactPath, nil
}

// epochLoss is a deterministic decreasing curve so simulated runs are
// reproducible in tests and demos
func epochLoss(epoch, totalEpochs int) float64 {
	return 2.0 * math.Exp(-0.4*float64(epoch))
}

// finalMetrics derives completion metrics from the epoch count alone
func finalMetrics(epochs int) map[string]float64 {
	loss := epochLoss(epochs, epochs)
	return map[string]float64{
		"loss":       math.Round(loss*10000) / 10000,
		"perplexity": math.Round(math.Exp(loss)*10000) / 10000,
		"epochs":     float64(epochs),
	}
}
