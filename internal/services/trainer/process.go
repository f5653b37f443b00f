package trainer

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/doceo/internal/common"
	"github.com/ternarybob/doceo/internal/interfaces"
	"github.com/ternarybob/doceo/internal/models"
)

// Stdout contract with the external trainer binary:
//   - "epoch N/M ..." lines drive progress reporting
//   - "metric name=value" lines accumulate into the result metrics
//
// Everything the process prints is forwarded into the job's logs.
var (
	epochLinePattern  = regexp.MustCompile(`(?i)^epoch\s+(\d+)\s*/\s*(\d+)`)
	metricLinePattern = regexp.MustCompile(`^metric\s+([A-Za-z0-9_.]+)\s*=\s*([0-9eE+.-]+)`)
)

// ProcessTrainer launches an external training command per job. The
// subprocess is killed when the context is cancelled, so abandoning a
// worker cannot leak a GPU-holding child process.
type ProcessTrainer struct {
	logger    arbor.ILogger
	command   string
	args      []string
	outputDir string
}

// NewProcessTrainer creates a trainer that shells out to the configured command
func NewProcessTrainer(logger arbor.ILogger, config *common.TrainerConfig) *ProcessTrainer {
	return &ProcessTrainer{
		logger:    logger,
		command:   config.Command,
		args:      config.Args,
		outputDir: config.OutputDir,
	}
}

// Name identifies the trainer implementation
func (t *ProcessTrainer) Name() string {
	return "process"
}

// Run executes the external trainer for the job and reports its progress
func (t *ProcessTrainer) Run(ctx context.Context, job *models.TrainingJob, progress interfaces.TrainerProgressFunc) (*interfaces.TrainerResult, error) {
	jobLogger := t.logger.WithCorrelationId(job.ID)

	if _, err := LoadTrainingConfig(job.ConfigRef); err != nil {
		return nil, err
	}

	artifactDir := filepath.Join(t.outputDir, job.ID)
	if err := os.MkdirAll(artifactDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory: %w", err)
	}

	args := append([]string{}, t.args...)
	args = append(args,
		"--kind", string(job.Kind),
		"--config", job.ConfigRef,
		"--dataset", job.DatasetRef,
		"--output", artifactDir,
	)

	cmd := exec.CommandContext(ctx, t.command, args...)

	// Run the trainer in its own process group and kill the whole group on
	// cancellation. Killing only the immediate child would leave grandchild
	// processes holding the stdout pipe open, and the scan loop below would
	// block until they exit on their own.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = 5 * time.Second

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open trainer stdout: %w", err)
	}
	var stderr strings.Builder
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start trainer command: %w", err)
	}

	jobLogger.Info().
		Str("command", t.command).
		Int("pid", cmd.Process.Pid).
		Str("artifact_dir", artifactDir).
		Msg("Trainer process started")

	metrics := make(map[string]float64)

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if current, total, ok := parseEpochLine(line); ok && progress != nil {
			progress(current, total)
		}
		if name, value, ok := parseMetricLine(line); ok {
			metrics[name] = value
		}

		jobLogger.Info().
			Str("phase", "train").
			Str("originator", "trainer").
			Msg(line)
	}
	if err := scanner.Err(); err != nil {
		jobLogger.Warn().Err(err).Msg("Trainer output read failed")
	}

	if err := cmd.Wait(); err != nil {
		// Prefer the context error so abandonment reads as cancellation,
		// not as a trainer crash
		if ctx.Err() != nil {
			jobLogger.Warn().Msg("Trainer process killed")
			return nil, ctx.Err()
		}

		errTail := lastLine(stderr.String())
		jobLogger.Error().
			Err(err).
			Str("stderr", errTail).
			Msg("Trainer process failed")
		if errTail != "" {
			return nil, fmt.Errorf("trainer process failed: %s: %w", errTail, err)
		}
		return nil, fmt.Errorf("trainer process failed: %w", err)
	}

	jobLogger.Info().
		Str("artifact_ref", artifactDir).
		Msg("Trainer process completed")

	return &interfaces.TrainerResult{
		ArtifactRef: artifactDir,
		Metrics:     metrics,
	}, nil
}

// parseEpochLine extracts progress from an "epoch N/M" line
func parseEpochLine(line string) (current, total int, ok bool) {
	m := epochLinePattern.FindStringSubmatch(line)
	if m == nil {
		return 0, 0, false
	}
	current, err1 := strconv.Atoi(m[1])
	total, err2 := strconv.Atoi(m[2])
	if err1 != nil || err2 != nil || total <= 0 {
		return 0, 0, false
	}
	return current, total, true
}

// parseMetricLine extracts a named value from a "metric name=value" line
func parseMetricLine(line string) (name string, value float64, ok bool) {
	m := metricLinePattern.FindStringSubmatch(line)
	if m == nil {
		return "", 0, false
	}
	value, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return "", 0, false
	}
	return m[1], value, true
}

// lastLine returns the final non-empty line of captured output
func lastLine(output string) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}
