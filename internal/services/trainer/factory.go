package trainer

import (
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/doceo/internal/common"
	"github.com/ternarybob/doceo/internal/interfaces"
)

// NewTrainer creates a trainer based on configuration
// Supported modes:
//   - "simulated": In-process simulated training loop (default)
//   - "process": External trainer command launched per job
func NewTrainer(logger arbor.ILogger, config *common.TrainerConfig) (interfaces.Trainer, error) {
	mode := strings.ToLower(strings.TrimSpace(config.Mode))

	switch mode {
	case "simulated", "": // Default to simulated if empty
		logger.Info().
			Str("mode", "simulated").
			Str("output_dir", config.OutputDir).
			Msg("Initializing simulated trainer")
		return NewSimulatedTrainer(logger, config), nil

	case "process":
		if strings.TrimSpace(config.Command) == "" {
			return nil, fmt.Errorf("trainer mode 'process' requires trainer.command to be set")
		}
		logger.Info().
			Str("mode", "process").
			Str("command", config.Command).
			Msg("Initializing process trainer")
		return NewProcessTrainer(logger, config), nil

	default:
		logger.Warn().
			Str("mode", mode).
			Str("fallback", "simulated").
			Msg("Unknown trainer mode, falling back to simulated trainer")
		return NewSimulatedTrainer(logger, config), nil
	}
}
