package trainer

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultEpochs is used when a job's config document does not specify one
const DefaultEpochs = 3

// failRefPrefix marks a config_ref as a failure injection for tests.
// "fail:<message>" makes a trainer run one epoch and fail with the message.
const failRefPrefix = "fail:"

// TrainingConfig is the hyperparameter document a config_ref resolves to.
// Kept deliberately small: the service schedules training, it does not
// interpret most hyperparameters itself.
type TrainingConfig struct {
	BaseModel    string  `yaml:"base_model"`
	Epochs       int     `yaml:"epochs"`
	LearningRate float64 `yaml:"learning_rate"`
	BatchSize    int     `yaml:"batch_size"`

	// Adapter settings
	Rank  int `yaml:"rank"`
	Alpha int `yaml:"alpha"`

	// Quantization for qlora runs, e.g. "nf4"
	Quantization string `yaml:"quantization"`
}

// LoadTrainingConfig reads a YAML hyperparameter document. A config_ref
// that is not a readable file yields defaults rather than an error, since
// refs may name registry keys the external trainer resolves itself.
func LoadTrainingConfig(configRef string) (*TrainingConfig, error) {
	cfg := &TrainingConfig{Epochs: DefaultEpochs}

	if configRef == "" || strings.HasPrefix(configRef, failRefPrefix) {
		return cfg, nil
	}

	data, err := os.ReadFile(configRef)
	if err != nil {
		return cfg, nil
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse training config %s: %w", configRef, err)
	}
	if cfg.Epochs <= 0 {
		cfg.Epochs = DefaultEpochs
	}
	return cfg, nil
}

// failMessage extracts the injected failure message from a config_ref,
// returning ok=false when the ref is not a failure injection
func failMessage(configRef string) (string, bool) {
	if !strings.HasPrefix(configRef, failRefPrefix) {
		return "", false
	}
	msg := strings.TrimPrefix(configRef, failRefPrefix)
	if msg == "" {
		msg = "injected training failure"
	}
	return msg, true
}
