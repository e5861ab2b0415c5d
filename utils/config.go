package utils

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"tabnet/activation"
	"tabnet/nn"
)

// RunConfig holds the settings of one command-line training run.
type RunConfig struct {
	Architecture []nn.LayerSpec
	DataPath     string
	ModelPath    string
	Epochs       int
	BatchSize    int
	LearningRate float64
	ValSplit     float64
	Loss         string
}

// ParseArchitecture parses a compact architecture string such as
// "4 16:relu 3:softmax" into a layer list. The first token is the input
// layer and takes no activation.
func ParseArchitecture(archStr string) ([]nn.LayerSpec, error) {
	parts := strings.Fields(archStr)
	specs := make([]nn.LayerSpec, len(parts))
	for i, s := range parts {
		unitsStr, actName, hasAct := strings.Cut(s, ":")
		n, err := strconv.Atoi(unitsStr)
		if err != nil {
			return nil, fmt.Errorf("%w: layer %d: %v", nn.ErrInvalidConfig, i, err)
		}
		specs[i].Units = n
		if !hasAct {
			continue
		}
		if i == 0 {
			return nil, fmt.Errorf("%w: input layer takes no activation, got %q", nn.ErrInvalidConfig, s)
		}
		if !activation.Known(actName) {
			return nil, fmt.Errorf("%w: layer %d: unknown activation %q", nn.ErrInvalidConfig, i, actName)
		}
		specs[i].Activation = activation.ParseKind(actName)
	}
	if err := nn.ValidateLayers(specs); err != nil {
		return nil, err
	}
	return specs, nil
}

// FormatArchitecture is the inverse of ParseArchitecture.
func FormatArchitecture(specs []nn.LayerSpec) string {
	parts := make([]string, len(specs))
	for i, s := range specs {
		if i == 0 {
			parts[i] = strconv.Itoa(s.Units)
			continue
		}
		parts[i] = fmt.Sprintf("%d:%s", s.Units, s.Activation)
	}
	return strings.Join(parts, " ")
}

// LoadModelConfig reads and validates a model descriptor
// ({"architecture": ..., "trainingConfig": ...}) from a JSON file.
func LoadModelConfig(path string) (nn.ModelConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nn.ModelConfig{}, fmt.Errorf("failed to read model config: %w", err)
	}
	return ParseModelConfig(data)
}

// ParseModelConfig decodes and validates a model descriptor.
func ParseModelConfig(data []byte) (nn.ModelConfig, error) {
	var cfg nn.ModelConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nn.ModelConfig{}, fmt.Errorf("%w: failed to unmarshal model config: %v", nn.ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nn.ModelConfig{}, err
	}
	return cfg, nil
}

// ValidateConfig validates a training run configuration
func ValidateConfig(config *RunConfig) error {
	if err := nn.ValidateLayers(config.Architecture); err != nil {
		return err
	}

	if config.DataPath == "" {
		return fmt.Errorf("%w: data path is required", nn.ErrInvalidConfig)
	}

	if config.BatchSize <= 0 {
		return fmt.Errorf("%w: batch size must be positive", nn.ErrInvalidConfig)
	}

	if config.Epochs <= 0 {
		return fmt.Errorf("%w: epochs must be positive", nn.ErrInvalidConfig)
	}

	if config.LearningRate <= 0 {
		return fmt.Errorf("%w: learning rate must be positive", nn.ErrInvalidConfig)
	}

	if config.ValSplit < 0 || config.ValSplit >= 1 {
		return fmt.Errorf("%w: validation split must be in [0, 1)", nn.ErrInvalidConfig)
	}

	return nil
}
