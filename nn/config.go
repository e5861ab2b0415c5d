package nn

import (
	"fmt"
	"strings"

	"tabnet/activation"
)

// Layer roles as written in saved models.
const (
	LayerInput  = "input"
	LayerHidden = "hidden"
	LayerOutput = "output"
)

// LayerSpec is one entry of an architecture: a unit count and the activation
// applied to that layer's output. The input layer's activation is ignored.
type LayerSpec struct {
	Units      int             `json:"units"`
	Activation activation.Kind `json:"activation"`
}

// InputSpec is the input layer of the model descriptor. It has no activation.
type InputSpec struct {
	Units int `json:"units"`
}

// Architecture is the "architecture" object of the model descriptor.
type Architecture struct {
	InputLayer   InputSpec   `json:"inputLayer"`
	HiddenLayers []LayerSpec `json:"hiddenLayers"`
	OutputLayer  LayerSpec   `json:"outputLayer"`
}

// TrainingSpec is the "trainingConfig" object of the model descriptor.
type TrainingSpec struct {
	Optimizer string   `json:"optimizer"`
	Loss      string   `json:"loss"`
	Metrics   []string `json:"metrics"`
}

// ModelConfig is the training-time model descriptor produced by the host:
// {"architecture": ..., "trainingConfig": ...}.
type ModelConfig struct {
	Architecture   Architecture `json:"architecture"`
	TrainingConfig TrainingSpec `json:"trainingConfig"`
}

// ConfigFromLayers builds a descriptor from an ordered layer list, first
// element input, last element output.
func ConfigFromLayers(specs []LayerSpec) ModelConfig {
	cfg := ModelConfig{
		TrainingConfig: TrainingSpec{Optimizer: "adam", Metrics: []string{"accuracy"}},
	}
	if len(specs) == 0 {
		return cfg
	}
	cfg.Architecture.InputLayer = InputSpec{Units: specs[0].Units}
	if len(specs) >= 2 {
		cfg.Architecture.OutputLayer = specs[len(specs)-1]
		cfg.Architecture.HiddenLayers = append([]LayerSpec(nil), specs[1:len(specs)-1]...)
	}
	return cfg
}

// Layers flattens the architecture into the ordered layer sequence.
func (a Architecture) Layers() []LayerSpec {
	out := make([]LayerSpec, 0, len(a.HiddenLayers)+2)
	out = append(out, LayerSpec{Units: a.InputLayer.Units, Activation: activation.Linear})
	out = append(out, a.HiddenLayers...)
	out = append(out, a.OutputLayer)
	return out
}

func (c ModelConfig) clone() ModelConfig {
	out := c
	out.Architecture.HiddenLayers = append([]LayerSpec(nil), c.Architecture.HiddenLayers...)
	out.TrainingConfig.Metrics = append([]string(nil), c.TrainingConfig.Metrics...)
	return out
}

// Validate checks the descriptor without building a network.
func (c ModelConfig) Validate() error {
	if opt := strings.ToLower(c.TrainingConfig.Optimizer); opt != "" && opt != "adam" {
		return fmt.Errorf("%w: unsupported optimizer %q", ErrInvalidConfig, c.TrainingConfig.Optimizer)
	}
	return ValidateLayers(c.Architecture.Layers())
}

// ValidateLayers checks an ordered layer list: at least two layers, positive
// unit counts, softmax only on the output layer.
func ValidateLayers(specs []LayerSpec) error {
	if len(specs) < 2 {
		return fmt.Errorf("%w: need at least 2 layers (input and output), got %d", ErrInvalidConfig, len(specs))
	}
	for i, s := range specs {
		if s.Units <= 0 {
			return fmt.Errorf("%w: layer %d has %d units", ErrInvalidConfig, i, s.Units)
		}
		if s.Activation == activation.Softmax && i > 0 && i < len(specs)-1 {
			return fmt.Errorf("%w: softmax is only supported on the output layer (layer %d)", ErrInvalidConfig, i)
		}
	}
	return nil
}
