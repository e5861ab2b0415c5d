package utils

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"tabnet/activation"
	"tabnet/nn"
)

func TestParseArchitecture(t *testing.T) {
	specs, err := ParseArchitecture("4 16:relu 8:tanh 3:softmax")
	if err != nil {
		t.Fatalf("ParseArchitecture: %v", err)
	}
	want := []nn.LayerSpec{
		{Units: 4},
		{Units: 16, Activation: activation.ReLU},
		{Units: 8, Activation: activation.Tanh},
		{Units: 3, Activation: activation.Softmax},
	}
	if len(specs) != len(want) {
		t.Fatalf("got %d layers, want %d", len(specs), len(want))
	}
	for i := range want {
		if specs[i] != want[i] {
			t.Errorf("layer %d = %+v, want %+v", i, specs[i], want[i])
		}
	}
	if got := FormatArchitecture(specs); got != "4 16:relu 8:tanh 3:softmax" {
		t.Errorf("FormatArchitecture = %q", got)
	}
}

func TestParseArchitectureDefaultsToLinear(t *testing.T) {
	specs, err := ParseArchitecture("2 1")
	if err != nil {
		t.Fatalf("ParseArchitecture: %v", err)
	}
	if specs[1].Activation != activation.Linear {
		t.Errorf("activation = %v, want linear", specs[1].Activation)
	}
}

func TestParseArchitectureErrors(t *testing.T) {
	for _, arch := range []string{
		"",
		"4",
		"4 x:relu",
		"4 3:nope 1:sigmoid",
		"4:relu 1:sigmoid",
		"4 0:relu 1:sigmoid",
		"4 3:softmax 1:sigmoid",
	} {
		if _, err := ParseArchitecture(arch); !errors.Is(err, nn.ErrInvalidConfig) {
			t.Errorf("ParseArchitecture(%q) error = %v, want ErrInvalidConfig", arch, err)
		}
	}
}

func TestLoadModelConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	doc := `{
  "architecture": {
    "inputLayer": {"units": 4},
    "hiddenLayers": [{"units": 3, "activation": "relu"}],
    "outputLayer": {"units": 1, "activation": "sigmoid"}
  },
  "trainingConfig": {"optimizer": "adam", "loss": "binaryCrossentropy", "metrics": ["accuracy"]}
}`
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadModelConfig(path)
	if err != nil {
		t.Fatalf("LoadModelConfig: %v", err)
	}
	if cfg.Architecture.InputLayer.Units != 4 {
		t.Errorf("input units = %d", cfg.Architecture.InputLayer.Units)
	}
	if cfg.Architecture.HiddenLayers[0].Activation != activation.ReLU {
		t.Errorf("hidden activation = %v", cfg.Architecture.HiddenLayers[0].Activation)
	}
	if cfg.TrainingConfig.Loss != "binaryCrossentropy" {
		t.Errorf("loss = %q", cfg.TrainingConfig.Loss)
	}

	if _, err := LoadModelConfig(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestParseModelConfigRejectsBadDescriptor(t *testing.T) {
	bad := []string{
		`{not json`,
		`{"architecture": {"inputLayer": {"units": 0}, "outputLayer": {"units": 1, "activation": "sigmoid"}}}`,
		`{"architecture": {"inputLayer": {"units": 2}, "outputLayer": {"units": 1}}, "trainingConfig": {"optimizer": "sgd"}}`,
	}
	for _, doc := range bad {
		if _, err := ParseModelConfig([]byte(doc)); !errors.Is(err, nn.ErrInvalidConfig) {
			t.Errorf("ParseModelConfig(%s) error = %v, want ErrInvalidConfig", doc, err)
		}
	}
}

func TestValidateConfig(t *testing.T) {
	arch, _ := ParseArchitecture("4 3:relu 1:sigmoid")
	good := RunConfig{Architecture: arch, DataPath: "data.csv", Epochs: 10, BatchSize: 8, LearningRate: 0.01, ValSplit: 0.2}
	if err := ValidateConfig(&good); err != nil {
		t.Fatalf("ValidateConfig: %v", err)
	}

	tests := []struct {
		name string
		edit func(c *RunConfig)
	}{
		{"no data", func(c *RunConfig) { c.DataPath = "" }},
		{"zero batch", func(c *RunConfig) { c.BatchSize = 0 }},
		{"zero epochs", func(c *RunConfig) { c.Epochs = 0 }},
		{"zero lr", func(c *RunConfig) { c.LearningRate = 0 }},
		{"split too big", func(c *RunConfig) { c.ValSplit = 1 }},
		{"one layer", func(c *RunConfig) { c.Architecture = arch[:1] }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := good
			tt.edit(&c)
			if err := ValidateConfig(&c); !errors.Is(err, nn.ErrInvalidConfig) {
				t.Errorf("error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}
