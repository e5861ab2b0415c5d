package train

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"tabnet/nn"
	"tabnet/utils"
)

// Config is passed per Train call. Zero numeric fields take the defaults of
// DefaultConfig.
type Config struct {
	Epochs        int
	BatchSize     int
	LearningRate  float64
	EarlyStopping bool
	Patience      int

	AdamBeta1   float64
	AdamBeta2   float64
	AdamEpsilon float64

	// Loss names the loss function. Empty falls back to the network's
	// trainingConfig.loss.
	Loss string

	// OnEpochEnd is awaited after every epoch. A non-nil error aborts
	// training and is returned from Train.
	OnEpochEnd func(ctx context.Context, rec EpochRecord) error
	// Yield runs between epochs, after OnEpochEnd.
	Yield func(ctx context.Context) error
	// EpochDelay pauses between epochs. Zero means no pause.
	EpochDelay time.Duration

	// StrictNumerics fails the run on the first non-finite loss or
	// prediction instead of skipping the sample.
	StrictNumerics bool
	// ExactDerivatives uses the true elu/selu/swish derivatives during
	// backpropagation instead of the constant 1 fallback.
	ExactDerivatives bool

	// Seed fixes the shuffle order. Zero seeds from the clock.
	Seed uint64

	Logger *log.Logger
	Stats  *utils.TimingStats
}

// DefaultConfig returns the stock training configuration.
func DefaultConfig() Config {
	return Config{
		Epochs:       100,
		BatchSize:    32,
		LearningRate: 0.001,
		Patience:     10,
		AdamBeta1:    0.9,
		AdamBeta2:    0.999,
		AdamEpsilon:  1e-8,
	}
}

func (c Config) withDefaults(net *nn.Network) Config {
	d := DefaultConfig()
	if c.Epochs == 0 {
		c.Epochs = d.Epochs
	}
	if c.BatchSize == 0 {
		c.BatchSize = d.BatchSize
	}
	if c.LearningRate == 0 {
		c.LearningRate = d.LearningRate
	}
	if c.Patience == 0 {
		c.Patience = d.Patience
	}
	if c.AdamBeta1 == 0 {
		c.AdamBeta1 = d.AdamBeta1
	}
	if c.AdamBeta2 == 0 {
		c.AdamBeta2 = d.AdamBeta2
	}
	if c.AdamEpsilon == 0 {
		c.AdamEpsilon = d.AdamEpsilon
	}
	if c.Loss == "" && net != nil {
		c.Loss = net.Config().TrainingConfig.Loss
	}
	if c.Logger == nil {
		c.Logger = log.New(io.Discard, "", 0)
	}
	if c.Seed == 0 {
		c.Seed = uint64(time.Now().UnixNano())
	}
	return c
}

func (c Config) validate() error {
	switch {
	case c.Epochs < 0:
		return fmt.Errorf("%w: epochs must be positive, got %d", nn.ErrInvalidConfig, c.Epochs)
	case c.BatchSize < 0:
		return fmt.Errorf("%w: batch size must be positive, got %d", nn.ErrInvalidConfig, c.BatchSize)
	case c.Patience < 0:
		return fmt.Errorf("%w: patience must be positive, got %d", nn.ErrInvalidConfig, c.Patience)
	case c.LearningRate < 0:
		return fmt.Errorf("%w: learning rate must be positive, got %g", nn.ErrInvalidConfig, c.LearningRate)
	}
	return nil
}
