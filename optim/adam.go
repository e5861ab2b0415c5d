// Package optim implements the Adam optimizer over a network's weight
// matrices and bias vectors.
package optim

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"tabnet/nn"
	"tabnet/tensor"
)

// AdamConfig holds the Adam hyperparameters. Zero fields take the defaults
// 0.001 / 0.9 / 0.999 / 1e-8.
type AdamConfig struct {
	LearningRate float64
	Beta1        float64
	Beta2        float64
	Epsilon      float64
}

// State mirrors the parameter shapes: one first/second moment per weight and
// per bias, plus the shared step counter T.
type State struct {
	T  int
	MW []*mat.Dense
	VW []*mat.Dense
	MB [][]float64
	VB [][]float64
}

// Adam applies bias-corrected Adam updates:
//
//	t += 1
//	lr_t = lr * sqrt(1 - β2^t) / max(1 - β1^t, 1e-12)
//	m = β1*m + (1-β1)*g
//	v = β2*v + (1-β2)*g²
//	p -= lr_t * m / (sqrt(v) + ε)
//
// State is allocated on the first Step and belongs to one training run.
type Adam struct {
	cfg   AdamConfig
	state *State
}

// NewAdam creates an optimizer with empty state.
func NewAdam(cfg AdamConfig) *Adam {
	if cfg.LearningRate == 0 {
		cfg.LearningRate = 0.001
	}
	if cfg.Beta1 == 0 {
		cfg.Beta1 = 0.9
	}
	if cfg.Beta2 == 0 {
		cfg.Beta2 = 0.999
	}
	if cfg.Epsilon == 0 {
		cfg.Epsilon = 1e-8
	}
	return &Adam{cfg: cfg}
}

// Config returns the effective hyperparameters.
func (a *Adam) Config() AdamConfig { return a.cfg }

// State returns the moment accumulators, nil before the first Step.
func (a *Adam) State() *State { return a.state }

// Timestep is the number of Step calls applied so far.
func (a *Adam) Timestep() int {
	if a.state == nil {
		return 0
	}
	return a.state.T
}

// Step applies one update to every weight and bias using the (already
// averaged) gradients gradW/gradB. t advances once per call.
func (a *Adam) Step(weights []*mat.Dense, biases [][]float64, gradW []*mat.Dense, gradB [][]float64) error {
	if err := checkShapes(weights, biases, gradW, gradB); err != nil {
		return err
	}
	if a.state == nil {
		a.state = newState(weights, biases)
	} else if err := checkShapes(weights, biases, a.state.MW, a.state.MB); err != nil {
		return fmt.Errorf("optimizer state belongs to another network: %w", err)
	}

	s := a.state
	s.T++
	biasCorr1 := 1 - math.Pow(a.cfg.Beta1, float64(s.T))
	biasCorr2 := 1 - math.Pow(a.cfg.Beta2, float64(s.T))
	lrT := a.cfg.LearningRate * math.Sqrt(biasCorr2) / math.Max(biasCorr1, 1e-12)

	for l := range weights {
		a.update(tensor.Raw(weights[l]), tensor.Raw(gradW[l]), tensor.Raw(s.MW[l]), tensor.Raw(s.VW[l]), lrT)
		a.update(biases[l], gradB[l], s.MB[l], s.VB[l], lrT)
	}
	return nil
}

func (a *Adam) update(params, grads, m, v []float64, lrT float64) {
	b1, b2 := a.cfg.Beta1, a.cfg.Beta2
	for i, g := range grads {
		m[i] = b1*m[i] + (1-b1)*g
		v[i] = b2*v[i] + (1-b2)*g*g
		params[i] -= lrT * m[i] / (math.Sqrt(v[i]) + a.cfg.Epsilon)
	}
}

func newState(weights []*mat.Dense, biases [][]float64) *State {
	s := &State{
		MW: make([]*mat.Dense, len(weights)),
		VW: make([]*mat.Dense, len(weights)),
		MB: make([][]float64, len(biases)),
		VB: make([][]float64, len(biases)),
	}
	for l, w := range weights {
		r, c := w.Dims()
		s.MW[l] = tensor.Zeros(r, c)
		s.VW[l] = tensor.Zeros(r, c)
		s.MB[l] = make([]float64, len(biases[l]))
		s.VB[l] = make([]float64, len(biases[l]))
	}
	return s
}

func checkShapes(weights []*mat.Dense, biases [][]float64, otherW []*mat.Dense, otherB [][]float64) error {
	if len(weights) != len(biases) || len(otherW) != len(weights) || len(otherB) != len(biases) {
		return fmt.Errorf("%w: %d weight layers, %d bias layers, %d and %d to match",
			nn.ErrShapeMismatch, len(weights), len(biases), len(otherW), len(otherB))
	}
	for l := range weights {
		if !tensor.SameShape(weights[l], otherW[l]) {
			return fmt.Errorf("%w: weight layer %d", nn.ErrShapeMismatch, l)
		}
		if len(biases[l]) != len(otherB[l]) {
			return fmt.Errorf("%w: bias layer %d", nn.ErrShapeMismatch, l)
		}
	}
	return nil
}
