// Package nn implements the dense feed-forward network: topology, Xavier
// initialised weights and biases, forward inference and snapshots.
package nn

import (
	"fmt"
	"math"
	"time"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"tabnet/activation"
	"tabnet/tensor"
)

// LayerInfo describes one layer of a built network, in the form saved models
// carry it.
type LayerInfo struct {
	Type       string          `json:"type"`
	Units      int             `json:"units"`
	Activation activation.Kind `json:"activation"`
}

// Network owns the layer topology and, for every consecutive layer pair, a
// [units_out × units_in] weight matrix and a bias vector of length units_out.
//
// The trainer and optimizer mutate weights in place; everything else treats
// a Network as read-only.
type Network struct {
	config     ModelConfig
	layers     []LayerInfo
	activators []activation.Activator
	weights    []*mat.Dense
	biases     [][]float64
}

// Cache keeps every intermediate vector of one forward pass.
// LayerInputs[i] is the input of weight layer i (LayerInputs[0] is the raw
// sample), LayerZs[i] its pre-activation and LayerActivations[i] its output.
type Cache struct {
	Output           []float64
	LayerInputs      [][]float64
	LayerZs          [][]float64
	LayerActivations [][]float64
}

type options struct {
	src rand.Source
}

// Option configures network construction.
type Option func(*options)

// WithSeed makes weight initialisation reproducible.
func WithSeed(seed uint64) Option {
	return func(o *options) { o.src = rand.NewSource(seed) }
}

// WithSource draws initial weights from src.
func WithSource(src rand.Source) Option {
	return func(o *options) { o.src = src }
}

// New builds a network from a model descriptor with Xavier/Glorot-uniform
// weights and zero biases.
func New(cfg ModelConfig, opts ...Option) (*Network, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.src == nil {
		o.src = rand.NewSource(uint64(time.Now().UnixNano()))
	}

	net := build(cfg.clone(), cfg.Architecture.Layers())
	for _, w := range net.weights {
		out, in := w.Dims()
		limit := math.Sqrt(6.0 / float64(in+out))
		dist := distuv.Uniform{Min: -limit, Max: limit, Src: o.src}
		data := tensor.Raw(w)
		for j := range data {
			data[j] = dist.Rand()
		}
	}
	return net, nil
}

// NewFromLayers builds a network from an ordered layer list.
func NewFromLayers(specs []LayerSpec, opts ...Option) (*Network, error) {
	if err := ValidateLayers(specs); err != nil {
		return nil, err
	}
	return New(ConfigFromLayers(specs), opts...)
}

// build allocates zeroed parameters for an already validated layer list.
func build(cfg ModelConfig, specs []LayerSpec) *Network {
	net := &Network{
		config:     cfg,
		layers:     make([]LayerInfo, len(specs)),
		activators: make([]activation.Activator, len(specs)-1),
		weights:    make([]*mat.Dense, len(specs)-1),
		biases:     make([][]float64, len(specs)-1),
	}
	for i, s := range specs {
		info := LayerInfo{Type: LayerHidden, Units: s.Units, Activation: s.Activation}
		switch i {
		case 0:
			info.Type = LayerInput
			info.Activation = activation.Linear
		case len(specs) - 1:
			info.Type = LayerOutput
		}
		net.layers[i] = info
	}
	for i := 0; i < len(specs)-1; i++ {
		net.weights[i] = tensor.Zeros(specs[i+1].Units, specs[i].Units)
		net.biases[i] = make([]float64, specs[i+1].Units)
		net.activators[i] = activation.For(specs[i+1].Activation)
	}
	return net
}

// Forward computes z = W·a + b and a' = f(z) for every layer transition and
// returns the output layer's activation.
func (n *Network) Forward(input []float64) ([]float64, error) {
	if err := n.checkInput(input); err != nil {
		return nil, err
	}
	a := input
	for i, w := range n.weights {
		z := tensor.Affine(w, a, n.biases[i])
		next := make([]float64, len(z))
		n.activators[i].Activate(z, next)
		a = next
	}
	return a, nil
}

// ForwardWithCache runs the same computation as Forward, keeping the
// intermediates needed by backpropagation.
func (n *Network) ForwardWithCache(input []float64) (*Cache, error) {
	if err := n.checkInput(input); err != nil {
		return nil, err
	}
	c := &Cache{
		LayerInputs:      make([][]float64, len(n.weights)),
		LayerZs:          make([][]float64, len(n.weights)),
		LayerActivations: make([][]float64, len(n.weights)),
	}
	a := input
	for i, w := range n.weights {
		c.LayerInputs[i] = a
		z := tensor.Affine(w, a, n.biases[i])
		next := make([]float64, len(z))
		n.activators[i].Activate(z, next)
		c.LayerZs[i] = z
		c.LayerActivations[i] = next
		a = next
	}
	c.Output = a
	return c, nil
}

// Predict runs inference on one sample.
func (n *Network) Predict(x []float64) ([]float64, error) {
	return n.Forward(x)
}

// PredictBatch runs inference on every sample of xs.
func (n *Network) PredictBatch(xs [][]float64) ([][]float64, error) {
	out := make([][]float64, len(xs))
	for i, x := range xs {
		y, err := n.Forward(x)
		if err != nil {
			return nil, fmt.Errorf("sample %d: %w", i, err)
		}
		out[i] = y
	}
	return out, nil
}

func (n *Network) checkInput(input []float64) error {
	if len(input) != n.layers[0].Units {
		return fmt.Errorf("%w: input has %d values, input layer has %d units",
			ErrShapeMismatch, len(input), n.layers[0].Units)
	}
	return nil
}

// Config returns a copy of the descriptor the network was built from.
func (n *Network) Config() ModelConfig { return n.config.clone() }

// Layers returns a copy of the layer list.
func (n *Network) Layers() []LayerInfo { return append([]LayerInfo(nil), n.layers...) }

// InputUnits is the length every input sample must have.
func (n *Network) InputUnits() int { return n.layers[0].Units }

// OutputUnits is the length of every prediction.
func (n *Network) OutputUnits() int { return n.layers[len(n.layers)-1].Units }

// OutputActivation is the activation of the last layer.
func (n *Network) OutputActivation() activation.Kind {
	return n.layers[len(n.layers)-1].Activation
}

// Activator returns the activation applied by weight layer l.
func (n *Network) Activator(l int) activation.Activator { return n.activators[l] }

// Weights returns the live weight matrices, one per layer transition.
func (n *Network) Weights() []*mat.Dense { return n.weights }

// Biases returns the live bias vectors, one per layer transition.
func (n *Network) Biases() [][]float64 { return n.biases }
