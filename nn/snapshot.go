package nn

import (
	"bytes"
	"encoding/json"
	"fmt"

	"tabnet/tensor"
)

// SavedModel is the trained-model document:
//
//	{"config": ..., "weights": [[[...]]], "biases": [[...]], "layers": [...]}
//
// Weight layer i is row-major [out][in]. Optimizer state is not included, so
// a loaded model serves inference but does not resume Adam's moments.
type SavedModel struct {
	Config  ModelConfig   `json:"config"`
	Weights [][][]float64 `json:"weights"`
	Biases  [][]float64   `json:"biases"`
	Layers  []LayerInfo   `json:"layers"`
}

// Save snapshots the network. The returned value shares no memory with n.
func (n *Network) Save() *SavedModel {
	s := &SavedModel{
		Config:  n.config.clone(),
		Weights: make([][][]float64, len(n.weights)),
		Biases:  make([][]float64, len(n.biases)),
		Layers:  n.Layers(),
	}
	for i, w := range n.weights {
		s.Weights[i] = tensor.Rows(w)
		s.Biases[i] = append([]float64(nil), n.biases[i]...)
	}
	return s
}

// Load rebuilds a network from a snapshot, taking weights, biases and layers
// verbatim rather than re-initialising them. When layers are present they
// define the architecture and the config is rebuilt to match.
func Load(s *SavedModel) (*Network, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: nil snapshot", ErrInvalidConfig)
	}
	specs := s.Config.Architecture.Layers()
	if len(s.Layers) > 0 {
		specs = make([]LayerSpec, len(s.Layers))
		for i, l := range s.Layers {
			specs[i] = LayerSpec{Units: l.Units, Activation: l.Activation}
		}
	}
	if err := ValidateLayers(specs); err != nil {
		return nil, err
	}
	if len(s.Weights) != len(specs)-1 || len(s.Biases) != len(specs)-1 {
		return nil, fmt.Errorf("%w: %d layers need %d weight and bias entries, got %d and %d",
			ErrShapeMismatch, len(specs), len(specs)-1, len(s.Weights), len(s.Biases))
	}

	cfg := s.Config
	if len(s.Layers) > 0 || s.Config.Architecture.InputLayer.Units == 0 {
		cfg.Architecture = ConfigFromLayers(specs).Architecture
	}
	net := build(cfg.clone(), specs)
	if len(s.Layers) > 0 {
		copy(net.layers, s.Layers)
	}
	for i := range net.weights {
		out, in := net.weights[i].Dims()
		if len(s.Weights[i]) != out {
			return nil, fmt.Errorf("%w: weight layer %d has %d rows, expected %d",
				ErrShapeMismatch, i, len(s.Weights[i]), out)
		}
		w, err := tensor.FromRows(s.Weights[i])
		if err != nil {
			return nil, fmt.Errorf("%w: weight layer %d: %v", ErrShapeMismatch, i, err)
		}
		if _, cols := w.Dims(); cols != in {
			return nil, fmt.Errorf("%w: weight layer %d rows have %d values, expected %d",
				ErrShapeMismatch, i, cols, in)
		}
		if len(s.Biases[i]) != out {
			return nil, fmt.Errorf("%w: bias layer %d has %d values, expected %d",
				ErrShapeMismatch, i, len(s.Biases[i]), out)
		}
		net.weights[i] = w
		net.biases[i] = append([]float64(nil), s.Biases[i]...)
	}
	return net, nil
}

// MarshalJSON encodes the network as a SavedModel document.
func (n *Network) MarshalJSON() ([]byte, error) {
	return json.Marshal(n.Save())
}

// DecodeSamples reads either one sample ([1,2]) or a batch ([[1,2],[3,4]]).
// The shape is decided by whether the first element is itself an array.
func DecodeSamples(data []byte) (samples [][]float64, batch bool, err error) {
	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if len(elems) == 0 {
		return nil, false, fmt.Errorf("%w: empty sample list", ErrInvalidInput)
	}
	if first := bytes.TrimSpace(elems[0]); len(first) > 0 && first[0] == '[' {
		if err := json.Unmarshal(data, &samples); err != nil {
			return nil, true, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return samples, true, nil
	}
	var single []float64
	if err := json.Unmarshal(data, &single); err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return [][]float64{single}, false, nil
}
