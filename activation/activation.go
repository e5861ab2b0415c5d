// Package activation holds the element-wise activation functions used by the
// dense layers, together with their derivatives w.r.t. the pre-activation z.
package activation

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// Kind names one of the supported activations. The zero value is Linear.
type Kind int

const (
	Linear Kind = iota
	ReLU
	Sigmoid
	Tanh
	Softmax
	ELU
	SELU
	Swish
)

var kindNames = [...]string{
	Linear:  "linear",
	ReLU:    "relu",
	Sigmoid: "sigmoid",
	Tanh:    "tanh",
	Softmax: "softmax",
	ELU:     "elu",
	SELU:    "selu",
	Swish:   "swish",
}

// ParseKind resolves an activation name. Unknown names fall back to Linear.
func ParseKind(name string) Kind {
	name = strings.ToLower(strings.TrimSpace(name))
	for k, n := range kindNames {
		if n == name {
			return Kind(k)
		}
	}
	return Linear
}

// Known reports whether name is one of the supported activation names.
func Known(name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, n := range kindNames {
		if n == name {
			return true
		}
	}
	return false
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return kindNames[Linear]
	}
	return kindNames[k]
}

// MarshalText writes the activation name, so JSON documents carry "relu"
// rather than an integer.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText never fails: unknown names become Linear.
func (k *Kind) UnmarshalText(text []byte) error {
	*k = ParseKind(string(text))
	return nil
}

// Activator is the forward/derivative pair for one Kind.
//
// Derivative is what the trainer has always applied: elu, selu, swish and
// softmax return 1 there. ExactDerivative is the mathematically correct one.
type Activator interface {
	// Activate writes f(z) into out. len(out) must equal len(z).
	Activate(z, out []float64)
	Derivative(z float64) float64
	ExactDerivative(z float64) float64
	Kind() Kind
	fmt.Stringer
}

var activatorLookup = [...]Activator{
	Linear:  linearAct{},
	ReLU:    reluAct{},
	Sigmoid: sigmoidAct{},
	Tanh:    tanhAct{},
	Softmax: softmaxAct{},
	ELU:     eluAct{},
	SELU:    seluAct{},
	Swish:   swishAct{},
}

// For returns the Activator of k. Out-of-range kinds resolve to Linear.
func For(k Kind) Activator {
	if k < 0 || int(k) >= len(activatorLookup) {
		return activatorLookup[Linear]
	}
	return activatorLookup[k]
}

// Apply is a convenience wrapper returning a fresh slice.
func Apply(k Kind, z []float64) []float64 {
	out := make([]float64, len(z))
	For(k).Activate(z, out)
	return out
}

// SigmoidScalar is the logistic function.
func SigmoidScalar(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}

// SoftmaxVector subtracts max(z) before exponentiating and normalises to sum 1.
func SoftmaxVector(z, out []float64) {
	if len(z) == 0 {
		return
	}
	maxZ := floats.Max(z)
	for i, v := range z {
		out[i] = math.Exp(v - maxZ)
	}
	floats.Scale(1/floats.Sum(out[:len(z)]), out[:len(z)])
}

const (
	eluAlpha   = 1.0
	seluAlpha  = 1.6732632423543772
	seluLambda = 1.0507009873554805
)

type linearAct struct{}

func (linearAct) Activate(z, out []float64) { copy(out, z) }
func (linearAct) Derivative(float64) float64 { return 1 }
func (linearAct) ExactDerivative(float64) float64 { return 1 }
func (linearAct) Kind() Kind { return Linear }
func (linearAct) String() string { return Linear.String() }

type reluAct struct{}

func (reluAct) Activate(z, out []float64) {
	for i, v := range z {
		out[i] = math.Max(0, v)
	}
}

func (r reluAct) Derivative(z float64) float64 { return r.ExactDerivative(z) }

func (reluAct) ExactDerivative(z float64) float64 {
	if z > 0 {
		return 1
	}
	return 0
}

func (reluAct) Kind() Kind { return ReLU }
func (reluAct) String() string { return ReLU.String() }

type sigmoidAct struct{}

func (sigmoidAct) Activate(z, out []float64) {
	for i, v := range z {
		out[i] = SigmoidScalar(v)
	}
}

func (s sigmoidAct) Derivative(z float64) float64 { return s.ExactDerivative(z) }

func (sigmoidAct) ExactDerivative(z float64) float64 {
	s := SigmoidScalar(z)
	return s * (1 - s)
}

func (sigmoidAct) Kind() Kind { return Sigmoid }
func (sigmoidAct) String() string { return Sigmoid.String() }

type tanhAct struct{}

func (tanhAct) Activate(z, out []float64) {
	for i, v := range z {
		out[i] = math.Tanh(v)
	}
}

func (t tanhAct) Derivative(z float64) float64 { return t.ExactDerivative(z) }

func (tanhAct) ExactDerivative(z float64) float64 {
	th := math.Tanh(z)
	return 1 - th*th
}

func (tanhAct) Kind() Kind { return Tanh }
func (tanhAct) String() string { return Tanh.String() }

// softmaxAct only makes sense on an output layer. Its derivative is never
// applied on its own: the trainer folds it into the cross-entropy delta.
type softmaxAct struct{}

func (softmaxAct) Activate(z, out []float64) { SoftmaxVector(z, out) }
func (softmaxAct) Derivative(float64) float64 { return 1 }
func (softmaxAct) ExactDerivative(float64) float64 { return 1 }
func (softmaxAct) Kind() Kind { return Softmax }
func (softmaxAct) String() string { return Softmax.String() }

type eluAct struct{}

func (eluAct) Activate(z, out []float64) {
	for i, v := range z {
		if v > 0 {
			out[i] = v
		} else {
			out[i] = eluAlpha * (math.Exp(v) - 1)
		}
	}
}

func (eluAct) Derivative(float64) float64 { return 1 }

func (eluAct) ExactDerivative(z float64) float64 {
	if z > 0 {
		return 1
	}
	return eluAlpha * math.Exp(z)
}

func (eluAct) Kind() Kind { return ELU }
func (eluAct) String() string { return ELU.String() }

type seluAct struct{}

func (seluAct) Activate(z, out []float64) {
	for i, v := range z {
		if v > 0 {
			out[i] = seluLambda * v
		} else {
			out[i] = seluLambda * seluAlpha * (math.Exp(v) - 1)
		}
	}
}

func (seluAct) Derivative(float64) float64 { return 1 }

func (seluAct) ExactDerivative(z float64) float64 {
	if z > 0 {
		return seluLambda
	}
	return seluLambda * seluAlpha * math.Exp(z)
}

func (seluAct) Kind() Kind { return SELU }
func (seluAct) String() string { return SELU.String() }

type swishAct struct{}

func (swishAct) Activate(z, out []float64) {
	for i, v := range z {
		out[i] = v * SigmoidScalar(v)
	}
}

func (swishAct) Derivative(float64) float64 { return 1 }

func (swishAct) ExactDerivative(z float64) float64 {
	s := SigmoidScalar(z)
	return s + z*s*(1-s)
}

func (swishAct) Kind() Kind { return Swish }
func (swishAct) String() string { return Swish.String() }
