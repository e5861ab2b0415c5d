package train

import (
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// clipEps bounds probabilities away from 0 and 1 before taking logs.
const clipEps = 1e-15

// Loss selects the per-sample loss. The zero value is MeanSquaredError,
// which is also what unrecognised names resolve to.
type Loss int

const (
	MeanSquaredError Loss = iota
	BinaryCrossentropy
	CategoricalCrossentropy
)

// ParseLoss maps the descriptor's loss name; unknown names become MSE.
func ParseLoss(name string) Loss {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "binarycrossentropy", "binary_crossentropy":
		return BinaryCrossentropy
	case "categoricalcrossentropy", "categorical_crossentropy":
		return CategoricalCrossentropy
	default:
		return MeanSquaredError
	}
}

func (l Loss) String() string {
	switch l {
	case BinaryCrossentropy:
		return "binaryCrossentropy"
	case CategoricalCrossentropy:
		return "categoricalCrossentropy"
	default:
		return "meanSquaredError"
	}
}

// Compute evaluates the loss of one sample. Element-wise losses (BCE, MSE)
// are averaged over the output units, which for a single-unit output is the
// scalar formula itself.
func (l Loss) Compute(yTrue, yPred []float64) float64 {
	switch l {
	case CategoricalCrossentropy:
		return CategoricalCrossentropyLoss(yTrue, yPred)
	case BinaryCrossentropy:
		return meanOf(yTrue, yPred, BinaryCrossentropyLoss)
	default:
		return meanOf(yTrue, yPred, MeanSquaredErrorLoss)
	}
}

func meanOf(yTrue, yPred []float64, fn func(y, p float64) float64) float64 {
	if len(yPred) == 0 {
		return math.NaN()
	}
	sum := 0.0
	for i, p := range yPred {
		sum += fn(yTrue[i], p)
	}
	return sum / float64(len(yPred))
}

func clip(p float64) float64 {
	return math.Max(clipEps, math.Min(1-clipEps, p))
}

// BinaryCrossentropyLoss is -(y·log(p) + (1-y)·log(1-p)) with p clipped to
// [1e-15, 1-1e-15]. Non-numeric inputs yield NaN.
func BinaryCrossentropyLoss(y, p float64) float64 {
	p = clip(p)
	return -(y*math.Log(p) + (1-y)*math.Log(1-p))
}

// CategoricalCrossentropyLoss is -Σ y_i·log(clip(p_i)).
func CategoricalCrossentropyLoss(yTrue, yPred []float64) float64 {
	sum := 0.0
	for i, p := range yPred {
		sum += yTrue[i] * math.Log(clip(p))
	}
	return -sum
}

// MeanSquaredErrorLoss is (y-p)².
func MeanSquaredErrorLoss(y, p float64) float64 {
	d := y - p
	return d * d
}

// Accuracy scores one sample. Multi-unit outputs compare argmax indices;
// single-unit outputs threshold the prediction at 0.5 against the binarized
// target.
func Accuracy(yTrue, yPred []float64) float64 {
	if len(yPred) > 1 {
		if floats.MaxIdx(yPred) == floats.MaxIdx(yTrue) {
			return 1
		}
		return 0
	}
	if len(yPred) == 0 || len(yTrue) == 0 {
		return 0
	}
	if (yPred[0] > 0.5) == (yTrue[0] > 0.5) {
		return 1
	}
	return 0
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func allFinite(vs []float64) bool {
	for _, v := range vs {
		if !finite(v) {
			return false
		}
	}
	return true
}
