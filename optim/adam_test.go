package optim

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"tabnet/nn"
	"tabnet/tensor"
)

func params() ([]*mat.Dense, [][]float64) {
	w0, _ := tensor.FromRows([][]float64{{0.5, -0.25}, {1, 2}, {-1, 0}})
	w1, _ := tensor.FromRows([][]float64{{0.1, 0.2, 0.3}})
	return []*mat.Dense{w0, w1}, [][]float64{{0, 0.5, -0.5}, {0.25}}
}

func zeroGrads(weights []*mat.Dense, biases [][]float64) ([]*mat.Dense, [][]float64) {
	gw := make([]*mat.Dense, len(weights))
	gb := make([][]float64, len(biases))
	for i, w := range weights {
		r, c := w.Dims()
		gw[i] = tensor.Zeros(r, c)
		gb[i] = make([]float64, len(biases[i]))
	}
	return gw, gb
}

func TestDefaults(t *testing.T) {
	cfg := NewAdam(AdamConfig{}).Config()
	assert.Equal(t, 0.001, cfg.LearningRate)
	assert.Equal(t, 0.9, cfg.Beta1)
	assert.Equal(t, 0.999, cfg.Beta2)
	assert.Equal(t, 1e-8, cfg.Epsilon)
}

func TestZeroGradientLeavesParameters(t *testing.T) {
	weights, biases := params()
	before := make([][]float64, len(weights))
	for i, w := range weights {
		before[i] = append([]float64(nil), tensor.Raw(w)...)
	}
	bBefore := [][]float64{append([]float64(nil), biases[0]...), append([]float64(nil), biases[1]...)}

	opt := NewAdam(AdamConfig{LearningRate: 0.1})
	require.Nil(t, opt.State())
	gw, gb := zeroGrads(weights, biases)
	require.NoError(t, opt.Step(weights, biases, gw, gb))

	s := opt.State()
	require.NotNil(t, s)
	require.Equal(t, 1, s.T)
	for i := range weights {
		require.Equal(t, before[i], tensor.Raw(weights[i]))
		require.Equal(t, bBefore[i], biases[i])
		for _, v := range tensor.Raw(s.MW[i]) {
			require.Equal(t, 0.0, v)
		}
		for _, v := range tensor.Raw(s.VW[i]) {
			require.Equal(t, 0.0, v)
		}
		for j := range biases[i] {
			require.Equal(t, 0.0, s.MB[i][j])
			require.Equal(t, 0.0, s.VB[i][j])
		}
	}
}

func TestFirstStepMagnitude(t *testing.T) {
	// On step 1 m = (1-β1)g and v = (1-β2)g², so the update is
	// lr * sqrt(1-β2)/(1-β1) * (1-β1)g / (sqrt(1-β2)|g| + ε) ≈ lr * sign(g).
	w, _ := tensor.FromRows([][]float64{{1, 1}})
	b := [][]float64{{0}}
	gw, _ := tensor.FromRows([][]float64{{0.5, -2}})
	gb := [][]float64{{3}}

	opt := NewAdam(AdamConfig{LearningRate: 0.01})
	require.NoError(t, opt.Step([]*mat.Dense{w}, b, []*mat.Dense{gw}, gb))

	assert.InDelta(t, 1-0.01, w.At(0, 0), 1e-6)
	assert.InDelta(t, 1+0.01, w.At(0, 1), 1e-6)
	assert.InDelta(t, -0.01, b[0][0], 1e-6)
}

func TestUpdateRuleByHand(t *testing.T) {
	cfg := AdamConfig{LearningRate: 0.05, Beta1: 0.8, Beta2: 0.95, Epsilon: 1e-6}
	w, _ := tensor.FromRows([][]float64{{0.3}})
	b := [][]float64{{-0.2}}
	opt := NewAdam(cfg)

	p, m, v := 0.3, 0.0, 0.0
	grads := []float64{0.4, -0.1, 0.25}
	for step, g := range grads {
		gw, _ := tensor.FromRows([][]float64{{g}})
		require.NoError(t, opt.Step([]*mat.Dense{w}, b, []*mat.Dense{gw}, [][]float64{{0}}))

		tt := float64(step + 1)
		lrT := cfg.LearningRate * math.Sqrt(1-math.Pow(cfg.Beta2, tt)) / (1 - math.Pow(cfg.Beta1, tt))
		m = cfg.Beta1*m + (1-cfg.Beta1)*g
		v = cfg.Beta2*v + (1-cfg.Beta2)*g*g
		p -= lrT * m / (math.Sqrt(v) + cfg.Epsilon)

		require.InDelta(t, p, w.At(0, 0), 1e-12)
	}
	require.Equal(t, len(grads), opt.Timestep())
	require.Equal(t, -0.2, b[0][0])
}

func TestTimestepOncePerStep(t *testing.T) {
	weights, biases := params()
	gw, gb := zeroGrads(weights, biases)
	opt := NewAdam(AdamConfig{})
	require.Equal(t, 0, opt.Timestep())
	for i := 0; i < 5; i++ {
		require.NoError(t, opt.Step(weights, biases, gw, gb))
	}
	require.Equal(t, 5, opt.Timestep())
}

func TestShapeMismatch(t *testing.T) {
	weights, biases := params()
	gw, gb := zeroGrads(weights, biases)

	opt := NewAdam(AdamConfig{})
	err := opt.Step(weights, biases, gw[:1], gb)
	require.ErrorIs(t, err, nn.ErrShapeMismatch)
	require.Nil(t, opt.State())

	badGB := [][]float64{{0, 0}, {0}}
	err = opt.Step(weights, biases, gw, badGB)
	require.ErrorIs(t, err, nn.ErrShapeMismatch)

	// State is tied to the first network it saw.
	require.NoError(t, opt.Step(weights, biases, gw, gb))
	other, _ := tensor.FromRows([][]float64{{1}})
	err = opt.Step([]*mat.Dense{other}, [][]float64{{0}}, []*mat.Dense{tensor.Zeros(1, 1)}, [][]float64{{0}})
	require.ErrorIs(t, err, nn.ErrShapeMismatch)
}
