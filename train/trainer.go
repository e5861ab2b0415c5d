// Package train runs mini-batch backpropagation with Adam over a dense
// network: shuffling, batching, validation, early stopping and a cooperative
// pause between epochs.
package train

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"tabnet/activation"
	"tabnet/nn"
	"tabnet/optim"
	"tabnet/tensor"
	"tabnet/utils"
)

// Trainer owns one network for the duration of its Train calls.
type Trainer struct {
	net    *nn.Network
	cfg    Config
	loss   Loss
	rng    *rand.Rand
	logger *log.Logger
	stats  *utils.TimingStats
	opt    *optim.Adam
}

// New prepares a trainer for net. cfg is copied; zero fields take defaults.
func New(net *nn.Network, cfg Config) (*Trainer, error) {
	if net == nil {
		return nil, fmt.Errorf("%w: nil network", nn.ErrInvalidConfig)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults(net)
	stats := cfg.Stats
	if stats == nil {
		stats = &utils.TimingStats{}
	}
	return &Trainer{
		net:    net,
		cfg:    cfg,
		loss:   ParseLoss(cfg.Loss),
		rng:    rand.New(rand.NewSource(cfg.Seed)),
		logger: cfg.Logger,
		stats:  stats,
	}, nil
}

// Fit is New followed by Train.
func Fit(ctx context.Context, net *nn.Network, cfg Config, features, labels, valFeatures, valLabels [][]float64) (*History, error) {
	t, err := New(net, cfg)
	if err != nil {
		return nil, err
	}
	return t.Train(ctx, features, labels, valFeatures, valLabels)
}

// Config returns the effective configuration.
func (t *Trainer) Config() Config { return t.cfg }

// LossFunc is the loss selected for this trainer.
func (t *Trainer) LossFunc() Loss { return t.loss }

// Optimizer returns the optimizer of the most recent Train call.
func (t *Trainer) Optimizer() *optim.Adam { return t.opt }

// Stats returns the accumulated timings.
func (t *Trainer) Stats() *utils.TimingStats { return t.stats }

// Train fits the network on features/labels. valFeatures/valLabels may be
// empty. On cancellation the partial history is returned with ctx.Err().
func (t *Trainer) Train(ctx context.Context, features, labels, valFeatures, valLabels [][]float64) (*History, error) {
	if err := t.checkData(features, labels, "training"); err != nil {
		return nil, err
	}
	hasVal := len(valFeatures) > 0 || len(valLabels) > 0
	if hasVal {
		if err := t.checkData(valFeatures, valLabels, "validation"); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	defer func() { t.stats.TotalTime += time.Since(start) }()

	t.opt = optim.NewAdam(optim.AdamConfig{
		LearningRate: t.cfg.LearningRate,
		Beta1:        t.cfg.AdamBeta1,
		Beta2:        t.cfg.AdamBeta2,
		Epsilon:      t.cfg.AdamEpsilon,
	})
	stopper := newEarlyStopper(t.cfg.Patience)
	hist := &History{}
	indices := make([]int, len(features))
	for i := range indices {
		indices[i] = i
	}
	gradW, gradB := t.zeroGrads()

	for epoch := 1; epoch <= t.cfg.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			hist.Canceled = true
			return hist, err
		}

		t.shuffle(indices)
		rec := EpochRecord{Epoch: epoch}
		var batchLoss, batchAcc []float64
		for lo := 0; lo < len(indices); lo += t.cfg.BatchSize {
			hi := min(lo+t.cfg.BatchSize, len(indices))
			l, a, n, anomalies, err := t.runBatch(indices[lo:hi], features, labels, gradW, gradB)
			rec.Anomalies += anomalies
			if err != nil {
				return hist, fmt.Errorf("epoch %d: %w", epoch, err)
			}
			if n > 0 {
				batchLoss = append(batchLoss, l)
				batchAcc = append(batchAcc, a)
			}
		}
		rec.Loss = meanOrNaN(batchLoss)
		rec.Accuracy = meanOrNaN(batchAcc)

		monitored := rec.Loss
		if hasVal {
			vStart := time.Now()
			vl, va, anomalies, err := t.Evaluate(valFeatures, valLabels)
			t.stats.ValidationTime += time.Since(vStart)
			if err != nil {
				return hist, fmt.Errorf("epoch %d validation: %w", epoch, err)
			}
			rec.ValLoss, rec.ValAccuracy = &vl, &va
			rec.Anomalies += anomalies
			monitored = vl
		}

		hist.Records = append(hist.Records, rec)
		t.stats.Epochs++
		t.logEpoch(rec)

		if t.cfg.OnEpochEnd != nil {
			cbStart := time.Now()
			err := t.cfg.OnEpochEnd(ctx, rec)
			t.stats.CallbackTime += time.Since(cbStart)
			if err != nil {
				return hist, fmt.Errorf("epoch %d callback: %w", epoch, err)
			}
		}

		if t.cfg.EarlyStopping && stopper.observe(monitored) {
			hist.StoppedEarly = true
			t.logger.Printf("early stopping at epoch %d, best %.6f", epoch, stopper.best)
			break
		}
		if epoch < t.cfg.Epochs {
			if err := t.pause(ctx); err != nil {
				hist.Canceled = ctx.Err() != nil
				return hist, err
			}
		}
	}
	return hist, nil
}

// Evaluate returns the mean loss and accuracy of the network over a dataset
// using plain forward passes. Non-finite samples are counted and skipped
// unless StrictNumerics is set.
func (t *Trainer) Evaluate(features, labels [][]float64) (loss, acc float64, anomalies int, err error) {
	if err := t.checkData(features, labels, "evaluation"); err != nil {
		return 0, 0, 0, err
	}
	var losses, accs []float64
	for i, x := range features {
		pred, err := t.net.Forward(x)
		if err != nil {
			return 0, 0, anomalies, fmt.Errorf("sample %d: %w", i, err)
		}
		l := t.loss.Compute(labels[i], pred)
		if !finite(l) || !allFinite(pred) {
			anomalies++
			if err := t.anomaly(i, l); err != nil {
				return 0, 0, anomalies, err
			}
			continue
		}
		losses = append(losses, l)
		accs = append(accs, Accuracy(labels[i], pred))
	}
	return meanOrNaN(losses), meanOrNaN(accs), anomalies, nil
}

// runBatch accumulates gradients over one batch and applies a single Adam
// step. It returns the batch mean loss/accuracy over the n finite samples.
// A batch without any finite sample leaves the optimizer untouched.
func (t *Trainer) runBatch(batch []int, features, labels [][]float64, gradW []*mat.Dense, gradB [][]float64) (loss, acc float64, n, anomalies int, err error) {
	for l := range gradW {
		gradW[l].Zero()
		for j := range gradB[l] {
			gradB[l][j] = 0
		}
	}

	var lossSum, accSum float64
	for _, idx := range batch {
		fStart := time.Now()
		cache, err := t.net.ForwardWithCache(features[idx])
		t.stats.ForwardPassTime += time.Since(fStart)
		if err != nil {
			return 0, 0, n, anomalies, fmt.Errorf("sample %d: %w", idx, err)
		}
		t.stats.Samples++

		target := labels[idx]
		l := t.loss.Compute(target, cache.Output)
		if !finite(l) || !allFinite(cache.Output) {
			anomalies++
			if err := t.anomaly(idx, l); err != nil {
				return 0, 0, n, anomalies, err
			}
			continue
		}
		lossSum += l
		accSum += Accuracy(target, cache.Output)
		n++

		bStart := time.Now()
		t.backward(cache, target, gradW, gradB)
		t.stats.BackwardPassTime += time.Since(bStart)
	}

	if n == 0 {
		return 0, 0, 0, anomalies, nil
	}

	inv := 1 / float64(len(batch))
	for l := range gradW {
		gradW[l].Scale(inv, gradW[l])
		floats.Scale(inv, gradB[l])
	}
	uStart := time.Now()
	if err := t.opt.Step(t.net.Weights(), t.net.Biases(), gradW, gradB); err != nil {
		return 0, 0, n, anomalies, err
	}
	t.stats.UpdateTime += time.Since(uStart)
	t.stats.Steps++
	return lossSum / float64(n), accSum / float64(n), n, anomalies, nil
}

// backward adds one sample's gradients to gradW/gradB.
func (t *Trainer) backward(cache *nn.Cache, target []float64, gradW []*mat.Dense, gradB [][]float64) {
	weights := t.net.Weights()
	last := len(weights) - 1
	out := t.net.Activator(last)

	delta := OutputDelta(out, t.loss, cache.Output, target, cache.LayerZs[last], t.cfg.ExactDerivatives)
	for l := last; l >= 0; l-- {
		tensor.AddOuter(gradW[l], delta, cache.LayerInputs[l])
		floats.Add(gradB[l], delta)
		if l == 0 {
			break
		}
		prev := tensor.TransposeMul(weights[l], delta)
		act := t.net.Activator(l - 1)
		for k, z := range cache.LayerZs[l-1] {
			prev[k] *= derivative(act, z, t.cfg.ExactDerivatives)
		}
		delta = prev
	}
}

// OutputDelta is the error signal of the output layer. Sigmoid paired with
// binary cross-entropy, and softmax paired with categorical cross-entropy,
// use prediction - target directly. Every other pairing scales the residual
// by the activation derivative at z.
func OutputDelta(act activation.Activator, loss Loss, pred, target, z []float64, exact bool) []float64 {
	delta := make([]float64, len(pred))
	floats.SubTo(delta, pred, target)
	switch {
	case act.Kind() == activation.Sigmoid && loss == BinaryCrossentropy:
		return delta
	case act.Kind() == activation.Softmax && loss == CategoricalCrossentropy:
		return delta
	}
	for i := range delta {
		delta[i] *= derivative(act, z[i], exact)
	}
	return delta
}

func derivative(act activation.Activator, z float64, exact bool) float64 {
	if exact {
		return act.ExactDerivative(z)
	}
	return act.Derivative(z)
}

func (t *Trainer) anomaly(sample int, loss float64) error {
	if t.cfg.StrictNumerics {
		return fmt.Errorf("%w: sample %d produced loss %v", nn.ErrNumericAnomaly, sample, loss)
	}
	t.logger.Printf("numeric anomaly: sample %d produced loss %v, skipped", sample, loss)
	return nil
}

// pause runs the Yield hook and then waits EpochDelay, returning early if ctx
// is done.
func (t *Trainer) pause(ctx context.Context) error {
	if t.cfg.Yield != nil {
		if err := t.cfg.Yield(ctx); err != nil {
			return err
		}
	}
	if t.cfg.EpochDelay <= 0 {
		return nil
	}
	timer := time.NewTimer(t.cfg.EpochDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// shuffle is an in-place Fisher-Yates permutation.
func (t *Trainer) shuffle(idx []int) {
	for i := len(idx) - 1; i > 0; i-- {
		j := t.rng.Intn(i + 1)
		idx[i], idx[j] = idx[j], idx[i]
	}
}

func (t *Trainer) zeroGrads() ([]*mat.Dense, [][]float64) {
	weights, biases := t.net.Weights(), t.net.Biases()
	gw := make([]*mat.Dense, len(weights))
	gb := make([][]float64, len(biases))
	for l, w := range weights {
		r, c := w.Dims()
		gw[l] = tensor.Zeros(r, c)
		gb[l] = make([]float64, len(biases[l]))
	}
	return gw, gb
}

func (t *Trainer) checkData(features, labels [][]float64, name string) error {
	if len(features) == 0 || len(labels) == 0 {
		return fmt.Errorf("%w: %s set is empty", nn.ErrInvalidInput, name)
	}
	if len(features) != len(labels) {
		return fmt.Errorf("%w: %s set has %d feature rows and %d labels",
			nn.ErrInvalidInput, name, len(features), len(labels))
	}
	in, out := t.net.InputUnits(), t.net.OutputUnits()
	for i := range features {
		if len(features[i]) != in {
			return fmt.Errorf("%w: %s sample %d has %d features, want %d",
				nn.ErrShapeMismatch, name, i, len(features[i]), in)
		}
		if len(labels[i]) != out {
			return fmt.Errorf("%w: %s label %d has %d values, want %d",
				nn.ErrShapeMismatch, name, i, len(labels[i]), out)
		}
	}
	return nil
}

func (t *Trainer) logEpoch(rec EpochRecord) {
	if rec.ValLoss != nil {
		t.logger.Printf("epoch %d/%d loss=%.6f acc=%.4f val_loss=%.6f val_acc=%.4f",
			rec.Epoch, t.cfg.Epochs, rec.Loss, rec.Accuracy, *rec.ValLoss, *rec.ValAccuracy)
		return
	}
	t.logger.Printf("epoch %d/%d loss=%.6f acc=%.4f", rec.Epoch, t.cfg.Epochs, rec.Loss, rec.Accuracy)
}

func meanOrNaN(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	return stat.Mean(xs, nil)
}
