package bridge

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tabnet/activation"
	"tabnet/nn"
	"tabnet/train"
)

// session wires a client to a server over in-memory pipes.
func session(t *testing.T) (*Client, *Server, <-chan error) {
	t.Helper()
	reqR, reqW := io.Pipe()
	respR, respW := io.Pipe()
	srv := NewServer(reqR, respW, nil)
	done := make(chan error, 1)
	go func() {
		err := srv.Serve(context.Background())
		respW.Close()
		done <- err
	}()
	t.Cleanup(func() { reqW.Close() })
	return NewClient(respR, reqW), srv, done
}

func xorRequest() TrainRequest {
	cfg := nn.ConfigFromLayers([]nn.LayerSpec{
		{Units: 2},
		{Units: 4, Activation: activation.Tanh},
		{Units: 1, Activation: activation.Sigmoid},
	})
	cfg.TrainingConfig.Loss = "binaryCrossentropy"
	return TrainRequest{
		Model:       cfg,
		Seed:        3,
		Features:    [][]float64{{0, 0}, {0, 1}, {1, 0}, {1, 1}},
		Labels:      [][]float64{{0}, {1}, {1}, {0}},
		ValFeatures: [][]float64{{0, 1}},
		ValLabels:   [][]float64{{1}},
		Epochs:      5,
		BatchSize:   2,
	}
}

func TestServerTrainPredictSave(t *testing.T) {
	client, srv, done := session(t)

	var epochs []train.EpochRecord
	hist, err := client.Train(xorRequest(), func(rec train.EpochRecord) { epochs = append(epochs, rec) })
	require.NoError(t, err)
	require.Len(t, epochs, 5)
	require.Equal(t, 5, hist.Len())
	for i, rec := range epochs {
		assert.Equal(t, i+1, rec.Epoch)
		assert.Equal(t, hist.Records[i].Loss, rec.Loss)
		require.NotNil(t, rec.ValLoss)
	}
	require.NotNil(t, srv.Network())

	samples := [][]float64{{1, 2}, {3, 4}}
	preds, err := client.Predict(samples)
	require.NoError(t, err)
	require.Len(t, preds, 2)
	for _, p := range preds {
		require.Len(t, p, 1)
	}

	saved, err := client.Save()
	require.NoError(t, err)
	local, err := nn.Load(saved)
	require.NoError(t, err)
	want, err := local.PredictBatch(samples)
	require.NoError(t, err)
	require.Equal(t, want, preds)

	require.NoError(t, client.Close())
	require.NoError(t, <-done)
}

func TestServerReportsErrorsAndContinues(t *testing.T) {
	client, _, done := session(t)

	_, err := client.Predict([][]float64{{1, 2}})
	var remote *RemoteError
	require.True(t, errors.As(err, &remote))
	assert.Contains(t, remote.Msg, ErrNoModel.Error())

	bad := xorRequest()
	bad.Labels = bad.Labels[:2]
	_, err = client.Train(bad, nil)
	require.True(t, errors.As(err, &remote))
	assert.Contains(t, remote.Msg, "training set has 4 feature rows and 2 labels")

	_, err = client.Train(xorRequest(), nil)
	require.NoError(t, err)

	_, err = client.Predict([][]float64{{1, 2, 3}})
	require.True(t, errors.As(err, &remote))
	assert.Contains(t, remote.Msg, "sample 0")

	require.NoError(t, client.Close())
	require.NoError(t, <-done)
}

func TestCloseAfterFailedTrainEndsSession(t *testing.T) {
	client, srv, done := session(t)

	bad := xorRequest()
	bad.Features = nil
	_, err := client.Train(bad, func(train.EpochRecord) { t.Fatal("no epoch expected") })
	var remote *RemoteError
	require.True(t, errors.As(err, &remote))
	require.Nil(t, srv.Network())

	require.NoError(t, client.Close())
	require.NoError(t, <-done)
}

func TestServerLoadModel(t *testing.T) {
	client, srv, done := session(t)

	net, err := nn.NewFromLayers([]nn.LayerSpec{
		{Units: 3},
		{Units: 2, Activation: activation.Softmax},
	}, nn.WithSeed(8))
	require.NoError(t, err)
	require.NoError(t, client.Load(net.Save()))

	x := []float64{0.1, -0.2, 0.3}
	preds, err := client.Predict([][]float64{x})
	require.NoError(t, err)
	want, err := net.Predict(x)
	require.NoError(t, err)
	require.Equal(t, want, preds[0])
	require.Equal(t, net.Layers(), srv.Network().Layers())

	require.NoError(t, client.Close())
	require.NoError(t, <-done)
}

func TestServerStopsOnEOF(t *testing.T) {
	reqR, reqW := io.Pipe()
	srv := NewServer(reqR, io.Discard, nil)
	done := make(chan error, 1)
	go func() { done <- srv.Serve(context.Background()) }()
	require.NoError(t, reqW.Close())
	require.NoError(t, <-done)
}
