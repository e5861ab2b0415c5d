package bridge

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"tabnet/activation"
	"tabnet/nn"
	"tabnet/train"
)

func TestProtocolRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	writer := NewProtocol(nil, &buf)

	req := TrainRequest{
		Model: nn.ConfigFromLayers([]nn.LayerSpec{
			{Units: 2},
			{Units: 3, Activation: activation.SELU},
			{Units: 1, Activation: activation.Sigmoid},
		}),
		Seed:      9,
		Features:  [][]float64{{0, 1}, {1, 0}},
		Labels:    [][]float64{{1}, {0}},
		Epochs:    4,
		BatchSize: 2,
	}
	if err := writer.Send(&Message{Type: MsgTrain, Payload: req}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	reader := NewProtocol(&buf, nil)
	msg, err := reader.Receive()
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	if msg.Type != MsgTrain {
		t.Fatalf("Type = %s, want train", msg.Type)
	}
	got, ok := msg.Payload.(TrainRequest)
	if !ok {
		t.Fatalf("payload type %T", msg.Payload)
	}
	if got.Seed != 9 || got.Epochs != 4 || got.BatchSize != 2 {
		t.Errorf("scalar fields mismatch: %+v", got)
	}
	if got.Model.Architecture.HiddenLayers[0].Activation != activation.SELU {
		t.Errorf("hidden activation = %v, want selu", got.Model.Architecture.HiddenLayers[0].Activation)
	}
	if got.Labels[0][0] != 1 || got.Features[1][0] != 1 {
		t.Errorf("data mismatch: %v %v", got.Features, got.Labels)
	}
}

func TestProtocolEpochRecord(t *testing.T) {
	var buf bytes.Buffer
	writer := NewProtocol(nil, &buf)

	vl, va := 0.25, 0.75
	rec := train.EpochRecord{Epoch: 3, Loss: 0.5, Accuracy: 0.5, ValLoss: &vl, ValAccuracy: &va}
	if err := writer.Send(&Message{Type: MsgEpoch, Payload: rec}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	reader := NewProtocol(&buf, nil)
	msg, err := reader.expect(MsgEpoch)
	if err != nil {
		t.Fatalf("expect failed: %v", err)
	}
	got := msg.Payload.(train.EpochRecord)
	if got.Epoch != 3 || got.ValLoss == nil || *got.ValLoss != 0.25 || *got.ValAccuracy != 0.75 {
		t.Errorf("record mismatch: %+v", got)
	}
}

func TestProtocolDone(t *testing.T) {
	var buf bytes.Buffer
	writer := NewProtocol(nil, &buf)

	if err := writer.SendDone(); err != nil {
		t.Fatalf("SendDone failed: %v", err)
	}

	reader := NewProtocol(&buf, nil)
	_, err := reader.expect(MsgPrediction)
	if err != io.EOF {
		t.Errorf("Expected io.EOF after done, got %v", err)
	}
}

func TestProtocolError(t *testing.T) {
	var buf bytes.Buffer
	writer := NewProtocol(nil, &buf)

	if err := writer.SendError(errors.New("test error")); err != nil {
		t.Fatalf("SendError failed: %v", err)
	}

	reader := NewProtocol(&buf, nil)
	_, err := reader.expect(MsgPrediction)
	var remote *RemoteError
	if !errors.As(err, &remote) {
		t.Fatalf("Expected RemoteError, got %v", err)
	}
	if remote.Msg != "test error" {
		t.Errorf("Msg = %q, want %q", remote.Msg, "test error")
	}
}

func TestProtocolUnexpected(t *testing.T) {
	var buf bytes.Buffer
	writer := NewProtocol(nil, &buf)
	if err := writer.Send(&Message{Type: MsgSave}); err != nil {
		t.Fatal(err)
	}
	reader := NewProtocol(&buf, nil)
	if _, err := reader.expect(MsgModel); !errors.Is(err, ErrUnexpected) {
		t.Errorf("Expected ErrUnexpected, got %v", err)
	}
}

func TestMessageTypeString(t *testing.T) {
	if MsgHistory.String() != "history" {
		t.Errorf("MsgHistory = %q", MsgHistory.String())
	}
	if MessageType(42).String() != "MessageType(42)" {
		t.Errorf("unknown = %q", MessageType(42).String())
	}
}
