// Package bridge carries training, prediction and model-transfer requests
// between a host process and the core over a gob stream.
package bridge

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io"

	"tabnet/nn"
	"tabnet/train"
)

func init() {
	// Register types for gob encoding
	gob.Register(TrainRequest{})
	gob.Register(train.EpochRecord{})
	gob.Register(train.History{})
	gob.Register(PredictRequest{})
	gob.Register(Prediction{})
	gob.Register(nn.SavedModel{})
}

// MessageType defines message types of the bridge protocol
type MessageType int

const (
	MsgTrain MessageType = iota
	MsgEpoch
	MsgHistory
	MsgPredict
	MsgPrediction
	MsgSave
	MsgModel
	MsgDone
	MsgError
)

var typeNames = [...]string{"train", "epoch", "history", "predict", "prediction", "save", "model", "done", "error"}

func (t MessageType) String() string {
	if t < 0 || int(t) >= len(typeNames) {
		return fmt.Sprintf("MessageType(%d)", int(t))
	}
	return typeNames[t]
}

// ErrUnexpected is returned when the peer answers with the wrong message type.
var ErrUnexpected = errors.New("unexpected message")

// RemoteError is an error reported by the peer.
type RemoteError struct {
	Msg string
}

func (e *RemoteError) Error() string { return "remote error: " + e.Msg }

// Message represents a message in the bridge protocol
type Message struct {
	Type    MessageType
	Payload interface{}
}

// TrainRequest asks the server to build a fresh network from Model and train
// it. Zero hyperparameters take the trainer defaults.
type TrainRequest struct {
	Model nn.ModelConfig
	Seed  uint64

	Features    [][]float64
	Labels      [][]float64
	ValFeatures [][]float64
	ValLabels   [][]float64

	Epochs           int
	BatchSize        int
	LearningRate     float64
	EarlyStopping    bool
	Patience         int
	StrictNumerics   bool
	ExactDerivatives bool
}

// PredictRequest carries one or more samples.
type PredictRequest struct {
	Samples [][]float64
}

// Prediction holds one output vector per requested sample.
type Prediction struct {
	Outputs [][]float64
}

// Protocol handles bridge communication
type Protocol struct {
	encoder *gob.Encoder
	decoder *gob.Decoder
}

// NewProtocol creates a new protocol handler
func NewProtocol(r io.Reader, w io.Writer) *Protocol {
	p := &Protocol{}
	if w != nil {
		p.encoder = gob.NewEncoder(w)
	}
	if r != nil {
		p.decoder = gob.NewDecoder(r)
	}
	return p
}

// Send sends a message
func (p *Protocol) Send(msg *Message) error {
	return p.encoder.Encode(msg)
}

// Receive receives a message
func (p *Protocol) Receive() (*Message, error) {
	var msg Message
	if err := p.decoder.Decode(&msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// SendDone signals completion
func (p *Protocol) SendDone() error {
	return p.Send(&Message{Type: MsgDone})
}

// SendError sends an error message
func (p *Protocol) SendError(err error) error {
	return p.Send(&Message{
		Type:    MsgError,
		Payload: err.Error(),
	})
}

// expect receives the next message and checks its type. MsgError becomes a
// *RemoteError and MsgDone becomes io.EOF unless MsgDone is wanted.
func (p *Protocol) expect(want ...MessageType) (*Message, error) {
	msg, err := p.Receive()
	if err != nil {
		return nil, err
	}
	for _, w := range want {
		if msg.Type == w {
			return msg, nil
		}
	}
	switch msg.Type {
	case MsgError:
		return nil, &RemoteError{Msg: fmt.Sprint(msg.Payload)}
	case MsgDone:
		return nil, io.EOF
	}
	return nil, fmt.Errorf("%w: got %s, want %v", ErrUnexpected, msg.Type, want)
}
