package bridge

import (
	"fmt"
	"io"

	"tabnet/nn"
	"tabnet/train"
)

// Client drives a Server over a Protocol. It is not safe for concurrent use.
type Client struct {
	proto *Protocol
}

// NewClient creates a client writing requests to w and reading replies from r.
func NewClient(r io.Reader, w io.Writer) *Client {
	return &Client{proto: NewProtocol(r, w)}
}

// Train sends req and calls onEpoch for every streamed epoch record.
func (c *Client) Train(req TrainRequest, onEpoch func(train.EpochRecord)) (*train.History, error) {
	if err := c.proto.Send(&Message{Type: MsgTrain, Payload: req}); err != nil {
		return nil, fmt.Errorf("send train request: %w", err)
	}
	for {
		msg, err := c.proto.expect(MsgEpoch, MsgHistory)
		if err != nil {
			return nil, err
		}
		switch p := msg.Payload.(type) {
		case train.EpochRecord:
			if onEpoch != nil {
				onEpoch(p)
			}
		case train.History:
			return &p, nil
		default:
			return nil, fmt.Errorf("invalid %s payload type %T", msg.Type, msg.Payload)
		}
	}
}

// Predict runs inference on the server's current network.
func (c *Client) Predict(samples [][]float64) ([][]float64, error) {
	if err := c.proto.Send(&Message{Type: MsgPredict, Payload: PredictRequest{Samples: samples}}); err != nil {
		return nil, fmt.Errorf("send predict request: %w", err)
	}
	msg, err := c.proto.expect(MsgPrediction)
	if err != nil {
		return nil, err
	}
	p, ok := msg.Payload.(Prediction)
	if !ok {
		return nil, fmt.Errorf("invalid prediction payload type %T", msg.Payload)
	}
	return p.Outputs, nil
}

// Save fetches a snapshot of the server's current network.
func (c *Client) Save() (*nn.SavedModel, error) {
	if err := c.proto.Send(&Message{Type: MsgSave}); err != nil {
		return nil, fmt.Errorf("send save request: %w", err)
	}
	msg, err := c.proto.expect(MsgModel)
	if err != nil {
		return nil, err
	}
	s, ok := msg.Payload.(nn.SavedModel)
	if !ok {
		return nil, fmt.Errorf("invalid model payload type %T", msg.Payload)
	}
	return &s, nil
}

// Load installs a snapshot as the server's current network.
func (c *Client) Load(s *nn.SavedModel) error {
	if err := c.proto.Send(&Message{Type: MsgModel, Payload: *s}); err != nil {
		return fmt.Errorf("send model: %w", err)
	}
	_, err := c.proto.expect(MsgDone)
	return err
}

// Close ends the session and waits for the server's acknowledgement.
func (c *Client) Close() error {
	if err := c.proto.SendDone(); err != nil {
		return err
	}
	_, err := c.proto.expect(MsgDone)
	return err
}
