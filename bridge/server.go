package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"tabnet/nn"
	"tabnet/train"
	"tabnet/utils"
)

// ErrNoModel is reported when a request needs a network and none is loaded.
var ErrNoModel = errors.New("no model loaded")

// Server owns at most one network and answers requests on a Protocol until
// the peer sends MsgDone or closes the stream.
type Server struct {
	proto  *Protocol
	net    *nn.Network
	logger *log.Logger
	stats  *utils.TimingStats
}

// NewServer creates a server reading requests from r and writing replies to
// w. A nil logger discards output.
func NewServer(r io.Reader, w io.Writer, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Server{proto: NewProtocol(r, w), logger: logger, stats: &utils.TimingStats{}}
}

// Network returns the currently loaded network, or nil.
func (s *Server) Network() *nn.Network { return s.net }

// Stats returns timings accumulated over every training request.
func (s *Server) Stats() *utils.TimingStats { return s.stats }

// Serve handles requests until MsgDone, EOF or ctx is done. Request failures
// are reported to the peer as MsgError and do not end the session.
func (s *Server) Serve(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg, err := s.proto.Receive()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("receive: %w", err)
		}
		if msg.Type == MsgDone {
			s.logger.Printf("peer done")
			return s.proto.SendDone()
		}

		if err := s.handle(ctx, msg); err != nil {
			s.logger.Printf("%s request failed: %v", msg.Type, err)
			if sendErr := s.proto.SendError(err); sendErr != nil {
				return fmt.Errorf("send error reply: %w", sendErr)
			}
		}
	}
}

func (s *Server) handle(ctx context.Context, msg *Message) error {
	switch msg.Type {
	case MsgTrain:
		req, ok := msg.Payload.(TrainRequest)
		if !ok {
			return fmt.Errorf("invalid train payload type %T", msg.Payload)
		}
		return s.train(ctx, req)

	case MsgPredict:
		req, ok := msg.Payload.(PredictRequest)
		if !ok {
			return fmt.Errorf("invalid predict payload type %T", msg.Payload)
		}
		if s.net == nil {
			return ErrNoModel
		}
		out, err := s.net.PredictBatch(req.Samples)
		if err != nil {
			return err
		}
		return s.proto.Send(&Message{Type: MsgPrediction, Payload: Prediction{Outputs: out}})

	case MsgSave:
		if s.net == nil {
			return ErrNoModel
		}
		return s.proto.Send(&Message{Type: MsgModel, Payload: *s.net.Save()})

	case MsgModel:
		saved, ok := msg.Payload.(nn.SavedModel)
		if !ok {
			return fmt.Errorf("invalid model payload type %T", msg.Payload)
		}
		net, err := nn.Load(&saved)
		if err != nil {
			return err
		}
		s.net = net
		s.logger.Printf("model loaded: %s", utils.FormatArchitecture(specsOf(net)))
		return s.proto.SendDone()
	}
	return fmt.Errorf("%w: cannot handle %s", ErrUnexpected, msg.Type)
}

// train builds a fresh network and streams one MsgEpoch per epoch followed by
// MsgHistory. The previous network is kept if construction fails.
func (s *Server) train(ctx context.Context, req TrainRequest) error {
	var opts []nn.Option
	if req.Seed != 0 {
		opts = append(opts, nn.WithSeed(req.Seed))
	}
	net, err := nn.New(req.Model, opts...)
	if err != nil {
		return err
	}

	cfg := train.Config{
		Epochs:           req.Epochs,
		BatchSize:        req.BatchSize,
		LearningRate:     req.LearningRate,
		EarlyStopping:    req.EarlyStopping,
		Patience:         req.Patience,
		StrictNumerics:   req.StrictNumerics,
		ExactDerivatives: req.ExactDerivatives,
		Seed:             req.Seed,
		Logger:           s.logger,
		Stats:            s.stats,
		OnEpochEnd: func(_ context.Context, rec train.EpochRecord) error {
			return s.proto.Send(&Message{Type: MsgEpoch, Payload: rec})
		},
	}
	hist, err := train.Fit(ctx, net, cfg, req.Features, req.Labels, req.ValFeatures, req.ValLabels)
	if err != nil && hist == nil {
		return err
	}
	s.net = net
	if err != nil {
		return err
	}
	return s.proto.Send(&Message{Type: MsgHistory, Payload: *hist})
}

func specsOf(net *nn.Network) []nn.LayerSpec {
	layers := net.Layers()
	specs := make([]nn.LayerSpec, len(layers))
	for i, l := range layers {
		specs[i] = nn.LayerSpec{Units: l.Units, Activation: l.Activation}
	}
	return specs
}
