package utils

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"tabnet/nn"
)

// Format selects the on-disk encoding of a saved model.
type Format int

const (
	// FormatJSON is the interchange format produced by Network.Save.
	FormatJSON Format = iota
	// FormatProto wraps the same document in a protobuf Struct.
	FormatProto
)

// FormatFor picks the encoding from the file extension: ".pb" is protobuf,
// anything else JSON.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pb", ".protobuf":
		return FormatProto
	default:
		return FormatJSON
	}
}

// SaveModel writes the network's snapshot to path.
func SaveModel(path string, net *nn.Network) error {
	data, err := EncodeModel(net.Save(), FormatFor(path))
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// LoadModel reads a snapshot from path and rebuilds the network.
func LoadModel(path string) (*nn.Network, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model file: %w", err)
	}
	saved, err := DecodeModel(data, FormatFor(path))
	if err != nil {
		return nil, err
	}
	return nn.Load(saved)
}

// EncodeModel serializes a snapshot.
func EncodeModel(s *nn.SavedModel, format Format) ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal model: %w", err)
	}
	if format == FormatJSON {
		return data, nil
	}

	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to convert model: %w", err)
	}
	st, err := structpb.NewStruct(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to build model struct: %w", err)
	}
	out, err := proto.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal model proto: %w", err)
	}
	return out, nil
}

// DecodeModel parses a snapshot written by EncodeModel.
func DecodeModel(data []byte, format Format) (*nn.SavedModel, error) {
	if format == FormatProto {
		var st structpb.Struct
		if err := proto.Unmarshal(data, &st); err != nil {
			return nil, fmt.Errorf("failed to unmarshal model proto: %w", err)
		}
		var err error
		data, err = json.Marshal(st.AsMap())
		if err != nil {
			return nil, fmt.Errorf("failed to convert model: %w", err)
		}
	}
	var saved nn.SavedModel
	if err := json.Unmarshal(data, &saved); err != nil {
		return nil, fmt.Errorf("failed to unmarshal model: %w", err)
	}
	return &saved, nil
}
