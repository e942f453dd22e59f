package rpc

import (
	"fmt"

	json "github.com/goccy/go-json"
	"google.golang.org/grpc/encoding"
)

// CodecName is the gRPC content subtype carried by algohost messages.
const CodecName = "json"

// Codec encodes gRPC messages as JSON. It is registered globally so servers
// accept application/grpc+json alongside protobuf services such as health.
type Codec struct{}

func init() {
	encoding.RegisterCodec(Codec{})
}

// Name implements encoding.Codec.
func (Codec) Name() string { return CodecName }

// Marshal implements encoding.Codec.
func (Codec) Marshal(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("rpc codec marshal %T: %w", v, err)
	}
	return data, nil
}

// Unmarshal implements encoding.Codec.
func (Codec) Unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("rpc codec unmarshal %T: %w", v, err)
	}
	return nil
}
