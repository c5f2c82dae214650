package broker

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// codecName selects the JSON content-subtype for the Subscribe stream.
// Unlike the teacher's protobuf-generated LLM service, the broker wire
// contract here has no .proto source to compile against, so messages are
// exchanged as JSON over the same gRPC transport and framing instead of
// gRPC's default protobuf codec.
const codecName = "json"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v interface{}) error { return json.Unmarshal(data, v) }

func (jsonCodec) Name() string { return codecName }
