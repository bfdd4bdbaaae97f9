package codec

import (
	"errors"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

// protoMarshal is a variable so tests can substitute a failing marshaler.
var protoMarshal = protojson.Marshal

// ErrNotProtoMessage is returned by ProtoJSONCodec for values that are not
// protobuf messages.
var ErrNotProtoMessage = errors.New("value does not implement proto.Message")

// ProtoJSONCodec renders protobuf messages with the canonical protobuf JSON mapping.
type ProtoJSONCodec struct{}

// ContentType implements Codec.
func (c *ProtoJSONCodec) ContentType() string {
	return "application/json; charset=utf-8"
}

// Marshal implements Codec.
func (c *ProtoJSONCodec) Marshal(v any) ([]byte, error) {
	msg, ok := v.(proto.Message)
	if !ok {
		return nil, ErrNotProtoMessage
	}
	return protoMarshal(msg)
}

// NewProtoJSONCodec creates a new ProtoJSONCodec instance.
func NewProtoJSONCodec() *ProtoJSONCodec {
	return &ProtoJSONCodec{}
}
