package codec

import (
	"google.golang.org/protobuf/proto"
)

var (
	defaultJSON  = NewJSONCodec()
	defaultProto = NewProtoJSONCodec()
)

// For picks the codec for a structured value: protobuf messages use the
// protobuf JSON mapping, everything else plain encoding/json.
func For(v any) Codec {
	if _, ok := v.(proto.Message); ok {
		return defaultProto
	}
	return defaultJSON
}

// Marshal serializes v with the codec chosen by For.
func Marshal(v any) ([]byte, string, error) {
	c := For(v)
	b, err := c.Marshal(v)
	if err != nil {
		return nil, "", err
	}
	return b, c.ContentType(), nil
}
