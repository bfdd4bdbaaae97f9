// Package codec serializes structured response bodies into a textual wire format.
package codec

import (
	"encoding/json"
)

// Codec marshals a structured body value.
type Codec interface {
	// ContentType is the media type of the marshaled payload.
	ContentType() string

	// Marshal serializes v. It returns an error when v cannot be represented.
	Marshal(v any) ([]byte, error)
}

// JSONCodec is a codec that uses encoding/json.
type JSONCodec struct {
	// Indent, when non-empty, pretty-prints the output with this indent.
	Indent string
}

// ContentType implements Codec.
func (c *JSONCodec) ContentType() string {
	return "application/json; charset=utf-8"
}

// Marshal implements Codec.
func (c *JSONCodec) Marshal(v any) ([]byte, error) {
	if c.Indent != "" {
		return json.MarshalIndent(v, "", c.Indent)
	}
	return json.Marshal(v)
}

// NewJSONCodec creates a new JSONCodec instance.
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{}
}
