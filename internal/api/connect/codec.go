// Package connect provides the player's Connect RPC control service.
package connect

import (
	"encoding/json"

	"connectrpc.com/connect"
)

// jsonCodec encodes plain Go structs as JSON. It replaces connect's
// protobuf-only "json" codec on both the handler and the client side.
type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// WithJSON configures a handler or client to speak JSON.
func WithJSON() connect.Option {
	return connect.WithCodec(jsonCodec{})
}
