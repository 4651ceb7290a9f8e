package server

import "encoding/json"

// jsonCodec is a connect.Codec that marshals plain Go structs with
// encoding/json instead of protobuf reflection. The admin/control plane
// has no .proto sources and no protoc step (spec §6); this keeps ConnectRPC
// as the transport/framing layer while the message types stay ordinary Go
// structs, matching the "JSON over HTTP" the teacher's bfdv1connect consumers
// also support as a secondary codec, but here it is the only one.
type jsonCodec struct{}

// Name returns "json", which becomes the "application/json" content type
// ConnectRPC negotiates for this service.
func (jsonCodec) Name() string { return "json" }

// Marshal encodes v with encoding/json.
func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Unmarshal decodes data into v with encoding/json.
func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}
