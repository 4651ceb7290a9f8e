package commands

import "encoding/json"

// jsonCodec mirrors internal/server's own codec so the client negotiates
// the same "application/json" content type; it cannot import the
// unexported server.jsonCodec directly.
type jsonCodec struct{}

func (jsonCodec) Name() string                      { return "json" }
func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
