package wire

import "context"

// Message is one parsed SyncML message: a header plus an ordered sequence
// of body commands (spec §3 "Command context", §4.1 "consumes fragments in
// message order").
type Message struct {
	Header   Header
	Commands []Command
	Final    bool
}

// ContentType names the wire encoding a Message was parsed from or will be
// serialized to (spec §6 "the wire form is either XML... or WbXML...").
type ContentType string

const (
	ContentTypeXML   ContentType = "application/vnd.syncml+xml"
	ContentTypeWBXML ContentType = "application/vnd.syncml+wbxml"
	ContentTypeDevInf ContentType = "application/vnd.syncml-devinf+xml"
)

// Parser decodes a wire payload into a Message. Implementations are the
// external codec collaborator (spec §1 "Out of scope... the XML/WbXML codec
// (parse and serialize adapters only)").
type Parser interface {
	Parse(ctx context.Context, contentType ContentType, payload []byte) (Message, error)
}

// Encoder serializes a Message to a wire payload in contentType.
type Encoder interface {
	Encode(ctx context.Context, contentType ContentType, msg Message) ([]byte, error)
}

// Codec combines Parser and Encoder, the shape a session actually depends
// on.
type Codec interface {
	Parser
	Encoder
}
