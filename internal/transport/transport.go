package transport

import (
	"context"
	"errors"

	"github.com/go-omads/omads/internal/wire"
)

// ErrClosed is returned by Send once Close has been called.
var ErrClosed = errors.New("transport: closed")

// EventKind discriminates the payload carried on an Event.
type EventKind int

const (
	// EventMessage carries a raw payload received from the peer.
	EventMessage EventKind = iota
	// EventClosed signals the peer end was closed; no further events follow.
	EventClosed
	// EventError signals a transport-level failure (spec §7 "Transport" kind).
	EventError
)

// Event is one item delivered on a Transport's event channel.
type Event struct {
	Kind        EventKind
	ContentType wire.ContentType
	Payload     []byte
	Err         error
}

// Transport carries serialized wire.Message payloads between a Session and
// its peer. A Session never parses or encodes bytes itself (spec §1
// "Out of scope... the actual network transport"); it hands the Codec's
// output to Send and feeds incoming Events back through the Codec.
//
// Implementations must support being driven by exactly one goroutine for
// Send and exactly one for draining Events, matching the session's
// single-threaded, cooperative model (spec §5).
type Transport interface {
	// Init prepares the transport (e.g. dialing, binding) before first use.
	Init(ctx context.Context) error

	// Send transmits one encoded message payload to the peer.
	Send(ctx context.Context, contentType wire.ContentType, payload []byte) error

	// Events returns the channel Events are delivered on. Closed when the
	// transport itself is closed.
	Events() <-chan Event

	// Close releases any underlying resources. Idempotent.
	Close() error
}
