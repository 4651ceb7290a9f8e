package transport

import (
	"context"

	"github.com/go-omads/omads/internal/wire"
)

// Loopback is an in-memory Transport that delivers everything sent on one
// end as an Event on its peer's channel. Used by tests that wire a client
// Session directly to a server Session without a real wire carrier (spec §6
// "in-memory reference transport").
type Loopback struct {
	peer   *Loopback
	events chan Event
	closed bool
}

// NewLoopbackPair returns two connected Loopback ends. Sending on one
// delivers an Event on the other.
func NewLoopbackPair() (client, server *Loopback) {
	a := &Loopback{events: make(chan Event, 8)}
	b := &Loopback{events: make(chan Event, 8)}
	a.peer = b
	b.peer = a
	return a, b
}

// Init is a no-op for Loopback; there is nothing to dial or bind.
func (l *Loopback) Init(ctx context.Context) error { return nil }

// Send delivers payload to the peer's event channel as an EventMessage.
func (l *Loopback) Send(ctx context.Context, contentType wire.ContentType, payload []byte) error {
	if l.closed {
		return ErrClosed
	}
	evt := Event{Kind: EventMessage, ContentType: contentType, Payload: append([]byte(nil), payload...)}
	select {
	case l.peer.events <- evt:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Events returns the channel this end's incoming Events are delivered on.
func (l *Loopback) Events() <-chan Event {
	return l.events
}

// Close marks this end closed and, best-effort, notifies the peer.
func (l *Loopback) Close() error {
	if l.closed {
		return nil
	}
	l.closed = true
	select {
	case l.peer.events <- Event{Kind: EventClosed}:
	default:
	}
	close(l.events)
	return nil
}
