package session

import "github.com/go-omads/omads/internal/wire"

// Outbox remembers the last outbound message of the session so it can be
// resent verbatim if the transport reports no response was received within
// its timeout (spec §4.1 "Package queue... unmodified resend on timeout").
// Deliberately unlocked: a Session is single-threaded cooperative within
// itself (spec §5), same rationale as target.Set.
type Outbox struct {
	last    *wire.Message
	lastID  int
	pending bool
}

// NewOutbox creates an empty Outbox.
func NewOutbox() *Outbox {
	return &Outbox{}
}

// Record stores msg (built for outbound message id id) as the one to resend
// on timeout, replacing whatever was recorded before.
func (o *Outbox) Record(msg wire.Message, id int) {
	m := msg
	o.last = &m
	o.lastID = id
	o.pending = true
}

// Acknowledge clears the pending resend once the peer's next inbound
// message proves the last one was received.
func (o *Outbox) Acknowledge() {
	o.pending = false
}

// Resend returns the last recorded message for an unmodified retransmit, and
// whether one is available.
func (o *Outbox) Resend() (wire.Message, int, bool) {
	if o.last == nil || !o.pending {
		return wire.Message{}, 0, false
	}
	return *o.last, o.lastID, true
}
