// Package transport defines the external collaborator a Session is driven
// over: something that can send a serialized wire.Message to the peer and
// deliver incoming ones as they arrive (spec §6 "Transport adapter").
//
// The real wire carriers (HTTP OBEX, Bluetooth OBEX push, a raw socket) are
// out of scope; this package only fixes the interface shape and ships a
// Loopback reference implementation for tests.
package transport
