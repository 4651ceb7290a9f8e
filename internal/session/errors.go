package session

import "errors"

// ErrorKind classifies a fatal session error for the purpose of choosing a
// terminal phase (spec §4.1 "Terminal error states", spec §7 recovery
// table).
type ErrorKind uint8

const (
	// ErrorKindProtocol covers malformed or out-of-sequence protocol usage
	// that is recoverable at the message level and does not terminate the
	// session (spec §7 "ProtocolError": reported via Status, no phase
	// change).
	ErrorKindProtocol ErrorKind = iota

	ErrorKindAuth
	ErrorKindTransport
	ErrorKindCodec
	ErrorKindPersistence
	ErrorKindUnsupportedProtocol
)

// Sentinel errors a caller of Session can check with errors.Is.
var (
	// ErrAborted indicates the session was abandoned by explicit request
	// (spec §4.1 "Cancellation").
	ErrAborted = errors.New("session: aborted")

	// ErrUnsupportedProtocol indicates the peer's VerDTD/VerProto is not
	// one this session supports (spec §4.1 "UNSUPPORTED_PROTOCOL").
	ErrUnsupportedProtocol = errors.New("session: unsupported protocol version")
)

// terminalPhase maps an ErrorKind to the terminal phase the state machine
// must enter (spec §4.1 terminal error states, spec §7 recovery table).
func terminalPhase(kind ErrorKind) (Phase, bool) {
	switch kind {
	case ErrorKindAuth:
		return PhaseAuthFailed, true
	case ErrorKindTransport:
		return PhaseConnectionError, true
	case ErrorKindCodec:
		return PhaseInvalidMessage, true
	case ErrorKindPersistence:
		return PhaseDatabaseFailure, true
	case ErrorKindUnsupportedProtocol:
		return PhaseUnsupportedProtocol, true
	default:
		return PhaseNotPrepared, false
	}
}
