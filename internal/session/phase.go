// Package session implements the Session State Machine (spec §4.1): the
// phased protocol exchange for either client or server role, command
// dispatch via CommandProcessor, the outbound package queue, and resend.
//
// Grounded structurally on the teacher's internal/bfd/fsm.go: a pure
// function over a lookup table, no side effects, auditable independent of
// Session. Unlike BFD's reception-triggered event table, OMA DS's narrative
// (spec §4.1) describes two linear role-specific paths rather than a shared
// event alphabet, so the table here is keyed by (Role, Phase) and answers
// "what comes next", with abort/error transitions handled as a separate
// pure function reachable from any non-terminal phase (spec.md §9 Design
// Note: "one state machine parameterised by role").
package session

import "github.com/go-omads/omads/internal/command"

// Phase is a Session State Machine phase (spec §4.1 "States").
type Phase uint8

const (
	PhaseNotPrepared Phase = iota
	PhasePrepared
	PhaseLocalInit
	PhaseRemoteInit
	PhaseSendingItems
	PhaseReceivingItems
	PhaseSendingMappings
	PhaseReceivingMappings
	PhaseFinalizing
	PhaseSyncFinished

	// Terminal error states (spec §4.1 "Terminal error states").
	PhaseAuthFailed
	PhaseConnectionError
	PhaseInvalidMessage
	PhaseDatabaseFailure
	PhaseAborted
	PhaseUnsupportedProtocol
)

// String returns the phase's SyncML-conventional name.
func (p Phase) String() string {
	switch p {
	case PhaseNotPrepared:
		return "NOT_PREPARED"
	case PhasePrepared:
		return "PREPARED"
	case PhaseLocalInit:
		return "LOCAL_INIT"
	case PhaseRemoteInit:
		return "REMOTE_INIT"
	case PhaseSendingItems:
		return "SENDING_ITEMS"
	case PhaseReceivingItems:
		return "RECEIVING_ITEMS"
	case PhaseSendingMappings:
		return "SENDING_MAPPINGS"
	case PhaseReceivingMappings:
		return "RECEIVING_MAPPINGS"
	case PhaseFinalizing:
		return "FINALIZING"
	case PhaseSyncFinished:
		return "SYNC_FINISHED"
	case PhaseAuthFailed:
		return "AUTH_FAILED"
	case PhaseConnectionError:
		return "CONNECTION_ERROR"
	case PhaseInvalidMessage:
		return "INVALID_SYNCML_MESSAGE"
	case PhaseDatabaseFailure:
		return "DATABASE_FAILURE"
	case PhaseAborted:
		return "ABORTED"
	case PhaseUnsupportedProtocol:
		return "UNSUPPORTED_PROTOCOL"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether p ends the session (success or error).
func (p Phase) Terminal() bool {
	return p == PhaseSyncFinished || p.IsError()
}

// IsError reports whether p is one of the six terminal error states.
func (p Phase) IsError() bool {
	switch p {
	case PhaseAuthFailed, PhaseConnectionError, PhaseInvalidMessage,
		PhaseDatabaseFailure, PhaseAborted, PhaseUnsupportedProtocol:
		return true
	default:
		return false
	}
}

// stateKey is the transition table key: role + current phase.
type stateKey struct {
	role  command.Role
	phase Phase
}

// advanceTable answers "what phase comes next" for the two linear,
// role-specific paths narrated in spec §4.1.
//
//nolint:gochecknoglobals // transition table is intentionally package-level, mirrors bfd.fsmTable.
var advanceTable = map[stateKey]Phase{
	{command.RoleClient, PhasePrepared}:        PhaseLocalInit,
	{command.RoleClient, PhaseLocalInit}:       PhaseSendingItems,
	{command.RoleClient, PhaseSendingItems}:    PhaseReceivingItems,
	{command.RoleClient, PhaseReceivingItems}:  PhaseSendingMappings,
	{command.RoleClient, PhaseSendingMappings}: PhaseFinalizing,
	{command.RoleClient, PhaseFinalizing}:      PhaseSyncFinished,

	{command.RoleServer, PhasePrepared}:          PhaseRemoteInit,
	{command.RoleServer, PhaseRemoteInit}:        PhaseLocalInit,
	{command.RoleServer, PhaseLocalInit}:         PhaseReceivingItems,
	{command.RoleServer, PhaseReceivingItems}:    PhaseSendingItems,
	{command.RoleServer, PhaseSendingItems}:      PhaseReceivingMappings,
	{command.RoleServer, PhaseReceivingMappings}: PhaseFinalizing,
	{command.RoleServer, PhaseFinalizing}:        PhaseSyncFinished,
}

// Advance returns the next phase for role from current, and whether a
// transition was defined.
func Advance(role command.Role, current Phase) (Phase, bool) {
	next, ok := advanceTable[stateKey{role, current}]
	return next, ok
}

// Shortcut implements the "sync-without-separate-initialization" collapse
// (spec §4.1): when the incoming header carries a Sync element in the same
// message, a server-role machine in REMOTE_INIT jumps straight to
// RECEIVING_ITEMS.
func Shortcut(role command.Role, current Phase) (Phase, bool) {
	if role == command.RoleServer && current == PhaseRemoteInit {
		return PhaseReceivingItems, true
	}
	return current, false
}

// Abort transitions any non-terminal phase to ABORTED (spec §4.1
// "Cancellation: abort can be requested at any time").
func Abort(current Phase) Phase {
	if current.Terminal() {
		return current
	}
	return PhaseAborted
}
