// Package command implements the Command Processor (spec §4.2): per-command
// validation, dispatch to storage and authentication, and response status
// emission. Grounded on the teacher's tagged dispatch-by-table idiom
// (bfd/fsm.go's fsmTable), generalized here from a state-transition table to
// a command-Kind-keyed handler set, and on spec.md §9 Design Note collapsing
// CommandHandler/SessionHandler/ClientSessionHandler/ServerSessionHandler
// inheritance into one processor parameterised by Role.
package command

// Status codes referenced by the Command Processor (spec §4.2, §4.5, §7).
// Commit-result codes (200/201/208/211/415/416/418/420/500) live on
// storage.CommitResult.StatusCode instead, since they are produced there.
const (
	StatusSuccess           = 200
	StatusItemAdded         = 201
	StatusChunkAccepted     = 213
	StatusAuthAccepted      = 212
	StatusInProgress        = 101
	StatusInvalidCred       = 401
	StatusNotFound          = 404
	StatusCommandNotAllowed = 405
	StatusNotSupported      = 406
	StatusMissingCred       = 407
	StatusSizeMismatch      = 424
	StatusCommandFailed     = 500
	StatusNotImplemented    = 501
	StatusProcessingError   = 506
)
