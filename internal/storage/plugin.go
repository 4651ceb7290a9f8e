// Package storage implements per-command storage-change buffering and
// commit (spec §4.3): batches inbound modifications, applies them atomically
// against a storage plugin, reconciles with local changes via conflict
// resolution, and supports large-object reassembly across messages.
package storage

import (
	"context"

	"github.com/go-omads/omads/internal/target"
)

// Item is one item command's payload: the source/target keys, parent key,
// MIME type, format, version, and payload bytes (spec §3 "Command context").
type Item struct {
	LocalKey  string
	RemoteKey string
	ParentKey string
	MIMEType  string
	Format    string
	Version   string
	Payload   []byte
}

// Plugin is the storage plugin adapter (spec §6, external collaborator):
// discovery of local modifications and application of commits are both
// delegated to it.
type Plugin interface {
	// SourceURI is the local datastore URI this plugin serves.
	SourceURI() string

	PreferredFormat() string
	SupportedFormats() []string
	MaxObjectSize() int64

	// CTCaps returns the content-type capabilities for the given protocol
	// version (spec §4.2 device-info Get/Put, §3a).
	CTCaps(version string) []target.CTCap

	// GetAll returns every item in the datastore, used for slow/refresh sync
	// (spec §4.2 scenario 2: "sends all items via get_all").
	GetAll(ctx context.Context) ([]Item, error)

	// GetModifications returns local changes since the last sync anchor,
	// used for fast sync.
	GetModifications(ctx context.Context, sinceAnchor string) (target.LocalChanges, error)

	AddItems(ctx context.Context, items []Item) ([]CommitResult, error)
	ReplaceItems(ctx context.Context, items []Item) ([]CommitResult, error)
	DeleteItems(ctx context.Context, keys []string) ([]CommitResult, error)
}

// CommitResult is the outcome of committing one buffered item (spec §4.3).
type CommitResult uint8

const (
	CommitAdded CommitResult = iota
	CommitReplaced
	CommitDeleted
	CommitDuplicate
	CommitNotDeleted
	CommitUnsupportedFormat
	CommitItemTooBig
	CommitNotEnoughSpace
	CommitGeneralError

	// CommitInitAdded, CommitInitReplaced, CommitInitDeleted are pre-commit
	// variants produced by the ConflictResolver when the local side wins a
	// conflict, before the plugin is ever consulted (spec §4.3).
	CommitInitAdded
	CommitInitReplaced
	CommitInitDeleted
)

// String returns a human-readable name, used in logs and error messages.
func (r CommitResult) String() string {
	switch r {
	case CommitAdded:
		return "added"
	case CommitReplaced:
		return "replaced"
	case CommitDeleted:
		return "deleted"
	case CommitDuplicate:
		return "duplicate"
	case CommitNotDeleted:
		return "not_deleted"
	case CommitUnsupportedFormat:
		return "unsupported_format"
	case CommitItemTooBig:
		return "item_too_big"
	case CommitNotEnoughSpace:
		return "not_enough_space"
	case CommitGeneralError:
		return "general_error"
	case CommitInitAdded:
		return "init_added"
	case CommitInitReplaced:
		return "init_replaced"
	case CommitInitDeleted:
		return "init_deleted"
	default:
		return "unknown"
	}
}

// StatusCode maps a CommitResult to the outbound SyncML Status code (spec
// §4.3 mapping table).
func (r CommitResult) StatusCode() int {
	switch r {
	case CommitAdded:
		return 201 // ITEM_ADDED
	case CommitReplaced, CommitDeleted:
		return 200 // SUCCESS
	case CommitInitAdded, CommitInitReplaced, CommitInitDeleted:
		return 208 // RESOLVED_CLIENT_WINNING: local side won a conflict (spec §4.3)
	case CommitDuplicate:
		return 418 // ALREADY_EXISTS: add-vs-add collision, local wins (spec §4.3)
	case CommitNotDeleted:
		return 211 // ITEM_NOT_DELETED
	case CommitUnsupportedFormat:
		return 415 // UNSUPPORTED_FORMAT
	case CommitItemTooBig:
		return 416 // REQUEST_ENTITY_TOO_LARGE
	case CommitNotEnoughSpace:
		return 420 // DEVICE_FULL
	default:
		return 500 // COMMAND_FAILED
	}
}
