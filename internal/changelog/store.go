package changelog

import (
	"context"
	"errors"
)

// ErrNotFound indicates no record exists for the requested key.
var ErrNotFound = errors.New("changelog: record not found")

// Store is the persistence contract for ChangeLog, UIDMapping, and Nonce
// records (spec §4.4). All three logical tables -- change_logs, id_maps,
// nonces -- are exposed through one Store so that a session's end-of-session
// save can be performed as a single transaction (spec §4.4: "All writes for
// a session are performed inside one transaction").
//
// Implementations must serialize concurrent access to the same backing file
// (spec §5: "a per-file lock around ChangeLog save/remove").
type Store interface {
	// Load returns the ChangeLog record (including mappings) for key, or
	// ErrNotFound if no row exists.
	Load(ctx context.Context, key Key) (Record, error)

	// Save upserts the ChangeLog record and rewrites all mapping rows for
	// its key in one transaction (spec §4.4: "An upsert replaces any prior
	// row" / "all rows ... are rewritten on each save").
	Save(ctx context.Context, rec Record) error

	// SaveAll upserts every record in one transaction: all or none are
	// written (spec §4.4 "all writes for a session are performed inside one
	// transaction at the end of the session; failure rolls back, leaving
	// prior anchors untouched"). Used by a session's end-of-session commit
	// of every target's anchors, where Save looping per-target would leave
	// earlier targets persisted if a later one failed.
	SaveAll(ctx context.Context, recs []Record) error

	// Remove deletes the ChangeLog record and its mappings for key. Used
	// when the profile backing this composite key is destroyed (spec §3).
	Remove(ctx context.Context, key Key) error

	// LoadNonce returns the stored nonce for key, or ErrNotFound.
	LoadNonce(ctx context.Context, key NonceKey) (NonceRecord, error)

	// SaveNonce overwrites the nonce for key (spec §3: "Overwritten whenever
	// a peer supplies a Next-Nonce").
	SaveNonce(ctx context.Context, rec NonceRecord) error

	// ClearNonce removes the stored nonce, used on successful MD5
	// authentication before any fresh next-nonce is stored (spec §4.5).
	ClearNonce(ctx context.Context, key NonceKey) error

	// Close releases the underlying backing file.
	Close() error
}
