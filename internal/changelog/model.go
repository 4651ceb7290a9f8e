// Package changelog persists per-target anchors, last-sync timestamps, and
// server<->client identifier maps, plus the MD5 nonce used by
// internal/auth, in a durable embedded key-value store (spec §4.4, §3).
package changelog

import (
	"time"

	"github.com/go-omads/omads/internal/target"
)

// Key identifies a ChangeLog/UIDMapping record by the composite key spec §3
// and §4.4 specify: (remote device id, source db URI, sync direction).
type Key struct {
	RemoteDevice string
	SourceDBURI  string
	Direction    target.Direction
}

// bucketKey joins the composite key with a unit separator so it can be used
// directly as a bbolt key without ambiguity, following the
// cuemby-warren BoltDB storage convention of one flat key per bucket entry.
func (k Key) bucketKey() []byte {
	return []byte(k.RemoteDevice + "\x1f" + k.SourceDBURI + "\x1f" + k.Direction.String())
}

// Record is the persisted ChangeLog entry for one (remote device, source db
// URI, direction) composite key (spec §3 "ChangeLog record", §4.4).
type Record struct {
	Key Key

	LocalAnchor  string
	RemoteAnchor string
	LastSyncTime time.Time

	Mappings []target.UIDMapping
}

// NonceKey identifies a Nonce record by (local device, remote device)
// (spec §3 "Nonce record", §4.4).
type NonceKey struct {
	LocalDevice  string
	RemoteDevice string
}

func (k NonceKey) bucketKey() []byte {
	return []byte(k.LocalDevice + "\x1f" + k.RemoteDevice)
}

// NonceRecord is the persisted MD5 nonce for a (local, remote) device pair.
type NonceRecord struct {
	Key   NonceKey
	Nonce []byte
}
