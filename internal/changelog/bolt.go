package changelog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.etcd.io/bbolt"

	"github.com/go-omads/omads/internal/target"
)

// Bucket names for the three logical tables defined in spec §4.4.
var (
	bucketChangeLogs = []byte("change_logs")
	bucketIDMaps     = []byte("id_maps")
	bucketNonces     = []byte("nonces")
)

// BoltStore implements Store on top of an embedded BoltDB (bbolt) file,
// grounded on the cuemby-warren BoltDB storage package: one bucket per
// logical table, JSON-encoded values, db.View for reads and db.Update for
// atomic writes with automatic rollback on error (spec §4.4: "failure rolls
// back, leaving prior anchors untouched").
type BoltStore struct {
	db   *bbolt.DB
	path string
	reg  *registry
	log  *slog.Logger
}

// OpenBoltStore opens (creating if necessary) a BoltStore at path.
func OpenBoltStore(path string, logger *slog.Logger) (*BoltStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open changelog store %q: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketChangeLogs, bucketIDMaps, bucketNonces} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize changelog store %q: %w", path, err)
	}

	return &BoltStore{
		db:   db,
		path: path,
		reg:  newRegistry(),
		log:  logger.With(slog.String("component", "changelog.bolt")),
	}, nil
}

// wireRecord is the JSON-on-disk shape for a Record (Key fields are folded
// into the bucket key itself, so only the value fields are stored here).
type wireRecord struct {
	LocalAnchor  string    `json:"local_anchor"`
	RemoteAnchor string    `json:"remote_anchor"`
	LastSyncTime time.Time `json:"last_sync_time"`
}

// Load implements Store.
func (s *BoltStore) Load(ctx context.Context, key Key) (Record, error) {
	conn := s.reg.newConnName("load", s.path)
	lock := s.reg.lockFor(s.path)
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return Record{}, err
	}

	s.log.Debug("changelog load", slog.String("conn", conn), slog.Any("key", key))

	var rec Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(bucketChangeLogs).Get(key.bucketKey())
		if raw == nil {
			return ErrNotFound
		}

		var wr wireRecord
		if err := json.Unmarshal(raw, &wr); err != nil {
			return fmt.Errorf("decode changelog record: %w", err)
		}

		rec = Record{
			Key:          key,
			LocalAnchor:  wr.LocalAnchor,
			RemoteAnchor: wr.RemoteAnchor,
			LastSyncTime: wr.LastSyncTime,
		}

		mraw := tx.Bucket(bucketIDMaps).Get(key.bucketKey())
		if mraw != nil {
			if err := json.Unmarshal(mraw, &rec.Mappings); err != nil {
				return fmt.Errorf("decode id map: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Record{}, fmt.Errorf("load changelog %v: %w", key, ErrNotFound)
		}
		return Record{}, fmt.Errorf("load changelog %v: %w", key, err)
	}

	return rec, nil
}

// Save implements Store. Both the change_logs row and the full id_maps row
// for key are rewritten inside a single bbolt transaction (spec §4.4).
func (s *BoltStore) Save(ctx context.Context, rec Record) error {
	conn := s.reg.newConnName("save", s.path)
	lock := s.reg.lockFor(s.path)
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	s.log.Debug("changelog save", slog.String("conn", conn), slog.Any("key", rec.Key))

	wr := wireRecord{
		LocalAnchor:  rec.LocalAnchor,
		RemoteAnchor: rec.RemoteAnchor,
		LastSyncTime: rec.LastSyncTime,
	}

	crBytes, err := json.Marshal(wr)
	if err != nil {
		return fmt.Errorf("encode changelog record: %w", err)
	}

	mapBytes, err := json.Marshal(rec.Mappings)
	if err != nil {
		return fmt.Errorf("encode id map: %w", err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketChangeLogs).Put(rec.Key.bucketKey(), crBytes); err != nil {
			return fmt.Errorf("put changelog record: %w", err)
		}
		if err := tx.Bucket(bucketIDMaps).Put(rec.Key.bucketKey(), mapBytes); err != nil {
			return fmt.Errorf("put id map: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save changelog %v: %w", rec.Key, err)
	}

	return nil
}

// SaveAll implements Store, rewriting every record's change_logs and
// id_maps rows inside one bbolt transaction so that a failure partway
// through leaves none of recs persisted (spec §4.4).
func (s *BoltStore) SaveAll(ctx context.Context, recs []Record) error {
	conn := s.reg.newConnName("save_all", s.path)
	lock := s.reg.lockFor(s.path)
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	s.log.Debug("changelog save_all", slog.String("conn", conn), slog.Int("count", len(recs)))

	err := s.db.Update(func(tx *bbolt.Tx) error {
		for _, rec := range recs {
			wr := wireRecord{
				LocalAnchor:  rec.LocalAnchor,
				RemoteAnchor: rec.RemoteAnchor,
				LastSyncTime: rec.LastSyncTime,
			}

			crBytes, err := json.Marshal(wr)
			if err != nil {
				return fmt.Errorf("encode changelog record %v: %w", rec.Key, err)
			}
			mapBytes, err := json.Marshal(rec.Mappings)
			if err != nil {
				return fmt.Errorf("encode id map %v: %w", rec.Key, err)
			}

			if err := tx.Bucket(bucketChangeLogs).Put(rec.Key.bucketKey(), crBytes); err != nil {
				return fmt.Errorf("put changelog record %v: %w", rec.Key, err)
			}
			if err := tx.Bucket(bucketIDMaps).Put(rec.Key.bucketKey(), mapBytes); err != nil {
				return fmt.Errorf("put id map %v: %w", rec.Key, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save_all changelog: %w", err)
	}

	return nil
}

// Remove implements Store.
func (s *BoltStore) Remove(ctx context.Context, key Key) error {
	conn := s.reg.newConnName("remove", s.path)
	lock := s.reg.lockFor(s.path)
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	s.log.Debug("changelog remove", slog.String("conn", conn), slog.Any("key", key))

	err := s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketChangeLogs).Delete(key.bucketKey()); err != nil {
			return fmt.Errorf("delete changelog record: %w", err)
		}
		if err := tx.Bucket(bucketIDMaps).Delete(key.bucketKey()); err != nil {
			return fmt.Errorf("delete id map: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("remove changelog %v: %w", key, err)
	}

	return nil
}

// LoadNonce implements Store.
func (s *BoltStore) LoadNonce(ctx context.Context, key NonceKey) (NonceRecord, error) {
	lock := s.reg.lockFor(s.path)
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return NonceRecord{}, err
	}

	var rec NonceRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(bucketNonces).Get(key.bucketKey())
		if raw == nil {
			return ErrNotFound
		}
		rec = NonceRecord{Key: key, Nonce: append([]byte(nil), raw...)}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return NonceRecord{}, fmt.Errorf("load nonce %v: %w", key, ErrNotFound)
		}
		return NonceRecord{}, fmt.Errorf("load nonce %v: %w", key, err)
	}

	return rec, nil
}

// SaveNonce implements Store.
func (s *BoltStore) SaveNonce(ctx context.Context, rec NonceRecord) error {
	lock := s.reg.lockFor(s.path)
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketNonces).Put(rec.Key.bucketKey(), rec.Nonce)
	})
	if err != nil {
		return fmt.Errorf("save nonce %v: %w", rec.Key, err)
	}

	return nil
}

// ClearNonce implements Store.
func (s *BoltStore) ClearNonce(ctx context.Context, key NonceKey) error {
	lock := s.reg.lockFor(s.path)
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketNonces).Delete(key.bucketKey())
	})
	if err != nil {
		return fmt.Errorf("clear nonce %v: %w", key, err)
	}

	return nil
}

// Close implements Store.
func (s *BoltStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close changelog store %q: %w", s.path, err)
	}
	return nil
}

var _ Store = (*BoltStore)(nil)

// mappingsEqual reports whether two mapping slices contain the same pairs,
// used by tests asserting round-trip save/load (spec §8).
func mappingsEqual(a, b []target.UIDMapping) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
