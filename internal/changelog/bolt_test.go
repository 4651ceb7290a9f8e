package changelog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/go-omads/omads/internal/target"
)

func newTestStore(t *testing.T) *BoltStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "omads.db")
	s, err := OpenBoltStore(path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestBoltStore_SaveLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	key := Key{RemoteDevice: "peer-1", SourceDBURI: "./contacts", Direction: target.DirectionTwoWay}
	now := time.Now().Truncate(time.Second)

	rec := Record{
		Key:          key,
		LocalAnchor:  "L2",
		RemoteAnchor: "R2",
		LastSyncTime: now,
		Mappings: []target.UIDMapping{
			{LocalKey: "1", RemoteKey: "a"},
			{LocalKey: "2", RemoteKey: "b"},
		},
	}

	require.NoError(t, s.Save(ctx, rec))

	got, err := s.Load(ctx, key)
	require.NoError(t, err)
	require.Equal(t, rec.LocalAnchor, got.LocalAnchor)
	require.Equal(t, rec.RemoteAnchor, got.RemoteAnchor)
	require.True(t, rec.LastSyncTime.Equal(got.LastSyncTime))
	require.True(t, mappingsEqual(rec.Mappings, got.Mappings))
}

func TestBoltStore_LoadMissing(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Load(context.Background(), Key{RemoteDevice: "nope"})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestBoltStore_SaveUpsertReplacesPriorRow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	key := Key{RemoteDevice: "peer-1", SourceDBURI: "./cal", Direction: target.DirectionTwoWay}

	require.NoError(t, s.Save(ctx, Record{
		Key: key, LocalAnchor: "L1", RemoteAnchor: "R1",
		Mappings: []target.UIDMapping{{LocalKey: "1", RemoteKey: "a"}},
	}))
	require.NoError(t, s.Save(ctx, Record{
		Key: key, LocalAnchor: "L2", RemoteAnchor: "R2",
		Mappings: []target.UIDMapping{{LocalKey: "2", RemoteKey: "b"}},
	}))

	got, err := s.Load(ctx, key)
	require.NoError(t, err)
	require.Equal(t, "L2", got.LocalAnchor)
	require.Len(t, got.Mappings, 1)
	require.Equal(t, "2", got.Mappings[0].LocalKey)
}

func TestBoltStore_Remove(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	key := Key{RemoteDevice: "peer-1", SourceDBURI: "./bookmarks", Direction: target.DirectionTwoWay}

	require.NoError(t, s.Save(ctx, Record{Key: key, LocalAnchor: "L1"}))
	require.NoError(t, s.Remove(ctx, key))

	_, err := s.Load(ctx, key)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestBoltStore_NonceLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	key := NonceKey{LocalDevice: "local", RemoteDevice: "peer-1"}

	_, err := s.LoadNonce(ctx, key)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.SaveNonce(ctx, NonceRecord{Key: key, Nonce: []byte("N0")}))

	got, err := s.LoadNonce(ctx, key)
	require.NoError(t, err)
	require.Equal(t, []byte("N0"), got.Nonce)

	// Overwritten whenever a peer supplies a Next-Nonce (spec §3).
	require.NoError(t, s.SaveNonce(ctx, NonceRecord{Key: key, Nonce: []byte("N1")}))
	got, err = s.LoadNonce(ctx, key)
	require.NoError(t, err)
	require.Equal(t, []byte("N1"), got.Nonce)

	// Cleared on successful authentication.
	require.NoError(t, s.ClearNonce(ctx, key))
	_, err = s.LoadNonce(ctx, key)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestBoltStore_SaveAllWritesEveryRecord(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	key1 := Key{RemoteDevice: "peer-1", SourceDBURI: "./contacts", Direction: target.DirectionTwoWay}
	key2 := Key{RemoteDevice: "peer-1", SourceDBURI: "./cal", Direction: target.DirectionTwoWay}

	require.NoError(t, s.SaveAll(ctx, []Record{
		{Key: key1, LocalAnchor: "L1", RemoteAnchor: "R1"},
		{Key: key2, LocalAnchor: "L2", RemoteAnchor: "R2"},
	}))

	got1, err := s.Load(ctx, key1)
	require.NoError(t, err)
	require.Equal(t, "L1", got1.LocalAnchor)

	got2, err := s.Load(ctx, key2)
	require.NoError(t, err)
	require.Equal(t, "L2", got2.LocalAnchor)
}

func TestBoltStore_ConcurrentSessionsSameFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shared.db")
	s1, err := OpenBoltStore(path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s1.Close() })

	ctx := context.Background()
	done := make(chan struct{})
	key1 := Key{RemoteDevice: "peer-a", SourceDBURI: "./contacts", Direction: target.DirectionTwoWay}
	key2 := Key{RemoteDevice: "peer-b", SourceDBURI: "./contacts", Direction: target.DirectionTwoWay}

	go func() {
		defer close(done)
		require.NoError(t, s1.Save(ctx, Record{Key: key2, LocalAnchor: "X"}))
	}()

	require.NoError(t, s1.Save(ctx, Record{Key: key1, LocalAnchor: "Y"}))
	<-done

	_, err = s1.Load(ctx, key1)
	require.NoError(t, err)
	_, err = s1.Load(ctx, key2)
	require.NoError(t, err)
}
