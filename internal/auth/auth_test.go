package auth

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-omads/omads/internal/changelog"
)

func newTestNegotiator(t *testing.T, cfg Config) (*Negotiator, changelog.Store) {
	t.Helper()
	store, err := changelog.OpenBoltStore(filepath.Join(t.TempDir(), "auth.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return NewNegotiator(cfg, store), store
}

func TestVerifyInbound_Basic(t *testing.T) {
	cfg := Config{Scheme: SchemeBasic, Username: "alice", Password: "s3cret", LocalDevice: "L", RemoteDevice: "R"}
	n, _ := newTestNegotiator(t, cfg)

	res, err := n.VerifyInbound(context.Background(), SchemeBasic, EncodingRaw, BasicCredentials("alice", "s3cret"))
	require.NoError(t, err)
	require.Equal(t, ResultAccepted, res)
}

func TestVerifyInbound_MissingCredWhenRequired(t *testing.T) {
	cfg := Config{Scheme: SchemeBasic, Username: "alice", Password: "s3cret", LocalDevice: "L", RemoteDevice: "R"}
	n, _ := newTestNegotiator(t, cfg)

	res, err := n.VerifyInbound(context.Background(), SchemeNone, EncodingRaw, nil)
	require.NoError(t, err)
	require.Equal(t, ResultMissing, res)
}

func TestVerifyInbound_FirstFailureThenAbort(t *testing.T) {
	cfg := Config{Scheme: SchemeBasic, Username: "alice", Password: "s3cret", LocalDevice: "L", RemoteDevice: "R"}
	n, _ := newTestNegotiator(t, cfg)
	ctx := context.Background()

	res, err := n.VerifyInbound(ctx, SchemeBasic, EncodingRaw, BasicCredentials("alice", "wrong"))
	require.NoError(t, err)
	require.Equal(t, ResultInvalidFirst, res)

	res, err = n.VerifyInbound(ctx, SchemeBasic, EncodingRaw, BasicCredentials("alice", "wrong"))
	require.ErrorIs(t, err, ErrAuthFailed)
	require.Equal(t, ResultInvalidFinal, res)
}

func TestMD5_NextNonceDiscipline(t *testing.T) {
	cfg := Config{Scheme: SchemeMD5, Username: "alice", Password: "s3cret", LocalDevice: "L", RemoteDevice: "R"}
	n, store := newTestNegotiator(t, cfg)
	ctx := context.Background()

	n0 := []byte("N0")
	require.NoError(t, n.IssueChallenge(ctx, n0))

	digest := MD5Digest("alice", "s3cret", n0)
	res, err := n.VerifyInbound(ctx, SchemeMD5, EncodingRaw, digest)
	require.NoError(t, err)
	require.Equal(t, ResultAccepted, res)

	// Successful MD5 auth clears the in-session nonce (spec §4.5).
	_, err = store.LoadNonce(ctx, changelog.NonceKey{LocalDevice: "L", RemoteDevice: "R"})
	require.ErrorIs(t, err, changelog.ErrNotFound)

	// The server now issues a fresh next-nonce for the following session.
	n1, err := GenerateNextNonce()
	require.NoError(t, err)
	require.NoError(t, n.IssueChallenge(ctx, n1))

	got, err := store.LoadNonce(ctx, changelog.NonceKey{LocalDevice: "L", RemoteDevice: "R"})
	require.NoError(t, err)
	require.Equal(t, n1, got.Nonce)
}

func TestHandlePeerChallenge_DowngradeRefused(t *testing.T) {
	cfg := Config{Scheme: SchemeMD5, Username: "alice", Password: "s3cret", LocalDevice: "L", RemoteDevice: "R"}
	n, _ := newTestNegotiator(t, cfg)
	ctx := context.Background()

	err := n.HandlePeerChallenge(ctx, SchemeBasic, nil)
	require.ErrorIs(t, err, ErrDowngradeRefused)
}

func TestHandlePeerChallenge_MD5WithoutCachedNonceAborts(t *testing.T) {
	cfg := Config{Scheme: SchemeNone, LocalDevice: "L", RemoteDevice: "R"}
	n, _ := newTestNegotiator(t, cfg)

	err := n.HandlePeerChallenge(context.Background(), SchemeMD5, nil)
	require.ErrorIs(t, err, ErrNonceUnavailable)
}

func TestHandlePeerChallenge_AdoptsStrongerScheme(t *testing.T) {
	cfg := Config{Scheme: SchemeNone, LocalDevice: "L", RemoteDevice: "R"}
	n, _ := newTestNegotiator(t, cfg)
	ctx := context.Background()

	require.NoError(t, n.HandlePeerChallenge(ctx, SchemeMD5, []byte("N0")))
	require.Equal(t, SchemeMD5, n.Negotiated())

	// A later basic challenge is refused once MD5 has been negotiated.
	err := n.HandlePeerChallenge(ctx, SchemeBasic, nil)
	require.ErrorIs(t, err, ErrDowngradeRefused)
}
