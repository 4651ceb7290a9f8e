package storage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLargeObjectAssembler_RoundTrip(t *testing.T) {
	a := NewLargeObjectAssembler()

	require.NoError(t, a.Begin("loc-1", "rem-1", 12, []byte("hello ")))
	require.True(t, a.InFlight("loc-1", "rem-1"))

	require.NoError(t, a.Append("loc-1", "rem-1", []byte("wor")))

	item, err := a.Finalize("loc-1", "rem-1", []byte("ld!"))
	require.NoError(t, err)
	require.Equal(t, "hello world!", string(item.Payload))
	require.Equal(t, "loc-1", item.LocalKey)
	require.False(t, a.InFlight("loc-1", "rem-1"))
}

func TestLargeObjectAssembler_SizeMismatch(t *testing.T) {
	a := NewLargeObjectAssembler()
	require.NoError(t, a.Begin("loc-1", "", 100, []byte("short")))

	_, err := a.Finalize("loc-1", "", []byte("end"))
	require.ErrorIs(t, err, ErrLargeObjectSizeMismatch)
}

func TestLargeObjectAssembler_IdentityBreak(t *testing.T) {
	a := NewLargeObjectAssembler()
	require.NoError(t, a.Begin("loc-1", "rem-1", 0, []byte("a")))

	err := a.Append("loc-2", "rem-1", []byte("b"))
	require.ErrorIs(t, err, ErrLargeObjectIdentityBreak)
	require.False(t, a.InFlight("loc-1", "rem-1"), "identity break aborts the in-flight object")
}

func TestLargeObjectAssembler_UnknownObject(t *testing.T) {
	a := NewLargeObjectAssembler()
	_, err := a.Finalize("x", "y", []byte("z"))
	require.Error(t, err)
}

func TestLargeObjectAssembler_Abandon(t *testing.T) {
	a := NewLargeObjectAssembler()
	require.NoError(t, a.Begin("loc-1", "", 0, []byte("partial")))
	a.Abandon()
	require.False(t, a.InFlight("loc-1", ""))
}

func TestLargeObjectAssembler_InterleavingAbortsPriorObject(t *testing.T) {
	a := NewLargeObjectAssembler()
	require.NoError(t, a.Begin("loc-1", "rem-1", 10, []byte("partial")))

	err := a.Begin("loc-2", "rem-2", 4, []byte("ABCD"))
	require.ErrorIs(t, err, ErrLargeObjectInterleaved)
	require.False(t, a.InFlight("loc-1", "rem-1"), "interleaving must abort the prior large object")
	require.False(t, a.InFlight("loc-2", "rem-2"), "the interleaving fragment itself is rejected, not started")
}

func TestLargeObjectAssembler_CrossMessageContinuationSurvivesCmdIDReset(t *testing.T) {
	// Command ids restart at 1 in every new message (spec §3), so a
	// continuation chunk arriving as cmd 1 of a later message must still be
	// recognized as the same object by its target/source key.
	a := NewLargeObjectAssembler()
	require.NoError(t, a.Begin("K", "", 12, []byte("ABCD")))
	require.True(t, a.InFlight("K", ""))

	require.NoError(t, a.Append("K", "", []byte("EFGH")))

	item, err := a.Finalize("K", "", []byte("IJKL"))
	require.NoError(t, err)
	require.Equal(t, "ABCDEFGHIJKL", string(item.Payload))
}
