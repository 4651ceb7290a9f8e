package response

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-omads/omads/internal/wire"
)

func TestCommandIDAllocator_SequentialFromOne(t *testing.T) {
	a := NewCommandIDAllocator()
	require.Equal(t, 1, a.Next())
	require.Equal(t, 2, a.Next())
	require.Equal(t, 3, a.Next())
	a.Reset()
	require.Equal(t, 1, a.Next())
}

func TestGenerator_OverflowCarriesToNextMessage(t *testing.T) {
	g := NewGenerator(700)
	g.BeginMessage()

	small := &wire.Status{CmdID: 1, Code: 200}
	require.True(t, g.Offer(small))

	big := &wire.Add{CmdID: 2, Items: []wire.Item{{Data: make([]byte, 4096)}}}
	require.False(t, g.Offer(big))
	require.True(t, g.HasOverflow())

	msg := g.Build(wire.Header{MsgID: 1}, false)
	require.Len(t, msg.Commands, 1)

	g.BeginMessage()
	require.Contains(t, g.Commands(), wire.Command(big))
}

func TestGenerator_UnboundedWhenNoMaxSize(t *testing.T) {
	g := NewGenerator(0)
	g.BeginMessage()
	for i := 0; i < 50; i++ {
		require.True(t, g.Offer(&wire.Add{CmdID: i, Items: []wire.Item{{Data: make([]byte, 1024)}}}))
	}
	require.False(t, g.HasOverflow())
}

func TestSplitLargeObject(t *testing.T) {
	payload := []byte("ABCDEFGHIJKL")
	chunks := SplitLargeObject("t", "s", wire.ItemMeta{Type: "text/vcard"}, payload, 4)
	require.Len(t, chunks, 3)
	require.True(t, chunks[0].MoreData)
	require.True(t, chunks[1].MoreData)
	require.False(t, chunks[2].MoreData)
	require.NotNil(t, chunks[0].Meta)
	require.Equal(t, int64(12), chunks[0].Meta.Size)

	var reassembled []byte
	for _, c := range chunks {
		reassembled = append(reassembled, c.Data...)
	}
	require.Equal(t, payload, reassembled)
}

func TestAggregator_PreservesInsertionOrder(t *testing.T) {
	agg := NewAggregator()
	agg.Add(1, 1, 1, wire.KindAlert, 200)
	agg.Add(2, 1, 2, wire.KindAdd, 201)
	cmds := agg.Drain()
	require.Len(t, cmds, 2)
	require.Equal(t, 1, cmds[0].(*wire.Status).CmdID)
	require.Equal(t, 2, cmds[1].(*wire.Status).CmdID)
	require.Equal(t, 0, agg.Len())
}
