package transport_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/go-omads/omads/internal/transport"
	"github.com/go-omads/omads/internal/wire"
)

func TestLoopback_SendDeliversToPeer(t *testing.T) {
	client, server := transport.NewLoopbackPair()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, client.Send(ctx, wire.ContentTypeXML, []byte("<SyncML/>")))

	select {
	case evt := <-server.Events():
		require.Equal(t, transport.EventMessage, evt.Kind)
		require.Equal(t, wire.ContentTypeXML, evt.ContentType)
		require.Equal(t, []byte("<SyncML/>"), evt.Payload)
	case <-ctx.Done():
		t.Fatal("timed out waiting for event")
	}
}

func TestLoopback_CloseNotifiesPeerAndRejectsFurtherSend(t *testing.T) {
	client, server := transport.NewLoopbackPair()
	require.NoError(t, client.Close())

	evt := <-server.Events()
	require.Equal(t, transport.EventClosed, evt.Kind)

	err := client.Send(context.Background(), wire.ContentTypeXML, []byte("x"))
	require.ErrorIs(t, err, transport.ErrClosed)
}
