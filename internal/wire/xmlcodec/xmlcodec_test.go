package xmlcodec

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-omads/omads/internal/wire"
)

func TestCodec_RoundTrip(t *testing.T) {
	c := New()
	ctx := context.Background()

	msg := wire.Message{
		Header: wire.Header{
			VerDTD:    "1.2",
			VerProto:  "SyncML/1.2",
			SessionID: "1",
			MsgID:     1,
			Target:    "http://server/sync",
			Source:    "IMEI:12345",
			Cred: &wire.Cred{
				Type:   wire.AuthTypeBasic,
				Format: wire.FormatB64,
				Data:   []byte("YWxpY2U6czNjcmV0"),
			},
			MaxMsgSize: 10240,
		},
		Commands: []wire.Command{
			&wire.Alert{
				CmdID: 1,
				Data:  wire.AlertTwoWay,
				Item: &wire.AlertItem{
					Target: "./contacts",
					Source: "./card",
					Meta:   wire.AnchorMeta{Last: "100", Next: "200"},
				},
			},
			&wire.Final{},
		},
		Final: true,
	}

	payload, err := c.Encode(ctx, wire.ContentTypeXML, msg)
	require.NoError(t, err)
	require.Contains(t, string(payload), "<SyncML>")

	got, err := c.Parse(ctx, wire.ContentTypeXML, payload)
	require.NoError(t, err)

	require.Equal(t, msg.Header.SessionID, got.Header.SessionID)
	require.Equal(t, msg.Header.MsgID, got.Header.MsgID)
	require.Equal(t, msg.Header.Target, got.Header.Target)
	require.NotNil(t, got.Header.Cred)
	require.Equal(t, wire.AuthTypeBasic, got.Header.Cred.Type)
	require.True(t, got.Final)

	require.Len(t, got.Commands, 2)
	alert, ok := got.Commands[0].(*wire.Alert)
	require.True(t, ok)
	require.Equal(t, wire.AlertTwoWay, alert.Data)
	require.NotNil(t, alert.Item)
	require.Equal(t, "./contacts", alert.Item.Target)
	require.Equal(t, "100", alert.Item.Meta.Last)
}

func TestCodec_UnsupportedContentType(t *testing.T) {
	c := New()
	_, err := c.Parse(context.Background(), wire.ContentTypeWBXML, []byte{0x01})
	require.Error(t, err)
}
