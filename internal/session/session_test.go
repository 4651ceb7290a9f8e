package session

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-omads/omads/internal/changelog"
	"github.com/go-omads/omads/internal/command"
	"github.com/go-omads/omads/internal/storage"
	"github.com/go-omads/omads/internal/storage/memplugin"
	"github.com/go-omads/omads/internal/target"
	"github.com/go-omads/omads/internal/wire"
)

func newTestSession(t *testing.T, role command.Role) (*Session, storage.Plugin) {
	t.Helper()
	store, err := changelog.OpenBoltStore(filepath.Join(t.TempDir(), "session.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	plugin := memplugin.New("./contacts")
	cfg := Config{
		Role:            role,
		ProtocolVersion: "1.2",
		SessionID:       "1",
		RemoteDevice:    "peer-device",
		ConflictPolicy:  storage.PreferLocal,
		Plugins:         map[string]storage.Plugin{"./contacts": plugin},
		Profiles:        map[string]Profile{"./contacts": {LocalURI: "./contacts", ConfiguredType: target.TypeFast}},
		ChangeLog:       store,
		MaxMsgSize:      8192,
	}
	return NewSession(cfg), plugin
}

func TestSession_ServerHandlesHeaderSyncAlertAndAddInOneMessage(t *testing.T) {
	s, plugin := newTestSession(t, command.RoleServer)
	require.Equal(t, PhasePrepared, s.Phase())

	in := wire.Message{
		Header: wire.Header{VerDTD: "1.2", SessionID: "1", MsgID: 1, Target: "srv", Source: "cli"},
		Commands: []wire.Command{
			&wire.Alert{
				CmdID: 1, Data: wire.AlertTwoWay,
				Item: &wire.AlertItem{Target: "./contacts", Source: "./card", Meta: wire.AnchorMeta{Last: "", Next: "100"}},
			},
			&wire.Sync{
				CmdID: 2, Target: "./contacts", Source: "./card", NumberOfChanges: 1,
				Commands: []wire.Command{
					&wire.Add{CmdID: 3, Items: []wire.Item{
						{Source: "remote-1", Meta: &wire.ItemMeta{Type: "text/vcard"}, Data: []byte("BEGIN:VCARD")},
					}},
				},
			},
		},
		Final: true,
	}

	out, err := s.HandleMessage(context.Background(), in)
	require.NoError(t, err)
	require.NotEmpty(t, out.Commands)

	var sawHeaderStatus, sawAlertAck, sawAddedStatus bool
	for _, c := range out.Commands {
		switch cmd := c.(type) {
		case *wire.Status:
			if cmd.CmdRef == 0 {
				sawHeaderStatus = true
			}
			if cmd.Code == command.StatusItemAdded {
				sawAddedStatus = true
			}
		case *wire.Alert:
			sawAlertAck = true
			require.Equal(t, wire.AlertTwoWay, cmd.Data)
		}
	}
	require.True(t, sawHeaderStatus)
	require.True(t, sawAlertAck)
	require.True(t, sawAddedStatus)

	all, err := plugin.GetAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)

	// Server path: PREPARED -> REMOTE_INIT, advanced once on Final.
	require.Equal(t, PhaseRemoteInit, s.Phase())
}

func TestSession_UnsupportedProtocolVersionFailsClosed(t *testing.T) {
	s, _ := newTestSession(t, command.RoleServer)
	_, err := s.HandleMessage(context.Background(), wire.Message{Header: wire.Header{VerDTD: "2.0", SessionID: "1"}})
	require.ErrorIs(t, err, ErrUnsupportedProtocol)
	require.Equal(t, PhaseUnsupportedProtocol, s.Phase())
	require.True(t, s.Phase().IsError())
}

func TestSession_SessionMismatchFailsClosed(t *testing.T) {
	s, _ := newTestSession(t, command.RoleServer)
	_, err := s.HandleMessage(context.Background(), wire.Message{Header: wire.Header{VerDTD: "1.2", SessionID: "wrong"}})
	require.Error(t, err)
	require.Equal(t, PhaseInvalidMessage, s.Phase())
}

func TestSession_Abort(t *testing.T) {
	s, _ := newTestSession(t, command.RoleClient)
	s.Abort()
	require.Equal(t, PhaseAborted, s.Phase())

	_, err := s.HandleMessage(context.Background(), wire.Message{Header: wire.Header{VerDTD: "1.2", SessionID: "1"}})
	require.Error(t, err)
}

func TestSession_DiscoverLocalChangesFastSync(t *testing.T) {
	s, plugin := newTestSession(t, command.RoleClient)
	_, err := plugin.AddItems(context.Background(), []storage.Item{{LocalKey: "k1", Payload: []byte("x")}})
	require.NoError(t, err)

	tg := &target.Target{LocalURI: "./contacts", RemoteURI: "./card", Type: target.TypeFast}
	s.Targets().Upsert(tg)

	require.NoError(t, s.DiscoverLocalChanges(context.Background()))
	require.Contains(t, tg.Changes.Added, "k1")
}

func TestSession_FinalizeSavesAllTargetsInOneTransaction(t *testing.T) {
	s, _ := newTestSession(t, command.RoleClient)

	t1 := &target.Target{LocalURI: "./contacts", RemoteURI: "./card"}
	t1.Remote.Next = "101"
	t2 := &target.Target{LocalURI: "./cal", RemoteURI: "./event"}
	t2.Remote.Next = "202"
	s.Targets().Upsert(t1)
	s.Targets().Upsert(t2)

	s.phase = PhaseSyncFinished
	require.NoError(t, s.Finalize(context.Background()))

	rec1, err := s.cfg.ChangeLog.Load(context.Background(), changelog.Key{
		RemoteDevice: s.RemoteDeviceID(), SourceDBURI: t1.LocalURI, Direction: t1.Direction,
	})
	require.NoError(t, err)
	require.Equal(t, "101", rec1.LocalAnchor)

	rec2, err := s.cfg.ChangeLog.Load(context.Background(), changelog.Key{
		RemoteDevice: s.RemoteDeviceID(), SourceDBURI: t2.LocalURI, Direction: t2.Direction,
	})
	require.NoError(t, err)
	require.Equal(t, "202", rec2.LocalAnchor)
}

func TestSession_PrepareOutboundSyncBuildsAddForSlowSync(t *testing.T) {
	s, plugin := newTestSession(t, command.RoleClient)
	_, err := plugin.AddItems(context.Background(), []storage.Item{{LocalKey: "k1", Payload: []byte("x")}})
	require.NoError(t, err)

	tg := &target.Target{LocalURI: "./contacts", RemoteURI: "./card", Type: target.TypeSlow}
	s.Targets().Upsert(tg)

	syncs, err := s.PrepareOutboundSync(context.Background())
	require.NoError(t, err)
	require.Len(t, syncs, 1)
	require.NotZero(t, syncs[0].CmdID)
	require.Len(t, syncs[0].Commands, 1)
	add, ok := syncs[0].Commands[0].(*wire.Add)
	require.True(t, ok)
	require.Len(t, add.Items, 1)
}
