package command

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-omads/omads/internal/auth"
	"github.com/go-omads/omads/internal/changelog"
	"github.com/go-omads/omads/internal/storage"
	"github.com/go-omads/omads/internal/storage/memplugin"
	"github.com/go-omads/omads/internal/target"
	"github.com/go-omads/omads/internal/wire"
)

func newTestProcessor(t *testing.T, role Role) (*Processor, storage.Plugin) {
	t.Helper()
	store, err := changelog.OpenBoltStore(filepath.Join(t.TempDir(), "cmd.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	negotiator := auth.NewNegotiator(auth.Config{
		Scheme: auth.SchemeBasic, Username: "alice", Password: "s3cret",
		LocalDevice: "L", RemoteDevice: "R",
	}, store)

	plugin := memplugin.New("./contacts")
	deps := Dependencies{
		Role:            role,
		ProtocolVersion: "1.2",
		SessionID:       "1",
		Auth:            negotiator,
		ConflictPolicy:  storage.PreferLocal,
		Plugins:         map[string]storage.Plugin{"./contacts": plugin},
	}
	return NewProcessor(deps, target.NewSet()), plugin
}

func TestHandleHeader_MissingCredThenAccepted(t *testing.T) {
	p, _ := newTestProcessor(t, RoleServer)
	ctx := context.Background()

	status, err := p.HandleHeader(ctx, wire.Header{SessionID: "1"})
	require.NoError(t, err)
	require.Equal(t, StatusMissingCred, status.Code)

	status, err = p.HandleHeader(ctx, wire.Header{
		SessionID: "1",
		Cred:      &wire.Cred{Type: wire.AuthTypeBasic, Data: auth.BasicCredentials("alice", "s3cret")},
	})
	require.NoError(t, err)
	require.Equal(t, StatusAuthAccepted, status.Code)
}

func TestHandleHeader_SessionMismatch(t *testing.T) {
	p, _ := newTestProcessor(t, RoleServer)
	_, err := p.HandleHeader(context.Background(), wire.Header{SessionID: "wrong"})
	require.ErrorIs(t, err, ErrSessionMismatch)
}

func TestHandleSyncAlert_CreatesTargetAndAcks(t *testing.T) {
	p, _ := newTestProcessor(t, RoleServer)

	alert := &wire.Alert{Data: wire.AlertTwoWay, Item: &wire.AlertItem{
		Target: "./contacts", Source: "./card", Meta: wire.AnchorMeta{Last: "100", Next: "200"},
	}}
	res := p.HandleSyncAlert(1, alert, target.TypeFast, "100")
	require.Equal(t, StatusSuccess, res.Status.Code)
	require.NotNil(t, res.Ack)
	require.False(t, res.Target.Reverted)
	require.Equal(t, target.TypeFast, res.Target.Type)
}

func TestHandleSyncAlert_AnchorMismatchForcesSlowSync(t *testing.T) {
	p, _ := newTestProcessor(t, RoleServer)

	alert := &wire.Alert{Data: wire.AlertTwoWay, Item: &wire.AlertItem{
		Target: "./contacts", Source: "./card", Meta: wire.AnchorMeta{Last: "100"},
	}}
	res := p.HandleSyncAlert(1, alert, target.TypeFast, "999")
	require.True(t, res.Target.Reverted)
	require.Equal(t, target.TypeSlow, res.Target.Type)
}

func TestHandleSyncAlert_UnknownDatabase(t *testing.T) {
	p, _ := newTestProcessor(t, RoleServer)
	alert := &wire.Alert{Data: wire.AlertTwoWay, Item: &wire.AlertItem{Target: "./unknown", Source: "./card"}}
	res := p.HandleSyncAlert(1, alert, target.TypeFast, "")
	require.Equal(t, StatusNotFound, res.Status.Code)
	require.Nil(t, res.Ack)
}

func TestBufferAndCommit_AddItem(t *testing.T) {
	p, _ := newTestProcessor(t, RoleServer)
	tg := &target.Target{LocalURI: "./contacts", RemoteURI: "./card"}

	statuses := p.BufferItems(1, ItemAdd, tg, []wire.Item{
		{Source: "remote-1", Meta: &wire.ItemMeta{Type: "text/vcard"}, Data: []byte("BEGIN:VCARD")},
	})
	require.Empty(t, statuses)

	results, err := p.CommitTarget(context.Background(), tg)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, storage.CommitAdded, results[0].Outcome)

	status := StatusForResult(results[0], wire.KindAdd)
	require.Equal(t, StatusItemAdded, status.Code)
}

func TestBufferAndCommit_LargeObjectAcrossChunks(t *testing.T) {
	p, _ := newTestProcessor(t, RoleServer)
	tg := &target.Target{LocalURI: "./contacts", RemoteURI: "./card"}

	statuses := p.BufferItems(1, ItemAdd, tg, []wire.Item{
		{Target: "K", Meta: &wire.ItemMeta{Size: 12}, Data: []byte("ABCD"), MoreData: true},
	})
	require.Len(t, statuses, 1)
	require.Equal(t, StatusChunkAccepted, statuses[0].Code)

	statuses = p.BufferItems(1, ItemAdd, tg, []wire.Item{
		{Target: "K", Data: []byte("EFGH"), MoreData: true},
	})
	require.Len(t, statuses, 1)
	require.Equal(t, StatusChunkAccepted, statuses[0].Code)

	statuses = p.BufferItems(1, ItemAdd, tg, []wire.Item{
		{Target: "K", Data: []byte("IJKL")},
	})
	require.Empty(t, statuses)

	results, err := p.CommitTarget(context.Background(), tg)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, storage.CommitAdded, results[0].Outcome)
}

func TestHandleMap_RequiresAllowedPhase(t *testing.T) {
	p, _ := newTestProcessor(t, RoleServer)
	tg := &target.Target{LocalURI: "./contacts", RemoteURI: "./card"}

	status := p.HandleMap(1, &wire.Map{MapItems: []wire.MapItem{{Target: "local-1", Source: "remote-1"}}}, tg, false)
	require.Equal(t, StatusCommandNotAllowed, status.Code)

	status = p.HandleMap(1, &wire.Map{MapItems: []wire.MapItem{{Target: "local-1", Source: "remote-1"}}}, tg, true)
	require.Equal(t, StatusSuccess, status.Code)
	require.Len(t, tg.Mappings, 1)
}

func TestHandleGetPut_DeviceInfoRoundTrip(t *testing.T) {
	p, _ := newTestProcessor(t, RoleServer)
	p.deps.LocalDevice = target.DeviceInfo{DeviceID: "srv-1", Manufacturer: "Acme"}

	status, results, err := p.HandleGet(1, 1, &wire.Get{Items: []wire.Item{{Target: DevInfoURI}}})
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, status.Code)
	require.Len(t, results.Items, 1)

	p2, _ := newTestProcessor(t, RoleClient)
	status2, err := p2.HandlePut(2, &wire.Put{Items: []wire.Item{{Target: DevInfoURI, Data: results.Items[0].Data}}})
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, status2.Code)
	require.NotNil(t, p2.RemoteDevice())
	require.Equal(t, "srv-1", p2.RemoteDevice().DeviceID)
}
