package server_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/require"

	"github.com/go-omads/omads/internal/changelog"
	"github.com/go-omads/omads/internal/command"
	"github.com/go-omads/omads/internal/server"
	"github.com/go-omads/omads/internal/session"
	"github.com/go-omads/omads/internal/storage"
	"github.com/go-omads/omads/internal/storage/memplugin"
	"github.com/go-omads/omads/internal/target"
)

// testEnv bundles a running admin server and the fixtures behind it.
type testEnv struct {
	baseURL string
	http    *http.Client
	store   changelog.Store
}

func setupTestServer(t *testing.T, opts ...connect.HandlerOption) testEnv {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)

	store, err := changelog.OpenBoltStore(filepath.Join(t.TempDir(), "admin.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	registry := server.NewRegistry()

	plugin := memplugin.New("./contacts")
	cfg := session.Config{
		Role:            command.RoleServer,
		ProtocolVersion: "1.2",
		SessionID:       "1",
		RemoteDevice:    "peer-phone",
		ConflictPolicy:  storage.PreferLocal,
		Plugins:         map[string]storage.Plugin{"./contacts": plugin},
		Profiles:        map[string]session.Profile{"./contacts": {LocalURI: "./contacts", ConfiguredType: target.TypeFast}},
		ChangeLog:       store,
		MaxMsgSize:      8192,
	}
	sess := session.NewSession(cfg)
	sess.Targets().Upsert(&target.Target{LocalURI: "./contacts", RemoteURI: "./card", Type: target.TypeFast})
	require.NoError(t, registry.Register(sess))

	handler := server.New(registry, store, logger, opts...)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return testEnv{baseURL: srv.URL, http: srv.Client(), store: store}
}

func callUnary[Req, Res any](t *testing.T, env testEnv, procedure string, req *Req) *Res {
	t.Helper()
	client := connect.NewClient[Req, Res](env.http, env.baseURL+procedure, connect.WithCodec(jsonCodecForTest{}))
	resp, err := client.CallUnary(context.Background(), connect.NewRequest(req))
	require.NoError(t, err)
	return resp.Msg
}

func TestAdminServer_ListSessions(t *testing.T) {
	env := setupTestServer(t)

	resp := callUnary[server.ListSessionsRequest, server.ListSessionsResponse](
		t, env, "/omads.admin.v1.AdminService/ListSessions", &server.ListSessionsRequest{})

	require.Len(t, resp.Sessions, 1)
	require.Equal(t, "peer-phone", resp.Sessions[0].RemoteDevice)
	require.Equal(t, "server", resp.Sessions[0].Role)
}

func TestAdminServer_GetSession(t *testing.T) {
	env := setupTestServer(t)

	resp := callUnary[server.GetSessionRequest, server.GetSessionResponse](
		t, env, "/omads.admin.v1.AdminService/GetSession", &server.GetSessionRequest{SessionID: "1"})

	require.Equal(t, "1", resp.Session.SessionID)
}

func TestAdminServer_GetSessionNotFound(t *testing.T) {
	env := setupTestServer(t)

	client := connect.NewClient[server.GetSessionRequest, server.GetSessionResponse](
		env.http, env.baseURL+"/omads.admin.v1.AdminService/GetSession", connect.WithCodec(jsonCodecForTest{}))
	_, err := client.CallUnary(context.Background(), connect.NewRequest(&server.GetSessionRequest{SessionID: "missing"}))
	require.Error(t, err)
	require.Equal(t, connect.CodeNotFound, connect.CodeOf(err))
}

func TestAdminServer_TriggerSync(t *testing.T) {
	env := setupTestServer(t)

	resp := callUnary[server.TriggerSyncRequest, server.TriggerSyncResponse](
		t, env, "/omads.admin.v1.AdminService/TriggerSync",
		&server.TriggerSyncRequest{RemoteDevice: "peer-phone", LocalURI: "./contacts", SyncType: "slow"})

	require.True(t, resp.Accepted)
}

func TestAdminServer_TriggerSyncInvalidType(t *testing.T) {
	env := setupTestServer(t)

	client := connect.NewClient[server.TriggerSyncRequest, server.TriggerSyncResponse](
		env.http, env.baseURL+"/omads.admin.v1.AdminService/TriggerSync", connect.WithCodec(jsonCodecForTest{}))
	_, err := client.CallUnary(context.Background(), connect.NewRequest(&server.TriggerSyncRequest{
		LocalURI: "./contacts", SyncType: "bogus",
	}))
	require.Error(t, err)
	require.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
}

// jsonCodecForTest mirrors the server's own codec so the test client
// negotiates the same content type; it cannot import the unexported
// server.jsonCodec directly.
type jsonCodecForTest struct{}

func (jsonCodecForTest) Name() string                    { return "json" }
func (jsonCodecForTest) Marshal(v any) ([]byte, error)   { return json.Marshal(v) }
func (jsonCodecForTest) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
