package commands

import (
	"context"
	"net/http"

	"connectrpc.com/connect"

	"github.com/go-omads/omads/internal/server"
)

// procedurePrefix must match internal/server.New's mount point; there is no
// protoc-generated client stub to share it through, so it is restated here.
const procedurePrefix = "/omads.admin.v1.AdminService/"

// adminClient is a hand-built ConnectRPC client for the admin/control plane
// (spec §6), playing the role the teacher's generated bfdv1connect.BfdServiceClient
// plays for gobfdctl -- but built from connect.NewClient directly, since the
// admin service has no .proto source and no protoc step (internal/server's
// own doc comment).
type adminClient struct {
	listSessions *connect.Client[server.ListSessionsRequest, server.ListSessionsResponse]
	getSession   *connect.Client[server.GetSessionRequest, server.GetSessionResponse]
	getChangeLog *connect.Client[server.GetChangeLogRequest, server.GetChangeLogResponse]
	triggerSync  *connect.Client[server.TriggerSyncRequest, server.TriggerSyncResponse]
}

func newAdminClient(httpClient *http.Client, baseURL string) *adminClient {
	opt := connect.WithCodec(jsonCodec{})

	return &adminClient{
		listSessions: connect.NewClient[server.ListSessionsRequest, server.ListSessionsResponse](
			httpClient, baseURL+procedurePrefix+"ListSessions", opt),
		getSession: connect.NewClient[server.GetSessionRequest, server.GetSessionResponse](
			httpClient, baseURL+procedurePrefix+"GetSession", opt),
		getChangeLog: connect.NewClient[server.GetChangeLogRequest, server.GetChangeLogResponse](
			httpClient, baseURL+procedurePrefix+"GetChangeLog", opt),
		triggerSync: connect.NewClient[server.TriggerSyncRequest, server.TriggerSyncResponse](
			httpClient, baseURL+procedurePrefix+"TriggerSync", opt),
	}
}

func (c *adminClient) ListSessions(ctx context.Context) (*server.ListSessionsResponse, error) {
	resp, err := c.listSessions.CallUnary(ctx, connect.NewRequest(&server.ListSessionsRequest{}))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

func (c *adminClient) GetSession(ctx context.Context, sessionID string) (*server.GetSessionResponse, error) {
	resp, err := c.getSession.CallUnary(ctx, connect.NewRequest(&server.GetSessionRequest{SessionID: sessionID}))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

func (c *adminClient) GetChangeLog(ctx context.Context, remoteDevice, localURI string) (*server.GetChangeLogResponse, error) {
	resp, err := c.getChangeLog.CallUnary(ctx, connect.NewRequest(&server.GetChangeLogRequest{
		RemoteDevice: remoteDevice,
		LocalURI:     localURI,
	}))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

func (c *adminClient) TriggerSync(ctx context.Context, remoteDevice, localURI, syncType string) (*server.TriggerSyncResponse, error) {
	resp, err := c.triggerSync.CallUnary(ctx, connect.NewRequest(&server.TriggerSyncRequest{
		RemoteDevice: remoteDevice,
		LocalURI:     localURI,
		SyncType:     syncType,
	}))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}
