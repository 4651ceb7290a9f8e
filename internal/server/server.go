// Package server implements the admin/control plane for the omads sync
// daemon: a ConnectRPC HTTP handler with a plain-JSON codec (no protoc
// step) exposing read access to live sessions and the persisted ChangeLog,
// plus a TriggerSync action (spec §6 "Admin/control plane").
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"connectrpc.com/connect"
	"connectrpc.com/grpchealth"

	"github.com/go-omads/omads/internal/changelog"
	"github.com/go-omads/omads/internal/session"
	"github.com/go-omads/omads/internal/target"
)

// procedurePrefix names the (protoc-less) service this handler answers for.
const procedurePrefix = "/omads.admin.v1.AdminService/"

// Sentinel errors for the admin server.
var (
	// ErrMissingSessionID indicates a GetSession request had no session_id.
	ErrMissingSessionID = errors.New("session_id must not be empty")

	// ErrMissingLocalURI indicates a GetChangeLog/TriggerSync request had no local_uri.
	ErrMissingLocalURI = errors.New("local_uri must not be empty")

	// ErrUnknownSyncType indicates a TriggerSync request named an unrecognized sync type.
	ErrUnknownSyncType = errors.New("sync_type must be fast, slow, or refresh")
)

// -------------------------------------------------------------------------
// Wire types (plain structs, JSON-coded -- no protoc step)
// -------------------------------------------------------------------------

// SessionSummary is the admin-facing view of one live Session.
type SessionSummary struct {
	SessionID    string `json:"session_id"`
	RemoteDevice string `json:"remote_device"`
	Role         string `json:"role"`
	Phase        string `json:"phase"`
}

type ListSessionsRequest struct{}

type ListSessionsResponse struct {
	Sessions []SessionSummary `json:"sessions"`
}

type GetSessionRequest struct {
	SessionID string `json:"session_id"`
}

type GetSessionResponse struct {
	Session SessionSummary `json:"session"`
}

type GetChangeLogRequest struct {
	RemoteDevice string `json:"remote_device"`
	LocalURI     string `json:"local_uri"`
}

type UIDMapping struct {
	LocalKey  string `json:"local_key"`
	RemoteKey string `json:"remote_key"`
}

type GetChangeLogResponse struct {
	LocalAnchor  string       `json:"local_anchor"`
	RemoteAnchor string       `json:"remote_anchor"`
	Mappings     []UIDMapping `json:"mappings"`
}

type TriggerSyncRequest struct {
	RemoteDevice string `json:"remote_device"`
	LocalURI     string `json:"local_uri"`
	SyncType     string `json:"sync_type"`
}

type TriggerSyncResponse struct {
	Accepted bool `json:"accepted"`
}

// -------------------------------------------------------------------------
// AdminServer
// -------------------------------------------------------------------------

// AdminServer answers admin RPCs by delegating to a session Registry and a
// changelog.Store. It never drives a session's protocol state directly; the
// only mutation it performs is marking a target for a forced sync type,
// picked up by that session's own next DiscoverLocalChanges pass.
type AdminServer struct {
	registry *Registry
	store    changelog.Store
	logger   *slog.Logger
}

// New builds an AdminServer's ConnectRPC handlers and returns an
// http.Handler covering every admin procedure, mounted at procedurePrefix.
func New(registry *Registry, store changelog.Store, logger *slog.Logger, opts ...connect.HandlerOption) http.Handler {
	srv := &AdminServer{
		registry: registry,
		store:    store,
		logger:   logger.With(slog.String("component", "server")),
	}

	opts = append([]connect.HandlerOption{connect.WithCodec(jsonCodec{})}, opts...)

	mux := http.NewServeMux()
	mux.Handle(procedurePrefix+"ListSessions",
		connect.NewUnaryHandler(procedurePrefix+"ListSessions", srv.ListSessions, opts...))
	mux.Handle(procedurePrefix+"GetSession",
		connect.NewUnaryHandler(procedurePrefix+"GetSession", srv.GetSession, opts...))
	mux.Handle(procedurePrefix+"GetChangeLog",
		connect.NewUnaryHandler(procedurePrefix+"GetChangeLog", srv.GetChangeLog, opts...))
	mux.Handle(procedurePrefix+"TriggerSync",
		connect.NewUnaryHandler(procedurePrefix+"TriggerSync", srv.TriggerSync, opts...))

	checker := grpchealth.NewStaticChecker(procedurePrefix[1 : len(procedurePrefix)-1])
	healthPath, healthHandler := grpchealth.NewHandler(checker)
	mux.Handle(healthPath, healthHandler)

	return mux
}

// ListSessions returns every currently registered session.
func (s *AdminServer) ListSessions(
	ctx context.Context,
	_ *connect.Request[ListSessionsRequest],
) (*connect.Response[ListSessionsResponse], error) {
	s.logger.InfoContext(ctx, "ListSessions called")

	live := s.registry.Sessions()
	sessions := make([]SessionSummary, 0, len(live))
	for _, sess := range live {
		sessions = append(sessions, summarize(sess))
	}

	return connect.NewResponse(&ListSessionsResponse{Sessions: sessions}), nil
}

// GetSession returns a single session by its protocol-level session id.
func (s *AdminServer) GetSession(
	ctx context.Context,
	req *connect.Request[GetSessionRequest],
) (*connect.Response[GetSessionResponse], error) {
	id := req.Msg.SessionID
	if id == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, ErrMissingSessionID)
	}

	sess, ok := s.registry.Lookup(id)
	if !ok {
		return nil, connect.NewError(connect.CodeNotFound,
			fmt.Errorf("session %q: %w", id, ErrSessionNotFound))
	}

	return connect.NewResponse(&GetSessionResponse{Session: summarize(sess)}), nil
}

// GetChangeLog returns the persisted anchors and UID mappings for one
// (remote device, local URI) pair (spec §4.4).
func (s *AdminServer) GetChangeLog(
	ctx context.Context,
	req *connect.Request[GetChangeLogRequest],
) (*connect.Response[GetChangeLogResponse], error) {
	if req.Msg.LocalURI == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, ErrMissingLocalURI)
	}

	key := changelog.Key{
		RemoteDevice: req.Msg.RemoteDevice,
		SourceDBURI:  req.Msg.LocalURI,
		Direction:    target.DirectionTwoWay,
	}

	rec, err := s.store.Load(ctx, key)
	if err != nil {
		if errors.Is(err, changelog.ErrNotFound) {
			return nil, connect.NewError(connect.CodeNotFound, err)
		}
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	mappings := make([]UIDMapping, 0, len(rec.Mappings))
	for _, m := range rec.Mappings {
		mappings = append(mappings, UIDMapping{LocalKey: m.LocalKey, RemoteKey: m.RemoteKey})
	}

	return connect.NewResponse(&GetChangeLogResponse{
		LocalAnchor:  rec.LocalAnchor,
		RemoteAnchor: rec.RemoteAnchor,
		Mappings:     mappings,
	}), nil
}

// TriggerSync marks the named target's sync type on any matching live
// session, forcing a slow/refresh resync on its next pass (spec §3
// "forced sync", target.Target.ForceSlowSync analog).
func (s *AdminServer) TriggerSync(
	ctx context.Context,
	req *connect.Request[TriggerSyncRequest],
) (*connect.Response[TriggerSyncResponse], error) {
	if req.Msg.LocalURI == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, ErrMissingLocalURI)
	}

	syncType, err := parseSyncType(req.Msg.SyncType)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	accepted := false
	for _, sess := range s.registry.Sessions() {
		if req.Msg.RemoteDevice != "" && sess.RemoteDeviceID() != req.Msg.RemoteDevice {
			continue
		}
		tg, ok := sess.Targets().FindByLocal(req.Msg.LocalURI)
		if !ok {
			continue
		}
		tg.Type = syncType
		accepted = true
	}

	return connect.NewResponse(&TriggerSyncResponse{Accepted: accepted}), nil
}

// -------------------------------------------------------------------------
// Internal helpers
// -------------------------------------------------------------------------

func summarize(sess *session.Session) SessionSummary {
	return SessionSummary{
		SessionID:    sess.SessionID(),
		RemoteDevice: sess.RemoteDeviceID(),
		Role:         sess.Role().String(),
		Phase:        sess.Phase().String(),
	}
}

func parseSyncType(s string) (target.Type, error) {
	switch s {
	case "fast":
		return target.TypeFast, nil
	case "slow":
		return target.TypeSlow, nil
	case "refresh":
		return target.TypeRefresh, nil
	default:
		return 0, fmt.Errorf("%q: %w", s, ErrUnknownSyncType)
	}
}
