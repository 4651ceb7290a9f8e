package server_test

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"connectrpc.com/connect"

	"github.com/go-omads/omads/internal/server"
)

// -------------------------------------------------------------------------
// TestLoggingInterceptor
// -------------------------------------------------------------------------

func TestLoggingInterceptorSuccess(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.DiscardHandler)
	env := setupTestServer(t, connect.WithInterceptors(server.LoggingInterceptor(logger)))

	resp := callUnary[server.ListSessionsRequest, server.ListSessionsResponse](
		t, env, "/omads.admin.v1.AdminService/ListSessions", &server.ListSessionsRequest{})
	if resp == nil {
		t.Fatal("response is nil")
	}
}

func TestLoggingInterceptorError(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.DiscardHandler)
	env := setupTestServer(t, connect.WithInterceptors(server.LoggingInterceptor(logger)))

	client := connect.NewClient[server.GetSessionRequest, server.GetSessionResponse](
		env.http, env.baseURL+"/omads.admin.v1.AdminService/GetSession", connect.WithCodec(jsonCodecForTest{}))
	_, err := client.CallUnary(context.Background(), connect.NewRequest(&server.GetSessionRequest{SessionID: "missing"}))
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	var connectErr *connect.Error
	if !errors.As(err, &connectErr) {
		t.Fatalf("expected connect.Error, got %T: %v", err, err)
	}
	if connectErr.Code() != connect.CodeNotFound {
		t.Errorf("code = %s, want NotFound", connectErr.Code())
	}
}

// -------------------------------------------------------------------------
// TestRecoveryInterceptor
// -------------------------------------------------------------------------

func TestRecoveryInterceptorNoPanic(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.DiscardHandler)
	env := setupTestServer(t, connect.WithInterceptors(server.RecoveryInterceptor(logger)))

	resp := callUnary[server.ListSessionsRequest, server.ListSessionsResponse](
		t, env, "/omads.admin.v1.AdminService/ListSessions", &server.ListSessionsRequest{})
	if resp == nil {
		t.Fatal("response is nil")
	}
}

func TestRecoveryInterceptorPanic(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.DiscardHandler)

	type panicRequest struct{}
	type panicResponse struct{}

	handler := connect.NewUnaryHandler(
		"/omads.admin.v1.PanicService/Panic",
		func(context.Context, *connect.Request[panicRequest]) (*connect.Response[panicResponse], error) {
			panic("intentional test panic")
		},
		connect.WithCodec(jsonCodecForTest{}),
		connect.WithInterceptors(server.RecoveryInterceptor(logger)),
	)

	mux := http.NewServeMux()
	mux.Handle("/omads.admin.v1.PanicService/Panic", handler)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client := connect.NewClient[panicRequest, panicResponse](
		srv.Client(), srv.URL+"/omads.admin.v1.PanicService/Panic", connect.WithCodec(jsonCodecForTest{}))
	_, err := client.CallUnary(context.Background(), connect.NewRequest(&panicRequest{}))
	if err == nil {
		t.Fatal("expected error after panic, got nil")
	}

	var connectErr *connect.Error
	if !errors.As(err, &connectErr) {
		t.Fatalf("expected connect.Error, got %T: %v", err, err)
	}
	if connectErr.Code() != connect.CodeInternal {
		t.Errorf("code = %s, want Internal", connectErr.Code())
	}
}

// -------------------------------------------------------------------------
// TestBothInterceptors -- logging + recovery together
// -------------------------------------------------------------------------

func TestBothInterceptors(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.DiscardHandler)
	env := setupTestServer(t,
		connect.WithInterceptors(server.LoggingInterceptor(logger), server.RecoveryInterceptor(logger)),
	)

	resp := callUnary[server.ListSessionsRequest, server.ListSessionsResponse](
		t, env, "/omads.admin.v1.AdminService/ListSessions", &server.ListSessionsRequest{})
	if resp == nil {
		t.Fatal("response is nil")
	}
}
