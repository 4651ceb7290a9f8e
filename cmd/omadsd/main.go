// omadsd is the sync daemon: it serves inbound SyncML exchanges over HTTP,
// persists ChangeLog/UID-mapping state, and exposes an admin/control plane
// plus Prometheus metrics (spec §6).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/go-omads/omads/internal/auth"
	"github.com/go-omads/omads/internal/changelog"
	"github.com/go-omads/omads/internal/command"
	"github.com/go-omads/omads/internal/config"
	"github.com/go-omads/omads/internal/metrics"
	"github.com/go-omads/omads/internal/notify"
	"github.com/go-omads/omads/internal/server"
	"github.com/go-omads/omads/internal/session"
	"github.com/go-omads/omads/internal/storage"
	"github.com/go-omads/omads/internal/storage/memplugin"
	"github.com/go-omads/omads/internal/target"
	appversion "github.com/go-omads/omads/internal/version"
	"github.com/go-omads/omads/internal/wire"
	"github.com/go-omads/omads/internal/wire/xmlcodec"
)

// shutdownTimeout is the maximum time to wait for HTTP servers to drain
// active connections during graceful shutdown.
const shutdownTimeout = 10 * time.Second

// maxRequestBody caps a single inbound SyncML message body.
const maxRequestBody = 16 * 1024 * 1024 // 16 MiB

var (
	// errUnknownSyncType indicates a session config entry named an
	// unrecognized sync_type (koanf validation already rejects this, but
	// the daemon re-checks at assembly time for defense in depth).
	errUnknownSyncType = errors.New("unknown sync_type")

	// errUnknownAuthScheme indicates an unrecognized auth_scheme.
	errUnknownAuthScheme = errors.New("unknown auth_scheme")

	// errUnknownConflictPolicy indicates an unrecognized conflict_policy.
	errUnknownConflictPolicy = errors.New("unknown conflict_policy")
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to configuration file (YAML)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.New(slog.NewTextHandler(os.Stderr, nil)).Error("failed to load configuration",
			slog.String("error", err.Error()))
		return 1
	}

	logLevel := new(slog.LevelVar)
	logLevel.Set(config.ParseLogLevel(cfg.Log.Level))
	logger := newLoggerWithLevel(cfg.Log, logLevel)

	logger.Info("omadsd starting",
		slog.String("version", appversion.Version),
		slog.String("sync_addr", cfg.Sync.ListenAddr),
		slog.String("grpc_addr", cfg.GRPC.Addr),
		slog.String("metrics_addr", cfg.Metrics.Addr),
	)

	store, err := changelog.OpenBoltStore(cfg.Sync.ChangeLogPath, logger)
	if err != nil {
		logger.Error("failed to open changelog store", slog.String("error", err.Error()))
		return 1
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("failed to close changelog store", slog.String("error", err.Error()))
		}
	}()

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	registry := server.NewRegistry()
	emitter := notify.NewEmitter(logger)
	defer func() {
		if err := emitter.Close(); err != nil {
			logger.Warn("failed to close notify emitter", slog.String("error", err.Error()))
		}
	}()

	sessions, err := buildSessions(cfg, store, logger)
	if err != nil {
		logger.Error("failed to assemble declarative sessions", slog.String("error", err.Error()))
		return 1
	}
	for remoteDevice, sess := range sessions {
		if err := registry.Register(sess); err != nil {
			logger.Error("failed to register session",
				slog.String("remote_device", remoteDevice), slog.String("error", err.Error()))
			return 1
		}
		collector.RegisterSession(remoteDevice, sess.Role().String())
	}

	if err := runServers(cfg, registry, sessions, store, collector, emitter, reg, logger, *configPath, logLevel); err != nil {
		logger.Error("omadsd exited with error", slog.String("error", err.Error()))
		return 1
	}

	logger.Info("omadsd stopped")
	return 0
}

// runServers starts the sync, admin, and metrics HTTP servers under a
// signal-aware errgroup and blocks until they all stop.
func runServers(
	cfg *config.Config,
	registry *server.Registry,
	sessions map[string]*session.Session,
	store changelog.Store,
	collector *metrics.Collector,
	emitter *notify.Emitter,
	reg *prometheus.Registry,
	logger *slog.Logger,
	configPath string,
	logLevel *slog.LevelVar,
) error {
	syncSrv := &http.Server{
		Addr:              cfg.Sync.ListenAddr,
		Handler:           newSyncServer(sessions, collector, emitter, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	adminSrv := newAdminServer(cfg.GRPC, registry, store, logger)
	metricsSrv := newMetricsServer(cfg.Metrics, reg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)

	lc := net.ListenConfig{}
	g.Go(func() error {
		logger.Info("sync server listening", slog.String("addr", cfg.Sync.ListenAddr))
		return listenAndServe(gCtx, &lc, syncSrv)
	})
	g.Go(func() error {
		logger.Info("admin server listening", slog.String("addr", cfg.GRPC.Addr))
		return listenAndServe(gCtx, &lc, adminSrv)
	})
	g.Go(func() error {
		logger.Info("metrics server listening",
			slog.String("addr", cfg.Metrics.Addr), slog.String("path", cfg.Metrics.Path))
		return listenAndServe(gCtx, &lc, metricsSrv)
	})

	startDaemonGoroutines(gCtx, g, configPath, logLevel, logger)

	notifyReady(logger)

	g.Go(func() error {
		<-gCtx.Done()
		return gracefulShutdown(gCtx, logger, syncSrv, adminSrv, metricsSrv)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("run servers: %w", err)
	}
	return nil
}

func startDaemonGoroutines(ctx context.Context, g *errgroup.Group, configPath string, logLevel *slog.LevelVar, logger *slog.Logger) {
	g.Go(func() error {
		return runWatchdog(ctx, logger)
	})

	sigHUP := make(chan os.Signal, 1)
	signal.Notify(sigHUP, syscall.SIGHUP)
	g.Go(func() error {
		defer signal.Stop(sigHUP)
		handleSIGHUP(ctx, sigHUP, configPath, logLevel, logger)
		return nil
	})
}

// -------------------------------------------------------------------------
// Sync endpoint
// -------------------------------------------------------------------------

// syncServer answers SyncML exchanges for every declaratively configured
// remote device, one pre-provisioned *session.Session per device, routed
// by the {remoteDevice} path segment.
type syncServer struct {
	mux *http.ServeMux

	sessions  map[string]*session.Session
	codec     wire.Codec
	collector *metrics.Collector
	emitter   *notify.Emitter
	logger    *slog.Logger

	mu         sync.Mutex
	lastPhases map[string]session.Phase
}

func newSyncServer(sessions map[string]*session.Session, collector *metrics.Collector, emitter *notify.Emitter, logger *slog.Logger) *syncServer {
	s := &syncServer{
		sessions:   sessions,
		codec:      xmlcodec.New(),
		collector:  collector,
		emitter:    emitter,
		logger:     logger.With(slog.String("component", "sync")),
		lastPhases: make(map[string]session.Phase, len(sessions)),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/sync/{remoteDevice}", s.handle)
	s.mux = mux
	return s
}

func (s *syncServer) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

func (s *syncServer) handle(w http.ResponseWriter, r *http.Request) {
	remoteDevice := r.PathValue("remoteDevice")
	sess, ok := s.sessions[remoteDevice]
	if !ok {
		http.Error(w, "unknown remote device", http.StatusNotFound)
		return
	}

	contentType := wire.ContentType(r.Header.Get("Content-Type"))

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody+1))
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}
	if len(body) > maxRequestBody {
		http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
		return
	}

	in, err := s.codec.Parse(r.Context(), contentType, body)
	if err != nil {
		s.logger.Warn("failed to parse inbound message",
			slog.String("remote_device", remoteDevice), slog.Any("error", err))
		http.Error(w, "malformed SyncML message", http.StatusBadRequest)
		return
	}

	out, err := sess.HandleMessage(r.Context(), in)
	s.recordPhase(remoteDevice, sess)
	if err != nil {
		s.logger.Warn("session failed to handle message",
			slog.String("remote_device", remoteDevice), slog.Any("error", err))
		if errors.Is(err, auth.ErrAuthFailed) {
			s.collector.IncAuthFailures(remoteDevice)
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if sess.Phase().Terminal() {
		s.onTerminal(r.Context(), remoteDevice, sess)
	}

	payload, err := s.codec.Encode(r.Context(), contentType, out)
	if err != nil {
		s.logger.Error("failed to encode outbound message",
			slog.String("remote_device", remoteDevice), slog.Any("error", err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", string(contentType))
	if _, err := w.Write(payload); err != nil {
		s.logger.Warn("failed to write response", slog.Any("error", err))
	}
}

// recordPhase emits a phase-transition metric whenever a session's phase
// differs from what it was after the previous message on this connection.
func (s *syncServer) recordPhase(remoteDevice string, sess *session.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.lastPhases[remoteDevice]
	cur := sess.Phase()
	if ok && prev == cur {
		return
	}
	s.lastPhases[remoteDevice] = cur
	from := session.PhaseNotPrepared
	if ok {
		from = prev
	}
	s.collector.RecordPhaseTransition(remoteDevice, from.String(), cur.String())
}

// onTerminal finalizes a successful session, emits the desktop notification
// for every target it carried, and marks completion in the sync log.
func (s *syncServer) onTerminal(ctx context.Context, remoteDevice string, sess *session.Session) {
	result := "success"
	if sess.Phase().IsError() {
		result = sess.Phase().String()
	} else if err := sess.Finalize(ctx); err != nil {
		s.logger.Error("failed to finalize session",
			slog.String("remote_device", remoteDevice), slog.Any("error", err))
		result = "finalize_error"
	}

	for _, t := range sess.Targets().All() {
		s.emitter.SyncFinished(sess.SessionID(), t.LocalURI, result)
	}

	s.logger.Info("session finished",
		slog.String("remote_device", remoteDevice), slog.String("result", result))
}

// -------------------------------------------------------------------------
// Session assembly
// -------------------------------------------------------------------------

// buildSessions groups the declarative config.SessionConfig entries by
// remote device (one Session per device, potentially many targets) and
// wires each one's storage plugins, auth negotiator, and conflict policy.
func buildSessions(cfg *config.Config, store changelog.Store, logger *slog.Logger) (map[string]*session.Session, error) {
	type group struct {
		entries []config.SessionConfig
	}
	groups := make(map[string]*group)
	var order []string
	for _, sc := range cfg.Sessions {
		g, ok := groups[sc.RemoteDevice]
		if !ok {
			g = &group{}
			groups[sc.RemoteDevice] = g
			order = append(order, sc.RemoteDevice)
		}
		g.entries = append(g.entries, sc)
	}

	sessions := make(map[string]*session.Session, len(groups))
	for _, remoteDevice := range order {
		g := groups[remoteDevice]

		plugins := make(map[string]storage.Plugin, len(g.entries))
		profiles := make(map[string]session.Profile, len(g.entries))
		var targets []*target.Target

		for _, sc := range g.entries {
			syncTypeStr := sc.SyncType
			if syncTypeStr == "" {
				syncTypeStr = "fast"
			}
			syncType, err := parseSyncType(syncTypeStr)
			if err != nil {
				return nil, fmt.Errorf("session %s/%s: %w", remoteDevice, sc.LocalURI, err)
			}

			plugins[sc.LocalURI] = memplugin.New(sc.LocalURI)
			profiles[sc.LocalURI] = session.Profile{LocalURI: sc.LocalURI, ConfiguredType: syncType}
			targets = append(targets, &target.Target{
				LocalURI:  sc.LocalURI,
				RemoteURI: sc.RemoteURI,
				Direction: target.DirectionTwoWay,
				Type:      syncType,
				Initiator: target.InitiatorClient,
			})
		}

		first := g.entries[0]
		conflictPolicyStr := first.ConflictPolicy
		if conflictPolicyStr == "" {
			conflictPolicyStr = cfg.Sync.ConflictPolicy
		}
		policy, err := parseConflictPolicy(conflictPolicyStr)
		if err != nil {
			return nil, fmt.Errorf("session %s: %w", remoteDevice, err)
		}

		scheme, err := parseAuthScheme(cfg.Sync.AuthScheme)
		if err != nil {
			return nil, fmt.Errorf("session %s: %w", remoteDevice, err)
		}

		negotiator := auth.NewNegotiator(auth.Config{
			Scheme:       scheme,
			Username:     first.Username,
			Password:     first.Password,
			LocalDevice:  "omadsd",
			RemoteDevice: remoteDevice,
		}, store)

		sessCfg := session.Config{
			Role:            command.RoleServer,
			ProtocolVersion: cfg.Sync.ProtocolVersion,
			SessionID:       remoteDevice,
			RemoteDevice:    remoteDevice,
			LocalDevice:     target.DeviceInfo{DeviceID: "omadsd"},
			Auth:            negotiator,
			ConflictPolicy:  policy,
			Plugins:         plugins,
			Profiles:        profiles,
			ChangeLog:       store,
			MaxMsgSize:      cfg.Sync.MaxMsgSize,
			Logger:          logger,
		}

		sess := session.NewSession(sessCfg)
		for _, t := range targets {
			sess.Targets().Upsert(t)
		}
		sessions[remoteDevice] = sess
	}

	return sessions, nil
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
		return 0, fmt.Errorf("%q: %w", s, errUnknownSyncType)
	}
}

func parseAuthScheme(s string) (auth.Scheme, error) {
	switch s {
	case "", "none":
		return auth.SchemeNone, nil
	case "basic":
		return auth.SchemeBasic, nil
	case "md5":
		return auth.SchemeMD5, nil
	default:
		return 0, fmt.Errorf("%q: %w", s, errUnknownAuthScheme)
	}
}

func parseConflictPolicy(s string) (storage.Policy, error) {
	switch s {
	case "", "prefer_local":
		return storage.PreferLocal, nil
	case "prefer_remote":
		return storage.PreferRemote, nil
	default:
		return 0, fmt.Errorf("%q: %w", s, errUnknownConflictPolicy)
	}
}

// -------------------------------------------------------------------------
// Systemd integration -- sd_notify + watchdog
// -------------------------------------------------------------------------

func notifyReady(logger *slog.Logger) {
	sent, err := daemon.SdNotify(false, daemon.SdNotifyReady)
	if err != nil {
		logger.Warn("failed to notify systemd readiness", slog.String("error", err.Error()))
		return
	}
	if sent {
		logger.Info("notified systemd: READY")
	}
}

func notifyStopping(logger *slog.Logger) {
	sent, err := daemon.SdNotify(false, daemon.SdNotifyStopping)
	if err != nil {
		logger.Warn("failed to notify systemd stopping", slog.String("error", err.Error()))
		return
	}
	if sent {
		logger.Info("notified systemd: STOPPING")
	}
}

// runWatchdog sends periodic watchdog keepalives to systemd at half the
// configured interval, exiting immediately if no watchdog is configured.
func runWatchdog(ctx context.Context, logger *slog.Logger) error {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		logger.Warn("failed to check systemd watchdog", slog.String("error", err.Error()))
		return nil
	}
	if interval == 0 {
		logger.Debug("systemd watchdog not configured, skipping keepalive")
		return nil
	}

	tickInterval := interval / 2
	logger.Info("systemd watchdog enabled",
		slog.Duration("watchdog_sec", interval), slog.Duration("keepalive_interval", tickInterval))

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, wdErr := daemon.SdNotify(false, daemon.SdNotifyWatchdog); wdErr != nil {
				logger.Warn("failed to send watchdog keepalive", slog.String("error", wdErr.Error()))
			}
		}
	}
}

// -------------------------------------------------------------------------
// SIGHUP reload -- log level only
// -------------------------------------------------------------------------

// handleSIGHUP reloads the dynamic log level on each SIGHUP. Declarative
// session reconciliation (add/remove sessions without a restart) is not
// implemented: unlike BFD sessions, a mid-flight SyncML exchange cannot be
// safely torn down between messages, so session topology changes currently
// require a restart.
func handleSIGHUP(ctx context.Context, sigHUP <-chan os.Signal, configPath string, logLevel *slog.LevelVar, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-sigHUP:
			logger.Info("received SIGHUP, reloading log level")
			newCfg, err := loadConfig(configPath)
			if err != nil {
				logger.Error("failed to reload configuration, keeping current settings",
					slog.String("error", err.Error()))
				continue
			}
			oldLevel := logLevel.Level()
			newLevel := config.ParseLogLevel(newCfg.Log.Level)
			logLevel.Set(newLevel)
			logger.Info("configuration reloaded",
				slog.String("old_log_level", oldLevel.String()), slog.String("new_log_level", newLevel.String()))
		}
	}
}

// -------------------------------------------------------------------------
// Graceful shutdown
// -------------------------------------------------------------------------

func gracefulShutdown(ctx context.Context, logger *slog.Logger, servers ...*http.Server) error {
	logger.Info("initiating graceful shutdown")
	notifyStopping(logger)

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	var shutdownErr error
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			shutdownErr = errors.Join(shutdownErr, fmt.Errorf("shutdown server: %w", err))
		}
	}
	return shutdownErr
}

// -------------------------------------------------------------------------
// Server construction helpers
// -------------------------------------------------------------------------

func listenAndServe(ctx context.Context, lc *net.ListenConfig, srv *http.Server) error {
	ln, err := lc.Listen(ctx, "tcp", srv.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", srv.Addr, err)
	}
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve on %s: %w", srv.Addr, err)
	}
	return nil
}

func newAdminServer(cfg config.GRPCConfig, registry *server.Registry, store changelog.Store, logger *slog.Logger) *http.Server {
	handler := server.New(registry, store, logger,
		connect.WithInterceptors(server.LoggingInterceptor(logger), server.RecoveryInterceptor(logger)),
	)
	return &http.Server{Addr: cfg.Addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
}

func newMetricsServer(cfg config.MetricsConfig, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return &http.Server{Addr: cfg.Addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("load config from %s: %w", path, err)
		}
		return cfg, nil
	}
	return config.DefaultConfig(), nil
}

func newLoggerWithLevel(cfg config.LogConfig, level *slog.LevelVar) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch cfg.Format {
	case "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
