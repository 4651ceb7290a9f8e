package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-omads/omads/internal/auth"
	"github.com/go-omads/omads/internal/changelog"
	"github.com/go-omads/omads/internal/command"
	"github.com/go-omads/omads/internal/response"
	"github.com/go-omads/omads/internal/storage"
	"github.com/go-omads/omads/internal/target"
	"github.com/go-omads/omads/internal/wire"
)

// supportedVerDTD lists the SyncML protocol versions this session
// understands (spec §4.1 "UNSUPPORTED_PROTOCOL").
var supportedVerDTD = map[string]bool{"1.1": true, "1.2": true}

// Profile configures one target this session is willing to sync (spec §6
// "db pairs"): the local datastore URI and the strongest sync type this
// side's configuration allows for it.
type Profile struct {
	LocalURI       string
	ConfiguredType target.Type
}

// Config configures a new Session (spec §6 "Session config").
type Config struct {
	Role            command.Role
	ProtocolVersion string
	SessionID       string
	RemoteDevice    string

	LocalDevice target.DeviceInfo

	Auth           *auth.Negotiator
	ConflictPolicy storage.Policy
	Plugins        map[string]storage.Plugin
	Profiles       map[string]Profile

	ChangeLog changelog.Store

	MaxMsgSize int64
	MaxObjSize int64

	Logger *slog.Logger
}

// Session implements the Session State Machine (spec §4.1): one instance
// per sync exchange, owning the target set, the command processor, and
// outbound message assembly.
type Session struct {
	cfg   Config
	phase Phase

	targets   *target.Set
	processor *command.Processor
	gen       *response.Generator
	agg       *response.Aggregator
	outbox    *Outbox

	log *slog.Logger

	suspended bool
	msgCount  int
}

// NewSession creates a Session ready to process its first inbound message.
// The NOT_PREPARED -> PREPARED bookkeeping transition (spec §4.1) happens
// here, before any wire exchange, since it carries no observable behavior.
func NewSession(cfg Config) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "session"), slog.String("session_id", cfg.SessionID))

	targets := target.NewSet()
	deps := command.Dependencies{
		Role:            cfg.Role,
		ProtocolVersion: cfg.ProtocolVersion,
		SessionID:       cfg.SessionID,
		LocalDevice:     cfg.LocalDevice,
		Auth:            cfg.Auth,
		ConflictPolicy:  cfg.ConflictPolicy,
		Plugins:         cfg.Plugins,
	}

	return &Session{
		cfg:       cfg,
		phase:     PhasePrepared,
		targets:   targets,
		processor: command.NewProcessor(deps, targets),
		gen:       response.NewGenerator(cfg.MaxMsgSize),
		agg:       response.NewAggregator(),
		outbox:    NewOutbox(),
		log:       logger,
	}
}

// Phase returns the session's current state (spec §4.1).
func (s *Session) Phase() Phase { return s.phase }

// SessionID returns the session's protocol-level identifier.
func (s *Session) SessionID() string { return s.cfg.SessionID }

// Targets returns the session's live SyncTarget set.
func (s *Session) Targets() *target.Set { return s.targets }

// RemoteDevice returns the peer's cached device info, if exchanged yet.
func (s *Session) RemoteDevice() *target.DeviceInfo { return s.processor.RemoteDevice() }

// RemoteDeviceID returns the peer device identifier this session was
// configured with (changelog.Key.RemoteDevice), independent of whether
// device info has been exchanged yet.
func (s *Session) RemoteDeviceID() string { return s.cfg.RemoteDevice }

// Role returns whether this session is acting as client or server.
func (s *Session) Role() command.Role { return s.cfg.Role }

// Suspended reports whether the peer most recently asked to SUSPEND.
func (s *Session) Suspended() bool { return s.suspended }

// Abort immediately ends the session (spec §4.1 "Cancellation: abort can be
// requested at any time").
func (s *Session) Abort() {
	s.phase = Abort(s.phase)
}

// fail records a fatal error and moves the session into its corresponding
// terminal phase (spec §4.1 "Terminal error states", spec §7).
func (s *Session) fail(kind ErrorKind, err error) error {
	if p, ok := terminalPhase(kind); ok {
		s.phase = p
	}
	return err
}

func (s *Session) profileFor(localURI string) Profile {
	if p, ok := s.cfg.Profiles[localURI]; ok {
		return p
	}
	return Profile{LocalURI: localURI, ConfiguredType: target.TypeFast}
}

// storedAnchor returns the last local anchor persisted for localURI from a
// prior session, or "" if none exists yet (spec §4.4, §4.2 "force slow
// sync" mismatch check).
func (s *Session) storedAnchor(ctx context.Context, localURI string) string {
	if s.cfg.ChangeLog == nil {
		return ""
	}
	key := changelog.Key{RemoteDevice: s.cfg.RemoteDevice, SourceDBURI: localURI, Direction: target.DirectionTwoWay}
	rec, err := s.cfg.ChangeLog.Load(ctx, key)
	if err != nil {
		return ""
	}
	return rec.LocalAnchor
}

// advance transitions to the next phase for the session's role, if one is
// defined (spec §4.1). It is a no-op once in a terminal phase.
func (s *Session) advance() {
	if s.phase.Terminal() {
		return
	}
	if next, ok := Advance(s.cfg.Role, s.phase); ok {
		s.log.Debug("phase advance", slog.String("from", s.phase.String()), slog.String("to", next.String()))
		s.phase = next
	}
}

// HandleMessage processes one inbound SyncML message and returns the
// response message to send back (spec §4.1, §4.2, §4.6).
//
// Dispatch is a Go type switch over wire.Command concrete types rather than
// a second lookup table (spec.md §9 Design Note: "a tagged-union over
// command kinds for dispatch" -- the wire package's Command values already
// carry their own type, so a table keyed by Kind would just re-derive what
// the type switch gets for free).
func (s *Session) HandleMessage(ctx context.Context, in wire.Message) (wire.Message, error) {
	if s.phase.Terminal() {
		return wire.Message{}, fmt.Errorf("session: message received while %s", s.phase)
	}

	if in.Header.VerDTD != "" && !supportedVerDTD[in.Header.VerDTD] {
		return wire.Message{}, s.fail(ErrorKindUnsupportedProtocol,
			fmt.Errorf("%w: %q", ErrUnsupportedProtocol, in.Header.VerDTD))
	}

	s.msgCount++
	s.gen.BeginMessage()
	s.outbox.Acknowledge()

	headerStatus, err := s.processor.HandleHeader(ctx, in.Header)
	if err != nil {
		switch {
		case errors.Is(err, command.ErrSessionMismatch):
			return wire.Message{}, s.fail(ErrorKindCodec, err)
		case errors.Is(err, auth.ErrAuthFailed):
			return wire.Message{}, s.fail(ErrorKindAuth, err)
		default:
			return wire.Message{}, s.fail(ErrorKindPersistence, err)
		}
	}
	headerStatus.MsgRef = in.Header.MsgID
	s.agg.AddStatus(headerStatus)

	touched := make(map[string]*target.Target)
	var outboundCommands []wire.Command

	if next, ok := Shortcut(s.cfg.Role, s.phase); ok && hasSyncCommand(in.Commands) {
		s.phase = next
	}

	for _, c := range in.Commands {
		switch cmd := c.(type) {
		case *wire.Alert:
			s.handleAlert(ctx, cmd, touched, &outboundCommands)

		case *wire.Sync:
			s.handleSync(cmd, touched)

		case *wire.Map:
			s.handleMap(cmd, touched)

		case *wire.Get:
			s.handleGet(cmd, in.Header.MsgID)

		case *wire.Put:
			s.handlePut(cmd)

		case *wire.Results:
			if err := s.processor.HandleResults(cmd); err != nil {
				s.log.Warn("device-info results merge failed", slog.Any("error", err))
			}

		case *wire.Status:
			if _, err := s.processor.HandleStatus(ctx, cmd); err != nil {
				return wire.Message{}, s.fail(ErrorKindAuth, err)
			}

		case *wire.Final:
			// Handled via in.Final below; no per-command action.
		}
	}

	for key, t := range touched {
		results, err := s.processor.CommitTarget(ctx, t)
		if err != nil {
			return wire.Message{}, s.fail(ErrorKindPersistence, fmt.Errorf("commit %s: %w", key, err))
		}
		for _, r := range results {
			s.agg.AddStatus(command.StatusForResult(r, kindForOutcome(r.Outcome)))
		}
	}

	for _, status := range s.agg.Drain() {
		if st, ok := status.(*wire.Status); ok {
			st.CmdID = s.gen.NextCommandID()
		}
		s.gen.Offer(status)
	}
	for _, c := range outboundCommands {
		assignCommandID(c, s.gen)
		s.gen.Offer(c)
	}

	if in.Final {
		s.advance()
	}

	if s.phase == PhaseSendingItems {
		syncs, err := s.PrepareOutboundSync(ctx)
		if err != nil {
			return wire.Message{}, err
		}
		for _, sy := range syncs {
			s.gen.Offer(sy)
		}
	}

	respHeader := wire.Header{
		VerDTD:     in.Header.VerDTD,
		VerProto:   in.Header.VerProto,
		SessionID:  s.cfg.SessionID,
		MsgID:      s.msgCount,
		Target:     in.Header.Source,
		Source:     in.Header.Target,
		MaxMsgSize: s.cfg.MaxMsgSize,
		MaxObjSize: s.cfg.MaxObjSize,
	}

	final := in.Final && !s.gen.HasOverflow() && s.phase != PhaseSendingItems && s.phase != PhaseSendingMappings
	out := s.gen.Build(respHeader, final)
	s.outbox.Record(out, s.msgCount)

	return out, nil
}

// kindForOutcome infers which item command a committed Result belongs to
// from its CommitResult (spec §4.3 mapping table), since storage.Result
// itself does not retain the originating op.
func kindForOutcome(o storage.CommitResult) wire.Kind {
	switch o {
	case storage.CommitReplaced, storage.CommitInitReplaced:
		return wire.KindReplace
	case storage.CommitDeleted, storage.CommitInitDeleted, storage.CommitNotDeleted:
		return wire.KindDelete
	default:
		return wire.KindAdd
	}
}

// assignCommandID allocates a fresh outbound command id for commands this
// session originates itself (spec §3 invariant), as opposed to Status
// commands which reference an inbound CmdRef and are assigned in the drain
// loop above.
func assignCommandID(c wire.Command, gen *response.Generator) {
	switch cmd := c.(type) {
	case *wire.Alert:
		cmd.CmdID = gen.NextCommandID()
	case *wire.Results:
		cmd.CmdID = gen.NextCommandID()
	case *wire.Map:
		cmd.CmdID = gen.NextCommandID()
	}
}

func hasSyncCommand(commands []wire.Command) bool {
	for _, c := range commands {
		if _, ok := c.(*wire.Sync); ok {
			return true
		}
	}
	return false
}

func (s *Session) handleAlert(ctx context.Context, cmd *wire.Alert, touched map[string]*target.Target, outbound *[]wire.Command) {
	if cmd.Item != nil {
		profile := s.profileFor(cmd.Item.Target)
		stored := s.storedAnchor(ctx, cmd.Item.Target)
		res := s.processor.HandleSyncAlert(cmd.CmdID, cmd, profile.ConfiguredType, stored)
		s.agg.AddStatus(res.Status)
		if res.Target != nil {
			touched[res.Target.Key()] = res.Target
		}
		if res.Ack != nil {
			*outbound = append(*outbound, res.Ack)
		}
		return
	}

	res := s.processor.HandleNonSyncAlert(cmd.CmdID, cmd)
	s.agg.AddStatus(res.Status)
	s.suspended = res.Suspend
	if res.Resume {
		s.suspended = false
	}
}

func (s *Session) handleSync(cmd *wire.Sync, touched map[string]*target.Target) {
	t, ok := s.targets.Find(cmd.Target, cmd.Source)
	if !ok {
		t, ok = s.targets.FindByLocal(cmd.Target)
	}
	if !ok {
		s.agg.AddStatus(&wire.Status{Cmd: wire.KindSync, CmdRef: cmd.CmdID, Code: command.StatusNotFound})
		return
	}
	touched[t.Key()] = t

	s.agg.AddStatus(&wire.Status{Cmd: wire.KindSync, CmdRef: cmd.CmdID, Code: command.StatusSuccess})

	for _, inner := range cmd.Commands {
		switch ic := inner.(type) {
		case *wire.Add:
			statuses := s.processor.BufferItems(ic.CmdID, command.ItemAdd, t, ic.Items)
			for _, st := range statuses {
				st.Cmd = wire.KindAdd
				s.agg.AddStatus(st)
			}
		case *wire.Replace:
			statuses := s.processor.BufferItems(ic.CmdID, command.ItemReplace, t, ic.Items)
			for _, st := range statuses {
				st.Cmd = wire.KindReplace
				s.agg.AddStatus(st)
			}
		case *wire.Delete:
			statuses := s.processor.BufferItems(ic.CmdID, command.ItemDelete, t, ic.Items)
			for _, st := range statuses {
				st.Cmd = wire.KindDelete
				s.agg.AddStatus(st)
			}
		}
	}
}

func (s *Session) handleMap(cmd *wire.Map, touched map[string]*target.Target) {
	t, ok := s.targets.Find(cmd.Target, cmd.Source)
	if !ok {
		t, ok = s.targets.FindByLocal(cmd.Target)
	}
	allowed := s.cfg.Role == command.RoleServer && s.phase == PhaseReceivingMappings
	if !ok {
		s.agg.AddStatus(&wire.Status{Cmd: wire.KindMap, CmdRef: cmd.CmdID, Code: command.StatusNotFound})
		return
	}
	touched[t.Key()] = t
	s.agg.AddStatus(s.processor.HandleMap(cmd.CmdID, cmd, t, allowed))
}

func (s *Session) handleGet(cmd *wire.Get, msgID int) {
	status, results, err := s.processor.HandleGet(cmd.CmdID, msgID, cmd)
	if err != nil {
		s.log.Warn("handle get failed", slog.Any("error", err))
	}
	s.agg.AddStatus(status)
	if results != nil {
		results.CmdID = s.gen.NextCommandID()
		s.gen.Offer(results)
	}
}

func (s *Session) handlePut(cmd *wire.Put) {
	status, err := s.processor.HandlePut(cmd.CmdID, cmd)
	if err != nil {
		s.log.Warn("handle put failed", slog.Any("error", err))
	}
	s.agg.AddStatus(status)
}

// Finalize persists per-target anchors and UID mappings once the session
// reaches SYNC_FINISHED (spec §3 invariant "Anchors advance only on
// successful commit", spec §4.4 "all writes for a session are performed
// inside one transaction at the end of the session; failure rolls back,
// leaving prior anchors untouched"). All targets are saved through a single
// SaveAll call so that a failure partway through does not leave some
// targets' anchors persisted while others are not.
func (s *Session) Finalize(ctx context.Context) error {
	if s.phase != PhaseSyncFinished {
		return fmt.Errorf("session: finalize called in phase %s", s.phase)
	}
	if s.cfg.ChangeLog == nil {
		return nil
	}

	recs := make([]changelog.Record, 0, len(s.targets.All()))
	for _, t := range s.targets.All() {
		t.AdvanceAnchors(t.Remote.Next)

		key := changelog.Key{RemoteDevice: s.cfg.RemoteDevice, SourceDBURI: t.LocalURI, Direction: t.Direction}
		recs = append(recs, changelog.Record{
			Key:          key,
			LocalAnchor:  t.Local.Last,
			RemoteAnchor: t.Remote.Last,
			Mappings:     t.Mappings,
		})
	}

	if err := s.cfg.ChangeLog.SaveAll(ctx, recs); err != nil {
		return s.fail(ErrorKindPersistence, fmt.Errorf("save changelog for session %s: %w", s.cfg.SessionID, err))
	}
	return nil
}

// PrepareOutboundSync discovers local changes and builds outbound Sync
// containers for every target with something to send, returning them ready
// to be offered to the Generator by the caller's message-assembly loop
// (spec §4.1 "SENDING_ITEMS").
func (s *Session) PrepareOutboundSync(ctx context.Context) ([]*wire.Sync, error) {
	if err := s.DiscoverLocalChanges(ctx); err != nil {
		return nil, s.fail(ErrorKindPersistence, err)
	}

	var syncs []*wire.Sync
	for _, t := range s.targets.All() {
		sync, err := s.buildOutboundSync(ctx, t)
		if err != nil {
			return nil, s.fail(ErrorKindPersistence, err)
		}
		if sync == nil {
			continue
		}
		s.assignSyncIDs(sync)
		syncs = append(syncs, sync)
	}
	return syncs, nil
}
