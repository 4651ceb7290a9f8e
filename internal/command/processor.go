package command

import (
	"github.com/go-omads/omads/internal/auth"
	"github.com/go-omads/omads/internal/storage"
	"github.com/go-omads/omads/internal/target"
)

// Role is the session's protocol role, orthogonal to a target's Initiator
// (spec §4.1 "both roles share the alphabet; transitions differ").
type Role uint8

const (
	RoleClient Role = iota + 1
	RoleServer
)

// String returns the human-readable role name.
func (r Role) String() string {
	if r == RoleServer {
		return "server"
	}
	return "client"
}

// Dependencies configures a Processor for one session (spec §6 "Session
// config" subset the command processor itself consults).
type Dependencies struct {
	Role            Role
	ProtocolVersion string
	SessionID       string

	LocalDevice target.DeviceInfo

	Auth           *auth.Negotiator
	ConflictPolicy storage.Policy

	// Plugins maps a local datastore URI to the plugin serving it (spec §6
	// "Storage plugin adapter"). Disabled databases are simply absent here.
	Plugins map[string]storage.Plugin
}

// Processor implements the Command Processor (spec §4.2). It is
// session-scoped: one Processor per Session, created when the session
// starts and discarded at finalization/abort.
type Processor struct {
	deps     Dependencies
	targets  *target.Set
	resolver storage.Resolver

	buffers      map[string]*storage.Buffer
	largeObjects map[string]*storage.LargeObjectAssembler

	// remoteDevice caches the peer's device-info Put (spec §3a "cached
	// per-session not as process singleton", spec.md §9 Design Note
	// replacing the source's process-wide singleton).
	remoteDevice *target.DeviceInfo

	// authRequired is true until VerifyInbound first succeeds on this
	// session, used to decide between a 200 and a 407 MISSING_CRED when a
	// header carries no credentials (spec §4.2 "Header").
	authRequired bool
}

// NewProcessor creates a Processor bound to targets, the session's live
// SyncTarget set (spec §3 "Exclusively owned by the session"; the session
// constructs and owns the Set, and lends it to the Processor it creates).
func NewProcessor(deps Dependencies, targets *target.Set) *Processor {
	return &Processor{
		deps:         deps,
		targets:      targets,
		resolver:     storage.NewResolver(deps.ConflictPolicy),
		buffers:      make(map[string]*storage.Buffer),
		largeObjects: make(map[string]*storage.LargeObjectAssembler),
		authRequired: deps.Auth != nil,
	}
}

// bufferFor returns (creating if needed) the StorageBuffer for t.
func (p *Processor) bufferFor(t *target.Target) *storage.Buffer {
	key := t.Key()
	buf, ok := p.buffers[key]
	if !ok {
		buf = storage.NewBuffer()
		p.buffers[key] = buf
	}
	return buf
}

// largeObjectFor returns (creating if needed) the LargeObjectAssembler for t.
func (p *Processor) largeObjectFor(t *target.Target) *storage.LargeObjectAssembler {
	key := t.Key()
	lo, ok := p.largeObjects[key]
	if !ok {
		lo = storage.NewLargeObjectAssembler()
		p.largeObjects[key] = lo
	}
	return lo
}

// PluginFor returns the plugin registered for a local datastore URI.
func (p *Processor) PluginFor(localURI string) (storage.Plugin, bool) {
	pl, ok := p.deps.Plugins[localURI]
	return pl, ok
}

// RemoteDevice returns the peer's cached device info, if a Put has been
// processed yet this session.
func (p *Processor) RemoteDevice() *target.DeviceInfo {
	return p.remoteDevice
}
