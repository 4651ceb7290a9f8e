package command

import (
	"github.com/go-omads/omads/internal/target"
	"github.com/go-omads/omads/internal/wire"
)

// SyncAlertResult is the outcome of processing an inbound sync-initiation
// Alert (spec §4.2 "Sync alert").
type SyncAlertResult struct {
	Status *wire.Status
	Ack    *wire.Alert // nil if the database was not found
	Target *target.Target
}

// HandleSyncAlert looks up or creates the SyncTarget for the alerted
// database pair, negotiates mode, detects anchor mismatch, and builds the
// acknowledging Alert (spec §4.2 "Sync alert").
//
// configuredType is the sync type this session's config allows for the
// pairing (intersected with the peer's requested type); storedLastAnchor is
// our previously-persisted last local anchor for this target, used for the
// mismatch check that forces a slow-sync reversion.
func (p *Processor) HandleSyncAlert(cmdID int, a *wire.Alert, configuredType target.Type, storedLastAnchor string) SyncAlertResult {
	status := &wire.Status{Cmd: wire.KindAlert, CmdRef: cmdID}

	if a.Item == nil {
		status.Code = StatusCommandFailed
		return SyncAlertResult{Status: status}
	}

	localURI, remoteURI := a.Item.Target, a.Item.Source
	if _, ok := p.PluginFor(localURI); !ok {
		status.Code = StatusNotFound
		return SyncAlertResult{Status: status}
	}

	t, existed := p.targets.Find(localURI, remoteURI)
	if !existed {
		t = &target.Target{LocalURI: localURI, RemoteURI: remoteURI}
	}

	t.Type = intersectType(alertToType(a.Data), configuredType)
	if p.deps.Role == RoleServer {
		// A server-side Processor is handling an Alert the client sent.
		t.Initiator = target.InitiatorClient
	} else {
		t.Initiator = target.InitiatorServer
	}
	t.Remote.Last = a.Item.Meta.Last
	t.Remote.Next = a.Item.Meta.Next

	mismatched := storedLastAnchor != "" && a.Item.Meta.Last != "" && storedLastAnchor != a.Item.Meta.Last
	if mismatched {
		t.Revert()
	}

	p.targets.Upsert(t)

	status.Code = StatusSuccess
	ack := &wire.Alert{
		CmdID: 0, // allocated by the caller from the outbound CommandIDAllocator
		Data:  typeToAlert(t.Type),
		Item: &wire.AlertItem{
			Target: remoteURI,
			Source: localURI,
			Meta:   wire.AnchorMeta{Last: t.Local.Last, Next: t.Local.Next},
		},
	}

	return SyncAlertResult{Status: status, Ack: ack, Target: t}
}

func alertToType(code int) target.Type {
	switch code {
	case wire.AlertSlowSync:
		return target.TypeSlow
	case wire.AlertRefreshFromClient, wire.AlertRefreshFromServer:
		return target.TypeRefresh
	default:
		return target.TypeFast
	}
}

func typeToAlert(t target.Type) int {
	switch t {
	case target.TypeSlow:
		return wire.AlertSlowSync
	case target.TypeRefresh:
		return wire.AlertRefreshFromServer
	default:
		return wire.AlertTwoWay
	}
}

// intersectType negotiates the stronger-constraint of the peer's requested
// type and the session's configured type: a configured Slow/Refresh always
// wins (the local policy forces it), otherwise the peer's request stands.
func intersectType(requested, configured target.Type) target.Type {
	if configured == target.TypeSlow || configured == target.TypeRefresh {
		return configured
	}
	return requested
}

// NonSyncAlertResult is the outcome of processing a non-sync Alert (spec
// §4.2 "Alert (non-sync)").
type NonSyncAlertResult struct {
	Status *wire.Status

	// AwaitNextMessage is true for NEXT_MESSAGE: the sender signalled more
	// of this package follows in a later message.
	AwaitNextMessage bool

	// LargeObjectContinuation is true for NO_END_OF_DATA: the next item in
	// this message continues a large-object sequence from a prior message.
	LargeObjectContinuation bool

	// Suspend/Resume are handed to the session state machine, which owns
	// phase transitions.
	Suspend bool
	Resume  bool
}

// HandleNonSyncAlert processes alert codes other than the sync-initiation
// range (spec §4.2 "Alert (non-sync)").
func (p *Processor) HandleNonSyncAlert(cmdID int, a *wire.Alert) NonSyncAlertResult {
	status := &wire.Status{Cmd: wire.KindAlert, CmdRef: cmdID, Code: StatusSuccess}

	switch a.Data {
	case wire.AlertNextMessage:
		return NonSyncAlertResult{Status: status, AwaitNextMessage: true}
	case wire.AlertNoEndOfData:
		return NonSyncAlertResult{Status: status, LargeObjectContinuation: true}
	case wire.AlertSuspend:
		return NonSyncAlertResult{Status: status, Suspend: true}
	case wire.AlertResume:
		return NonSyncAlertResult{Status: status, Resume: true}
	case wire.AlertDisplay:
		status.Code = StatusNotImplemented
		return NonSyncAlertResult{Status: status}
	default:
		status.Code = StatusNotSupported
		return NonSyncAlertResult{Status: status}
	}
}
