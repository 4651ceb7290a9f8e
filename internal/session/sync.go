package session

import (
	"context"
	"fmt"

	"github.com/go-omads/omads/internal/response"
	"github.com/go-omads/omads/internal/storage"
	"github.com/go-omads/omads/internal/target"
	"github.com/go-omads/omads/internal/wire"
)

// DiscoverLocalChanges populates Changes on every target, consulting each
// one's plugin (spec §3 "populated exactly once per session"). Fast-sync
// targets ask for modifications since the last anchor; slow and refresh
// targets treat the entire dataset as the Added set (spec §4.2 scenario 2).
func (s *Session) DiscoverLocalChanges(ctx context.Context) error {
	for _, t := range s.targets.All() {
		plugin, ok := s.processor.PluginFor(t.LocalURI)
		if !ok {
			continue
		}

		if t.Type == target.TypeFast {
			changes, err := plugin.GetModifications(ctx, t.Local.Last)
			if err != nil {
				return fmt.Errorf("session: get modifications for %s: %w", t, err)
			}
			t.Changes = changes
			continue
		}

		all, err := plugin.GetAll(ctx)
		if err != nil {
			return fmt.Errorf("session: get all items for %s: %w", t, err)
		}
		keys := make([]string, len(all))
		for i, it := range all {
			keys[i] = it.LocalKey
		}
		t.Changes = target.LocalChanges{Added: keys}
	}
	return nil
}

// buildOutboundSync assembles the Sync container carrying t's own local
// changes (spec §4.2 "Sync (item container)", §4.6 "Generator"). It returns
// (nil, nil) when t has nothing to send.
//
// GetModifications reports keys only (spec §6 Plugin contract); payload
// lookup is done here via a GetAll pass rather than adding a bulk-get
// method to the Plugin interface, since the reference in-memory plugin
// already holds every item resident. A disk-backed plugin serving a large
// dataset would want a dedicated bulk fetch, but that is left as a known
// limitation (see DESIGN.md) rather than an invented abstraction with no
// concrete second caller.
func (s *Session) buildOutboundSync(ctx context.Context, t *target.Target) (*wire.Sync, error) {
	plugin, ok := s.processor.PluginFor(t.LocalURI)
	if !ok {
		return nil, nil
	}

	all, err := plugin.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("session: get all items for %s: %w", t, err)
	}
	byKey := make(map[string]storage.Item, len(all))
	for _, it := range all {
		byKey[it.LocalKey] = it
	}

	var adds, replaces, deletes []wire.Item
	var numChanges int

	if t.Type == target.TypeSlow || t.Type == target.TypeRefresh {
		for _, it := range all {
			adds = append(adds, s.wireItemsFromStorage(it)...)
			numChanges++
		}
	} else {
		for _, key := range t.Changes.Added {
			if it, ok := byKey[key]; ok {
				adds = append(adds, s.wireItemsFromStorage(it)...)
				numChanges++
			}
		}
		for _, key := range t.Changes.Modified {
			if it, ok := byKey[key]; ok {
				replaces = append(replaces, s.wireItemsFromStorage(it)...)
				numChanges++
			}
		}
		for _, key := range t.Changes.Deleted {
			deletes = append(deletes, wire.Item{Target: key})
			numChanges++
		}
	}

	if len(adds) == 0 && len(replaces) == 0 && len(deletes) == 0 {
		return nil, nil
	}

	sync := &wire.Sync{
		Target:          t.RemoteURI,
		Source:          t.LocalURI,
		NumberOfChanges: numChanges,
	}
	if len(adds) > 0 {
		sync.Commands = append(sync.Commands, &wire.Add{Items: adds})
	}
	if len(replaces) > 0 {
		sync.Commands = append(sync.Commands, &wire.Replace{Items: replaces})
	}
	if len(deletes) > 0 {
		sync.Commands = append(sync.Commands, &wire.Delete{Items: deletes})
	}
	return sync, nil
}

// wireItemsFromStorage converts it to its wire representation, splitting the
// payload into MoreData chunks when it exceeds the configured max object
// size (spec §4.6 "large objects emit chunks with MoreData set on all but
// the last"). Splitting is skipped when MaxObjSize is unset.
func (s *Session) wireItemsFromStorage(it storage.Item) []wire.Item {
	if s.cfg.MaxObjSize <= 0 || int64(len(it.Payload)) <= s.cfg.MaxObjSize {
		return []wire.Item{wireItemFromStorage(it)}
	}
	meta := wire.ItemMeta{Type: it.MIMEType, Format: it.Format, Version: it.Version}
	return response.SplitLargeObject(it.LocalKey, it.RemoteKey, meta, it.Payload, s.cfg.MaxObjSize)
}

// assignSyncIDs allocates command ids for sync and every command nested
// inside it, depth-first, immediately before the message carrying it is
// offered to the Generator (spec §3 invariant "command ids strictly
// increasing within a message").
func (s *Session) assignSyncIDs(sync *wire.Sync) {
	sync.CmdID = s.gen.NextCommandID()
	for _, c := range sync.Commands {
		switch cmd := c.(type) {
		case *wire.Add:
			cmd.CmdID = s.gen.NextCommandID()
		case *wire.Replace:
			cmd.CmdID = s.gen.NextCommandID()
		case *wire.Delete:
			cmd.CmdID = s.gen.NextCommandID()
		}
	}
}
