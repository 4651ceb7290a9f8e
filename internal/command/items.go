package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-omads/omads/internal/storage"
	"github.com/go-omads/omads/internal/target"
	"github.com/go-omads/omads/internal/wire"
)

// ItemOp names the buffered operation kind an inbound item command
// represents (spec §4.2 "Add / Replace / Delete").
type ItemOp uint8

const (
	ItemAdd ItemOp = iota
	ItemReplace
	ItemDelete
)

// BufferItems appends every item of an inbound Add/Replace/Delete command to
// t's StorageBuffer, handling in-progress large objects transparently: a
// chunk with MoreData set is accumulated rather than buffered immediately
// (spec §4.3 "Large-object protocol").
//
// Returns one Status per item that was immediately settled (a completed
// non-large item is only buffered, not yet committed, so its Status is
// deferred to CommitTarget; a large-object continuation chunk gets an
// intermediate 213 CHUNKED_ITEM_ACCEPTED here instead).
func (p *Processor) BufferItems(cmdID int, op ItemOp, t *target.Target, items []wire.Item) []*wire.Status {
	buf := p.bufferFor(t)
	lo := p.largeObjectFor(t)
	var statuses []*wire.Status

	for _, it := range items {
		if it.MoreData {
			statuses = append(statuses, p.acceptLargeObjectChunk(cmdID, op, t, lo, it))
			continue
		}

		if lo.InFlight(it.Target, it.Source) {
			finalItem, err := lo.Finalize(it.Target, it.Source, it.Data)
			if err != nil {
				statuses = append(statuses, largeObjectErrorStatus(cmdID, err))
				continue
			}
			bufferItem(buf, op, cmdID, storageItemFromFinal(finalItem, it))
			continue
		}

		bufferItem(buf, op, cmdID, storageItem(it))
	}

	return statuses
}

func (p *Processor) acceptLargeObjectChunk(cmdID int, op ItemOp, t *target.Target, lo *storage.LargeObjectAssembler, it wire.Item) *wire.Status {
	if !lo.InFlight(it.Target, it.Source) {
		declared := int64(0)
		if it.Meta != nil {
			declared = it.Meta.Size
		}
		if err := lo.Begin(it.Target, it.Source, declared, it.Data); err != nil {
			return largeObjectErrorStatus(cmdID, err)
		}
		return &wire.Status{Cmd: kindFromOp(op), CmdRef: cmdID, Code: StatusChunkAccepted}
	}

	if err := lo.Append(it.Target, it.Source, it.Data); err != nil {
		return largeObjectErrorStatus(cmdID, err)
	}
	return &wire.Status{Cmd: kindFromOp(op), CmdRef: cmdID, Code: StatusChunkAccepted}
}

func largeObjectErrorStatus(cmdID int, err error) *wire.Status {
	code := StatusCommandFailed
	if errors.Is(err, storage.ErrLargeObjectSizeMismatch) {
		code = StatusSizeMismatch
	}
	return &wire.Status{CmdRef: cmdID, Code: code}
}

func bufferItem(buf *storage.Buffer, op ItemOp, cmdID int, item storage.Item) {
	switch op {
	case ItemAdd:
		buf.Add(cmdID, item)
	case ItemReplace:
		buf.Replace(cmdID, item)
	case ItemDelete:
		buf.Delete(cmdID, item.LocalKey)
	}
}

func storageItem(it wire.Item) storage.Item {
	si := storage.Item{LocalKey: it.Target, RemoteKey: it.Source, ParentKey: it.Parent, Payload: it.Data}
	if it.Meta != nil {
		si.MIMEType = it.Meta.Type
		si.Format = it.Meta.Format
		si.Version = it.Meta.Version
	}
	return si
}

func storageItemFromFinal(final storage.Item, lastChunk wire.Item) storage.Item {
	si := final
	if lastChunk.Meta != nil {
		si.MIMEType = lastChunk.Meta.Type
		si.Format = lastChunk.Meta.Format
		si.Version = lastChunk.Meta.Version
	}
	return si
}

func kindFromOp(op ItemOp) wire.Kind {
	switch op {
	case ItemAdd:
		return wire.KindAdd
	case ItemReplace:
		return wire.KindReplace
	default:
		return wire.KindDelete
	}
}

// CommitTarget drains t's StorageBuffer against its plugin, reconciling
// conflicts, and returns one storage.Result per buffered item (spec §4.3
// "drained per peer-message").
func (p *Processor) CommitTarget(ctx context.Context, t *target.Target) ([]storage.Result, error) {
	plugin, ok := p.PluginFor(t.LocalURI)
	if !ok {
		return nil, fmt.Errorf("command: no plugin registered for %q", t.LocalURI)
	}
	buf := p.bufferFor(t)
	return buf.Commit(ctx, plugin, p.resolver, &t.Changes)
}

// StatusForResult maps a committed storage.Result to the outbound Status
// for its originating command (spec §4.3 mapping table).
func StatusForResult(r storage.Result, kind wire.Kind) *wire.Status {
	s := &wire.Status{Cmd: kind, CmdRef: r.CmdID, Code: r.Outcome.StatusCode()}
	return s
}
