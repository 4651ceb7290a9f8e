package storage

import (
	"context"
	"fmt"

	"github.com/go-omads/omads/internal/target"
)

// bufferedItem pairs a command id with the item it carries, preserving
// arrival order for deterministic draining (spec §4.3, §5 "inbound
// fragments are processed in arrival order").
type bufferedItem struct {
	cmdID int
	item  Item
}

// Buffer holds per-command add/replace/delete entries for one inbound
// message and drains them in add-before-replace-before-delete order on
// Commit (spec §4.3: "so later Replace/Delete may reference them").
type Buffer struct {
	adds     []bufferedItem
	replaces []bufferedItem
	deletes  []bufferedItem
}

// NewBuffer creates an empty Buffer.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// Add buffers an Add command's item.
func (b *Buffer) Add(cmdID int, item Item) {
	b.adds = append(b.adds, bufferedItem{cmdID: cmdID, item: item})
}

// Replace buffers a Replace command's item. A Replace with an empty local
// key is treated as an Add -- preserved exactly as specified in spec.md §9
// Design Note, though the behaviour is non-standard: OMA DS implementations
// generally require Replace to carry a populated target key.
func (b *Buffer) Replace(cmdID int, item Item) {
	if item.LocalKey == "" {
		b.Add(cmdID, item)
		return
	}
	b.replaces = append(b.replaces, bufferedItem{cmdID: cmdID, item: item})
}

// Delete buffers a Delete command for key.
func (b *Buffer) Delete(cmdID int, key string) {
	b.deletes = append(b.deletes, bufferedItem{cmdID: cmdID, item: Item{LocalKey: key}})
}

// Result is the per-command-id outcome of a Commit.
type Result struct {
	CmdID  int
	Outcome CommitResult
	// AssignedKey is the local key the plugin assigned to a successful Add,
	// used to build the server's MapItem response for new items (spec §4.1
	// scenario 1).
	AssignedKey string
}

// Commit drains add, then replace, then delete buffers against plugin,
// consulting resolver for each item against changes (spec §4.3).
func (b *Buffer) Commit(ctx context.Context, plugin Plugin, resolver Resolver, changes *target.LocalChanges) ([]Result, error) {
	var results []Result

	addResults, addItems, err := resolveAndSplit(b.adds, OpAdd, resolver, changes)
	if err != nil {
		return nil, err
	}
	if len(addItems) > 0 {
		committed, err := plugin.AddItems(ctx, itemsOf(addItems))
		if err != nil {
			return nil, fmt.Errorf("commit add items: %w", err)
		}
		mergeCommitted(&addResults, addItems, committed)
	}
	results = append(results, addResults...)

	replaceResults, replaceItems, err := resolveAndSplit(b.replaces, OpReplace, resolver, changes)
	if err != nil {
		return nil, err
	}
	if len(replaceItems) > 0 {
		committed, err := plugin.ReplaceItems(ctx, itemsOf(replaceItems))
		if err != nil {
			return nil, fmt.Errorf("commit replace items: %w", err)
		}
		mergeCommitted(&replaceResults, replaceItems, committed)
	}
	results = append(results, replaceResults...)

	deleteResults, deleteItems, err := resolveAndSplit(b.deletes, OpDelete, resolver, changes)
	if err != nil {
		return nil, err
	}
	if len(deleteItems) > 0 {
		keys := make([]string, len(deleteItems))
		for i, bi := range deleteItems {
			keys[i] = bi.item.LocalKey
		}
		committed, err := plugin.DeleteItems(ctx, keys)
		if err != nil {
			return nil, fmt.Errorf("commit delete items: %w", err)
		}
		mergeCommitted(&deleteResults, deleteItems, committed)
	}
	results = append(results, deleteResults...)

	b.adds, b.replaces, b.deletes = nil, nil, nil

	return results, nil
}

// resolveAndSplit consults resolver for every buffered item of kind op,
// returning pre-resolved Results for conflicts the resolver settled
// locally, and the remaining items that must still reach the plugin.
func resolveAndSplit(items []bufferedItem, op Op, resolver Resolver, changes *target.LocalChanges) ([]Result, []bufferedItem, error) {
	var resolved []Result
	var remaining []bufferedItem

	for _, bi := range items {
		d := resolver.Resolve(op, bi.item, changes)
		if d.Conflict && d.LocalWins {
			resolved = append(resolved, Result{CmdID: bi.cmdID, Outcome: d.PreResult})
			continue
		}
		remaining = append(remaining, bi)
	}

	return resolved, remaining, nil
}

func itemsOf(buffered []bufferedItem) []Item {
	items := make([]Item, len(buffered))
	for i, bi := range buffered {
		items[i] = bi.item
	}
	return items
}

func mergeCommitted(results *[]Result, buffered []bufferedItem, committed []CommitResult) {
	for i, bi := range buffered {
		r := Result{CmdID: bi.cmdID}
		if i < len(committed) {
			r.Outcome = committed[i]
		} else {
			r.Outcome = CommitGeneralError
		}
		if r.Outcome == CommitAdded {
			r.AssignedKey = bi.item.LocalKey
		}
		*results = append(*results, r)
	}
}
