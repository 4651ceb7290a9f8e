// Package memplugin is an in-memory reference implementation of
// storage.Plugin, used by tests and the bundled CLI demo (spec §6 external
// collaborator: "a storage plugin adapter", grounded on the Plugin contract
// at internal/storage/plugin.go).
package memplugin

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/go-omads/omads/internal/storage"
	"github.com/go-omads/omads/internal/target"
)

// record is one stored item plus the anchor it was last touched under, used
// to answer GetModifications.
type record struct {
	item       storage.Item
	modifiedAt string
	deleted    bool
}

// Plugin is a goroutine-safe, map-backed storage.Plugin. Anchors are opaque
// strings minted by stamp; GetModifications returns every record whose
// modifiedAt sorts after sinceAnchor.
type Plugin struct {
	mu               sync.Mutex
	sourceURI        string
	preferredFormat  string
	supportedFormats []string
	maxObjectSize    int64
	ctcaps           map[string][]target.CTCap

	items map[string]*record
	seq   int64
}

// New creates an empty Plugin serving sourceURI.
func New(sourceURI string, opts ...Option) *Plugin {
	p := &Plugin{
		sourceURI:        sourceURI,
		preferredFormat:  "text/vcard",
		supportedFormats: []string{"text/vcard"},
		maxObjectSize:    1 << 20,
		ctcaps:           map[string][]target.CTCap{},
		items:            make(map[string]*record),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Option configures a Plugin at construction time.
type Option func(*Plugin)

// WithFormats sets the preferred and supported MIME formats.
func WithFormats(preferred string, supported ...string) Option {
	return func(p *Plugin) {
		p.preferredFormat = preferred
		p.supportedFormats = supported
	}
}

// WithMaxObjectSize sets the single-item size ceiling.
func WithMaxObjectSize(n int64) Option {
	return func(p *Plugin) { p.maxObjectSize = n }
}

// WithCTCaps registers the capability list advertised for version.
func WithCTCaps(version string, caps []target.CTCap) Option {
	return func(p *Plugin) { p.ctcaps[version] = caps }
}

// SourceURI implements storage.Plugin.
func (p *Plugin) SourceURI() string { return p.sourceURI }

// PreferredFormat implements storage.Plugin.
func (p *Plugin) PreferredFormat() string { return p.preferredFormat }

// SupportedFormats implements storage.Plugin.
func (p *Plugin) SupportedFormats() []string { return p.supportedFormats }

// MaxObjectSize implements storage.Plugin.
func (p *Plugin) MaxObjectSize() int64 { return p.maxObjectSize }

// CTCaps implements storage.Plugin.
func (p *Plugin) CTCaps(version string) []target.CTCap { return p.ctcaps[version] }

// GetAll implements storage.Plugin.
func (p *Plugin) GetAll(ctx context.Context) ([]storage.Item, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]storage.Item, 0, len(p.items))
	for _, r := range p.items {
		if r.deleted {
			continue
		}
		out = append(out, r.item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LocalKey < out[j].LocalKey })
	return out, nil
}

// GetModifications implements storage.Plugin.
func (p *Plugin) GetModifications(ctx context.Context, sinceAnchor string) (target.LocalChanges, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var changes target.LocalChanges
	for key, r := range p.items {
		if r.modifiedAt <= sinceAnchor {
			continue
		}
		if r.deleted {
			changes.Deleted = append(changes.Deleted, key)
			continue
		}
		changes.Added = append(changes.Added, key)
	}
	sort.Strings(changes.Added)
	sort.Strings(changes.Deleted)
	return changes, nil
}

// AddItems implements storage.Plugin. Each item is assigned a local key if
// it doesn't already have one.
func (p *Plugin) AddItems(ctx context.Context, items []storage.Item) ([]storage.CommitResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	results := make([]storage.CommitResult, len(items))
	for i, it := range items {
		if int64(len(it.Payload)) > p.maxObjectSize {
			results[i] = storage.CommitItemTooBig
			continue
		}
		if it.LocalKey == "" {
			it.LocalKey = p.nextKey()
		}
		if _, exists := p.items[it.LocalKey]; exists {
			results[i] = storage.CommitDuplicate
			continue
		}
		p.items[it.LocalKey] = &record{item: it, modifiedAt: p.stamp()}
		results[i] = storage.CommitAdded
	}
	return results, nil
}

// ReplaceItems implements storage.Plugin.
func (p *Plugin) ReplaceItems(ctx context.Context, items []storage.Item) ([]storage.CommitResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	results := make([]storage.CommitResult, len(items))
	for i, it := range items {
		r, ok := p.items[it.LocalKey]
		if !ok || r.deleted {
			results[i] = storage.CommitGeneralError
			continue
		}
		if int64(len(it.Payload)) > p.maxObjectSize {
			results[i] = storage.CommitItemTooBig
			continue
		}
		r.item = it
		r.modifiedAt = p.stamp()
		results[i] = storage.CommitReplaced
	}
	return results, nil
}

// DeleteItems implements storage.Plugin.
func (p *Plugin) DeleteItems(ctx context.Context, keys []string) ([]storage.CommitResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	results := make([]storage.CommitResult, len(keys))
	for i, key := range keys {
		r, ok := p.items[key]
		if !ok || r.deleted {
			results[i] = storage.CommitNotDeleted
			continue
		}
		r.deleted = true
		r.modifiedAt = p.stamp()
		results[i] = storage.CommitDeleted
	}
	return results, nil
}

// nextKey mints a new local key; must be called with p.mu held.
func (p *Plugin) nextKey() string {
	p.seq++
	return fmt.Sprintf("mem-%d", p.seq)
}

// stamp mints a monotonically increasing anchor string; must be called
// with p.mu held. Anchors only need to sort consistently with each other,
// not carry wall-clock meaning, so a zero-padded sequence number suffices.
func (p *Plugin) stamp() string {
	p.seq++
	return fmt.Sprintf("%020d", p.seq)
}

var _ storage.Plugin = (*Plugin)(nil)
