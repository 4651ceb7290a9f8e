// Package response implements outbound message assembly: command-id
// allocation, size budgeting with split/carry-over, and status aggregation
// (spec §4.6 "Response Generator"). The command-id allocator is grounded on
// the discriminator allocator's mutex-guarded allocate/release shape, here
// simplified to sequential integers rather than random ones, since the spec
// requires command ids "strictly increasing within a message", not unique
// process-wide.
package response

import (
	"sync"

	"github.com/go-omads/omads/internal/wire"
)

// CommandIDAllocator hands out strictly-increasing command ids starting at
// 1, reset at the start of each outbound message (spec §3 invariant
// "Command ids are strictly increasing within a message and start at 1").
type CommandIDAllocator struct {
	mu   sync.Mutex
	next int
}

// NewCommandIDAllocator creates an allocator ready to issue id 1 next.
func NewCommandIDAllocator() *CommandIDAllocator {
	return &CommandIDAllocator{next: 1}
}

// Next returns the next command id and advances the counter.
func (a *CommandIDAllocator) Next() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := a.next
	a.next++
	return id
}

// Reset restarts allocation at 1, called when a new outbound message begins.
func (a *CommandIDAllocator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.next = 1
}

// defaultSizeSlack is subtracted from the peer's advertised max message
// size to leave room for the SyncHdr and closing tags the codec will add
// around whatever commands are packed in (spec §4.6 "running size
// estimate").
const defaultSizeSlack = 512

// Generator assembles one outbound SyncML message at a time, enforcing the
// peer's advertised max message size by carrying oversized content to the
// next message (spec §4.6).
type Generator struct {
	ids *CommandIDAllocator

	maxMsgSize int64
	budget     int64

	commands []wire.Command
	overflow []wire.Command
}

// NewGenerator creates a Generator budgeting against maxMsgSize (the peer's
// advertised limit; 0 means unbounded).
func NewGenerator(maxMsgSize int64) *Generator {
	g := &Generator{ids: NewCommandIDAllocator(), maxMsgSize: maxMsgSize}
	g.resetBudget()
	return g
}

func (g *Generator) resetBudget() {
	if g.maxMsgSize <= 0 {
		g.budget = 0
		return
	}
	g.budget = g.maxMsgSize - defaultSizeSlack
	if g.budget < 0 {
		g.budget = 0
	}
}

// NextCommandID allocates the next command id for the message under
// construction.
func (g *Generator) NextCommandID() int { return g.ids.Next() }

// BeginMessage starts a new outbound message, restarting command-id
// allocation and the size budget, carrying over whatever didn't fit in the
// prior message (spec §4.6 "carried over to the next message").
func (g *Generator) BeginMessage() {
	g.ids.Reset()
	g.resetBudget()
	g.commands = g.overflow
	g.overflow = nil
	for _, c := range g.commands {
		g.budget -= estimateSize(c)
	}
}

// Offer attempts to add cmd to the message under construction. If the
// message has no remaining budget for it, cmd is queued for the next
// message (via NEXT_MESSAGE carry-over) and Offer returns false.
func (g *Generator) Offer(cmd wire.Command) bool {
	size := estimateSize(cmd)
	if g.maxMsgSize > 0 && len(g.commands) > 0 && size > g.budget {
		g.overflow = append(g.overflow, cmd)
		return false
	}
	g.commands = append(g.commands, cmd)
	g.budget -= size
	return true
}

// HasOverflow reports whether any commands were carried over to the next
// message, meaning this message must announce a NEXT_MESSAGE alert.
func (g *Generator) HasOverflow() bool {
	return len(g.overflow) > 0
}

// Commands returns the commands accumulated for the message under
// construction, in offer order.
func (g *Generator) Commands() []wire.Command {
	return g.commands
}

// Build finalizes the outbound message with header and final, clearing the
// accumulated command list (the caller must call BeginMessage again before
// the next Offer).
func (g *Generator) Build(header wire.Header, final bool) wire.Message {
	msg := wire.Message{Header: header, Commands: g.commands, Final: final}
	if final {
		msg.Commands = append(msg.Commands, &wire.Final{})
	}
	g.commands = nil
	return msg
}

// estimateSize is a coarse byte-size estimate used for message-size
// budgeting; it need only be conservative, not exact, since the codec adds
// its own framing on top (spec §4.6 "running size estimate").
func estimateSize(cmd wire.Command) int64 {
	const overhead = 64

	switch c := cmd.(type) {
	case *wire.Status:
		return overhead
	case *wire.Alert:
		return overhead
	case *wire.Add:
		return itemsSize(c.Items)
	case *wire.Replace:
		return itemsSize(c.Items)
	case *wire.Delete:
		return itemsSize(c.Items)
	case *wire.Map:
		return overhead + int64(len(c.MapItems))*overhead
	case *wire.Get:
		return itemsSize(c.Items)
	case *wire.Put:
		return itemsSize(c.Items)
	case *wire.Results:
		return itemsSize(c.Items)
	case *wire.Sync:
		var total int64 = overhead
		for _, inner := range c.Commands {
			total += estimateSize(inner)
		}
		return total
	default:
		return overhead
	}
}

func itemsSize(items []wire.Item) int64 {
	const overhead = 96
	var total int64
	for _, it := range items {
		total += overhead + int64(len(it.Data))
	}
	return total
}
