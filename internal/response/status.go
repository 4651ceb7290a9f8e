package response

import "github.com/go-omads/omads/internal/wire"

// Aggregator collects Status elements in the order their originating
// commands were received, so the outbound message mirrors inbound order
// (spec §5 "outbound Status commands mirror that order").
type Aggregator struct {
	statuses []*wire.Status
}

// NewAggregator creates an empty Aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// AddStatus appends an already-built Status (e.g. one returned by a
// command-processor Handle* method), preserving its caller-assigned fields
// as-is.
func (a *Aggregator) AddStatus(s *wire.Status) {
	a.statuses = append(a.statuses, s)
}

// Add appends a Status for an originating command.
func (a *Aggregator) Add(cmdID int, msgRef, cmdRef int, cmd wire.Kind, code int) *wire.Status {
	s := &wire.Status{CmdID: cmdID, MsgRef: msgRef, CmdRef: cmdRef, Cmd: cmd, Code: code}
	a.statuses = append(a.statuses, s)
	return s
}

// AddWithRefs appends a Status additionally carrying target/source refs,
// used for item-level Status within a Sync container.
func (a *Aggregator) AddWithRefs(cmdID int, msgRef, cmdRef int, cmd wire.Kind, code int, targetRef, sourceRef string) *wire.Status {
	s := a.Add(cmdID, msgRef, cmdRef, cmd, code)
	s.TargetRef = targetRef
	s.SourceRef = sourceRef
	return s
}

// Drain returns the accumulated statuses as wire.Command values, in
// insertion order, and clears the aggregator for the next message.
func (a *Aggregator) Drain() []wire.Command {
	out := make([]wire.Command, len(a.statuses))
	for i, s := range a.statuses {
		out[i] = s
	}
	a.statuses = nil
	return out
}

// Len reports how many statuses are pending.
func (a *Aggregator) Len() int { return len(a.statuses) }
