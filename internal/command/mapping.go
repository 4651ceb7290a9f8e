package command

import (
	"github.com/go-omads/omads/internal/target"
	"github.com/go-omads/omads/internal/wire"
)

// HandleMap records MapItems on t (server role only, spec §4.2 "Map").
// allowed reflects whether the session's current phase accepts Map
// (RECEIVING_MAPPINGS); the phase itself is owned by the session state
// machine, not this processor.
func (p *Processor) HandleMap(cmdID int, m *wire.Map, t *target.Target, allowed bool) *wire.Status {
	status := &wire.Status{Cmd: wire.KindMap, CmdRef: cmdID}

	if !allowed {
		status.Code = StatusCommandNotAllowed
		return status
	}

	for _, mi := range m.MapItems {
		t.AddMapping(mi.Target, mi.Source)
	}
	status.Code = StatusSuccess
	return status
}
