package session

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-omads/omads/internal/command"
)

func TestAdvance_ClientPathReachesSyncFinished(t *testing.T) {
	phase := PhasePrepared
	want := []Phase{
		PhaseLocalInit, PhaseSendingItems, PhaseReceivingItems,
		PhaseSendingMappings, PhaseFinalizing, PhaseSyncFinished,
	}
	for _, next := range want {
		got, ok := Advance(command.RoleClient, phase)
		require.True(t, ok)
		require.Equal(t, next, got)
		phase = got
	}
	require.True(t, phase.Terminal())
	require.False(t, phase.IsError())
}

func TestAdvance_ServerPathReachesSyncFinished(t *testing.T) {
	phase := PhasePrepared
	want := []Phase{
		PhaseRemoteInit, PhaseLocalInit, PhaseReceivingItems,
		PhaseSendingItems, PhaseReceivingMappings, PhaseFinalizing, PhaseSyncFinished,
	}
	for _, next := range want {
		got, ok := Advance(command.RoleServer, phase)
		require.True(t, ok)
		require.Equal(t, next, got)
		phase = got
	}
	require.True(t, phase.Terminal())
}

func TestAdvance_NoTransitionFromTerminalPhase(t *testing.T) {
	_, ok := Advance(command.RoleClient, PhaseSyncFinished)
	require.False(t, ok)
}

func TestShortcut_OnlyAppliesToServerRemoteInit(t *testing.T) {
	next, ok := Shortcut(command.RoleServer, PhaseRemoteInit)
	require.True(t, ok)
	require.Equal(t, PhaseReceivingItems, next)

	_, ok = Shortcut(command.RoleClient, PhaseRemoteInit)
	require.False(t, ok)

	_, ok = Shortcut(command.RoleServer, PhaseLocalInit)
	require.False(t, ok)
}

func TestAbort_FromNonTerminalAndTerminal(t *testing.T) {
	require.Equal(t, PhaseAborted, Abort(PhaseSendingItems))
	require.Equal(t, PhaseSyncFinished, Abort(PhaseSyncFinished))
}
