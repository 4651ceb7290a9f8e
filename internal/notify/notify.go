package notify

import (
	"log/slog"

	"github.com/godbus/dbus/v5"
)

const (
	objectPath    = dbus.ObjectPath("/org/omads/Sync")
	interfaceName = "org.omads.Sync1"

	// SignalFinished fires once per target after a session reaches its
	// terminal phase, successfully or not; Result is "success", the name of
	// the session's terminal error phase (session.Phase.String()), or
	// "finalize_error".
	SignalFinished = interfaceName + ".SyncFinished"
)

// Emitter emits SyncFinished signals on the D-Bus session bus. The zero
// value is not usable; build one with NewEmitter.
type Emitter struct {
	conn   *dbus.Conn
	logger *slog.Logger
}

// NewEmitter connects to the caller's D-Bus session bus. If no bus is
// reachable, it logs a warning and returns an Emitter that no-ops on every
// call rather than failing daemon startup over an optional integration.
func NewEmitter(logger *slog.Logger) *Emitter {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		logger.Warn("D-Bus session bus unreachable, sync notifications disabled", slog.Any("error", err))
		return &Emitter{logger: logger}
	}
	return &Emitter{conn: conn, logger: logger}
}

// SyncFinished emits a SyncFinished signal for one (session, target). It
// never returns an error: a failed emit is logged and otherwise ignored,
// since a desktop notification is not part of the sync protocol's own
// success/failure outcome.
func (e *Emitter) SyncFinished(sessionID, targetURI, result string) {
	if e == nil || e.conn == nil {
		return
	}
	if err := e.conn.Emit(objectPath, SignalFinished, sessionID, targetURI, result); err != nil {
		e.logger.Warn("failed to emit SyncFinished signal",
			slog.String("session_id", sessionID),
			slog.String("target_uri", targetURI),
			slog.Any("error", err))
	}
}

// Close releases the underlying D-Bus connection, if one was established.
func (e *Emitter) Close() error {
	if e == nil || e.conn == nil {
		return nil
	}
	return e.conn.Close()
}
