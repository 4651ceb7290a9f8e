// Package notify emits a desktop-facing D-Bus signal when a sync session
// finishes, the idiom the SailfishOS/MeeGo buteo-syncml daemon this spec
// descends from used to tell the UI a contacts/calendar sync just happened
// (spec §6 "Desktop notification"). It is optional: when no session bus is
// reachable (headless server, container without dbus-daemon) the Emitter
// degrades to a no-op rather than failing session completion.
package notify
