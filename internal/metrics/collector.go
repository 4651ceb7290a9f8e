package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// -------------------------------------------------------------------------
// Prometheus Metric Constants
// -------------------------------------------------------------------------

const (
	namespace = "omads"
	subsystem = "sync"
)

// Label names for sync engine metrics.
const (
	labelRemoteDevice = "remote_device"
	labelRole         = "role"
	labelTargetURI    = "target_uri"
	labelKind         = "kind"
	labelFromPhase    = "from_phase"
	labelToPhase      = "to_phase"
)

// -------------------------------------------------------------------------
// Collector — Prometheus Sync Engine Metrics
// -------------------------------------------------------------------------

// Collector holds all sync engine Prometheus metrics.
//
//   - Sessions gauges track currently active sessions.
//   - Items counters track committed Add/Replace/Delete volume per target.
//   - PhaseTransitions counters record FSM phase changes for alerting.
//   - AuthFailures counters flag potential security issues.
//   - ConflictsResolved counters record storage.Policy decisions.
type Collector struct {
	// Sessions tracks the number of currently active sync sessions.
	// Incremented on session creation, decremented on session finalization.
	Sessions *prometheus.GaugeVec

	// ItemsCommitted counts committed Add/Replace/Delete items per target.
	ItemsCommitted *prometheus.CounterVec

	// PhaseTransitions counts session phase transitions (spec §4.1). Each
	// counter is labeled with the old phase and new phase for precise
	// alerting (e.g. any->AuthFailed).
	PhaseTransitions *prometheus.CounterVec

	// AuthFailures counts authentication verification failures per peer
	// (spec §4.5).
	AuthFailures *prometheus.CounterVec

	// ConflictsResolved counts conflict resolutions per target, labeled by
	// the resolving kind ("local_wins" or "remote_wins") (spec §4.3).
	ConflictsResolved *prometheus.CounterVec

	// LargeObjectsReassembled counts large-object reassemblies completed
	// per target (spec §4.3 chunked item transfer).
	LargeObjectsReassembled *prometheus.CounterVec
}

// NewCollector creates a Collector with all sync metrics registered against
// the provided prometheus.Registerer. If reg is nil, prometheus.DefaultRegisterer
// is used.
//
// All metrics are created with the "omads_sync_" prefix (namespace_subsystem)
// to avoid collisions with other exporters.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := newMetrics()

	reg.MustRegister(
		c.Sessions,
		c.ItemsCommitted,
		c.PhaseTransitions,
		c.AuthFailures,
		c.ConflictsResolved,
		c.LargeObjectsReassembled,
	)

	return c
}

// newMetrics creates all Prometheus metric vectors without registering them.
func newMetrics() *Collector {
	sessionLabels := []string{labelRemoteDevice, labelRole}
	itemLabels := []string{labelRemoteDevice, labelTargetURI, labelKind}
	transitionLabels := []string{labelRemoteDevice, labelFromPhase, labelToPhase}
	peerLabels := []string{labelRemoteDevice}
	conflictLabels := []string{labelRemoteDevice, labelTargetURI, labelKind}

	return &Collector{
		Sessions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "sessions",
			Help:      "Number of currently active sync sessions.",
		}, sessionLabels),

		ItemsCommitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "items_committed_total",
			Help:      "Total items committed to a target's storage plugin, labeled by Add/Replace/Delete kind.",
		}, itemLabels),

		PhaseTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "phase_transitions_total",
			Help:      "Total session phase transitions.",
		}, transitionLabels),

		AuthFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "auth_failures_total",
			Help:      "Total session authentication verification failures.",
		}, peerLabels),

		ConflictsResolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "conflicts_resolved_total",
			Help:      "Total item conflicts resolved, labeled by the winning side.",
		}, conflictLabels),

		LargeObjectsReassembled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "large_objects_reassembled_total",
			Help:      "Total chunked large objects fully reassembled.",
		}, itemLabels[:2]),
	}
}

// -------------------------------------------------------------------------
// Session Lifecycle
// -------------------------------------------------------------------------

// RegisterSession increments the active sessions gauge for the given peer.
// Called when a new Session is created.
func (c *Collector) RegisterSession(remoteDevice, role string) {
	c.Sessions.WithLabelValues(remoteDevice, role).Inc()
}

// UnregisterSession decrements the active sessions gauge for the given peer.
// Called when a Session reaches a terminal phase.
func (c *Collector) UnregisterSession(remoteDevice, role string) {
	c.Sessions.WithLabelValues(remoteDevice, role).Dec()
}

// -------------------------------------------------------------------------
// Item Commit Counters
// -------------------------------------------------------------------------

// IncItemsCommitted increments the committed-items counter for the given
// target and commit kind ("add", "replace", "delete").
func (c *Collector) IncItemsCommitted(remoteDevice, targetURI, kind string) {
	c.ItemsCommitted.WithLabelValues(remoteDevice, targetURI, kind).Inc()
}

// -------------------------------------------------------------------------
// Phase Transitions
// -------------------------------------------------------------------------

// RecordPhaseTransition increments the phase transition counter with the
// old and new phase labels. Used for alerting on sessions that land in a
// terminal error phase (spec §7).
func (c *Collector) RecordPhaseTransition(remoteDevice, from, to string) {
	c.PhaseTransitions.WithLabelValues(remoteDevice, from, to).Inc()
}

// -------------------------------------------------------------------------
// Authentication
// -------------------------------------------------------------------------

// IncAuthFailures increments the authentication failure counter for the
// given peer device.
func (c *Collector) IncAuthFailures(remoteDevice string) {
	c.AuthFailures.WithLabelValues(remoteDevice).Inc()
}

// -------------------------------------------------------------------------
// Conflict Resolution
// -------------------------------------------------------------------------

// IncConflictsResolved increments the conflict counter for the given target,
// labeled by which side won ("local_wins" or "remote_wins").
func (c *Collector) IncConflictsResolved(remoteDevice, targetURI, winner string) {
	c.ConflictsResolved.WithLabelValues(remoteDevice, targetURI, winner).Inc()
}

// -------------------------------------------------------------------------
// Large Objects
// -------------------------------------------------------------------------

// IncLargeObjectsReassembled increments the large-object reassembly counter
// for the given target.
func (c *Collector) IncLargeObjectsReassembled(remoteDevice, targetURI string) {
	c.LargeObjectsReassembled.WithLabelValues(remoteDevice, targetURI).Inc()
}
