package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/go-omads/omads/internal/metrics"
)

func TestNewCollector(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)

	if c.Sessions == nil {
		t.Error("Sessions is nil")
	}
	if c.ItemsCommitted == nil {
		t.Error("ItemsCommitted is nil")
	}
	if c.PhaseTransitions == nil {
		t.Error("PhaseTransitions is nil")
	}
	if c.AuthFailures == nil {
		t.Error("AuthFailures is nil")
	}
	if c.ConflictsResolved == nil {
		t.Error("ConflictsResolved is nil")
	}
	if c.LargeObjectsReassembled == nil {
		t.Error("LargeObjectsReassembled is nil")
	}

	// Verify all metrics are registered by gathering them.
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}

	// No data yet, so families may be empty -- but registration must not panic.
	_ = families
}

func TestRegisterUnregisterSession(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)

	c.RegisterSession("peer-phone", "server")

	val := gaugeValue(t, c.Sessions, "peer-phone", "server")
	if val != 1 {
		t.Errorf("after RegisterSession: sessions gauge = %v, want 1", val)
	}

	c.RegisterSession("peer-phone", "client")

	val = gaugeValue(t, c.Sessions, "peer-phone", "client")
	if val != 1 {
		t.Errorf("after second RegisterSession: client gauge = %v, want 1", val)
	}

	c.UnregisterSession("peer-phone", "server")

	val = gaugeValue(t, c.Sessions, "peer-phone", "server")
	if val != 0 {
		t.Errorf("after UnregisterSession: sessions gauge = %v, want 0", val)
	}

	val = gaugeValue(t, c.Sessions, "peer-phone", "client")
	if val != 1 {
		t.Errorf("client gauge = %v, want 1 (should be unaffected)", val)
	}
}

func TestItemsCommitted(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)

	c.IncItemsCommitted("peer-phone", "./contacts", "add")
	c.IncItemsCommitted("peer-phone", "./contacts", "add")
	c.IncItemsCommitted("peer-phone", "./contacts", "delete")

	val := counterValue(t, c.ItemsCommitted, "peer-phone", "./contacts", "add")
	if val != 2 {
		t.Errorf("ItemsCommitted(add) = %v, want 2", val)
	}

	val = counterValue(t, c.ItemsCommitted, "peer-phone", "./contacts", "delete")
	if val != 1 {
		t.Errorf("ItemsCommitted(delete) = %v, want 1", val)
	}
}

func TestPhaseTransition(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)

	c.RecordPhaseTransition("peer-phone", "ReceivingItems", "SendingItems")
	c.RecordPhaseTransition("peer-phone", "ReceivingItems", "SendingItems")
	c.RecordPhaseTransition("peer-phone", "ReceivingItems", "InvalidMessage")

	val := counterValue(t, c.PhaseTransitions, "peer-phone", "ReceivingItems", "SendingItems")
	if val != 2 {
		t.Errorf("PhaseTransitions(ReceivingItems->SendingItems) = %v, want 2", val)
	}

	val = counterValue(t, c.PhaseTransitions, "peer-phone", "ReceivingItems", "InvalidMessage")
	if val != 1 {
		t.Errorf("PhaseTransitions(ReceivingItems->InvalidMessage) = %v, want 1", val)
	}
}

func TestAuthFailures(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)

	c.IncAuthFailures("peer-phone")
	c.IncAuthFailures("peer-phone")

	val := counterValue(t, c.AuthFailures, "peer-phone")
	if val != 2 {
		t.Errorf("AuthFailures = %v, want 2", val)
	}
}

func TestConflictsResolved(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)

	c.IncConflictsResolved("peer-phone", "./contacts", "local_wins")

	val := counterValue(t, c.ConflictsResolved, "peer-phone", "./contacts", "local_wins")
	if val != 1 {
		t.Errorf("ConflictsResolved(local_wins) = %v, want 1", val)
	}
}

func TestLargeObjectsReassembled(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)

	c.IncLargeObjectsReassembled("peer-phone", "./contacts")
	c.IncLargeObjectsReassembled("peer-phone", "./contacts")

	val := counterValue(t, c.LargeObjectsReassembled, "peer-phone", "./contacts")
	if val != 2 {
		t.Errorf("LargeObjectsReassembled = %v, want 2", val)
	}
}

// -------------------------------------------------------------------------
// Helpers
// -------------------------------------------------------------------------

// gaugeValue reads the current value of a GaugeVec with the given labels.
func gaugeValue(t *testing.T, vec *prometheus.GaugeVec, labels ...string) float64 {
	t.Helper()

	gauge, err := vec.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues(%v): %v", labels, err)
	}

	m := &dto.Metric{}
	if err := gauge.Write(m); err != nil {
		t.Fatalf("Write metric: %v", err)
	}

	return m.GetGauge().GetValue()
}

// counterValue reads the current value of a CounterVec with the given labels.
func counterValue(t *testing.T, vec *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()

	counter, err := vec.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues(%v): %v", labels, err)
	}

	m := &dto.Metric{}
	if err := counter.Write(m); err != nil {
		t.Fatalf("Write metric: %v", err)
	}

	return m.GetCounter().GetValue()
}
