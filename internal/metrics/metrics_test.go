package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveAnalysis("high", 64)
	m.ObserveAnalysis("high", 70)
	m.IncIncident("malware", "critical")
	m.IncDecision("approved")
	m.IncDecision("pending")
	m.IncDecision("pending")
	m.IncAction("block", "ok")
	m.IncPersistenceError("create")
	m.SetCatalogDegraded(true)
	m.SetQueueDepth(7)

	if got := testutil.ToFloat64(m.EventsAnalyzed.WithLabelValues("high")); got != 2 {
		t.Fatalf("events analyzed = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.IncidentsCreated.WithLabelValues("malware", "critical")); got != 1 {
		t.Fatalf("incidents = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Decisions.WithLabelValues("pending")); got != 2 {
		t.Fatalf("pending decisions = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.ActionsExecuted.WithLabelValues("block", "ok")); got != 1 {
		t.Fatalf("actions = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.PersistenceErrors.WithLabelValues("create")); got != 1 {
		t.Fatalf("persistence errors = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.CatalogDegraded); got != 1 {
		t.Fatalf("degraded = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.QueueDepth); got != 7 {
		t.Fatalf("queue depth = %v, want 7", got)
	}
	if n := testutil.CollectAndCount(m.RiskScore); n != 1 {
		t.Fatalf("histogram series = %d, want 1", n)
	}
}

func TestNilMetricsAreNoop(t *testing.T) {
	var m *Metrics
	m.ObserveAnalysis("low", 10)
	m.IncIncident("x", "y")
	m.IncDecision("approved")
	m.IncAction("scan", "error")
	m.IncPersistenceError("update")
	m.SetCatalogDegraded(false)
	m.SetQueueDepth(3)
}
