package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the incident core.
type Metrics struct {
	EventsAnalyzed    *prometheus.CounterVec
	RiskScore         prometheus.Histogram
	IncidentsCreated  *prometheus.CounterVec
	PersistenceErrors *prometheus.CounterVec
	Decisions         *prometheus.CounterVec
	ActionsExecuted   *prometheus.CounterVec
	CatalogDegraded   prometheus.Gauge
	QueueDepth        prometheus.Gauge
}

// New registers all collectors on reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		EventsAnalyzed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_events_analyzed_total",
			Help: "Security events analyzed, by score-derived severity",
		}, []string{"severity"}),
		RiskScore: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "sentinel_event_risk_score",
			Help:    "Distribution of event risk scores",
			Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		}),
		IncidentsCreated: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_incidents_created_total",
			Help: "Incidents opened, by type and severity",
		}, []string{"type", "severity"}),
		PersistenceErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_persistence_errors_total",
			Help: "Failed incident or timeline writes",
		}, []string{"op"}),
		Decisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_action_decisions_total",
			Help: "Action decisions, by outcome",
		}, []string{"outcome"}),
		ActionsExecuted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_automated_actions_total",
			Help: "Automated response steps, by category and result",
		}, []string{"category", "result"}),
		CatalogDegraded: f.NewGauge(prometheus.GaugeOpts{
			Name: "sentinel_catalog_degraded",
			Help: "1 when the built-in default catalog is in use",
		}),
		QueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "sentinel_input_queue_depth",
			Help: "Events waiting in the input queue",
		}),
	}
}

// ObserveAnalysis records one analyzed event.
func (m *Metrics) ObserveAnalysis(severity string, score float64) {
	if m == nil {
		return
	}
	m.EventsAnalyzed.WithLabelValues(severity).Inc()
	m.RiskScore.Observe(score)
}

// IncIncident records one created incident.
func (m *Metrics) IncIncident(incidentType, severity string) {
	if m == nil {
		return
	}
	m.IncidentsCreated.WithLabelValues(incidentType, severity).Inc()
}

// IncPersistenceError records a failed write.
func (m *Metrics) IncPersistenceError(op string) {
	if m == nil {
		return
	}
	m.PersistenceErrors.WithLabelValues(op).Inc()
}

// IncDecision records a decision outcome: approved, pending or unknown.
func (m *Metrics) IncDecision(outcome string) {
	if m == nil {
		return
	}
	m.Decisions.WithLabelValues(outcome).Inc()
}

// IncAction records one automated step.
func (m *Metrics) IncAction(category, result string) {
	if m == nil {
		return
	}
	m.ActionsExecuted.WithLabelValues(category, result).Inc()
}

// SetCatalogDegraded reflects the catalog state.
func (m *Metrics) SetCatalogDegraded(degraded bool) {
	if m == nil {
		return
	}
	if degraded {
		m.CatalogDegraded.Set(1)
		return
	}
	m.CatalogDegraded.Set(0)
}

// SetQueueDepth records the input backlog.
func (m *Metrics) SetQueueDepth(n int64) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(n))
}
