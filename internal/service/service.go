// Package service exposes the incident response core: event analysis,
// incident creation and action decisions.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"sentinelir/internal/catalog"
	"sentinelir/internal/decision"
	"sentinelir/internal/incident"
	"sentinelir/internal/lifecycle"
	"sentinelir/internal/logger"
	"sentinelir/internal/metrics"
	"sentinelir/internal/output/decisionjson"
	"sentinelir/internal/rules"
	"sentinelir/internal/scorer"
	"sentinelir/internal/store"
	"sentinelir/pkg/models"
)

// DecisionRecorder receives every decision for audit.
type DecisionRecorder interface {
	WriteDecision(rec decisionjson.Record) error
}

// Config tunes the service.
type Config struct {
	// EventCacheSize is the number of events kept in the read-through cache.
	// Zero disables caching.
	EventCacheSize int
	// Actor is recorded on timeline entries written by automated responses.
	Actor string
}

// Deps are the collaborators of a Service. Events, Lifecycle, Catalog and
// Scorer are required.
type Deps struct {
	Events    store.EventStore
	Lifecycle *lifecycle.Manager
	Catalog   *catalog.Holder
	Scorer    *scorer.Scorer
	Rules     rules.Engine
	Decider   *decision.Engine
	Executors lifecycle.Executors
	Audit     DecisionRecorder
	Metrics   *metrics.Metrics
}

// Service implements AnalyzeEvent, CreateIncidentFromAnalysis and DecideAction.
type Service struct {
	events    store.EventStore
	lifecycle *lifecycle.Manager
	catalog   *catalog.Holder
	scorer    *scorer.Scorer
	rules     rules.Engine
	decider   *decision.Engine
	executors lifecycle.Executors
	audit     DecisionRecorder
	metrics   *metrics.Metrics
	cache     *lru.Cache[string, *models.SecurityEvent]
	actor     string
	now       func() time.Time
}

// New creates a service.
func New(deps Deps, cfg Config) (*Service, error) {
	if deps.Events == nil || deps.Lifecycle == nil || deps.Catalog == nil || deps.Scorer == nil {
		return nil, fmt.Errorf("service: events, lifecycle, catalog and scorer are required")
	}
	s := &Service{
		events:    deps.Events,
		lifecycle: deps.Lifecycle,
		catalog:   deps.Catalog,
		scorer:    deps.Scorer,
		rules:     deps.Rules,
		decider:   deps.Decider,
		executors: deps.Executors,
		audit:     deps.Audit,
		metrics:   deps.Metrics,
		actor:     cfg.Actor,
		now:       time.Now,
	}
	if s.rules == nil {
		s.rules = &rules.NoopEngine{}
	}
	if s.decider == nil {
		s.decider = decision.NewEngine()
	}
	if s.actor == "" {
		s.actor = incident.ReporterSystem
	}
	if cfg.EventCacheSize > 0 {
		cache, err := lru.New[string, *models.SecurityEvent](cfg.EventCacheSize)
		if err != nil {
			return nil, fmt.Errorf("create event cache: %w", err)
		}
		s.cache = cache
	}
	return s, nil
}

// AnalyzeEvent loads an event and scores it.
func (s *Service) AnalyzeEvent(ctx context.Context, eventID string) (*models.SecurityEventAnalysis, error) {
	if strings.TrimSpace(eventID) == "" {
		return nil, validationf("event id is required")
	}
	ev, err := s.event(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return s.Analyze(ev), nil
}

// Analyze scores an event against the current catalog. It performs no I/O.
func (s *Service) Analyze(ev *models.SecurityEvent) *models.SecurityEventAnalysis {
	snap := s.catalog.Current()
	res := s.scorer.Score(ev, snap)

	analysis := &models.SecurityEventAnalysis{
		EventID:          ev.ID,
		RiskScore:        res.RiskScore,
		Severity:         res.Severity,
		ReportedSeverity: ev.Severity,
		ThreatType:       res.ThreatType,
		Indicators:       res.Indicators,
		KnownThreat:      res.KnownThreat,
		Confidence:       res.Confidence,
	}
	if pb, ok := snap.Playbook(res.ThreatType, res.Severity); ok {
		analysis.PlaybookID = pb.Key()
		analysis.RecommendedActions = incident.PlaybookActions(pb, res.Severity)
	} else {
		analysis.RecommendedActions = incident.RecommendedActions(res.ThreatType, res.Severity)
	}
	analysis.MatchedRules = s.rules.Apply(ev)
	analysis.ShouldCreateIncident = incident.ShouldCreateIncident(res.RiskScore, res.Severity)

	s.metrics.ObserveAnalysis(string(res.Severity), res.RiskScore)
	s.metrics.SetCatalogDegraded(snap.Degraded())
	logger.Debugf("event %s analyzed: score=%.1f severity=%s threat=%s incident=%t",
		ev.ID, res.RiskScore, res.Severity, res.ThreatType, analysis.ShouldCreateIncident)
	return analysis
}

// CreateIncidentFromAnalysis opens an incident for an analyzed event. It is
// not idempotent. On a failed write the error is a *PersistenceError
// carrying the computed incident.
func (s *Service) CreateIncidentFromAnalysis(ctx context.Context, eventID string, analysis *models.SecurityEventAnalysis, reportedBy string) (*models.SecurityIncident, error) {
	if analysis == nil {
		return nil, validationf("analysis is required")
	}
	if !analysis.ShouldCreateIncident {
		return nil, validationf("analysis of event %s does not warrant an incident", eventID)
	}
	ev, err := s.event(ctx, eventID)
	if err != nil {
		return nil, err
	}

	inc, err := s.lifecycle.Create(ctx, ev, analysis, reportedBy)
	if s.cache != nil {
		s.cache.Remove(eventID)
	}
	if err != nil {
		stored := errors.Is(err, lifecycle.ErrEventLink)
		op := "create_incident"
		if stored {
			op = "link_event"
		}
		s.metrics.IncPersistenceError(op)
		if stored {
			s.metrics.IncIncident(inc.Type, string(inc.Severity))
		}
		return inc, &PersistenceError{Op: op, Incident: inc, Stored: stored, Err: err}
	}
	s.metrics.IncIncident(inc.Type, string(inc.Severity))
	return inc, nil
}

// DecideAction classifies a proposed action. The decision is sent to the
// audit recorder; recording failures are logged and do not change the result.
func (s *Service) DecideAction(ctx context.Context, action *models.SecurityAction) (models.DecisionResult, error) {
	if action == nil {
		return models.DecisionResult{}, validationf("action is required")
	}
	if strings.TrimSpace(action.ID) == "" {
		return models.DecisionResult{}, validationf("action id is required")
	}
	if strings.TrimSpace(action.Type) == "" {
		return models.DecisionResult{}, validationf("action type is required")
	}

	res := s.decider.Decide(action)
	s.metrics.IncDecision(outcomeOf(action, res))
	logger.Infof("decision: action=%s type=%s approved=%t confidence=%.2f reason=%q",
		action.ID, action.Type, res.Approved, res.Confidence, res.Reason)

	if s.audit != nil {
		rec := decisionjson.Record{
			Timestamp:  s.now(),
			IncidentID: stringDetail(action.Details, "incidentId"),
			Action:     action,
			Decision:   res,
		}
		if err := s.audit.WriteDecision(rec); err != nil {
			logger.Errorf("failed to record decision for action %s: %v", action.ID, err)
		}
	}
	return res, nil
}

func outcomeOf(action *models.SecurityAction, res models.DecisionResult) string {
	switch {
	case res.Approved:
		return "approved"
	case decision.Classify(action.Type).Scope == decision.ScopeUnknown:
		return "unknown"
	default:
		return "pending"
	}
}

// event reads through the cache. Events are immutable once ingested apart
// from the incident link, which invalidates the entry.
func (s *Service) event(ctx context.Context, id string) (*models.SecurityEvent, error) {
	if s.cache != nil {
		if ev, ok := s.cache.Get(id); ok {
			return ev, nil
		}
	}
	ev, err := s.events.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load event %s: %w", id, err)
	}
	if s.cache != nil {
		s.cache.Add(id, ev)
	}
	return ev, nil
}

func stringDetail(details map[string]interface{}, key string) string {
	if v, ok := details[key].(string); ok {
		return v
	}
	return ""
}
