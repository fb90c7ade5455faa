// Package lifecycle owns incident creation, status transitions and the
// append-only timeline.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"sentinelir/internal/incident"
	"sentinelir/internal/logger"
	"sentinelir/internal/store"
	"sentinelir/pkg/models"
)

var (
	// ErrInvalidTransition is returned for a status change the state machine forbids.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrInvalidPriority is returned for a priority outside p1..p4.
	ErrInvalidPriority = errors.New("invalid priority")
	// ErrEventLink marks an incident that was stored but whose source event
	// could not be linked to it.
	ErrEventLink = errors.New("event link failed")
)

var transitions = map[models.IncidentStatus][]models.IncidentStatus{
	models.StatusOpen:          {models.StatusInvestigating, models.StatusClosed},
	models.StatusInvestigating: {models.StatusResolved, models.StatusClosed},
	models.StatusResolved:      {models.StatusClosed},
}

// CanTransition reports whether from -> to is allowed.
func CanTransition(from, to models.IncidentStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Config controls retry behaviour.
type Config struct {
	// MaxMintAttempts bounds incident ID retries on duplicate IDs.
	MaxMintAttempts int
	// MaxUpdateRetries bounds retries on version conflicts.
	MaxUpdateRetries int
}

// Manager applies lifecycle operations against an IncidentStore.
type Manager struct {
	incidents store.IncidentStore
	events    store.EventStore
	cfg       Config
	now       func() time.Time
}

// NewManager creates a manager. events may be nil when no event linking is wanted.
func NewManager(incidents store.IncidentStore, events store.EventStore, cfg Config) *Manager {
	if cfg.MaxMintAttempts <= 0 {
		cfg.MaxMintAttempts = 5
	}
	if cfg.MaxUpdateRetries <= 0 {
		cfg.MaxUpdateRetries = 3
	}
	return &Manager{
		incidents: incidents,
		events:    events,
		cfg:       cfg,
		now:       time.Now,
	}
}

// SetClock overrides the time source.
func (m *Manager) SetClock(now func() time.Time) {
	if now != nil {
		m.now = now
	}
}

// Create mints the next incident ID for the current year, persists the
// incident and links the source event. A concurrent writer taking the same
// ID is resolved by recounting and retrying. Once an incident has been built
// it is returned even on error; errors.Is(err, ErrEventLink) tells that it
// was stored.
func (m *Manager) Create(ctx context.Context, event *models.SecurityEvent, analysis *models.SecurityEventAnalysis, reportedBy string) (*models.SecurityIncident, error) {
	now := m.now()
	prefix := incident.YearPrefix(now.Year())

	var inc *models.SecurityIncident
	last := 0
	for attempt := 1; ; attempt++ {
		count, err := m.incidents.CountByYearPrefix(ctx, prefix)
		if err != nil {
			return nil, fmt.Errorf("count incidents: %w", err)
		}
		seq := count + 1
		if seq <= last {
			seq = last + 1
		}
		last = seq

		inc = incident.BuildIncident(event, analysis, reportedBy, seq, now)
		err = m.incidents.Create(ctx, inc)
		if err == nil {
			break
		}
		if !errors.Is(err, store.ErrDuplicateID) || attempt >= m.cfg.MaxMintAttempts {
			return inc, fmt.Errorf("create incident %s: %w", inc.IncidentID, err)
		}
		logger.Debugf("incident id %s taken, retrying (attempt %d)", inc.IncidentID, attempt)
	}

	logger.Infof("incident created: id=%s type=%s severity=%s score=%.1f", inc.IncidentID, inc.Type, inc.Severity, inc.RiskScore)

	if m.events != nil && event.ID != "" {
		if err := m.events.LinkIncident(ctx, event.ID, inc.IncidentID); err != nil {
			return inc, fmt.Errorf("%w: event %s to %s: %w", ErrEventLink, event.ID, inc.IncidentID, err)
		}
	}
	return inc, nil
}

// Get returns an incident by ID.
func (m *Manager) Get(ctx context.Context, id string) (*models.SecurityIncident, error) {
	return m.incidents.Get(ctx, id)
}

// UpdateStatus moves an incident along the state machine.
func (m *Manager) UpdateStatus(ctx context.Context, id string, status models.IncidentStatus, actor string) (*models.SecurityIncident, error) {
	return m.mutate(ctx, id, actor, func(inc *models.SecurityIncident, now time.Time) (string, string, error) {
		from := inc.Status
		if !CanTransition(from, status) {
			return "", "", fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, status)
		}
		inc.Status = status
		switch status {
		case models.StatusResolved:
			inc.ResolvedAt = &now
		case models.StatusClosed:
			inc.ClosedAt = &now
		}
		return "Status Changed", fmt.Sprintf("Status changed from %s to %s", from, status), nil
	})
}

// UpdatePriority changes the response priority.
func (m *Manager) UpdatePriority(ctx context.Context, id string, priority models.Priority, actor string) (*models.SecurityIncident, error) {
	switch priority {
	case models.PriorityP1, models.PriorityP2, models.PriorityP3, models.PriorityP4:
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidPriority, priority)
	}
	return m.mutate(ctx, id, actor, func(inc *models.SecurityIncident, now time.Time) (string, string, error) {
		from := inc.Priority
		inc.Priority = priority
		return "Priority Changed", fmt.Sprintf("Priority changed from %s to %s", from, priority), nil
	})
}

// Assign sets the responsible analyst.
func (m *Manager) Assign(ctx context.Context, id, assignee, actor string) (*models.SecurityIncident, error) {
	assignee = strings.TrimSpace(assignee)
	return m.mutate(ctx, id, actor, func(inc *models.SecurityIncident, now time.Time) (string, string, error) {
		inc.AssignedTo = assignee
		if assignee == "" {
			return "Incident Unassigned", "Assignee cleared", nil
		}
		return "Incident Assigned", "Assigned to " + assignee, nil
	})
}

// AddEvidence appends one evidence item.
func (m *Manager) AddEvidence(ctx context.Context, id, evidence, actor string) (*models.SecurityIncident, error) {
	return m.mutate(ctx, id, actor, func(inc *models.SecurityIncident, now time.Time) (string, string, error) {
		inc.Evidence = append(inc.Evidence, evidence)
		return "Evidence Added", evidence, nil
	})
}

// RecordAction appends a timeline entry for an action taken or queued
// against the incident. No other field changes.
func (m *Manager) RecordAction(ctx context.Context, id, action, details, actor string) error {
	entry := models.TimelineEntry{
		Timestamp: m.now(),
		Action:    action,
		Actor:     actorOrSystem(actor),
		Details:   details,
	}
	if err := m.incidents.AppendTimeline(ctx, id, entry); err != nil {
		return fmt.Errorf("record action on %s: %w", id, err)
	}
	return nil
}

type mutation func(inc *models.SecurityIncident, now time.Time) (action, details string, err error)

// mutate applies fn and its timeline entry in one versioned store write,
// retrying on conflict. A failed write leaves neither the change nor the
// entry behind.
func (m *Manager) mutate(ctx context.Context, id, actor string, fn mutation) (*models.SecurityIncident, error) {
	for attempt := 1; ; attempt++ {
		inc, err := m.incidents.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		now := m.now()
		action, details, err := fn(inc, now)
		if err != nil {
			return nil, err
		}
		entry := models.TimelineEntry{Timestamp: now, Action: action, Actor: actorOrSystem(actor), Details: details}
		err = m.incidents.UpdateWithEntry(ctx, inc, entry)
		if errors.Is(err, store.ErrConflict) && attempt < m.cfg.MaxUpdateRetries {
			logger.Debugf("incident %s changed concurrently, retrying (attempt %d)", id, attempt)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("update incident %s: %w", id, err)
		}
		inc.Timeline = append(inc.Timeline, entry)
		return inc, nil
	}
}

func actorOrSystem(actor string) string {
	if strings.TrimSpace(actor) == "" {
		return incident.ReporterSystem
	}
	return actor
}
