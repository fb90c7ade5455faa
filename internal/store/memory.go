package store

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"sentinelir/pkg/models"
)

// MemoryStore keeps events, incidents and blocked IPs in process memory.
// It implements EventStore and EventWriter; Incidents and BlockedIPs return
// the IncidentStore and BlockedIPStore views.
type MemoryStore struct {
	mu        sync.RWMutex
	events    map[string]*models.SecurityEvent
	incidents map[string]*models.SecurityIncident
	blocked   []*models.BlockedIP
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		events:    make(map[string]*models.SecurityEvent),
		incidents: make(map[string]*models.SecurityIncident),
	}
}

// PutEvent stores an event, replacing any with the same ID.
func (s *MemoryStore) PutEvent(ctx context.Context, event *models.SecurityEvent) error {
	if event == nil || event.ID == "" {
		return fmt.Errorf("event id is required")
	}
	cp := *event
	s.mu.Lock()
	s.events[event.ID] = &cp
	s.mu.Unlock()
	return nil
}

// Get returns a copy of an event.
func (s *MemoryStore) Get(ctx context.Context, id string) (*models.SecurityEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ev, ok := s.events[id]
	if !ok {
		return nil, fmt.Errorf("event %s: %w", id, ErrNotFound)
	}
	cp := *ev
	return &cp, nil
}

// LinkIncident sets the incident foreign key on an event.
func (s *MemoryStore) LinkIncident(ctx context.Context, eventID, incidentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[eventID]
	if !ok {
		return fmt.Errorf("event %s: %w", eventID, ErrNotFound)
	}
	ev.IncidentID = incidentID
	return nil
}

// Incidents returns the incident store view.
func (s *MemoryStore) Incidents() *MemoryIncidents {
	return &MemoryIncidents{s: s}
}

// BlockedIPs returns the blocked-IP store view.
func (s *MemoryStore) BlockedIPs() *MemoryBlockedIPs {
	return &MemoryBlockedIPs{s: s}
}

// MemoryIncidents is the IncidentStore view of a MemoryStore.
type MemoryIncidents struct {
	s *MemoryStore
}

// CountByYearPrefix counts incidents whose ID starts with prefix.
func (m *MemoryIncidents) CountByYearPrefix(ctx context.Context, prefix string) (int, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	n := 0
	for id := range m.s.incidents {
		if strings.HasPrefix(id, prefix+"-") {
			n++
		}
	}
	return n, nil
}

// Create inserts a new incident.
func (m *MemoryIncidents) Create(ctx context.Context, inc *models.SecurityIncident) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, exists := m.s.incidents[inc.IncidentID]; exists {
		return fmt.Errorf("incident %s: %w", inc.IncidentID, ErrDuplicateID)
	}
	inc.Version = 1
	m.s.incidents[inc.IncidentID] = inc.Clone()
	return nil
}

// Get returns a copy of an incident.
func (m *MemoryIncidents) Get(ctx context.Context, id string) (*models.SecurityIncident, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	inc, ok := m.s.incidents[id]
	if !ok {
		return nil, fmt.Errorf("incident %s: %w", id, ErrNotFound)
	}
	return inc.Clone(), nil
}

// UpdateWithEntry replaces all fields except the timeline and appends entry
// under one lock.
func (m *MemoryIncidents) UpdateWithEntry(ctx context.Context, inc *models.SecurityIncident, entry models.TimelineEntry) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	cur, ok := m.s.incidents[inc.IncidentID]
	if !ok {
		return fmt.Errorf("incident %s: %w", inc.IncidentID, ErrNotFound)
	}
	if cur.Version != inc.Version {
		return fmt.Errorf("incident %s at version %d, got %d: %w", inc.IncidentID, cur.Version, inc.Version, ErrConflict)
	}
	next := inc.Clone()
	next.Timeline = append(cur.Timeline, entry)
	next.Version = cur.Version + 1
	m.s.incidents[inc.IncidentID] = next
	inc.Version = next.Version
	return nil
}

// AppendTimeline appends one entry.
func (m *MemoryIncidents) AppendTimeline(ctx context.Context, id string, entry models.TimelineEntry) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	cur, ok := m.s.incidents[id]
	if !ok {
		return fmt.Errorf("incident %s: %w", id, ErrNotFound)
	}
	cur.Timeline = append(cur.Timeline, entry)
	return nil
}

// MemoryBlockedIPs is the BlockedIPStore view of a MemoryStore.
type MemoryBlockedIPs struct {
	s *MemoryStore
}

// Create records a blocked IP.
func (m *MemoryBlockedIPs) Create(ctx context.Context, blocked *models.BlockedIP) error {
	if blocked == nil || blocked.IPAddress == "" {
		return fmt.Errorf("blocked ip address is required")
	}
	cp := *blocked
	m.s.mu.Lock()
	m.s.blocked = append(m.s.blocked, &cp)
	m.s.mu.Unlock()
	return nil
}

// List returns recorded blocked IPs in insertion order.
func (m *MemoryBlockedIPs) List() []models.BlockedIP {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	out := make([]models.BlockedIP, 0, len(m.s.blocked))
	for _, b := range m.s.blocked {
		out = append(out, *b)
	}
	return out
}
