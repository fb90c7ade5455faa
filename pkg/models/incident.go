package models

import "time"

// IncidentStatus is the lifecycle state of an incident.
type IncidentStatus string

const (
	StatusOpen          IncidentStatus = "open"
	StatusInvestigating IncidentStatus = "investigating"
	StatusResolved      IncidentStatus = "resolved"
	StatusClosed        IncidentStatus = "closed"
)

// Priority is the response priority p1 (highest) to p4.
type Priority string

const (
	PriorityP1 Priority = "p1"
	PriorityP2 Priority = "p2"
	PriorityP3 Priority = "p3"
	PriorityP4 Priority = "p4"
)

// TimelineEntry is one audit record on an incident. Entries are append-only.
type TimelineEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	Actor     string    `json:"actor"`
	Details   string    `json:"details,omitempty"`
}

// SecurityIncident is a tracked security problem.
type SecurityIncident struct {
	IncidentID      string          `json:"incident_id"`
	Title           string          `json:"title"`
	Description     string          `json:"description"`
	Type            string          `json:"type"`
	Severity        Severity        `json:"severity"`
	Status          IncidentStatus  `json:"status"`
	Priority        Priority        `json:"priority"`
	RiskScore       float64         `json:"risk_score"`
	AffectedSystems []string        `json:"affected_systems"`
	Indicators      []string        `json:"indicators"`
	Timeline        []TimelineEntry `json:"timeline"`
	Evidence        []string        `json:"evidence"`
	Actions         []string        `json:"actions"`
	AssignedTo      string          `json:"assigned_to,omitempty"`
	ReportedBy      string          `json:"reported_by"`
	SourceEventID   string          `json:"source_event_id,omitempty"`
	PlaybookID      string          `json:"playbook_id,omitempty"`
	DetectedAt      time.Time       `json:"detected_at"`
	ResolvedAt      *time.Time      `json:"resolved_at,omitempty"`
	ClosedAt        *time.Time      `json:"closed_at,omitempty"`

	// Version is the optimistic-lock counter maintained by the store.
	Version int64 `json:"version"`
}

// Clone returns a deep copy so callers can mutate without aliasing stored slices.
func (i *SecurityIncident) Clone() *SecurityIncident {
	if i == nil {
		return nil
	}
	out := *i
	out.AffectedSystems = append([]string(nil), i.AffectedSystems...)
	out.Indicators = append([]string(nil), i.Indicators...)
	out.Timeline = append([]TimelineEntry(nil), i.Timeline...)
	out.Evidence = append([]string(nil), i.Evidence...)
	out.Actions = append([]string(nil), i.Actions...)
	if i.ResolvedAt != nil {
		t := *i.ResolvedAt
		out.ResolvedAt = &t
	}
	if i.ClosedAt != nil {
		t := *i.ClosedAt
		out.ClosedAt = &t
	}
	return &out
}

// BlockedIP records an address blocked by an automated response.
type BlockedIP struct {
	ID         string    `json:"id"`
	IPAddress  string    `json:"ip_address"`
	Reason     string    `json:"reason"`
	IncidentID string    `json:"incident_id,omitempty"`
	CreatedBy  string    `json:"created_by"`
	CreatedAt  time.Time `json:"created_at"`
}
