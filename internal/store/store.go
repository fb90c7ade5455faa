// Package store defines the persistence collaborators of the incident core
// and an in-memory implementation.
package store

import (
	"context"
	"errors"

	"sentinelir/pkg/models"
)

var (
	// ErrNotFound is returned when an event or incident does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateID is returned when an incident ID is already taken.
	ErrDuplicateID = errors.New("duplicate incident id")
	// ErrConflict is returned when an update carries a stale version.
	ErrConflict = errors.New("version conflict")
)

// EventStore reads security events.
type EventStore interface {
	Get(ctx context.Context, id string) (*models.SecurityEvent, error)
	LinkIncident(ctx context.Context, eventID, incidentID string) error
}

// EventWriter records ingested events.
type EventWriter interface {
	PutEvent(ctx context.Context, event *models.SecurityEvent) error
}

// IncidentStore persists incidents. Create must reject an existing
// IncidentID with ErrDuplicateID and store the incident together with its
// initial timeline. UpdateWithEntry persists every field except the timeline
// and appends entry in the same atomic write; it fails with ErrConflict when
// inc.Version is stale, leaving both untouched, and bumps inc.Version on
// success. Timelines only grow through UpdateWithEntry and AppendTimeline.
type IncidentStore interface {
	CountByYearPrefix(ctx context.Context, prefix string) (int, error)
	Create(ctx context.Context, inc *models.SecurityIncident) error
	Get(ctx context.Context, id string) (*models.SecurityIncident, error)
	UpdateWithEntry(ctx context.Context, inc *models.SecurityIncident, entry models.TimelineEntry) error
	AppendTimeline(ctx context.Context, id string, entry models.TimelineEntry) error
}

// BlockedIPStore records blocked addresses.
type BlockedIPStore interface {
	Create(ctx context.Context, blocked *models.BlockedIP) error
}
