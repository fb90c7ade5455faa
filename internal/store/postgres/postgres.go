package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"sentinelir/internal/store"
	"sentinelir/pkg/models"
)

// SQLSTATE codes mapped to store errors.
const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// Schema creates the tables used by Store. List columns hold JSON text;
// the timeline is a child table so appends are single-row inserts.
const Schema = `
CREATE TABLE IF NOT EXISTS security_events (
	id          TEXT PRIMARY KEY,
	type        TEXT NOT NULL,
	severity    TEXT NOT NULL,
	ip_address  TEXT NOT NULL DEFAULT '',
	user_agent  TEXT NOT NULL DEFAULT '',
	user_email  TEXT NOT NULL DEFAULT '',
	location    TEXT NOT NULL DEFAULT '',
	details     TEXT NOT NULL DEFAULT '',
	metadata    TEXT NOT NULL DEFAULT '{}',
	incident_id TEXT,
	created_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS security_incidents (
	incident_id      TEXT PRIMARY KEY,
	title            TEXT NOT NULL,
	description      TEXT NOT NULL,
	type             TEXT NOT NULL,
	severity         TEXT NOT NULL,
	status           TEXT NOT NULL,
	priority         TEXT NOT NULL,
	risk_score       DOUBLE PRECISION NOT NULL,
	affected_systems TEXT NOT NULL DEFAULT '[]',
	indicators       TEXT NOT NULL DEFAULT '[]',
	evidence         TEXT NOT NULL DEFAULT '[]',
	actions          TEXT NOT NULL DEFAULT '[]',
	assigned_to      TEXT NOT NULL DEFAULT '',
	reported_by      TEXT NOT NULL,
	source_event_id  TEXT NOT NULL DEFAULT '',
	playbook_id      TEXT NOT NULL DEFAULT '',
	detected_at      TIMESTAMPTZ NOT NULL,
	resolved_at      TIMESTAMPTZ,
	closed_at        TIMESTAMPTZ,
	version          BIGINT NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS incident_timeline (
	seq         BIGSERIAL PRIMARY KEY,
	incident_id TEXT NOT NULL REFERENCES security_incidents(incident_id),
	ts          TIMESTAMPTZ NOT NULL,
	action      TEXT NOT NULL,
	actor       TEXT NOT NULL,
	details     TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS incident_timeline_incident_idx ON incident_timeline (incident_id, seq);

CREATE TABLE IF NOT EXISTS blocked_ips (
	id          TEXT PRIMARY KEY,
	ip_address  TEXT NOT NULL,
	reason      TEXT NOT NULL,
	incident_id TEXT NOT NULL DEFAULT '',
	created_by  TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL
);
`

// Store persists events, incidents and blocked IPs in PostgreSQL.
type Store struct {
	db *sql.DB
}

// Open connects to dsn and applies the schema.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	s := New(db)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open database without migrating it.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Migrate creates missing tables.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// PutEvent upserts an ingested event.
func (s *Store) PutEvent(ctx context.Context, ev *models.SecurityEvent) error {
	meta, err := json.Marshal(ev.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO security_events (id, type, severity, ip_address, user_agent, user_email, location, details, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING`,
		ev.ID, ev.Type, string(ev.Severity), ev.IPAddress, ev.UserAgent, ev.UserEmail, ev.Location, ev.Details, string(meta), ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert event %s: %w", ev.ID, err)
	}
	return nil
}

// Get implements store.EventStore.
func (s *Store) Get(ctx context.Context, id string) (*models.SecurityEvent, error) {
	var ev models.SecurityEvent
	var severity, meta string
	var incidentID sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, type, severity, ip_address, user_agent, user_email, location, details, metadata, incident_id, created_at
		FROM security_events WHERE id = $1`, id).
		Scan(&ev.ID, &ev.Type, &severity, &ev.IPAddress, &ev.UserAgent, &ev.UserEmail, &ev.Location, &ev.Details, &meta, &incidentID, &ev.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("event %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query event %s: %w", id, err)
	}
	ev.Severity = models.Severity(severity)
	ev.IncidentID = incidentID.String
	if meta != "" {
		if err := json.Unmarshal([]byte(meta), &ev.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata %s: %w", id, err)
		}
	}
	return &ev, nil
}

// LinkIncident implements store.EventStore.
func (s *Store) LinkIncident(ctx context.Context, eventID, incidentID string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE security_events SET incident_id = $2 WHERE id = $1`, eventID, incidentID)
	if err != nil {
		return fmt.Errorf("failed to link event %s: %w", eventID, err)
	}
	return requireRow(res, fmt.Errorf("event %s: %w", eventID, store.ErrNotFound))
}

// Incidents returns the store.IncidentStore view.
func (s *Store) Incidents() *Incidents {
	return &Incidents{db: s.db}
}

// BlockedIPs returns the store.BlockedIPStore view.
func (s *Store) BlockedIPs() *BlockedIPs {
	return &BlockedIPs{db: s.db}
}

// Incidents is the incident view of Store.
type Incidents struct {
	db *sql.DB
}

// CountByYearPrefix counts incidents whose ID starts with prefix.
func (i *Incidents) CountByYearPrefix(ctx context.Context, prefix string) (int, error) {
	var n int
	if err := i.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM security_incidents WHERE incident_id LIKE $1`, prefix+"-%").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count incidents: %w", err)
	}
	return n, nil
}

// Create inserts the incident and its initial timeline in one transaction.
// A taken incident ID surfaces as store.ErrDuplicateID.
func (i *Incidents) Create(ctx context.Context, inc *models.SecurityIncident) error {
	cols, err := encodeLists(inc)
	if err != nil {
		return err
	}

	tx, err := i.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO security_incidents (incident_id, title, description, type, severity, status, priority, risk_score,
			affected_systems, indicators, evidence, actions, assigned_to, reported_by, source_event_id, playbook_id,
			detected_at, resolved_at, closed_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, 1)`,
		inc.IncidentID, inc.Title, inc.Description, inc.Type, string(inc.Severity), string(inc.Status), string(inc.Priority), inc.RiskScore,
		cols.affected, cols.indicators, cols.evidence, cols.actions, inc.AssignedTo, inc.ReportedBy, inc.SourceEventID, inc.PlaybookID,
		inc.DetectedAt, nullTime(inc.ResolvedAt), nullTime(inc.ClosedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("incident %s: %w", inc.IncidentID, store.ErrDuplicateID)
		}
		return fmt.Errorf("failed to insert incident %s: %w", inc.IncidentID, err)
	}

	for _, entry := range inc.Timeline {
		if err := insertTimeline(ctx, tx, inc.IncidentID, entry); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit incident %s: %w", inc.IncidentID, err)
	}
	inc.Version = 1
	return nil
}

// Get loads an incident with its timeline ordered by insertion.
func (i *Incidents) Get(ctx context.Context, id string) (*models.SecurityIncident, error) {
	var inc models.SecurityIncident
	var severity, status, priority string
	var cols listColumns
	var resolvedAt, closedAt sql.NullTime
	err := i.db.QueryRowContext(ctx, `
		SELECT incident_id, title, description, type, severity, status, priority, risk_score,
			affected_systems, indicators, evidence, actions, assigned_to, reported_by, source_event_id, playbook_id,
			detected_at, resolved_at, closed_at, version
		FROM security_incidents WHERE incident_id = $1`, id).
		Scan(&inc.IncidentID, &inc.Title, &inc.Description, &inc.Type, &severity, &status, &priority, &inc.RiskScore,
			&cols.affected, &cols.indicators, &cols.evidence, &cols.actions, &inc.AssignedTo, &inc.ReportedBy, &inc.SourceEventID, &inc.PlaybookID,
			&inc.DetectedAt, &resolvedAt, &closedAt, &inc.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("incident %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query incident %s: %w", id, err)
	}
	inc.Severity = models.Severity(severity)
	inc.Status = models.IncidentStatus(status)
	inc.Priority = models.Priority(priority)
	inc.ResolvedAt = timePtr(resolvedAt)
	inc.ClosedAt = timePtr(closedAt)
	if err := decodeLists(cols, &inc); err != nil {
		return nil, fmt.Errorf("incident %s: %w", id, err)
	}

	rows, err := i.db.QueryContext(ctx, `SELECT ts, action, actor, details FROM incident_timeline WHERE incident_id = $1 ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query timeline %s: %w", id, err)
	}
	defer rows.Close()
	inc.Timeline = []models.TimelineEntry{}
	for rows.Next() {
		var e models.TimelineEntry
		if err := rows.Scan(&e.Timestamp, &e.Action, &e.Actor, &e.Details); err != nil {
			return nil, fmt.Errorf("failed to scan timeline: %w", err)
		}
		inc.Timeline = append(inc.Timeline, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating timeline: %w", err)
	}
	return &inc, nil
}

// UpdateWithEntry writes all fields except the timeline when inc.Version is
// current and inserts entry in the same transaction.
func (i *Incidents) UpdateWithEntry(ctx context.Context, inc *models.SecurityIncident, entry models.TimelineEntry) error {
	cols, err := encodeLists(inc)
	if err != nil {
		return err
	}

	tx, err := i.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE security_incidents SET
			title = $3, description = $4, type = $5, severity = $6, status = $7, priority = $8, risk_score = $9,
			affected_systems = $10, indicators = $11, evidence = $12, actions = $13, assigned_to = $14,
			resolved_at = $15, closed_at = $16, version = version + 1
		WHERE incident_id = $1 AND version = $2`,
		inc.IncidentID, inc.Version,
		inc.Title, inc.Description, inc.Type, string(inc.Severity), string(inc.Status), string(inc.Priority), inc.RiskScore,
		cols.affected, cols.indicators, cols.evidence, cols.actions, inc.AssignedTo,
		nullTime(inc.ResolvedAt), nullTime(inc.ClosedAt))
	if err != nil {
		return fmt.Errorf("failed to update incident %s: %w", inc.IncidentID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM security_incidents WHERE incident_id = $1)`, inc.IncidentID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check incident %s: %w", inc.IncidentID, err)
		}
		if !exists {
			return fmt.Errorf("incident %s: %w", inc.IncidentID, store.ErrNotFound)
		}
		return fmt.Errorf("incident %s version %d: %w", inc.IncidentID, inc.Version, store.ErrConflict)
	}

	if err := insertTimeline(ctx, tx, inc.IncidentID, entry); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit incident %s: %w", inc.IncidentID, err)
	}
	inc.Version++
	return nil
}

// AppendTimeline inserts one timeline row.
func (i *Incidents) AppendTimeline(ctx context.Context, id string, entry models.TimelineEntry) error {
	err := insertTimeline(ctx, i.db, id, entry)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == foreignKeyViolation {
		return fmt.Errorf("incident %s: %w", id, store.ErrNotFound)
	}
	return err
}

// BlockedIPs is the blocked-IP view of Store.
type BlockedIPs struct {
	db *sql.DB
}

// Create records a blocked IP.
func (b *BlockedIPs) Create(ctx context.Context, blocked *models.BlockedIP) error {
	_, err := b.db.ExecContext(ctx, `
		INSERT INTO blocked_ips (id, ip_address, reason, incident_id, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		blocked.ID, blocked.IPAddress, blocked.Reason, blocked.IncidentID, blocked.CreatedBy, blocked.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert blocked ip %s: %w", blocked.IPAddress, err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func insertTimeline(ctx context.Context, db execer, id string, e models.TimelineEntry) error {
	_, err := db.ExecContext(ctx, `INSERT INTO incident_timeline (incident_id, ts, action, actor, details) VALUES ($1, $2, $3, $4, $5)`,
		id, e.Timestamp, e.Action, e.Actor, e.Details)
	if err != nil {
		return fmt.Errorf("failed to append timeline %s: %w", id, err)
	}
	return nil
}

type listColumns struct {
	affected   string
	indicators string
	evidence   string
	actions    string
}

func encodeLists(inc *models.SecurityIncident) (listColumns, error) {
	var cols listColumns
	var err error
	if cols.affected, err = store.EncodeStrings(inc.AffectedSystems); err != nil {
		return cols, err
	}
	if cols.indicators, err = store.EncodeStrings(inc.Indicators); err != nil {
		return cols, err
	}
	if cols.evidence, err = store.EncodeStrings(inc.Evidence); err != nil {
		return cols, err
	}
	if cols.actions, err = store.EncodeStrings(inc.Actions); err != nil {
		return cols, err
	}
	return cols, nil
}

func decodeLists(cols listColumns, inc *models.SecurityIncident) error {
	var err error
	if inc.AffectedSystems, err = store.DecodeStrings(cols.affected); err != nil {
		return err
	}
	if inc.Indicators, err = store.DecodeStrings(cols.indicators); err != nil {
		return err
	}
	if inc.Evidence, err = store.DecodeStrings(cols.evidence); err != nil {
		return err
	}
	if inc.Actions, err = store.DecodeStrings(cols.actions); err != nil {
		return err
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func requireRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
