package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"sentinelir/internal/store"
	"sentinelir/pkg/models"
)

var (
	_ store.EventStore     = (*Store)(nil)
	_ store.EventWriter    = (*Store)(nil)
	_ store.IncidentStore  = (*Incidents)(nil)
	_ store.BlockedIPStore = (*BlockedIPs)(nil)
)

func TestIsUniqueViolation(t *testing.T) {
	if !isUniqueViolation(fmt.Errorf("wrapped: %w", &pq.Error{Code: "23505"})) {
		t.Fatalf("expected unique violation")
	}
	if isUniqueViolation(&pq.Error{Code: "23503"}) {
		t.Fatalf("foreign key violation is not a unique violation")
	}
	if isUniqueViolation(errors.New("boom")) {
		t.Fatalf("plain error is not a unique violation")
	}
}

func TestListColumnsRoundTrip(t *testing.T) {
	in := &models.SecurityIncident{
		AffectedSystems: []string{"web-application", "database"},
		Indicators:      []string{"IP:192.0.2.1", "Email:a@example.com"},
		Evidence:        nil,
		Actions:         []string{"Block source IP address"},
	}
	cols, err := encodeLists(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var out models.SecurityIncident
	if err := decodeLists(cols, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(out.AffectedSystems, in.AffectedSystems) || !reflect.DeepEqual(out.Indicators, in.Indicators) || !reflect.DeepEqual(out.Actions, in.Actions) {
		t.Fatalf("round trip mismatch: %+v", out)
	}
	if out.Evidence == nil || len(out.Evidence) != 0 {
		t.Fatalf("nil evidence should decode to empty list, got %#v", out.Evidence)
	}
}

func TestNullTimeHelpers(t *testing.T) {
	if nullTime(nil).Valid {
		t.Fatalf("nil time should be invalid")
	}
	now := time.Now()
	nt := nullTime(&now)
	if !nt.Valid || !nt.Time.Equal(now) {
		t.Fatalf("unexpected null time %+v", nt)
	}
	if timePtr(sql.NullTime{}) != nil {
		t.Fatalf("invalid null time should map to nil")
	}
	if p := timePtr(nt); p == nil || !p.Equal(now) {
		t.Fatalf("unexpected pointer %v", p)
	}
}

var detected = time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

func newMock(t *testing.T) (*Incidents, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(db).Incidents(), mock
}

func sampleIncident() *models.SecurityIncident {
	return &models.SecurityIncident{
		IncidentID: "INC-2026-001",
		Title:      "Brute force",
		Type:       "brute_force",
		Severity:   models.SeverityHigh,
		Status:     models.StatusOpen,
		Priority:   models.PriorityP2,
		ReportedBy: "Security System",
		DetectedAt: detected,
		Timeline:   []models.TimelineEntry{{Timestamp: detected, Action: "Incident Created", Actor: "Security System"}},
	}
}

func TestCreateWritesIncidentAndTimeline(t *testing.T) {
	incs, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO security_incidents")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO incident_timeline")).
		WithArgs("INC-2026-001", detected, "Incident Created", "Security System", "").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	inc := sampleIncident()
	if err := incs.Create(context.Background(), inc); err != nil {
		t.Fatalf("create: %v", err)
	}
	if inc.Version != 1 {
		t.Fatalf("version = %d, want 1", inc.Version)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestCreateMapsUniqueViolation(t *testing.T) {
	incs, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO security_incidents")).WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	err := incs.Create(context.Background(), sampleIncident())
	if !errors.Is(err, store.ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestAppendTimelineMapsForeignKeyViolation(t *testing.T) {
	incs, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO incident_timeline")).WillReturnError(&pq.Error{Code: "23503"})

	err := incs.AppendTimeline(context.Background(), "INC-2026-404", models.TimelineEntry{Timestamp: detected, Action: "Automated: Scan"})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestUpdateWithEntryCommitsBoth(t *testing.T) {
	incs, mock := newMock(t)
	inc := sampleIncident()
	inc.Version = 3
	inc.Status = models.StatusInvestigating

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE security_incidents SET")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO incident_timeline")).
		WithArgs("INC-2026-001", detected, "Status Changed", "alice", "open -> investigating").
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	entry := models.TimelineEntry{Timestamp: detected, Action: "Status Changed", Actor: "alice", Details: "open -> investigating"}
	if err := incs.UpdateWithEntry(context.Background(), inc, entry); err != nil {
		t.Fatalf("update: %v", err)
	}
	if inc.Version != 4 {
		t.Fatalf("version = %d, want 4", inc.Version)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestUpdateWithEntryStaleVersionRollsBack(t *testing.T) {
	incs, mock := newMock(t)
	inc := sampleIncident()
	inc.Version = 1

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE security_incidents SET")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
		WithArgs("INC-2026-001").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	err := incs.UpdateWithEntry(context.Background(), inc, models.TimelineEntry{Timestamp: detected, Action: "Status Changed"})
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if inc.Version != 1 {
		t.Fatalf("version must stay 1 on conflict, got %d", inc.Version)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestUpdateWithEntryMissingIncident(t *testing.T) {
	incs, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE security_incidents SET")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectRollback()

	err := incs.UpdateWithEntry(context.Background(), sampleIncident(), models.TimelineEntry{Action: "x"})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestGetReadsTimelineInSequence(t *testing.T) {
	incs, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM security_incidents WHERE incident_id = $1")).
		WithArgs("INC-2026-001").
		WillReturnRows(sqlmock.NewRows([]string{
			"incident_id", "title", "description", "type", "severity", "status", "priority", "risk_score",
			"affected_systems", "indicators", "evidence", "actions", "assigned_to", "reported_by", "source_event_id", "playbook_id",
			"detected_at", "resolved_at", "closed_at", "version",
		}).AddRow(
			"INC-2026-001", "Brute force", "", "brute_force", "high", "investigating", "p2", 7.5,
			`["web-application"]`, `["IP:192.0.2.1"]`, "[]", "[]", "alice", "Security System", "evt-1", "",
			detected, nil, nil, int64(2),
		))
	mock.ExpectQuery(regexp.QuoteMeta("FROM incident_timeline WHERE incident_id = $1 ORDER BY seq")).
		WithArgs("INC-2026-001").
		WillReturnRows(sqlmock.NewRows([]string{"ts", "action", "actor", "details"}).
			AddRow(detected, "Incident Created", "Security System", "").
			AddRow(detected.Add(time.Minute), "Status Changed", "alice", "open -> investigating"))

	inc, err := incs.Get(context.Background(), "INC-2026-001")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if inc.Status != models.StatusInvestigating || inc.Version != 2 || inc.ResolvedAt != nil {
		t.Fatalf("unexpected incident %+v", inc)
	}
	if !reflect.DeepEqual(inc.AffectedSystems, []string{"web-application"}) {
		t.Fatalf("unexpected affected systems %v", inc.AffectedSystems)
	}
	if len(inc.Timeline) != 2 || inc.Timeline[0].Action != "Incident Created" || inc.Timeline[1].Actor != "alice" {
		t.Fatalf("unexpected timeline %+v", inc.Timeline)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestGetMissingIncident(t *testing.T) {
	incs, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM security_incidents WHERE incident_id = $1")).WillReturnError(sql.ErrNoRows)

	if _, err := incs.Get(context.Background(), "INC-2026-404"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
