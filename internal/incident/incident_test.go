package incident

import (
	"testing"
	"time"

	"sentinelir/pkg/models"
)

func TestShouldCreateIncident(t *testing.T) {
	cases := []struct {
		score float64
		sev   models.Severity
		want  bool
	}{
		{39.9, models.SeverityLow, false},
		{40, models.SeverityLow, true},
		{10, models.SeverityHigh, true},
		{0, models.SeverityCritical, true},
		{39, models.SeverityMedium, false},
		{5, models.SeverityInfo, false},
	}
	for _, tc := range cases {
		if got := ShouldCreateIncident(tc.score, tc.sev); got != tc.want {
			t.Fatalf("ShouldCreateIncident(%v, %s) = %t, want %t", tc.score, tc.sev, got, tc.want)
		}
	}
}

func TestShouldCreateIncidentMonotonicInScore(t *testing.T) {
	for _, sev := range []models.Severity{models.SeverityInfo, models.SeverityLow, models.SeverityMedium, models.SeverityHigh, models.SeverityCritical} {
		seen := false
		for score := 0.0; score <= 100; score += 0.5 {
			got := ShouldCreateIncident(score, sev)
			if seen && !got {
				t.Fatalf("decision flipped back to false at score %v severity %s", score, sev)
			}
			seen = seen || got
		}
	}
}

func TestRecommendedActionsEscalatesCritical(t *testing.T) {
	high := RecommendedActions(models.EventFailedLogin, models.SeverityHigh)
	crit := RecommendedActions(models.EventFailedLogin, models.SeverityCritical)
	if len(crit) != len(high)+1 || crit[0] != EscalationStep {
		t.Fatalf("expected escalation prefix, got %v", crit)
	}
	for i := range high {
		if crit[i+1] != high[i] {
			t.Fatalf("critical list must keep defaults in order: %v vs %v", crit, high)
		}
	}
	if got := RecommendedActions("unknown", models.SeverityLow); len(got) != len(fallbackActions) {
		t.Fatalf("expected fallback actions, got %v", got)
	}
}

func TestRecommendedActionsDoesNotAliasDefaults(t *testing.T) {
	got := RecommendedActions(models.EventMalware, models.SeverityHigh)
	got[0] = "mutated"
	if RecommendedActions(models.EventMalware, models.SeverityHigh)[0] == "mutated" {
		t.Fatalf("default table was mutated through returned slice")
	}
}

func TestPriorityFor(t *testing.T) {
	want := map[models.Severity]models.Priority{
		models.SeverityCritical: models.PriorityP1,
		models.SeverityHigh:     models.PriorityP2,
		models.SeverityMedium:   models.PriorityP3,
		models.SeverityLow:      models.PriorityP4,
		models.SeverityInfo:     models.PriorityP4,
	}
	for sev, p := range want {
		if got := PriorityFor(sev); got != p {
			t.Fatalf("PriorityFor(%s) = %s, want %s", sev, got, p)
		}
	}
}

func TestIncidentIDFormatAndParse(t *testing.T) {
	if got := FormatIncidentID(2026, 7); got != "INC-2026-007" {
		t.Fatalf("unexpected id %s", got)
	}
	if got := FormatIncidentID(2026, 1234); got != "INC-2026-1234" {
		t.Fatalf("unexpected id %s", got)
	}
	year, seq, err := ParseIncidentID("INC-2026-042")
	if err != nil || year != 2026 || seq != 42 {
		t.Fatalf("parse = %d %d %v", year, seq, err)
	}
	for _, bad := range []string{"", "INC-26-001", "INC-2026-1", "ABC-2026-001", "INC-2026-0x1"} {
		if _, _, err := ParseIncidentID(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestBuildIncident(t *testing.T) {
	now := time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC)
	ev := &models.SecurityEvent{
		ID:        "evt-9",
		Type:      models.EventFailedLogin,
		Severity:  models.SeverityHigh,
		IPAddress: "203.0.113.10",
		UserEmail: "shopper@example.com",
		CreatedAt: now.Add(-time.Minute),
	}
	analysis := &models.SecurityEventAnalysis{
		RiskScore:          64,
		Severity:           models.SeverityHigh,
		ThreatType:         models.EventFailedLogin,
		Indicators:         []string{"IP:203.0.113.10", "Email:shopper@example.com"},
		RecommendedActions: []string{"Block source IP address", "Notify account owner"},
		Confidence:         80,
	}

	inc := BuildIncident(ev, analysis, "", 3, now)

	if inc.IncidentID != "INC-2026-003" {
		t.Fatalf("unexpected id %s", inc.IncidentID)
	}
	if inc.Priority != models.PriorityP2 || inc.Status != models.StatusOpen {
		t.Fatalf("unexpected priority/status %s/%s", inc.Priority, inc.Status)
	}
	if inc.ReportedBy != ReporterSystem {
		t.Fatalf("expected default reporter, got %q", inc.ReportedBy)
	}
	if len(inc.Timeline) != 1 || inc.Timeline[0].Action != "Incident Created" || inc.Timeline[0].Actor != ReporterSystem {
		t.Fatalf("unexpected timeline: %+v", inc.Timeline)
	}
	if inc.Title != "HIGH Failed Login from 203.0.113.10" {
		t.Fatalf("unexpected title %q", inc.Title)
	}
	if len(inc.Indicators) != 2 || inc.Indicators[1] != "Email:shopper@example.com" {
		t.Fatalf("indicators not copied verbatim: %v", inc.Indicators)
	}
	if len(inc.Actions) != 2 || inc.Actions[0] != "Block source IP address" {
		t.Fatalf("actions not copied verbatim: %v", inc.Actions)
	}
	if !inc.DetectedAt.Equal(ev.CreatedAt) || inc.SourceEventID != "evt-9" {
		t.Fatalf("unexpected source fields: %+v", inc)
	}
	wantSystems := []string{"web-application", "user-accounts"}
	if len(inc.AffectedSystems) != len(wantSystems) {
		t.Fatalf("unexpected affected systems %v", inc.AffectedSystems)
	}

	analysis.Indicators[0] = "changed"
	if inc.Indicators[0] == "changed" {
		t.Fatalf("incident indicators must not alias analysis")
	}
}

func TestHumanize(t *testing.T) {
	if got := humanize("ddos"); got != "DDoS" {
		t.Fatalf("got %q", got)
	}
	if got := humanize("data_breach"); got != "Data Breach" {
		t.Fatalf("got %q", got)
	}
}
