package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"sentinelir/pkg/models"
)

type failingIntel struct{}

func (failingIntel) ListActive(ctx context.Context) ([]models.ThreatIndicatorEntry, error) {
	return nil, errors.New("connection refused")
}

type staticPlaybooks []models.Playbook

func (s staticPlaybooks) ListActive(ctx context.Context) ([]models.Playbook, error) {
	return s, nil
}

func (s staticPlaybooks) FindByCategorySeverity(ctx context.Context, category string, severity models.Severity) (*models.Playbook, error) {
	return nil, nil
}

func TestNewSnapshotDropsInactiveAndNormalizesKeys(t *testing.T) {
	snap := NewSnapshot([]models.ThreatIndicatorEntry{
		{Kind: "IP", Value: " 10.0.0.1 ", IsActive: true},
		{Kind: "ip", Value: "10.0.0.2", IsActive: false},
	}, []models.Playbook{
		{Category: "Malware", Severity: "HIGH", Steps: []string{"Isolate host"}, IsActive: true},
		{Category: "phishing", Severity: "high", IsActive: false},
	})

	if !snap.IsKnownThreatIP("10.0.0.1") {
		t.Fatalf("expected 10.0.0.1 to be a known threat")
	}
	if snap.IsKnownThreatIP("10.0.0.2") {
		t.Fatalf("inactive indicator must not match")
	}
	if snap.IsKnownThreatIP("") {
		t.Fatalf("empty ip must not match")
	}
	pb, ok := snap.Playbook("malware", models.SeverityHigh)
	if !ok || len(pb.Steps) != 1 {
		t.Fatalf("expected malware:high playbook, got %+v ok=%t", pb, ok)
	}
	if _, ok := snap.Playbook("phishing", models.SeverityHigh); ok {
		t.Fatalf("inactive playbook must not be returned")
	}
	if inds := snap.Indicators(); len(inds) != 1 || inds[0].Value != "10.0.0.1" || inds[0].Kind != "ip" {
		t.Fatalf("unexpected indicators %+v", inds)
	}
	if snap.Degraded() {
		t.Fatalf("fresh snapshot should not be degraded")
	}
}

func TestPlaybookStepsAreCopied(t *testing.T) {
	snap := NewSnapshot(nil, []models.Playbook{{Category: "ddos", Severity: "critical", Steps: []string{"a", "b"}, IsActive: true}})
	pb, _ := snap.Playbook("ddos", models.SeverityCritical)
	pb.Steps[0] = "mutated"
	again, _ := snap.Playbook("ddos", models.SeverityCritical)
	if again.Steps[0] != "a" {
		t.Fatalf("snapshot steps must not be aliased, got %q", again.Steps[0])
	}
}

func TestLoadFallsBackToDefaults(t *testing.T) {
	snap, err := Load(context.Background(), failingIntel{}, nil)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if snap == nil || !snap.Degraded() {
		t.Fatalf("expected degraded snapshot")
	}
	if !snap.IsKnownThreatIP("203.0.113.10") {
		t.Fatalf("expected default indicator table")
	}
	if _, ok := snap.Playbook(models.EventMalware, models.SeverityCritical); !ok {
		t.Fatalf("expected default playbook table")
	}
}

func TestHolderKeepsHealthySnapshotOnDegradedRefresh(t *testing.T) {
	intel := &switchingIntel{entries: []models.ThreatIndicatorEntry{{Kind: "ip", Value: "192.0.2.1", IsActive: true}}}
	h := NewHolder(context.Background(), intel, staticPlaybooks(nil))
	if h.Current().Degraded() {
		t.Fatalf("expected healthy first load")
	}

	intel.fail = true
	if err := h.Refresh(context.Background()); err == nil {
		t.Fatalf("expected refresh error")
	}
	if !h.Current().IsKnownThreatIP("192.0.2.1") {
		t.Fatalf("healthy snapshot should be retained")
	}
}

type switchingIntel struct {
	entries []models.ThreatIndicatorEntry
	fail    bool
}

func (s *switchingIntel) ListActive(ctx context.Context) ([]models.ThreatIndicatorEntry, error) {
	if s.fail {
		return nil, errors.New("timeout")
	}
	return s.entries, nil
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yml")
	doc := `
indicators:
  - kind: ip
    value: 192.0.2.50
    threat_type: failed_login
    severity: high
    confidence: 80
    is_active: true
  - kind: ip
    value: 192.0.2.51
    is_active: false
playbooks:
  - category: failed_login
    severity: high
    name: Brute force
    steps: ["Block source IP", "Notify account owner"]
    is_active: true
`
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}

	src, err := NewFileSource(path)
	if err != nil {
		t.Fatalf("new file source: %v", err)
	}
	snap, err := Load(context.Background(), src, src.Playbooks())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	stats := snap.Stats()
	if stats.Indicators != 1 || stats.Playbooks != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	pb, err := src.Playbooks().FindByCategorySeverity(context.Background(), "failed_login", models.SeverityHigh)
	if err != nil || pb == nil || pb.Name != "Brute force" {
		t.Fatalf("unexpected playbook lookup: %+v err=%v", pb, err)
	}
}

func TestNewFileSourceRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yml")
	if err := os.WriteFile(path, []byte("indicators: [::"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := NewFileSource(path); err == nil {
		t.Fatalf("expected parse error")
	}
}
