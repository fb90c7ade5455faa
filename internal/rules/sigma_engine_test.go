package rules

import (
	"os"
	"path/filepath"
	"testing"

	"sentinelir/pkg/models"
)

const scannerRule = `title: Scanner user agent on storefront
id: 5b0e2d7c-1c55-4c1f-9b8a-7a1f3d1de001
logsource:
  product: webapp
detection:
  selection:
    type: suspicious_activity
    user_agent: sqlmap
  condition: selection
level: high
`

const windowsRule = `title: Windows only
logsource:
  product: windows
  service: sysmon
detection:
  selection:
    EventID: 1
  condition: selection
`

func writeRule(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0644); err != nil {
		t.Fatalf("write rule: %v", err)
	}
}

func TestSigmaEngineLoadsApplicationRulesOnly(t *testing.T) {
	dir := t.TempDir()
	writeRule(t, dir, "scanner.yml", scannerRule)
	writeRule(t, dir, "windows.yaml", windowsRule)
	writeRule(t, dir, "broken.yml", "title: [")
	writeRule(t, dir, "notes.txt", "ignored")

	engine, stats, err := NewSigmaEngine(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if stats.TotalFiles != 3 || stats.Loaded != 1 || stats.SkippedDatasource != 1 || stats.SkippedInvalid != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	hit := engine.Apply(&models.SecurityEvent{Type: "suspicious_activity", UserAgent: "sqlmap"})
	if len(hit) != 1 || hit[0] != "Scanner user agent on storefront" {
		t.Fatalf("expected scanner rule match, got %v", hit)
	}
	miss := engine.Apply(&models.SecurityEvent{Type: "failed_login", UserAgent: "sqlmap"})
	if len(miss) != 0 {
		t.Fatalf("expected no match, got %v", miss)
	}
}

func TestSigmaEngineRejectsNonYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rule.json")
	writeRule(t, filepath.Dir(path), "rule.json", "{}")
	if _, _, err := NewSigmaEngine(path); err == nil {
		t.Fatalf("expected error for non-yaml file")
	}
}

func TestNoopEngine(t *testing.T) {
	var e Engine = &NoopEngine{}
	if got := e.Apply(&models.SecurityEvent{}); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}

const aliasRule = `title: Scanner by web server field names
logsource:
  category: webserver
detection:
  selection:
    cs-user-agent|contains: nikto
  condition: selection
level: medium
`

const quietRule = `title: Any login
logsource:
  product: application
detection:
  selection:
    type: failed_login
  condition: selection
level: informational
`

func TestSigmaEngineMatchesWebServerFieldAliases(t *testing.T) {
	dir := t.TempDir()
	writeRule(t, dir, "alias.yml", aliasRule)

	engine, stats, err := NewSigmaEngine(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if stats.Loaded != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	hit := engine.Apply(&models.SecurityEvent{Type: "suspicious_activity", UserAgent: "Mozilla nikto/2.1"})
	if len(hit) != 1 {
		t.Fatalf("expected alias match, got %v", hit)
	}
}

func TestSigmaEngineWalksNestedDirectories(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "web", "scanners")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeRule(t, nested, "scanner.yml", scannerRule)

	_, stats, err := NewSigmaEngine(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if stats.TotalFiles != 1 || stats.Loaded != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestSigmaEngineDropBelow(t *testing.T) {
	dir := t.TempDir()
	writeRule(t, dir, "scanner.yml", scannerRule)
	writeRule(t, dir, "quiet.yml", quietRule)

	engine, _, err := NewSigmaEngine(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if engine.Len() != 2 {
		t.Fatalf("expected 2 rules, got %d", engine.Len())
	}
	if dropped := engine.DropBelow("low"); dropped != 1 {
		t.Fatalf("expected 1 dropped, got %d", dropped)
	}
	if got := engine.Apply(&models.SecurityEvent{Type: "failed_login"}); len(got) != 0 {
		t.Fatalf("informational rule should be gone, got %v", got)
	}
	if dropped := engine.DropBelow(""); dropped != 0 {
		t.Fatalf("empty level should drop nothing, got %d", dropped)
	}
}

func TestLevelRank(t *testing.T) {
	if LevelRank("Critical") <= LevelRank("high") {
		t.Fatalf("critical should outrank high")
	}
	if LevelRank("bogus") != 0 {
		t.Fatalf("unknown level should rank 0")
	}
}
