package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"sentinelir/config"
	"sentinelir/pkg/models"
)

func TestApplyDefaults(t *testing.T) {
	c := &config.Config{}
	c.Sentinel.Input.Redis.Addr = "10.1.1.1:6379"
	applyDefaults(c)

	s := c.Sentinel
	if s.Store.Mode != "memory" || s.Notify.Mode != "none" {
		t.Fatalf("unexpected modes store=%q notify=%q", s.Store.Mode, s.Notify.Mode)
	}
	if s.Store.Redis.Addr != "10.1.1.1:6379" {
		t.Fatalf("store redis should inherit input addr, got %q", s.Store.Redis.Addr)
	}
	if s.Input.Redis.Key != "security_events" || s.Input.Redis.BlockTimeout != 5*time.Second {
		t.Fatalf("unexpected input defaults %+v", s.Input.Redis)
	}
	if s.Pipeline.Workers != 4 || s.Service.EventCacheSize != 1024 {
		t.Fatalf("unexpected worker/cache defaults")
	}
	if s.Catalog.RefreshInterval != 15*time.Minute {
		t.Fatalf("refresh interval = %v", s.Catalog.RefreshInterval)
	}
}

func TestOpenStoresRejectsUnknownMode(t *testing.T) {
	if _, err := openStores(context.Background(), config.StoreConfig{Mode: "sqlite"}); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := openStores(context.Background(), config.StoreConfig{Mode: "postgres"}); err == nil {
		t.Fatalf("expected error for empty dsn")
	}
}

func TestActionTypesSplitsScopes(t *testing.T) {
	types := actionTypes()
	if len(types.Autonomous) != 12 || len(types.ApprovalRequired) != 10 {
		t.Fatalf("unexpected type counts %d/%d", len(types.Autonomous), len(types.ApprovalRequired))
	}
	if types.Autonomous[0] != "ip_block" || types.ApprovalRequired[0] != "system_update" {
		t.Fatalf("unexpected first entries %q %q", types.Autonomous[0], types.ApprovalRequired[0])
	}
}

func TestParsePlaybookRef(t *testing.T) {
	category, severity := parsePlaybookRef("failed_login/HIGH")
	if category != "failed_login" || severity != models.SeverityHigh {
		t.Fatalf("got %q %q", category, severity)
	}
	if _, severity := parsePlaybookRef("malware"); severity != models.SeverityInfo {
		t.Fatalf("missing severity should parse as info, got %q", severity)
	}
}

func TestWriteCatalogListings(t *testing.T) {
	var buf bytes.Buffer
	writeIndicators(&buf, []models.ThreatIndicatorEntry{{Kind: "ip", Value: "203.0.113.66", ThreatType: "botnet", Severity: models.SeverityHigh}})
	writePlaybook(&buf, &models.Playbook{Category: "failed_login", Severity: models.SeverityHigh, Steps: []string{"Block source IP", "Notify"}})

	out := buf.String()
	for _, want := range []string{"203.0.113.66", "botnet", "1. Block source IP", "2. Notify"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}
