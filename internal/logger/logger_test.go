package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func resetLogger(t *testing.T) {
	t.Cleanup(func() {
		sugar = zap.NewNop().Sugar()
		level.SetLevel(zapcore.InfoLevel)
	})
}

func TestInitWritesLevelFilteredFile(t *testing.T) {
	resetLogger(t)
	path := filepath.Join(t.TempDir(), "logs", "sentinel.log")
	if err := Init(Options{Enabled: true, Level: "warn", File: path}); err != nil {
		t.Fatalf("init: %v", err)
	}

	Infof("hidden %d", 1)
	Warnf("catalog degraded: %s", "timeout")
	Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	out := string(data)
	if strings.Contains(out, "hidden") {
		t.Fatalf("info line should be filtered at warn level: %q", out)
	}
	if !strings.Contains(out, "catalog degraded: timeout") || !strings.Contains(out, "WARN") {
		t.Fatalf("expected warn line, got %q", out)
	}
}

func TestJSONFormatAndLevelChange(t *testing.T) {
	resetLogger(t)
	path := filepath.Join(t.TempDir(), "sentinel.jsonl")
	if err := Init(Options{Enabled: true, Level: "error", File: path, JSON: true}); err != nil {
		t.Fatalf("init: %v", err)
	}

	Infof("dropped")
	SetLevel("info")
	Infof("incident %s opened", "INC-2026-001")
	Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one line, got %q", data)
	}
	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("not json: %v", err)
	}
	if entry["msg"] != "incident INC-2026-001 opened" {
		t.Fatalf("unexpected entry %v", entry)
	}
}

func TestDisabledLoggerIsNoop(t *testing.T) {
	resetLogger(t)
	if err := Init(Options{Enabled: false, Level: "debug", Console: true}); err != nil {
		t.Fatalf("init: %v", err)
	}
	Errorf("nothing happens")
	Sync()
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"WARNING": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"":        zapcore.InfoLevel,
		"verbose": zapcore.InfoLevel,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
