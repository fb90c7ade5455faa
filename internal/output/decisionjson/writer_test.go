package decisionjson

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"sentinelir/pkg/models"
)

func sampleRecord(round int) Record {
	return Record{
		Timestamp:  time.Date(2026, 1, 1, 0, 0, round, 0, time.UTC),
		IncidentID: "INC-2026-001",
		Action:     &models.SecurityAction{ID: "a1", Type: "ip_block", Priority: models.ActionPriorityHigh},
		Decision:   models.DecisionResult{Approved: true, Confidence: 0.95, ActionTaken: "executed_autonomously"},
	}
}

func countLines(t *testing.T, path string) int {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	var n int
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		n++
	}
	return n
}

func TestWriterAppendsLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit", "decisions.jsonl")

	for round := 0; round < 2; round++ {
		w, err := NewWriter(path, 0)
		if err != nil {
			t.Fatalf("new writer: %v", err)
		}
		rec := sampleRecord(round)
		if err := w.WriteDecision(rec); err != nil {
			t.Fatalf("write: %v", err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	var lines int
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var rec Record
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			t.Fatalf("line %d: %v", lines, err)
		}
		if rec.Action == nil || rec.Action.Type != "ip_block" || !rec.Decision.Approved {
			t.Fatalf("unexpected record %+v", rec)
		}
		lines++
	}
	if lines != 2 {
		t.Fatalf("lines = %d, want 2", lines)
	}
}

func TestWriterRotatesAtSizeLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "decisions.jsonl")
	line, err := json.Marshal(sampleRecord(0))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	// Room for two lines per file.
	w, err := NewWriter(path, int64(2*(len(line)+1)))
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := w.WriteDecision(sampleRecord(0)); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if got := countLines(t, path+".1"); got != 2 {
		t.Fatalf("rotated lines = %d, want 2", got)
	}
	if got := countLines(t, path); got != 1 {
		t.Fatalf("current lines = %d, want 1", got)
	}
}

func TestWriterRejectsWriteAfterClose(t *testing.T) {
	w, err := NewWriter(filepath.Join(t.TempDir(), "d.jsonl"), 0)
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := w.WriteDecision(sampleRecord(0)); err == nil {
		t.Fatalf("expected error after close")
	}
}

func TestWriterKeepsWritingWhenRotationFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "decisions.jsonl")
	// A non-empty directory at the rotation target makes the rename fail.
	if err := os.MkdirAll(filepath.Join(path+".1", "keep"), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	w, err := NewWriter(path, 200)
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	defer w.Close()

	for i := 0; i < 4; i++ {
		if err := w.WriteDecision(sampleRecord(i)); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}
	if got := countLines(t, path); got != 4 {
		t.Fatalf("expected 4 lines in %s, got %d", path, got)
	}
	if info, err := os.Stat(path + ".1"); err != nil || !info.IsDir() {
		t.Fatalf("rotation target should be untouched: %v", err)
	}
}
