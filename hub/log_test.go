package hub

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func readLogRecords(t *testing.T, path string) []map[string]any {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	defer f.Close()

	var records []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var record map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			t.Fatalf("parse log line %q: %v", scanner.Text(), err)
		}
		records = append(records, record)
	}
	return records
}

func TestMessageLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messages.jsonl")
	log, err := NewMessageLog(path)
	if err != nil {
		t.Fatalf("NewMessageLog() error = %v", err)
	}

	log.LogMessage(1, 2, json.RawMessage(`{"text":"hi"}`))
	log.LogMessage(0, "all", json.RawMessage(`{"text":"everyone"}`))
	log.LogControl("register", 1, nil)
	log.LogControl("spawn", 2, map[string]any{"model": "sonnet"})
	if err := log.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	records := readLogRecords(t, path)
	if len(records) != 4 {
		t.Fatalf("got %d records, want 4", len(records))
	}

	msg := records[0]
	if msg["type"] != "message" || msg["from"] != float64(1) || msg["to"] != float64(2) {
		t.Errorf("message record = %v", msg)
	}
	if msg["ts"] == nil || msg["id"] == nil {
		t.Errorf("message record missing ts/id: %v", msg)
	}

	if records[1]["to"] != "all" {
		t.Errorf("broadcast record to = %v, want \"all\"", records[1]["to"])
	}

	ctl := records[3]
	if ctl["type"] != "control" || ctl["event"] != "spawn" || ctl["model"] != "sonnet" {
		t.Errorf("control record = %v", ctl)
	}
}

func TestMessageLogAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messages.jsonl")

	log, err := NewMessageLog(path)
	if err != nil {
		t.Fatal(err)
	}
	log.LogControl("register", 1, nil)
	log.Close()

	// Re-opening must append, not truncate.
	log, err = NewMessageLog(path)
	if err != nil {
		t.Fatal(err)
	}
	log.LogControl("register", 2, nil)
	log.Close()

	if records := readLogRecords(t, path); len(records) != 2 {
		t.Errorf("got %d records after reopen, want 2", len(records))
	}
}

func TestMessageLogCloseIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messages.jsonl")
	log, err := NewMessageLog(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := log.Close(); err != nil {
		t.Fatalf("first Close() error = %v", err)
	}
	if err := log.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	// Writes after close are dropped, not a panic.
	log.LogControl("register", 1, nil)
}
