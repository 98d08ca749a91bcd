package hub

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MessageLog is the append-only JSONL audit trail of hub activity: one
// record per routed or broadcast message and per control action
// (register, spawn, stop, disconnect). It exists for debugging and
// observability only; the hub never reads it back.
type MessageLog struct {
	mu   sync.Mutex
	file *os.File
}

// NewMessageLog opens (creating if needed) the log file at path in
// append mode.
func NewMessageLog(path string) (*MessageLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open message log: %w", err)
	}
	return &MessageLog{file: f}, nil
}

// LogMessage records a routed message. to is a helper number or the
// string "all" for broadcasts.
func (l *MessageLog) LogMessage(from int, to any, payload json.RawMessage) {
	l.write(map[string]any{
		"type":    "message",
		"from":    from,
		"to":      to,
		"payload": payload,
	})
}

// LogControl records a control event. extra fields are merged into the
// record; nil is fine.
func (l *MessageLog) LogControl(event string, helper int, extra map[string]any) {
	record := map[string]any{
		"type":   "control",
		"event":  event,
		"helper": helper,
	}
	for k, v := range extra {
		record[k] = v
	}
	l.write(record)
}

// Close closes the underlying file. Safe to call once; the hub calls it
// during Stop.
func (l *MessageLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

func (l *MessageLog) write(record map[string]any) {
	record["id"] = uuid.NewString()
	record["ts"] = time.Now().UTC().Format(time.RFC3339Nano)

	data, err := json.Marshal(record)
	if err != nil {
		return
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return
	}
	l.file.Write(data)
}
