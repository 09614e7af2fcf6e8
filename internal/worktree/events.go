package worktree

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Lifecycle event names.
const (
	EventCreateBefore  = "worktree.create.before"
	EventCreateAfter   = "worktree.create.after"
	EventCreateFailed  = "worktree.create.failed"
	EventRemoveBefore  = "worktree.remove.before"
	EventRemoveAfter   = "worktree.remove.after"
	EventRemoveFailed  = "worktree.remove.failed"
	EventKeep          = "worktree.keep"
	EventTaskCompleted = "task.completed"
)

// EventLog appends worktree lifecycle events to .worktrees/events.jsonl.
// Each line is {"event", "ts", "task", "worktree", "error"?}.
type EventLog struct {
	mu   sync.Mutex
	path string
}

// NewEventLog writes to path, creating it on first emit.
func NewEventLog(path string) *EventLog {
	return &EventLog{path: path}
}

// Emit appends one event. task and wt may be nil; they render as {}.
func (l *EventLog) Emit(event string, task, wt map[string]interface{}, errStr string) {
	if task == nil {
		task = map[string]interface{}{}
	}
	if wt == nil {
		wt = map[string]interface{}{}
	}
	entry := map[string]interface{}{
		"event":    event,
		"ts":       time.Now().Format(time.RFC3339),
		"task":     task,
		"worktree": wt,
	}
	if errStr != "" {
		entry["error"] = errStr
	}

	line, err := json.Marshal(entry)
	if err != nil {
		slog.Warn("worktree: marshal event failed", "event", event, "error", err)
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	// The log may fire before anything else touches .worktrees/.
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		slog.Warn("worktree: create event log dir failed", "path", l.path, "error", err)
		return
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		slog.Warn("worktree: open event log failed", "path", l.path, "error", err)
		return
	}
	defer f.Close()
	f.Write(append(line, '\n'))
}

// Recent returns up to limit trailing events, oldest first. limit is
// clamped to [1, 200].
func (l *EventLog) Recent(limit int) ([]map[string]interface{}, error) {
	if limit < 1 {
		limit = 1
	}
	if limit > 200 {
		limit = 200
	}

	l.mu.Lock()
	data, err := os.ReadFile(l.path)
	l.mu.Unlock()
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var events []map[string]interface{}
	start := 0
	for i := 0; i <= len(data); i++ {
		if i == len(data) || data[i] == '\n' {
			if i > start {
				var ev map[string]interface{}
				if err := json.Unmarshal(data[start:i], &ev); err == nil {
					events = append(events, ev)
				}
			}
			start = i + 1
		}
	}
	if len(events) > limit {
		events = events[len(events)-limit:]
	}
	return events, nil
}
