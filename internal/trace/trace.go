// Package trace writes the session's structured event log.
//
// Every event is one JSON line in trace.jsonl:
//
//	{"ts": 1724512345.123, "event": "tool.call", "run_id": "a1b2c3d4", ...}
//
// ts is wall-clock seconds with millisecond precision. run_id groups the
// events of one top-level run; sub-agent events add a span_id. Writers go
// through a single mutex so concurrent teammates and sub-agents interleave
// whole lines rather than bytes.
package trace

import (
	"encoding/json"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event names, grouped by emitter.
const (
	EventRunStart   = "run.start"
	EventRunEnd     = "run.end"
	EventLLMTurn    = "llm.turn"
	EventToolCall   = "tool.call"
	EventToolResult = "tool.result"
	EventCompaction = "compaction"

	EventSubagentStart      = "subagent.start"
	EventSubagentLLMTurn    = "subagent.llm.turn"
	EventSubagentToolCall   = "subagent.tool.call"
	EventSubagentToolResult = "subagent.tool.result"
	EventSubagentEnd        = "subagent.end"

	EventTeammateSpawn      = "teammate.spawn"
	EventTeammateToolCall   = "teammate.tool.call"
	EventTeammateToolResult = "teammate.tool.result"
	EventTeammateStatus     = "teammate.status"

	EventOODACycle = "ooda.cycle"

	EventBackgroundStart = "background.start"
	EventBackgroundEnd   = "background.end"

	EventTaskCreate = "task.create"
	EventTaskClaim  = "task.claim"
	EventTaskUpdate = "task.update"

	EventWorktreeCreate = "worktree.create"
	EventWorktreeRemove = "worktree.remove"
)

// Fields is the free-form payload attached to an event.
type Fields map[string]interface{}

// Tracer appends events to one trace.jsonl file.
type Tracer struct {
	mu   sync.Mutex
	path string
	otlp *OTLP // nil unless telemetry is enabled
}

// NewTracer writes events to path. The file is created lazily on the
// first event.
func NewTracer(path string) *Tracer {
	return &Tracer{path: path}
}

// WithOTLP mirrors every event as an OTLP span in addition to the file.
func (t *Tracer) WithOTLP(o *OTLP) *Tracer {
	t.otlp = o
	return t
}

// NewRunID returns a short hex id for correlating events of one run.
func NewRunID() string {
	return uuid.NewString()[:8]
}

// Emit appends one event line. Field maps are shallow-merged after the
// ts/event/run_id envelope, so a field named "ts" cannot clobber it.
func (t *Tracer) Emit(event, runID string, fields Fields) {
	entry := make(map[string]interface{}, len(fields)+3)
	for k, v := range fields {
		entry[k] = v
	}
	entry["ts"] = float64(time.Now().UnixMilli()) / 1000.0
	entry["event"] = event
	entry["run_id"] = runID

	line, err := json.Marshal(entry)
	if err != nil {
		slog.Warn("trace: marshal event failed", "event", event, "error", err)
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	f, err := os.OpenFile(t.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		slog.Warn("trace: open failed", "path", t.path, "error", err)
		return
	}
	f.Write(append(line, '\n'))
	f.Close()

	if t.otlp != nil {
		t.otlp.Mirror(event, entry)
	}
}

// Tail returns up to limit raw event lines from the end of the log,
// oldest first. limit is clamped to [1, 200].
func (t *Tracer) Tail(limit int) ([]map[string]interface{}, error) {
	if limit < 1 {
		limit = 1
	}
	if limit > 200 {
		limit = 200
	}

	t.mu.Lock()
	data, err := os.ReadFile(t.path)
	t.mu.Unlock()
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
