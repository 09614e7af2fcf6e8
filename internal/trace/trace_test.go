package trace

import (
	"path/filepath"
	"testing"
)

func TestEmitAndTail(t *testing.T) {
	tracer := NewTracer(filepath.Join(t.TempDir(), "trace.jsonl"))
	runID := NewRunID()
	if len(runID) != 8 {
		t.Errorf("run id = %q, want 8 hex chars", runID)
	}

	tracer.Emit(EventRunStart, runID, Fields{"task": "demo"})
	tracer.Emit(EventToolCall, runID, Fields{"tool": "bash"})
	tracer.Emit(EventRunEnd, runID, nil)

	events, err := tracer.Tail(10)
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("Tail = %d events, want 3", len(events))
	}
	if events[0]["event"] != EventRunStart || events[2]["event"] != EventRunEnd {
		t.Errorf("order = %v ... %v", events[0]["event"], events[2]["event"])
	}
	if events[1]["tool"] != "bash" || events[1]["run_id"] != runID {
		t.Errorf("fields = %v", events[1])
	}
	if _, ok := events[0]["ts"].(float64); !ok {
		t.Errorf("ts = %v, want float seconds", events[0]["ts"])
	}
}

func TestEmitProtectsEnvelope(t *testing.T) {
	tracer := NewTracer(filepath.Join(t.TempDir(), "trace.jsonl"))

	// A field named "event" cannot clobber the envelope.
	tracer.Emit(EventToolCall, "run1", Fields{"event": "spoofed", "ts": "spoofed"})

	events, err := tracer.Tail(1)
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("Tail = %d events, want 1", len(events))
	}
	if events[0]["event"] != EventToolCall {
		t.Errorf("event = %v, want %v", events[0]["event"], EventToolCall)
	}
	if _, ok := events[0]["ts"].(float64); !ok {
		t.Errorf("ts = %v, want float seconds", events[0]["ts"])
	}
}

func TestTailLimits(t *testing.T) {
	tracer := NewTracer(filepath.Join(t.TempDir(), "trace.jsonl"))
	for i := 0; i < 5; i++ {
		tracer.Emit(EventLLMTurn, "run1", Fields{"n": i})
	}

	events, err := tracer.Tail(2)
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("Tail(2) = %d events", len(events))
	}
	// Newest events, oldest first within the window.
	if events[0]["n"].(float64) != 3 || events[1]["n"].(float64) != 4 {
		t.Errorf("window = %v", events)
	}

	// Missing file is not an error.
	empty := NewTracer(filepath.Join(t.TempDir(), "absent.jsonl"))
	events, err = empty.Tail(5)
	if err != nil || events != nil {
		t.Errorf("Tail on missing file = %v, %v", events, err)
	}
}
