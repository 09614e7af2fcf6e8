package agent

import (
	"testing"

	"github.com/nextlevelbuilder/goforge/internal/providers"
)

func TestSanitizeHistory(t *testing.T) {
	tests := []struct {
		name string
		in   []providers.Message
		want int
	}{
		{
			name: "empty",
			in:   nil,
			want: 0,
		},
		{
			name: "plain conversation untouched",
			in: []providers.Message{
				{Role: "user", Content: "hi"},
				{Role: "assistant", Content: "hello"},
			},
			want: 2,
		},
		{
			name: "paired call and result survive",
			in: []providers.Message{
				{Role: "assistant", ToolCalls: []providers.ToolCall{{ID: "a", Name: "bash"}}},
				{Role: "tool", Content: "ok", ToolCallID: "a"},
			},
			want: 2,
		},
		{
			name: "orphan tool result dropped",
			in: []providers.Message{
				{Role: "user", Content: "hi"},
				{Role: "tool", Content: "stale", ToolCallID: "ghost"},
			},
			want: 1,
		},
		{
			name: "unanswered tool call dropped with its message",
			in: []providers.Message{
				{Role: "user", Content: "hi"},
				{Role: "assistant", ToolCalls: []providers.ToolCall{{ID: "a", Name: "bash"}}},
			},
			want: 1,
		},
		{
			name: "assistant with content keeps content when calls drop",
			in: []providers.Message{
				{Role: "assistant", Content: "let me check", ToolCalls: []providers.ToolCall{{ID: "a", Name: "bash"}}},
			},
			want: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SanitizeHistory(tt.in)
			if len(got) != tt.want {
				t.Fatalf("len = %d, want %d (got %+v)", len(got), tt.want, got)
			}
		})
	}
}

func TestSanitizeHistoryPartialBatch(t *testing.T) {
	// Crash after writing one of two results: the answered call stays,
	// the unanswered one is trimmed from the assistant message.
	in := []providers.Message{
		{Role: "assistant", ToolCalls: []providers.ToolCall{
			{ID: "a", Name: "bash"},
			{ID: "b", Name: "grep"},
		}},
		{Role: "tool", Content: "ok", ToolCallID: "a"},
	}

	got := SanitizeHistory(in)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if len(got[0].ToolCalls) != 1 || got[0].ToolCalls[0].ID != "a" {
		t.Errorf("kept calls = %+v, want only call a", got[0].ToolCalls)
	}
}
