package agent

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/nextlevelbuilder/goforge/internal/config"
	"github.com/nextlevelbuilder/goforge/internal/providers"
	"github.com/nextlevelbuilder/goforge/internal/session"
)

// fakeProvider returns a canned response and records the requests it saw.
type fakeProvider struct {
	response string
	requests []providers.ChatRequest
}

func (p *fakeProvider) Name() string         { return "fake" }
func (p *fakeProvider) DefaultModel() string { return "fake-model" }

func (p *fakeProvider) Chat(ctx context.Context, req providers.ChatRequest) (*providers.ChatResponse, error) {
	p.requests = append(p.requests, req)
	return &providers.ChatResponse{Content: p.response, FinishReason: "stop"}, nil
}

func (p *fakeProvider) ChatStream(ctx context.Context, req providers.ChatRequest, onChunk func(providers.StreamChunk)) (*providers.ChatResponse, error) {
	return p.Chat(ctx, req)
}

func toolTurn(callID, name, result string) []providers.Message {
	return []providers.Message{
		{
			Role:      "assistant",
			ToolCalls: []providers.ToolCall{{ID: callID, Name: name, Arguments: map[string]interface{}{}}},
		},
		{Role: "tool", Content: result, ToolCallID: callID},
	}
}

func TestMicroCompactCollapsesOldResults(t *testing.T) {
	long := strings.Repeat("x", 500)
	var history []providers.Message
	history = append(history, providers.Message{Role: "user", Content: "do things"})
	for i, name := range []string{"read_file", "grep", "bash", "glob", "list_dir"} {
		history = append(history, toolTurn(string(rune('a'+i)), name, long)...)
	}

	got := MicroCompact(history, 3)

	if len(got) != len(history) {
		t.Fatalf("message count changed: %d -> %d", len(history), len(got))
	}
	// The two oldest results collapse to placeholders naming the tool.
	if want := "[Previous: used read_file]"; got[2].Content != want {
		t.Errorf("oldest result = %q, want %q", got[2].Content, want)
	}
	if want := "[Previous: used grep]"; got[4].Content != want {
		t.Errorf("second result = %q, want %q", got[4].Content, want)
	}
	// The last three are untouched.
	for _, i := range []int{6, 8, 10} {
		if got[i].Content != long {
			t.Errorf("recent result at %d was compacted", i)
		}
	}
	// Pairing survives.
	for i, msg := range got {
		if msg.Role == "tool" && msg.ToolCallID == "" {
			t.Errorf("message %d lost its tool_call_id", i)
		}
	}
	// The input is not mutated.
	if history[2].Content != long {
		t.Error("MicroCompact mutated its input")
	}
}

func TestMicroCompactLeavesSmallHistories(t *testing.T) {
	long := strings.Repeat("x", 500)
	history := append(toolTurn("a", "bash", long), toolTurn("b", "grep", long)...)

	got := MicroCompact(history, 3)
	for i, msg := range got {
		if msg.Role == "tool" && msg.Content != long {
			t.Errorf("result %d compacted with only 2 results present", i)
		}
	}
}

func TestMicroCompactSkipsShortResults(t *testing.T) {
	var history []providers.Message
	for i := 0; i < 5; i++ {
		history = append(history, toolTurn(string(rune('a'+i)), "bash", "ok")...)
	}

	got := MicroCompact(history, 3)
	for i, msg := range got {
		if msg.Role == "tool" && msg.Content != "ok" {
			t.Errorf("short result %d compacted: %q", i, msg.Content)
		}
	}
}

func TestEstimateTokens(t *testing.T) {
	if got := EstimateTokens(nil); got != 0 {
		t.Errorf("EstimateTokens(nil) = %d, want 0", got)
	}

	small := []providers.Message{{Role: "user", Content: "hi"}}
	big := []providers.Message{{Role: "user", Content: strings.Repeat("x", 4000)}}
	if EstimateTokens(small) >= EstimateTokens(big) {
		t.Error("estimate not monotonic in content size")
	}
	if got := EstimateTokens(big); got < 1000 {
		t.Errorf("EstimateTokens(4000 chars) = %d, want >= 1000", got)
	}
}

func TestAutoCompact(t *testing.T) {
	sess, err := session.New(t.TempDir())
	if err != nil {
		t.Fatalf("session.New: %v", err)
	}
	provider := &fakeProvider{response: "summary of everything"}
	history := append(
		[]providers.Message{{Role: "user", Content: "build the thing"}},
		toolTurn("a", "bash", "done")...,
	)

	got, err := AutoCompact(context.Background(), provider, "fake-model", sess, nil, history, config.CompactionConfig{})
	if err != nil {
		t.Fatalf("AutoCompact: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("compacted history = %d messages, want 2", len(got))
	}
	if got[0].Role != "user" || got[1].Role != "assistant" {
		t.Errorf("roles = %q, %q, want user, assistant", got[0].Role, got[1].Role)
	}
	if !strings.Contains(got[0].Content, "summary of everything") {
		t.Errorf("user message missing summary: %q", got[0].Content)
	}
	if !strings.Contains(got[0].Content, sess.TranscriptPath()) {
		t.Error("user message missing transcript path")
	}

	// The full history was dumped before summarizing, one message per
	// line.
	data, err := os.ReadFile(sess.TranscriptPath())
	if err != nil {
		t.Fatalf("read transcript: %v", err)
	}
	if !strings.Contains(string(data), "build the thing") {
		t.Error("transcript missing original history")
	}
	if lines := strings.Count(string(data), "\n"); lines != len(history) {
		t.Errorf("transcript lines = %d, want one per message (%d)", lines, len(history))
	}

	if len(provider.requests) != 1 {
		t.Fatalf("summary calls = %d, want 1", len(provider.requests))
	}
}
