package session

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/nextlevelbuilder/goforge/internal/providers"
)

func TestNewCreatesSkeleton(t *testing.T) {
	root := t.TempDir()
	sess, err := New(root)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for _, dir := range []string{sess.Dir(), sess.TasksDir(), sess.BoardDir(), sess.WorkspaceDir()} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Errorf("missing session dir %s: %v", dir, err)
		}
	}

	// Team state is lazy: a run that never spawns teammates leaves no
	// team directory behind.
	if _, err := os.Stat(sess.TeamDir()); !os.IsNotExist(err) {
		t.Errorf("team dir exists on a fresh session")
	}
}

func TestOpenRequiresExistingKey(t *testing.T) {
	root := t.TempDir()
	sess, err := New(root)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := Open(root, sess.Key); err != nil {
		t.Errorf("Open existing key: %v", err)
	}
	if _, err := Open(root, "20990101_000000"); err == nil {
		t.Error("Open on a missing key succeeded, want error")
	}
}

func TestListKeysNewestFirst(t *testing.T) {
	root := t.TempDir()
	keys := []string{"20250101_090000", "20250301_120000", "20250215_081500"}
	for _, key := range keys {
		if err := os.MkdirAll(filepath.Join(root, key), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	// Non-key entries are ignored.
	os.MkdirAll(filepath.Join(root, "not-a-session"), 0o755)
	os.WriteFile(filepath.Join(root, "20250401_000000"), []byte("a file, not a dir"), 0o644)

	got, err := ListKeys(root)
	if err != nil {
		t.Fatalf("ListKeys: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("ListKeys = %v, want 3 keys", got)
	}
	if !sort.SliceIsSorted(got, func(i, j int) bool { return got[i] > got[j] }) {
		t.Errorf("keys not newest first: %v", got)
	}

	latest, err := Latest(root)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if latest != "20250301_120000" {
		t.Errorf("Latest = %q, want 20250301_120000", latest)
	}
}

func TestListKeysEmptyRoot(t *testing.T) {
	got, err := ListKeys(filepath.Join(t.TempDir(), "nothing-here"))
	if err != nil {
		t.Fatalf("ListKeys on missing root: %v", err)
	}
	if got != nil {
		t.Errorf("keys = %v, want nil", got)
	}
}

func TestHistoryRoundTrip(t *testing.T) {
	sess, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	history := []providers.Message{
		{Role: "system", Content: "be helpful"},
		{Role: "user", Content: "multi\nline\ncontent"},
		{
			Role:      "assistant",
			ToolCalls: []providers.ToolCall{{ID: "a", Name: "bash", Arguments: map[string]interface{}{"command": "ls"}}},
		},
		{Role: "tool", Content: "file.go", ToolCallID: "a"},
	}
	if err := sess.SaveHistory("main", history); err != nil {
		t.Fatalf("SaveHistory: %v", err)
	}

	got, err := sess.LoadHistory("main")
	if err != nil {
		t.Fatalf("LoadHistory: %v", err)
	}
	if len(got) != len(history) {
		t.Fatalf("round trip len = %d, want %d", len(got), len(history))
	}
	for i := range history {
		if got[i].Role != history[i].Role || got[i].Content != history[i].Content {
			t.Errorf("message %d = %+v, want %+v", i, got[i], history[i])
		}
	}
	if got[3].ToolCallID != "a" {
		t.Errorf("tool_call_id lost: %+v", got[3])
	}
}

func TestLoadHistorySkipsBadLines(t *testing.T) {
	sess, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	data := `{"role":"user","content":"good"}
this line is not json
{"role":"assistant","content":"also good"}
`
	if err := os.WriteFile(sess.HistoryPath("main"), []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := sess.LoadHistory("main")
	if err != nil {
		t.Fatalf("LoadHistory: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2 (bad line skipped)", len(got))
	}
}

func TestLoadHistoryMissingFile(t *testing.T) {
	sess, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := sess.LoadHistory("nobody")
	if err != nil {
		t.Fatalf("LoadHistory on missing file: %v", err)
	}
	if got != nil {
		t.Errorf("history = %v, want nil", got)
	}
}

func TestAppendTranscript(t *testing.T) {
	sess, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	first := []providers.Message{
		{Role: "user", Content: "start"},
		{Role: "assistant", Content: "working"},
		{Role: "user", Content: "more"},
	}
	second := []providers.Message{
		{Role: "user", Content: "after compaction"},
	}
	if err := sess.AppendTranscript(first); err != nil {
		t.Fatalf("AppendTranscript: %v", err)
	}
	if err := sess.AppendTranscript(second); err != nil {
		t.Fatalf("AppendTranscript: %v", err)
	}

	// One JSON line per message, dumps appended back to back.
	data, err := os.ReadFile(sess.TranscriptPath())
	if err != nil {
		t.Fatalf("read transcript: %v", err)
	}
	lines := 0
	for _, b := range data {
		if b == '\n' {
			lines++
		}
	}
	if want := len(first) + len(second); lines != want {
		t.Errorf("transcript lines = %d, want %d", lines, want)
	}
}
