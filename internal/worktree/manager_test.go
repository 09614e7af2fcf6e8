package worktree

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nextlevelbuilder/goforge/internal/session"
	"github.com/nextlevelbuilder/goforge/internal/tasks"
)

// newBareManager returns a manager over a plain directory (no git repo),
// which is enough to exercise validation and index handling.
func newBareManager(t *testing.T) (*Manager, string) {
	t.Helper()
	dir := t.TempDir()
	m := NewManager(dir, nil, 1, 1000)
	if m.HasGit() {
		t.Skipf("%s unexpectedly inside a git repository", dir)
	}
	return m, dir
}

func TestCreateValidatesName(t *testing.T) {
	m, dir := newBareManager(t)

	tests := []struct {
		name  string
		wt    string
		valid bool
	}{
		{"simple", "feature-x", true},
		{"dots and underscores", "v1.2_rc", true},
		{"empty", "", false},
		{"slash", "a/b", false},
		{"space", "has space", false},
		{"too long", strings.Repeat("a", 41), false},
		{"shell meta", "x;rm", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Create(tt.wt, 0, "")
			if err == nil {
				t.Fatalf("Create(%q) succeeded without git", tt.wt)
			}
			isNameErr := strings.Contains(err.Error(), "invalid worktree name")
			if tt.valid && isNameErr {
				t.Errorf("Create(%q) rejected the name: %v", tt.wt, err)
			}
			if !tt.valid && !isNameErr {
				t.Errorf("Create(%q) error = %v, want name validation", tt.wt, err)
			}
		})
	}

	// Failed creates leave no trace on disk.
	if _, err := os.Stat(filepath.Join(dir, ".worktrees", "index.json")); !os.IsNotExist(err) {
		t.Error("index written despite failed creates")
	}
}

func TestRunRejectsDeniedCommands(t *testing.T) {
	m, _ := newBareManager(t)

	for _, command := range []string{"sudo make install", "rm -rf / --no-preserve-root", "shutdown -h now"} {
		if _, err := m.Run("any", command); err == nil || !strings.Contains(err.Error(), "rejected") {
			t.Errorf("Run(%q) error = %v, want denylist rejection", command, err)
		}
	}
}

func TestLookupsOnEmptyIndex(t *testing.T) {
	m, _ := newBareManager(t)

	if _, err := m.Status("ghost"); err == nil {
		t.Error("Status on unknown lane succeeded")
	}
	if _, err := m.Keep("ghost"); err == nil {
		t.Error("Keep on unknown lane succeeded")
	}
	if _, err := m.Run("ghost", "true"); err == nil {
		t.Error("Run on unknown lane succeeded")
	}

	entries, err := m.ListAll()
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("entries = %v, want none", entries)
	}
}

// newGitManager initializes a real repository with one commit and a
// task store, for lifecycle tests.
func newGitManager(t *testing.T) (*Manager, *tasks.Store, string) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}

	repo := t.TempDir()
	for _, args := range [][]string{
		{"init", "-q"},
		{"-c", "user.email=test@example.com", "-c", "user.name=test", "commit", "--allow-empty", "-q", "-m", "init"},
	} {
		cmd := exec.Command("git", append([]string{"-C", repo}, args...)...)
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v\n%s", args, err, out)
		}
	}

	sess, err := session.New(t.TempDir())
	if err != nil {
		t.Fatalf("session.New: %v", err)
	}
	store, err := tasks.NewStore(sess)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	m := NewManager(repo, store, 30, 1000)
	if !m.HasGit() {
		t.Fatal("manager did not detect the git repository")
	}
	return m, store, repo
}

func TestCreateRemoveLifecycleEvents(t *testing.T) {
	m, store, _ := newGitManager(t)

	task, err := store.Create("fix the widget", "")
	if err != nil {
		t.Fatalf("Create task: %v", err)
	}

	entry, err := m.Create("fix-x", task.ID, "")
	if err != nil {
		t.Fatalf("Create worktree: %v", err)
	}
	if entry.Branch != "wt/fix-x" || entry.Status != StatusActive {
		t.Errorf("entry = %+v", entry)
	}

	bound, _ := store.Get(task.ID)
	if bound.Status != tasks.StatusInProgress || bound.Worktree != "fix-x" {
		t.Errorf("bound task = %+v", bound)
	}

	removed, err := m.Remove("fix-x", false, true)
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if removed.Status != StatusRemoved || removed.RemovedAt == "" {
		t.Errorf("removed entry = %+v", removed)
	}

	done, _ := store.Get(task.ID)
	if done.Status != tasks.StatusCompleted || done.Worktree != "" {
		t.Errorf("task after remove = %+v", done)
	}

	// The event log carries the full lifecycle, with the task completion
	// recorded during the remove.
	events, err := m.Events().Recent(20)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	want := []string{
		EventCreateBefore,
		EventCreateAfter,
		EventRemoveBefore,
		EventTaskCompleted,
		EventRemoveAfter,
	}
	if len(events) != len(want) {
		t.Fatalf("event log = %d events, want %d: %v", len(events), len(want), eventNames(events))
	}
	for i, name := range want {
		if events[i]["event"] != name {
			t.Fatalf("event sequence = %v, want %v", eventNames(events), want)
		}
	}

	completed := events[3]["task"].(map[string]interface{})
	if completed["status"] != tasks.StatusCompleted || completed["id"].(float64) != float64(task.ID) {
		t.Errorf("task.completed fields = %v", completed)
	}
}

func eventNames(events []map[string]interface{}) []string {
	names := make([]string, len(events))
	for i, ev := range events {
		names[i], _ = ev["event"].(string)
	}
	return names
}

func TestEventLogCreatesItsDirectory(t *testing.T) {
	// The first emit may fire before anything else touches the base dir.
	path := filepath.Join(t.TempDir(), ".worktrees", "events.jsonl")
	log := NewEventLog(path)

	log.Emit(EventCreateBefore, nil, map[string]interface{}{"name": "fresh"}, "")

	events, err := log.Recent(5)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(events) != 1 || events[0]["event"] != EventCreateBefore {
		t.Fatalf("events = %v, want the emitted event", events)
	}
}

func TestRenderList(t *testing.T) {
	if got := RenderList(nil); got != "No worktrees." {
		t.Errorf("RenderList(nil) = %q", got)
	}

	entries := []Entry{
		{Name: "feature-x", Branch: "wt/feature-x", Status: StatusActive, TaskID: 3},
		{Name: "hotfix", Branch: "wt/hotfix", Status: StatusKept},
	}
	got := RenderList(entries)
	if !strings.Contains(got, "wt/feature-x") || !strings.Contains(got, "task=3") {
		t.Errorf("RenderList missing fields: %q", got)
	}
	if !strings.Contains(got, StatusKept) {
		t.Errorf("RenderList missing status: %q", got)
	}
}
