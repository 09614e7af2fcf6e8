package tasks

import (
	"testing"

	"github.com/nextlevelbuilder/goforge/internal/session"
)

func newTestStore(t *testing.T) (*Store, *session.Session) {
	t.Helper()
	sess, err := session.New(t.TempDir())
	if err != nil {
		t.Fatalf("session.New: %v", err)
	}
	store, err := NewStore(sess)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store, sess
}

func TestStoreMonotonicIDs(t *testing.T) {
	store, sess := newTestStore(t)

	for want := 1; want <= 3; want++ {
		task, err := store.Create("task", "")
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if task.ID != want {
			t.Errorf("Create id = %d, want %d", task.ID, want)
		}
	}

	// Reopening the store resumes allocation past existing ids.
	reopened, err := NewStore(sess)
	if err != nil {
		t.Fatalf("NewStore (reopen): %v", err)
	}
	task, err := reopened.Create("after reopen", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if task.ID != 4 {
		t.Errorf("id after reopen = %d, want 4", task.ID)
	}
}

func TestStoreUpdateStatus(t *testing.T) {
	store, _ := newTestStore(t)
	task, _ := store.Create("subject", "desc")

	tests := []struct {
		name   string
		status string
		valid  bool
	}{
		{"in progress", StatusInProgress, true},
		{"completed", StatusCompleted, true},
		{"back to pending", StatusPending, true},
		{"bogus", "done", false},
		{"empty is no-op", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.Update(task.ID, UpdateOpts{Status: tt.status})
			if (err == nil) != tt.valid {
				t.Errorf("Update(%q) error = %v, valid = %v", tt.status, err, tt.valid)
			}
		})
	}
}

func TestStoreBlockedByHygiene(t *testing.T) {
	store, _ := newTestStore(t)
	a, _ := store.Create("a", "")
	b, _ := store.Create("b", "")

	// Self-references are ignored, duplicates collapse.
	got, err := store.Update(b.ID, UpdateOpts{AddBlockedBy: []int{a.ID, a.ID, b.ID}})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if len(got.BlockedBy) != 1 || got.BlockedBy[0] != a.ID {
		t.Errorf("BlockedBy = %v, want [%d]", got.BlockedBy, a.ID)
	}

	// Unknown dependencies are rejected.
	if _, err := store.Update(b.ID, UpdateOpts{AddBlockedBy: []int{99}}); err == nil {
		t.Error("Update with unknown blockedBy id succeeded, want error")
	}
}

func TestStoreBlocksSymmetry(t *testing.T) {
	store, _ := newTestStore(t)
	a, _ := store.Create("a", "")
	b, _ := store.Create("b", "")

	if _, err := store.Update(a.ID, UpdateOpts{AddBlocks: []int{b.ID}}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	gotA, _ := store.Get(a.ID)
	gotB, _ := store.Get(b.ID)
	if len(gotA.Blocks) != 1 || gotA.Blocks[0] != b.ID {
		t.Errorf("a.Blocks = %v, want [%d]", gotA.Blocks, b.ID)
	}
	if len(gotB.BlockedBy) != 1 || gotB.BlockedBy[0] != a.ID {
		t.Errorf("b.BlockedBy = %v, want [%d]", gotB.BlockedBy, a.ID)
	}
}

func TestStoreCompletionUnblocksDependents(t *testing.T) {
	store, _ := newTestStore(t)
	a, _ := store.Create("a", "")
	b, _ := store.Create("b", "")
	c, _ := store.Create("c", "")
	store.Update(b.ID, UpdateOpts{AddBlockedBy: []int{a.ID}})
	store.Update(c.ID, UpdateOpts{AddBlockedBy: []int{a.ID, b.ID}})

	if _, err := store.Update(a.ID, UpdateOpts{Status: StatusCompleted}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	gotB, _ := store.Get(b.ID)
	if !gotB.Unblocked() {
		t.Errorf("b.BlockedBy = %v after a completed, want empty", gotB.BlockedBy)
	}
	gotC, _ := store.Get(c.ID)
	if len(gotC.BlockedBy) != 1 || gotC.BlockedBy[0] != b.ID {
		t.Errorf("c.BlockedBy = %v, want [%d]", gotC.BlockedBy, b.ID)
	}
}

func TestStoreBindWorktree(t *testing.T) {
	store, _ := newTestStore(t)
	task, _ := store.Create("lane work", "")

	got, err := store.BindWorktree(task.ID, "feature-x", "alice")
	if err != nil {
		t.Fatalf("BindWorktree: %v", err)
	}
	if got.Worktree != "feature-x" || got.Owner != "alice" {
		t.Errorf("bound task = %+v", got)
	}
	if got.Status != StatusInProgress {
		t.Errorf("status after bind = %q, want %q", got.Status, StatusInProgress)
	}

	got, err = store.UnbindWorktree(task.ID)
	if err != nil {
		t.Fatalf("UnbindWorktree: %v", err)
	}
	if got.Worktree != "" {
		t.Errorf("worktree after unbind = %q, want empty", got.Worktree)
	}
}

func TestStoreRenameKeepsOneFile(t *testing.T) {
	store, _ := newTestStore(t)
	// Ids 1 and 12 share the "task_1" filename prefix.
	for i := 0; i < 12; i++ {
		store.Create("padding", "")
	}
	one, _ := store.Get(1)
	twelve, _ := store.Get(12)
	if one.ID != 1 || twelve.ID != 12 {
		t.Fatalf("prefix collision: got ids %d and %d", one.ID, twelve.ID)
	}

	list, err := store.ListAll()
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(list) != 12 {
		t.Errorf("ListAll len = %d, want 12", len(list))
	}
	for i, task := range list {
		if task.ID != i+1 {
			t.Errorf("ListAll[%d].ID = %d, want %d", i, task.ID, i+1)
		}
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Fix the parser", "fix-the-parser"},
		{"  weird -- chars!!", "weird-chars"},
		{"", "task"},
		{"!!!", "task"},
	}
	for _, tt := range tests {
		if got := slugify(tt.in); got != tt.want {
			t.Errorf("slugify(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
