package tasks

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nextlevelbuilder/goforge/internal/session"
)

// Board is the work queue shared by the teammate pool. Records live as
// board/task_<id>.json; an empty owner means unclaimed.
type Board struct {
	claimMu sync.Mutex
	dir     string
}

// NewBoard opens the session's board directory.
func NewBoard(sess *session.Session) *Board {
	return &Board{dir: sess.BoardDir()}
}

// Post mirrors a task onto the board. An existing record for the same id
// is overwritten only while unclaimed.
func (b *Board) Post(t Task) error {
	b.claimMu.Lock()
	defer b.claimMu.Unlock()

	if existing, err := b.read(t.ID); err == nil && existing.Owner != "" {
		return fmt.Errorf("task %d already claimed by %s", t.ID, existing.Owner)
	}
	return writeJSONAtomic(b.path(t.ID), &t)
}

// Get returns the board record for id.
func (b *Board) Get(id int) (*Task, error) {
	return b.read(id)
}

// ScanUnclaimed returns pending tasks with no owner and nothing blocking
// them, sorted by id.
func (b *Board) ScanUnclaimed() ([]Task, error) {
	list, err := b.ListAll()
	if err != nil {
		return nil, err
	}
	var open []Task
	for _, t := range list {
		if t.Status == StatusPending && t.Owner == "" && t.Unblocked() {
			open = append(open, t)
		}
	}
	return open, nil
}

// Claim marks the task owned by owner. Under the claim mutex the on-disk
// record is re-read, so two concurrent claimers cannot both succeed; the
// loser sees the winner's owner. Completed tasks are never claimable.
func (b *Board) Claim(id int, owner string) (*Task, error) {
	b.claimMu.Lock()
	defer b.claimMu.Unlock()

	t, err := b.read(id)
	if err != nil {
		return nil, fmt.Errorf("task %d not found on board", id)
	}
	if t.Owner != "" {
		return nil, fmt.Errorf("Task %d already claimed by %s", id, t.Owner)
	}
	if t.Status != StatusPending {
		return nil, fmt.Errorf("Task %d is %s, not claimable", id, t.Status)
	}

	t.Owner = owner
	t.Status = StatusInProgress
	t.UpdatedAt = time.Now().Format(time.RFC3339)
	if err := writeJSONAtomic(b.path(id), t); err != nil {
		return nil, err
	}
	return t, nil
}

// Complete marks a claimed board task completed and unblocks dependents
// on the board.
func (b *Board) Complete(id int) (*Task, error) {
	b.claimMu.Lock()
	defer b.claimMu.Unlock()

	t, err := b.read(id)
	if err != nil {
		return nil, fmt.Errorf("task %d not found on board", id)
	}
	t.Status = StatusCompleted
	t.UpdatedAt = time.Now().Format(time.RFC3339)
	if err := writeJSONAtomic(b.path(id), t); err != nil {
		return nil, err
	}

	list, err := b.listLocked()
	if err != nil {
		return t, nil
	}
	for i := range list {
		other := &list[i]
		if other.ID == id {
			continue
		}
		trimmed := removeID(other.BlockedBy, id)
		if len(trimmed) == len(other.BlockedBy) {
			continue
		}
		other.BlockedBy = trimmed
		other.UpdatedAt = time.Now().Format(time.RFC3339)
		writeJSONAtomic(b.path(other.ID), other)
	}
	return t, nil
}

// ListAll returns every board record sorted by id.
func (b *Board) ListAll() ([]Task, error) {
	b.claimMu.Lock()
	defer b.claimMu.Unlock()
	return b.listLocked()
}

func (b *Board) listLocked() ([]Task, error) {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list board: %w", err)
	}
	var list []Task
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), "task_") || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		var t Task
		if err := readJSON(filepath.Join(b.dir, e.Name()), &t); err != nil {
			continue
		}
		list = append(list, t)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

func (b *Board) path(id int) string {
	return filepath.Join(b.dir, fmt.Sprintf("task_%d.json", id))
}

func (b *Board) read(id int) (*Task, error) {
	var t Task
	if err := readJSON(b.path(id), &t); err != nil {
		return nil, err
	}
	return &t, nil
}
