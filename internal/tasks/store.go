package tasks

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nextlevelbuilder/goforge/internal/session"
)

// Store persists tasks as tasks/task_<id>_<slug>.json, one file per task.
type Store struct {
	mu     sync.Mutex
	dir    string
	nextID int
}

// NewStore opens the session's task directory and resumes id allocation
// from the highest id found on disk.
func NewStore(sess *session.Session) (*Store, error) {
	s := &Store{dir: sess.TasksDir(), nextID: 1}
	list, err := s.readAll()
	if err != nil {
		return nil, err
	}
	for _, t := range list {
		if t.ID >= s.nextID {
			s.nextID = t.ID + 1
		}
	}
	return s, nil
}

// UpdateOpts carries the optional mutations for Update. Nil/empty fields
// are left untouched.
type UpdateOpts struct {
	Status       string
	AddBlockedBy []int
	AddBlocks    []int
}

// Create allocates the next id and persists a pending task.
func (s *Store) Create(subject, description string) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().Format(time.RFC3339)
	t := &Task{
		ID:          s.nextID,
		Subject:     subject,
		Description: description,
		Status:      StatusPending,
		BlockedBy:   []int{},
		Blocks:      []int{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.nextID++

	if err := s.write(t); err != nil {
		return nil, err
	}
	return t, nil
}

// Get returns the task by id.
func (s *Store) Get(id int) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(id)
}

// Update applies opts to the task. Completing a task removes its id from
// every other task's blockedBy; each id in AddBlocks gains this task in
// its own blockedBy (duplicates are collapsed).
func (s *Store) Update(id int, opts UpdateOpts) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.read(id)
	if err != nil {
		return nil, err
	}

	if opts.Status != "" {
		if !validStatuses[opts.Status] {
			return nil, fmt.Errorf("invalid status %q (allowed: pending, in_progress, completed)", opts.Status)
		}
		t.Status = opts.Status
	}

	for _, dep := range opts.AddBlockedBy {
		if dep == id {
			continue
		}
		if _, err := s.read(dep); err != nil {
			return nil, fmt.Errorf("blockedBy task %d not found", dep)
		}
		t.BlockedBy = addUnique(t.BlockedBy, dep)
	}

	for _, downstream := range opts.AddBlocks {
		if downstream == id {
			continue
		}
		down, err := s.read(downstream)
		if err != nil {
			return nil, fmt.Errorf("blocks task %d not found", downstream)
		}
		t.Blocks = addUnique(t.Blocks, downstream)
		down.BlockedBy = addUnique(down.BlockedBy, id)
		down.UpdatedAt = time.Now().Format(time.RFC3339)
		if err := s.write(down); err != nil {
			return nil, err
		}
	}

	t.UpdatedAt = time.Now().Format(time.RFC3339)
	if err := s.write(t); err != nil {
		return nil, err
	}

	if opts.Status == StatusCompleted {
		if err := s.unblockDependents(id); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// BindWorktree attaches a worktree lane to the task, flipping pending
// tasks to in_progress.
func (s *Store) BindWorktree(id int, worktree, owner string) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.read(id)
	if err != nil {
		return nil, err
	}
	t.Worktree = worktree
	if owner != "" {
		t.Owner = owner
	}
	if t.Status == StatusPending {
		t.Status = StatusInProgress
	}
	t.UpdatedAt = time.Now().Format(time.RFC3339)
	if err := s.write(t); err != nil {
		return nil, err
	}
	return t, nil
}

// UnbindWorktree clears the task's worktree binding.
func (s *Store) UnbindWorktree(id int) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.read(id)
	if err != nil {
		return nil, err
	}
	t.Worktree = ""
	t.UpdatedAt = time.Now().Format(time.RFC3339)
	if err := s.write(t); err != nil {
		return nil, err
	}
	return t, nil
}

// ListAll returns every task, sorted by id.
func (s *Store) ListAll() ([]Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readAll()
}

// unblockDependents removes completed from every other task's blockedBy.
// Caller holds the lock.
func (s *Store) unblockDependents(completed int) error {
	list, err := s.readAll()
	if err != nil {
		return err
	}
	for i := range list {
		t := &list[i]
		if t.ID == completed {
			continue
		}
		trimmed := removeID(t.BlockedBy, completed)
		if len(trimmed) == len(t.BlockedBy) {
			continue
		}
		t.BlockedBy = trimmed
		t.UpdatedAt = time.Now().Format(time.RFC3339)
		if err := s.write(t); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) path(t *Task) string {
	return filepath.Join(s.dir, fmt.Sprintf("task_%d_%s.json", t.ID, slugify(t.Subject)))
}

// write persists the task atomically. A stale file for the same id under
// a different slug is removed first — one file per id.
func (s *Store) write(t *Task) error {
	target := s.path(t)
	prefix := fmt.Sprintf("task_%d_", t.ID)

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("write task: %w", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), prefix) && filepath.Join(s.dir, e.Name()) != target {
			os.Remove(filepath.Join(s.dir, e.Name()))
		}
	}

	return writeJSONAtomic(target, t)
}

func (s *Store) read(id int) (*Task, error) {
	prefix := fmt.Sprintf("task_%d_", id)
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read task: %w", err)
	}
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), prefix) || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		// Guard against id prefix collisions (task_1_ vs task_12_).
		rest := strings.TrimPrefix(e.Name(), "task_")
		if n, _, ok := strings.Cut(rest, "_"); !ok {
			continue
		} else if parsed, err := strconv.Atoi(n); err != nil || parsed != id {
			continue
		}
		var t Task
		if err := readJSON(filepath.Join(s.dir, e.Name()), &t); err != nil {
			return nil, err
		}
		return &t, nil
	}
	return nil, fmt.Errorf("task %d not found", id)
}

func (s *Store) readAll() ([]Task, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	var list []Task
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), "task_") || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		var t Task
		if err := readJSON(filepath.Join(s.dir, e.Name()), &t); err != nil {
			continue
		}
		list = append(list, t)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

func writeJSONAtomic(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return os.Rename(tmp, path)
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
