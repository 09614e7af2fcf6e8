// Package worktree manages git-worktree execution lanes: directory-
// isolated checkouts bound to tasks, with a JSON index and a lifecycle
// event log under <repo>/.worktrees/.
package worktree

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/nextlevelbuilder/goforge/internal/tasks"
)

var namePattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,40}$`)

// runDenylist blocks obviously destructive command substrings.
var runDenylist = []string{"rm -rf /", "sudo", "shutdown", "reboot", "> /dev/"}

// Worktree statuses.
const (
	StatusActive  = "active"
	StatusKept    = "kept"
	StatusRemoved = "removed"
)

const gitTimeout = 120 * time.Second

// Entry is one lane in the index. Removed entries stay in the index as
// history; a name never leaves removed.
type Entry struct {
	Name      string `json:"name"`
	Path      string `json:"path"`
	Branch    string `json:"branch"`
	TaskID    int    `json:"task_id,omitempty"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
	KeptAt    string `json:"kept_at,omitempty"`
	RemovedAt string `json:"removed_at,omitempty"`
}

type index struct {
	Worktrees []Entry `json:"worktrees"`
}

// Manager creates, runs in, and retires worktree lanes.
type Manager struct {
	mu       sync.Mutex
	repoRoot string
	baseDir  string // <repoRoot>/.worktrees
	hasGit   bool
	store    *tasks.Store // may be nil: no task binding
	events   *EventLog

	runTimeout     time.Duration
	maxOutputBytes int
}

// NewManager probes the workspace for a git repository. When git or the
// repo is absent the manager still loads, but every mutating call
// reports "requires git".
func NewManager(workspace string, store *tasks.Store, runTimeoutSec, maxOutputBytes int) *Manager {
	m := &Manager{
		store:          store,
		runTimeout:     time.Duration(runTimeoutSec) * time.Second,
		maxOutputBytes: maxOutputBytes,
	}
	if m.runTimeout <= 0 {
		m.runTimeout = 300 * time.Second
	}
	if m.maxOutputBytes <= 0 {
		m.maxOutputBytes = 50000
	}

	ctx, cancel := context.WithTimeout(context.Background(), gitTimeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, "git", "-C", workspace, "rev-parse", "--show-toplevel").Output()
	if err == nil {
		m.repoRoot = strings.TrimSpace(string(out))
		m.hasGit = m.repoRoot != ""
	}
	if !m.hasGit {
		m.repoRoot = workspace
	}
	m.baseDir = filepath.Join(m.repoRoot, ".worktrees")
	m.events = NewEventLog(filepath.Join(m.baseDir, "events.jsonl"))
	return m
}

// Events exposes the lifecycle log for the /events command.
func (m *Manager) Events() *EventLog { return m.events }

// HasGit reports whether worktree operations are available.
func (m *Manager) HasGit() bool { return m.hasGit }

// Create adds a lane: new branch wt/<name> checked out at
// .worktrees/<name> from baseRef (default HEAD), optionally bound to a
// task.
func (m *Manager) Create(name string, taskID int, baseRef string) (*Entry, error) {
	if !namePattern.MatchString(name) {
		return nil, fmt.Errorf("invalid worktree name %q: use 1-40 chars from [A-Za-z0-9._-]", name)
	}
	if !m.hasGit {
		return nil, fmt.Errorf("worktree create requires git")
	}
	if baseRef == "" {
		baseRef = "HEAD"
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	idx, err := m.loadIndex()
	if err != nil {
		return nil, err
	}
	for _, e := range idx.Worktrees {
		if e.Name == name {
			return nil, fmt.Errorf("worktree %q already exists (status %s)", name, e.Status)
		}
	}

	var task *tasks.Task
	if taskID > 0 {
		if m.store == nil {
			return nil, fmt.Errorf("task binding unavailable: no task store")
		}
		task, err = m.store.Get(taskID)
		if err != nil {
			return nil, err
		}
	}

	entry := Entry{
		Name:      name,
		Path:      filepath.Join(m.baseDir, name),
		Branch:    "wt/" + name,
		TaskID:    taskID,
		Status:    StatusActive,
		CreatedAt: time.Now().Format(time.RFC3339),
	}

	m.events.Emit(EventCreateBefore, taskFields(task), entryFields(&entry), "")

	if err := os.MkdirAll(m.baseDir, 0o755); err != nil {
		m.events.Emit(EventCreateFailed, taskFields(task), entryFields(&entry), err.Error())
		return nil, fmt.Errorf("create worktree dir: %w", err)
	}

	if out, err := m.git("worktree", "add", "-b", entry.Branch, entry.Path, baseRef); err != nil {
		m.events.Emit(EventCreateFailed, taskFields(task), entryFields(&entry), err.Error())
		return nil, fmt.Errorf("git worktree add failed: %s", out)
	}

	idx.Worktrees = append(idx.Worktrees, entry)
	if err := m.saveIndex(idx); err != nil {
		m.events.Emit(EventCreateFailed, taskFields(task), entryFields(&entry), err.Error())
		return nil, err
	}

	if taskID > 0 {
		if _, err := m.store.BindWorktree(taskID, name, ""); err != nil {
			m.events.Emit(EventCreateFailed, taskFields(task), entryFields(&entry), err.Error())
			return nil, err
		}
	}

	m.events.Emit(EventCreateAfter, taskFields(task), entryFields(&entry), "")
	return &entry, nil
}

// Status runs `git status --short --branch` inside the lane.
func (m *Manager) Status(name string) (string, error) {
	entry, err := m.get(name)
	if err != nil {
		return "", err
	}
	if !m.hasGit {
		return "", fmt.Errorf("worktree status requires git")
	}
	ctx, cancel := context.WithTimeout(context.Background(), gitTimeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, "git", "status", "--short", "--branch")
	cmd.Dir = entry.Path
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("git status failed: %s", strings.TrimSpace(string(out)))
	}
	return string(out), nil
}

// Run executes a shell command inside the lane with the configured
// timeout, returning combined output truncated to the configured cap.
func (m *Manager) Run(name, command string) (string, error) {
	for _, banned := range runDenylist {
		if strings.Contains(command, banned) {
			return "", fmt.Errorf("command rejected: contains %q", banned)
		}
	}

	entry, err := m.get(name)
	if err != nil {
		return "", err
	}
	if entry.Status == StatusRemoved {
		return "", fmt.Errorf("worktree %q is removed", name)
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.runTimeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = entry.Path
	out, err := cmd.CombinedOutput()

	text := string(out)
	if len(text) > m.maxOutputBytes {
		text = text[:m.maxOutputBytes] + "\n... (output truncated)"
	}
	if ctx.Err() == context.DeadlineExceeded {
		return text, fmt.Errorf("command timed out after %s", m.runTimeout)
	}
	if err != nil {
		return text, fmt.Errorf("command failed: %v", err)
	}
	return text, nil
}

// Remove retires the lane. With completeTask, a bound task is marked
// completed and unbound.
func (m *Manager) Remove(name string, force, completeTask bool) (*Entry, error) {
	if !m.hasGit {
		return nil, fmt.Errorf("worktree remove requires git")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	idx, err := m.loadIndex()
	if err != nil {
		return nil, err
	}
	pos := -1
	for i := range idx.Worktrees {
		if idx.Worktrees[i].Name == name {
			pos = i
			break
		}
	}
	if pos < 0 {
		return nil, fmt.Errorf("worktree %q not found", name)
	}
	entry := &idx.Worktrees[pos]
	if entry.Status == StatusRemoved {
		return nil, fmt.Errorf("worktree %q already removed", name)
	}

	m.events.Emit(EventRemoveBefore, nil, entryFields(entry), "")

	args := []string{"worktree", "remove"}
	if force {
		args = append(args, "--force")
	}
	args = append(args, entry.Path)
	if out, err := m.git(args...); err != nil {
		m.events.Emit(EventRemoveFailed, nil, entryFields(entry), err.Error())
		return nil, fmt.Errorf("git worktree remove failed: %s", out)
	}

	if completeTask && entry.TaskID > 0 && m.store != nil {
		if _, err := m.store.Update(entry.TaskID, tasks.UpdateOpts{Status: tasks.StatusCompleted}); err != nil {
			m.events.Emit(EventRemoveFailed, nil, entryFields(entry), err.Error())
			return nil, err
		}
		done, err := m.store.UnbindWorktree(entry.TaskID)
		if err != nil {
			return nil, err
		}
		m.events.Emit(EventTaskCompleted, taskFields(done), entryFields(entry), "")
	}

	entry.Status = StatusRemoved
	entry.RemovedAt = time.Now().Format(time.RFC3339)
	if err := m.saveIndex(idx); err != nil {
		return nil, err
	}

	m.events.Emit(EventRemoveAfter, nil, entryFields(entry), "")
	return entry, nil
}

// Keep marks the lane retained: it stays on disk and stops appearing as
// a removal candidate.
func (m *Manager) Keep(name string) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx, err := m.loadIndex()
	if err != nil {
		return nil, err
	}
	for i := range idx.Worktrees {
		e := &idx.Worktrees[i]
		if e.Name != name {
			continue
		}
		if e.Status == StatusRemoved {
			return nil, fmt.Errorf("worktree %q already removed", name)
		}
		e.Status = StatusKept
		e.KeptAt = time.Now().Format(time.RFC3339)
		if err := m.saveIndex(idx); err != nil {
			return nil, err
		}
		m.events.Emit(EventKeep, nil, entryFields(e), "")
		return e, nil
	}
	return nil, fmt.Errorf("worktree %q not found", name)
}

// ListAll returns every index entry.
func (m *Manager) ListAll() ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx, err := m.loadIndex()
	if err != nil {
		return nil, err
	}
	return idx.Worktrees, nil
}

// RenderList formats the index for display.
func RenderList(entries []Entry) string {
	if len(entries) == 0 {
		return "No worktrees."
	}
	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%-10s %s (%s)", e.Status, e.Name, e.Branch)
		if e.TaskID > 0 {
			fmt.Fprintf(&b, " task=%d", e.TaskID)
		}
	}
	return b.String()
}

func (m *Manager) get(name string) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx, err := m.loadIndex()
	if err != nil {
		return nil, err
	}
	for i := range idx.Worktrees {
		if idx.Worktrees[i].Name == name {
			return &idx.Worktrees[i], nil
		}
	}
	return nil, fmt.Errorf("worktree %q not found", name)
}

func (m *Manager) git(args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), gitTimeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, "git", append([]string{"-C", m.repoRoot}, args...)...)
	out, err := cmd.CombinedOutput()
	text := strings.TrimSpace(string(out))
	if err != nil {
		if text == "" {
			text = err.Error()
		}
		return text, fmt.Errorf("git %s: %s", args[0], text)
	}
	return text, nil
}

func (m *Manager) indexPath() string {
	return filepath.Join(m.baseDir, "index.json")
}

func (m *Manager) loadIndex() (*index, error) {
	data, err := os.ReadFile(m.indexPath())
	if err != nil {
		if os.IsNotExist(err) {
			return &index{}, nil
		}
		return nil, fmt.Errorf("load worktree index: %w", err)
	}
	var idx index
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("parse worktree index: %w", err)
	}
	return &idx, nil
}

func (m *Manager) saveIndex(idx *index) error {
	if err := os.MkdirAll(m.baseDir, 0o755); err != nil {
		return fmt.Errorf("save worktree index: %w", err)
	}
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return fmt.Errorf("save worktree index: %w", err)
	}
	tmp := m.indexPath() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("save worktree index: %w", err)
	}
	return os.Rename(tmp, m.indexPath())
}

func taskFields(t *tasks.Task) map[string]interface{} {
	if t == nil {
		return nil
	}
	return map[string]interface{}{"id": t.ID, "subject": t.Subject, "status": t.Status}
}

func entryFields(e *Entry) map[string]interface{} {
	if e == nil {
		return nil
	}
	return map[string]interface{}{"name": e.Name, "branch": e.Branch, "status": e.Status}
}
