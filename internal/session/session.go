// Package session owns the on-disk layout of one runtime session.
//
// A session key is a local timestamp like "20250824_153012". Everything a
// run produces lives under <root>/<key>/:
//
//	main.jsonl           – main agent history, one message per line
//	<agent>.jsonl        – per-subagent histories
//	transcript.jsonl     – full pre-compaction history dumps
//	tasks/               – task store records
//	board/               – shared task board records
//	team/config.json     – teammate roster
//	team/inbox/<n>.jsonl – per-recipient message inboxes
//	workspace/           – scratch space for workspace_* tools
//	trace.jsonl          – structured trace events
//
// Session is a value threaded explicitly through constructors; nothing in
// the runtime keys off process-global session state.
package session

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// keyFormat is the reference layout for session keys.
const keyFormat = "20060102_150405"

// Session locates one session on disk.
type Session struct {
	Key  string
	root string // <sessions root>/<key>
}

// New creates a fresh session under rootDir with a timestamp key and
// ensures the directory skeleton exists.
func New(rootDir string) (*Session, error) {
	return newWithKey(rootDir, time.Now().Format(keyFormat))
}

// Open attaches to an existing session. The key must already exist.
func Open(rootDir, key string) (*Session, error) {
	dir := filepath.Join(rootDir, key)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("session %q not found under %s", key, rootDir)
	}
	return newWithKey(rootDir, key)
}

func newWithKey(rootDir, key string) (*Session, error) {
	s := &Session{Key: key, root: filepath.Join(rootDir, key)}
	// team/ is not part of the skeleton: the bus and roster create it on
	// first use, so teamless runs leave no team state behind.
	for _, dir := range []string{
		s.root,
		s.TasksDir(),
		s.BoardDir(),
		s.WorkspaceDir(),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create session dir: %w", err)
		}
	}
	return s, nil
}

// Dir is the session's root directory.
func (s *Session) Dir() string { return s.root }

// HistoryPath is the JSONL history file for the named agent
// ("main" for the main loop).
func (s *Session) HistoryPath(agent string) string {
	return filepath.Join(s.root, agent+".jsonl")
}

// TranscriptPath holds full history dumps made before auto-compaction.
func (s *Session) TranscriptPath() string {
	return filepath.Join(s.root, "transcript.jsonl")
}

// TracePath is the structured event log.
func (s *Session) TracePath() string {
	return filepath.Join(s.root, "trace.jsonl")
}

// TasksDir holds the task store's records.
func (s *Session) TasksDir() string {
	return filepath.Join(s.root, "tasks")
}

// BoardDir holds the shared task board's records.
func (s *Session) BoardDir() string {
	return filepath.Join(s.root, "board")
}

// TeamDir holds teammate state.
func (s *Session) TeamDir() string {
	return filepath.Join(s.root, "team")
}

// TeamConfigPath is the teammate roster file.
func (s *Session) TeamConfigPath() string {
	return filepath.Join(s.TeamDir(), "config.json")
}

// InboxDir holds one JSONL inbox per message recipient.
func (s *Session) InboxDir() string {
	return filepath.Join(s.TeamDir(), "inbox")
}

// InboxPath is the named recipient's inbox file.
func (s *Session) InboxPath(name string) string {
	return filepath.Join(s.InboxDir(), name+".jsonl")
}

// WorkspaceDir is the scratch directory for workspace_* tools.
func (s *Session) WorkspaceDir() string {
	return filepath.Join(s.root, "workspace")
}

// ListKeys returns all session keys under rootDir, newest first.
func ListKeys(rootDir string) ([]string, error) {
	entries, err := os.ReadDir(rootDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	var keys []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := time.Parse(keyFormat, e.Name()); err != nil {
			continue
		}
		keys = append(keys, e.Name())
	}
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	return keys, nil
}

// Latest returns the most recent session key, or "" when none exist.
func Latest(rootDir string) (string, error) {
	keys, err := ListKeys(rootDir)
	if err != nil {
		return "", err
	}
	if len(keys) == 0 {
		return "", nil
	}
	return keys[0], nil
}
