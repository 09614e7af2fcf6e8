// Package memory is the long-term store that survives compaction. When
// auto- or manual compaction summarizes history away, the summarized
// turns are flushed here; memory_search/memory_get let the agent recall
// them later, across sessions in the same workspace.
package memory

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Entry is one stored memory.
type Entry struct {
	ID        int64
	Session   string
	CreatedAt string
	Text      string
}

// Store wraps the SQLite database.
type Store struct {
	db *sql.DB
}

// Open creates or opens the database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("memory: create dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("memory: open: %w", err)
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS memories (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			session    TEXT NOT NULL,
			created_at TEXT NOT NULL,
			text       TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_memories_session ON memories(session);
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("memory: init schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Insert stores one memory and returns its id.
func (s *Store) Insert(session, text string) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO memories (session, created_at, text) VALUES (?, ?, ?)`,
		session, time.Now().Format(time.RFC3339), text,
	)
	if err != nil {
		return 0, fmt.Errorf("memory: insert: %w", err)
	}
	return res.LastInsertId()
}

// Search returns the newest entries whose text matches every word of
// query (case-insensitive substring match).
func (s *Store) Search(query string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 5
	}

	where := "1=1"
	var args []interface{}
	for _, word := range strings.Fields(query) {
		where += " AND text LIKE ? COLLATE NOCASE"
		args = append(args, "%"+word+"%")
	}
	args = append(args, limit)

	rows, err := s.db.Query(
		`SELECT id, session, created_at, text FROM memories WHERE `+where+` ORDER BY id DESC LIMIT ?`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("memory: search: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Session, &e.CreatedAt, &e.Text); err != nil {
			return nil, fmt.Errorf("memory: scan: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Get returns one entry by id.
func (s *Store) Get(id int64) (*Entry, error) {
	var e Entry
	err := s.db.QueryRow(
		`SELECT id, session, created_at, text FROM memories WHERE id = ?`, id,
	).Scan(&e.ID, &e.Session, &e.CreatedAt, &e.Text)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("memory %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("memory: get: %w", err)
	}
	return &e, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
