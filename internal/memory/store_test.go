package memory

import (
	"path/filepath"
	"strings"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), ".goforge", "memory.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestInsertAndGet(t *testing.T) {
	s := newTestStore(t)

	id, err := s.Insert("20250824_120000", "decided to use worktrees for parallel lanes")
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	got, err := s.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Session != "20250824_120000" || !strings.Contains(got.Text, "worktrees") {
		t.Errorf("entry = %+v", got)
	}

	if _, err := s.Get(id + 100); err == nil {
		t.Error("Get on missing id succeeded, want error")
	}
}

func TestSearchMatchesAllWords(t *testing.T) {
	s := newTestStore(t)
	s.Insert("sess1", "the parser rejects trailing commas")
	s.Insert("sess1", "the Parser handles unicode input")
	s.Insert("sess2", "logging goes through slog")

	tests := []struct {
		name  string
		query string
		want  int
	}{
		{"single word", "parser", 2},
		{"case insensitive", "PARSER", 2},
		{"all words must match", "parser unicode", 1},
		{"no match", "parser metrics", 0},
		{"empty matches everything", "", 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Search(tt.query, 10)
			if err != nil {
				t.Fatalf("Search: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("Search(%q) = %d entries, want %d", tt.query, len(got), tt.want)
			}
		})
	}
}

func TestSearchNewestFirstWithLimit(t *testing.T) {
	s := newTestStore(t)
	s.Insert("sess1", "note one")
	s.Insert("sess1", "note two")
	s.Insert("sess1", "note three")

	got, err := s.Search("note", 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Text != "note three" || got[1].Text != "note two" {
		t.Errorf("order = %q, %q, want newest first", got[0].Text, got[1].Text)
	}
}
