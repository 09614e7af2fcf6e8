package skills

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeSkill(t *testing.T, dir, file, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, file), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoaderParsesFrontmatter(t *testing.T) {
	dir := t.TempDir()
	writeSkill(t, dir, "review.md", `---
name: review-checklist
description: Steps for reviewing a change
---
Check the diff line by line.`)
	writeSkill(t, dir, "plain.md", "No frontmatter here.")
	writeSkill(t, dir, "ignored.txt", "not a skill")

	l := NewLoader(dir)

	list := l.List()
	if len(list) != 2 {
		t.Fatalf("List = %d skills, want 2", len(list))
	}
	// Sorted by name: plain, review-checklist.
	if list[0].Name != "plain" || list[1].Name != "review-checklist" {
		t.Errorf("names = %q, %q", list[0].Name, list[1].Name)
	}
	if list[1].Description != "Steps for reviewing a change" {
		t.Errorf("description = %q", list[1].Description)
	}
	if strings.Contains(list[1].Body, "---") {
		t.Errorf("frontmatter leaked into body: %q", list[1].Body)
	}
}

func TestLoaderMissingDir(t *testing.T) {
	l := NewLoader(filepath.Join(t.TempDir(), "absent"))
	if got := l.List(); len(got) != 0 {
		t.Errorf("List = %v, want empty", got)
	}
	if got := l.Describe(); got != "" {
		t.Errorf("Describe = %q, want empty", got)
	}
}

func TestDescribe(t *testing.T) {
	dir := t.TempDir()
	writeSkill(t, dir, "a.md", `---
name: a
description: first skill
---
body`)
	writeSkill(t, dir, "b.md", "bare body")

	got := NewLoader(dir).Describe()
	if !strings.Contains(got, "- a: first skill") {
		t.Errorf("Describe missing described skill:\n%s", got)
	}
	if !strings.Contains(got, "- b") {
		t.Errorf("Describe missing bare skill:\n%s", got)
	}
}

func TestContent(t *testing.T) {
	dir := t.TempDir()
	writeSkill(t, dir, "deploy.md", `---
name: deploy
description: Release steps
---
Run the release script.`)

	l := NewLoader(dir)
	got, err := l.Content("deploy")
	if err != nil {
		t.Fatalf("Content: %v", err)
	}
	if !strings.HasPrefix(got, `<skill name="deploy">`) || !strings.HasSuffix(got, "</skill>") {
		t.Errorf("Content = %q, want <skill> wrapper", got)
	}
	if !strings.Contains(got, "Run the release script.") {
		t.Errorf("Content missing body: %q", got)
	}

	if _, err := l.Content("ghost"); err == nil {
		t.Error("Content(ghost) succeeded, want error")
	}
}
