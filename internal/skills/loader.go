// Package skills loads markdown skill files. A skill is a .md file with
// optional frontmatter:
//
//	---
//	name: review-checklist
//	description: Steps for reviewing a change
//	---
//	body...
//
// Skills are listed in the system prompt by name+description; the agent
// pulls full bodies on demand through the load_skill tool.
package skills

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

var frontmatterRe = regexp.MustCompile(`(?s)^---\n(.*?)\n---\n(.*)$`)

// Skill is one loaded skill file.
type Skill struct {
	Name        string
	Description string
	Body        string
}

// Loader scans a directory of .md files and keeps them in memory,
// optionally re-scanning on filesystem changes.
type Loader struct {
	mu     sync.RWMutex
	dir    string
	skills map[string]Skill
}

// NewLoader loads everything currently in dir. A missing directory is
// fine: the loader just holds zero skills.
func NewLoader(dir string) *Loader {
	l := &Loader{dir: dir, skills: make(map[string]Skill)}
	l.reload()
	return l
}

// Watch re-scans the directory whenever files change, until ctx ends.
// Errors are logged, never fatal: a broken watcher leaves the initial
// scan in place.
func (l *Loader) Watch(ctx context.Context) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Warn("skills: watcher unavailable", "error", err)
		return
	}
	if err := watcher.Add(l.dir); err != nil {
		watcher.Close()
		return
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
					l.reload()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("skills: watch error", "error", err)
			}
		}
	}()
}

func (l *Loader) reload() {
	loaded := make(map[string]Skill)

	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("skills: scan failed", "dir", l.dir, "error", err)
		}
		l.mu.Lock()
		l.skills = loaded
		l.mu.Unlock()
		return
	}

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(l.dir, e.Name()))
		if err != nil {
			continue
		}
		skill := parse(strings.TrimSuffix(e.Name(), ".md"), string(data))
		loaded[skill.Name] = skill
	}

	l.mu.Lock()
	l.skills = loaded
	l.mu.Unlock()
}

func parse(defaultName, content string) Skill {
	skill := Skill{Name: defaultName, Body: content}

	m := frontmatterRe.FindStringSubmatch(content)
	if m == nil {
		return skill
	}
	skill.Body = m[2]
	for _, line := range strings.Split(m[1], "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		switch strings.TrimSpace(key) {
		case "name":
			if v := strings.TrimSpace(value); v != "" {
				skill.Name = v
			}
		case "description":
			skill.Description = strings.TrimSpace(value)
		}
	}
	return skill
}

// List returns all skills sorted by name.
func (l *Loader) List() []Skill {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Skill, 0, len(l.skills))
	for _, s := range l.skills {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Describe renders the one-line-per-skill listing for the system prompt.
// Empty when no skills exist.
func (l *Loader) Describe() string {
	list := l.List()
	if len(list) == 0 {
		return ""
	}
	var b strings.Builder
	for _, s := range list {
		fmt.Fprintf(&b, "- %s", s.Name)
		if s.Description != "" {
			fmt.Fprintf(&b, ": %s", s.Description)
		}
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

// Content returns the skill body wrapped in a <skill> tag.
func (l *Loader) Content(name string) (string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	s, ok := l.skills[name]
	if !ok {
		return "", fmt.Errorf("skill %q not found", name)
	}
	return fmt.Sprintf("<skill name=%q>\n%s\n</skill>", s.Name, strings.TrimSpace(s.Body)), nil
}
