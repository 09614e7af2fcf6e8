// Package tasks persists task state for the main agent (Store) and the
// shared work queue for the teammate pool (Board).
package tasks

import (
	"fmt"
	"sort"
	"strings"
)

// Task statuses.
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)

var validStatuses = map[string]bool{
	StatusPending:    true,
	StatusInProgress: true,
	StatusCompleted:  true,
}

// Task is one unit of work. Ids increase monotonically within a session
// and are never reused.
type Task struct {
	ID          int    `json:"id"`
	Subject     string `json:"subject"`
	Description string `json:"description"`
	Status      string `json:"status"`
	BlockedBy   []int  `json:"blockedBy"`
	Blocks      []int  `json:"blocks"`
	Owner       string `json:"owner"`
	Worktree    string `json:"worktree"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// Unblocked reports whether nothing blocks this task.
func (t *Task) Unblocked() bool { return len(t.BlockedBy) == 0 }

// marker renders the status checkbox used in task listings.
func (t *Task) marker() string {
	switch t.Status {
	case StatusCompleted:
		return "[x]"
	case StatusInProgress:
		return "[>]"
	default:
		return "[ ]"
	}
}

// Render formats one task line for listings.
func (t *Task) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s #%d %s", t.marker(), t.ID, t.Subject)
	if len(t.BlockedBy) > 0 {
		parts := make([]string, len(t.BlockedBy))
		for i, id := range t.BlockedBy {
			parts[i] = fmt.Sprintf("%d", id)
		}
		fmt.Fprintf(&b, " (blocked by: %s)", strings.Join(parts, ", "))
	}
	if t.Worktree != "" {
		fmt.Fprintf(&b, " wt=%s", t.Worktree)
	}
	if t.Owner != "" {
		fmt.Fprintf(&b, " owner=%s", t.Owner)
	}
	return b.String()
}

// RenderList formats tasks grouped by status: in_progress, pending,
// completed, each section sorted by id.
func RenderList(list []Task) string {
	if len(list) == 0 {
		return "No tasks."
	}

	order := map[string]int{StatusInProgress: 0, StatusPending: 1, StatusCompleted: 2}
	sorted := make([]Task, len(list))
	copy(sorted, list)
	sort.Slice(sorted, func(i, j int) bool {
		if order[sorted[i].Status] != order[sorted[j].Status] {
			return order[sorted[i].Status] < order[sorted[j].Status]
		}
		return sorted[i].ID < sorted[j].ID
	})

	var b strings.Builder
	for i, t := range sorted {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(t.Render())
	}
	return b.String()
}

// addUnique appends id to ids if absent, keeping the slice sorted.
func addUnique(ids []int, id int) []int {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	ids = append(ids, id)
	sort.Ints(ids)
	return ids
}

// removeID drops id from ids, preserving order.
func removeID(ids []int, id int) []int {
	out := ids[:0]
	for _, existing := range ids {
		if existing != id {
			out = append(out, existing)
		}
	}
	return out
}

// slugify converts a subject into the file-name slug: lowercase,
// non-alphanumerics collapsed to single dashes, capped at 40 chars.
func slugify(subject string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(subject) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
		if b.Len() >= 40 {
			break
		}
	}
	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		return "task"
	}
	return slug
}
