// Package background runs fire-and-forget jobs: shell commands or
// detached sub-agent invocations. Jobs report completion through a
// notification queue the agent loops drain between LLM turns.
package background

import (
	"context"
	"fmt"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Job statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusTimeout   = "timeout"
	StatusError     = "error"
)

// Job is one background execution.
type Job struct {
	ID          string
	Description string
	Status      string
	Result      string
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Executor owns the job table and the notification queue.
type Executor struct {
	mu            sync.Mutex
	jobs          map[string]*Job
	notifications []string // job ids, enqueued once per job
	workspace     string
	timeout       time.Duration
	wg            sync.WaitGroup
}

// NewExecutor runs shell jobs under workspace with the given wall-clock
// cap per job.
func NewExecutor(workspace string, timeoutSec int) *Executor {
	t := time.Duration(timeoutSec) * time.Second
	if t <= 0 {
		t = 300 * time.Second
	}
	return &Executor{
		jobs:      make(map[string]*Job),
		workspace: workspace,
		timeout:   t,
	}
}

// RunShell starts command in the background and returns its job id
// immediately.
func (e *Executor) RunShell(command string) string {
	return e.RunFunc("shell: "+preview(command, 60), func(ctx context.Context) (string, error) {
		cmd := exec.CommandContext(ctx, "sh", "-c", command)
		cmd.Dir = e.workspace
		out, err := cmd.CombinedOutput()
		text := string(out)
		if len(text) > 50000 {
			text = text[:50000] + "\n... (output truncated)"
		}
		if ctx.Err() == context.DeadlineExceeded {
			return text, context.DeadlineExceeded
		}
		if err != nil {
			return text, err
		}
		return text, nil
	})
}

// RunFunc starts fn in the background and returns its job id immediately.
// fn receives a context that expires at the executor timeout; its result
// string becomes the job result. Sub-agent jobs enter through here.
func (e *Executor) RunFunc(description string, fn func(ctx context.Context) (string, error)) string {
	id := uuid.NewString()[:8]
	job := &Job{
		ID:          id,
		Description: description,
		Status:      StatusRunning,
		StartedAt:   time.Now(),
	}

	e.mu.Lock()
	e.jobs[id] = job
	e.mu.Unlock()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
		defer cancel()

		result, err := fn(ctx)

		e.mu.Lock()
		defer e.mu.Unlock()
		job.FinishedAt = time.Now()
		job.Result = result
		switch {
		case err == context.DeadlineExceeded || ctx.Err() == context.DeadlineExceeded:
			job.Status = StatusTimeout
			if job.Result == "" {
				job.Result = fmt.Sprintf("timed out after %s", e.timeout)
			}
		case err != nil:
			job.Status = StatusError
			if job.Result == "" {
				job.Result = err.Error()
			} else {
				job.Result += "\n" + err.Error()
			}
		default:
			job.Status = StatusCompleted
		}
		e.notifications = append(e.notifications, id)
	}()

	return id
}

// Check renders the status of one job, or of all jobs when id is empty.
func (e *Executor) Check(id string) string {
	e.mu.Lock()
	defer e.mu.Unlock()

	if id != "" {
		job, ok := e.jobs[id]
		if !ok {
			return fmt.Sprintf("Error: no background task %s", id)
		}
		return renderJob(job, true)
	}

	if len(e.jobs) == 0 {
		return "No background tasks."
	}
	ids := make([]string, 0, len(e.jobs))
	for jid := range e.jobs {
		ids = append(ids, jid)
	}
	sort.Slice(ids, func(i, j int) bool {
		return e.jobs[ids[i]].StartedAt.Before(e.jobs[ids[j]].StartedAt)
	})
	var b strings.Builder
	for i, jid := range ids {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(renderJob(e.jobs[jid], false))
	}
	return b.String()
}

// DrainNotifications returns one rendered line per finished job since the
// last drain, then clears the queue. Each job is notified at most once.
func (e *Executor) DrainNotifications() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.notifications) == 0 {
		return nil
	}
	lines := make([]string, 0, len(e.notifications))
	for _, id := range e.notifications {
		job, ok := e.jobs[id]
		if !ok {
			continue
		}
		lines = append(lines, fmt.Sprintf("[bg:%s] %s: %s", job.ID, job.Status, job.Result))
	}
	e.notifications = nil
	return lines
}

// Wait blocks until all running jobs finish. Used on shutdown and in
// tests.
func (e *Executor) Wait() {
	e.wg.Wait()
}

func renderJob(job *Job, full bool) string {
	if job.Status == StatusRunning {
		return fmt.Sprintf("[bg:%s] running (%s, started %s ago)",
			job.ID, job.Description, time.Since(job.StartedAt).Round(time.Second))
	}
	result := job.Result
	if !full {
		result = preview(result, 120)
	}
	return fmt.Sprintf("[bg:%s] %s: %s", job.ID, job.Status, result)
}

func preview(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
