package background

import (
	"context"
	"fmt"
	"strings"
	"testing"
)

func TestRunFuncCompletes(t *testing.T) {
	e := NewExecutor(t.TempDir(), 60)

	id := e.RunFunc("quick job", func(ctx context.Context) (string, error) {
		return "all done", nil
	})
	if len(id) != 8 {
		t.Errorf("job id = %q, want 8 hex chars", id)
	}
	e.Wait()

	got := e.Check(id)
	if !strings.Contains(got, StatusCompleted) || !strings.Contains(got, "all done") {
		t.Errorf("Check = %q", got)
	}
}

func TestRunFuncError(t *testing.T) {
	e := NewExecutor(t.TempDir(), 60)

	id := e.RunFunc("doomed job", func(ctx context.Context) (string, error) {
		return "", fmt.Errorf("disk on fire")
	})
	e.Wait()

	got := e.Check(id)
	if !strings.Contains(got, StatusError) || !strings.Contains(got, "disk on fire") {
		t.Errorf("Check = %q", got)
	}
}

func TestDrainNotificationsAtMostOnce(t *testing.T) {
	e := NewExecutor(t.TempDir(), 60)

	e.RunFunc("one", func(ctx context.Context) (string, error) { return "r1", nil })
	e.RunFunc("two", func(ctx context.Context) (string, error) { return "r2", nil })
	e.Wait()

	lines := e.DrainNotifications()
	if len(lines) != 2 {
		t.Fatalf("first drain = %d lines, want 2", len(lines))
	}
	for _, line := range lines {
		if !strings.HasPrefix(line, "[bg:") {
			t.Errorf("notification line %q missing [bg: prefix", line)
		}
	}

	if again := e.DrainNotifications(); again != nil {
		t.Errorf("second drain = %v, want nil", again)
	}

	// A job finishing after the drain is notified exactly once.
	e.RunFunc("three", func(ctx context.Context) (string, error) { return "r3", nil })
	e.Wait()
	if lines := e.DrainNotifications(); len(lines) != 1 {
		t.Errorf("third drain = %d lines, want 1", len(lines))
	}
}

func TestCheckUnknownAndAll(t *testing.T) {
	e := NewExecutor(t.TempDir(), 60)

	if got := e.Check("nothere1"); !strings.HasPrefix(got, "Error:") {
		t.Errorf("Check(unknown) = %q, want Error: prefix", got)
	}
	if got := e.Check(""); got != "No background tasks." {
		t.Errorf("Check with no jobs = %q", got)
	}

	e.RunFunc("a", func(ctx context.Context) (string, error) { return "ra", nil })
	e.RunFunc("b", func(ctx context.Context) (string, error) { return "rb", nil })
	e.Wait()

	got := e.Check("")
	if n := strings.Count(got, "[bg:"); n != 2 {
		t.Errorf("Check all listed %d jobs, want 2: %q", n, got)
	}
}

func TestRunShell(t *testing.T) {
	e := NewExecutor(t.TempDir(), 60)

	id := e.RunShell("echo hello from shell")
	e.Wait()

	got := e.Check(id)
	if !strings.Contains(got, StatusCompleted) || !strings.Contains(got, "hello from shell") {
		t.Errorf("Check = %q", got)
	}
}
