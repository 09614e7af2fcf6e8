package tools

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"time"
)

const maxShellOutput = 50_000

// defaultDenyPatterns blocks obviously destructive commands before they
// reach the shell. Everything else is the workspace's problem.
var defaultDenyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\brm\s+-[rf]{1,2}\s+/(\s|$)`),
	regexp.MustCompile(`\b(mkfs|diskpart)\b`),
	regexp.MustCompile(`\bdd\s+if=.*of=/dev/`),
	regexp.MustCompile(`>\s*/dev/sd[a-z]\b`),
	regexp.MustCompile(`\b(shutdown|reboot|poweroff)\b`),
	regexp.MustCompile(`:\(\)\s*\{.*\};\s*:`), // fork bomb
	regexp.MustCompile(`\bsudo\b`),
}

// BashTool executes shell commands in the workspace.
type BashTool struct {
	workspace    string
	restrict     bool
	timeout      time.Duration
	denyPatterns []*regexp.Regexp
}

// NewBashTool runs commands under workspace with the given timeout in
// seconds (default 120).
func NewBashTool(workspace string, restrict bool, timeoutSec int) *BashTool {
	t := time.Duration(timeoutSec) * time.Second
	if t <= 0 {
		t = 120 * time.Second
	}
	return &BashTool{
		workspace:    workspace,
		restrict:     restrict,
		timeout:      t,
		denyPatterns: defaultDenyPatterns,
	}
}

func (t *BashTool) Name() string        { return "bash" }
func (t *BashTool) Description() string { return "Execute a shell command and return its output" }
func (t *BashTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"command": map[string]interface{}{
				"type":        "string",
				"description": "The shell command to execute",
			},
			"working_dir": map[string]interface{}{
				"type":        "string",
				"description": "Optional working directory for the command",
			},
		},
		"required": []string{"command"},
	}
}

func (t *BashTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	command, _ := args["command"].(string)
	if command == "" {
		return ErrorResult("command is required")
	}

	for _, pattern := range t.denyPatterns {
		if pattern.MatchString(command) {
			return ErrorResult(fmt.Sprintf("command denied by safety policy: matches %s", pattern.String()))
		}
	}

	cwd := t.workspace
	if wd, _ := args["working_dir"].(string); wd != "" {
		resolved, err := resolvePath(wd, t.workspace, t.restrict)
		if err != nil {
			return ErrorResult(err.Error())
		}
		cwd = resolved
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = cwd

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()

	var result string
	if stdout.Len() > 0 {
		result = stdout.String()
	}
	if stderr.Len() > 0 {
		if result != "" {
			result += "\n"
		}
		result += "STDERR:\n" + stderr.String()
	}
	if len(result) > maxShellOutput {
		result = result[:maxShellOutput] + "\n... (output truncated)"
	}

	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return ErrorResult(fmt.Sprintf("command timed out after %s", t.timeout))
		}
		if result == "" {
			result = err.Error()
		}
		return ErrorResult(result)
	}
	if result == "" {
		result = "(command completed with no output)"
	}
	return SilentResult(result)
}
