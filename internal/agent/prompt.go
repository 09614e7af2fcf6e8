package agent

import (
	"fmt"
	"strings"
	"time"
)

// buildSystemPrompt assembles the main agent's system prompt: identity,
// workspace grounding, tool guidance, and the skill catalog when one
// exists.
func (l *Loop) buildSystemPrompt() string {
	var b strings.Builder

	b.WriteString("You are goforge, an autonomous coding agent. ")
	b.WriteString("You plan and execute multi-step engineering tasks through tool calls.\n\n")

	fmt.Fprintf(&b, "Workspace: %s\n", l.workspace)
	fmt.Fprintf(&b, "Date: %s\n\n", time.Now().Format("2006-01-02"))

	b.WriteString("Guidelines:\n")
	b.WriteString("- Keep the todo list current with TodoWrite as you work through multi-step tasks.\n")
	b.WriteString("- Delegate focused investigations to sub-agents with the Task tool.\n")
	b.WriteString("- Spawn teammates for genuinely parallel workstreams; coordinate via the task board and messages.\n")
	b.WriteString("- Long-running commands go through background_run; check results with check_background.\n")
	b.WriteString("- Use worktrees to isolate risky changes on their own branch.\n")

	if l.skills != nil {
		if catalog := l.skills.Describe(); catalog != "" {
			b.WriteString("\nAvailable skills (pull the full text with load_skill):\n")
			b.WriteString(catalog)
			b.WriteByte('\n')
		}
	}

	return b.String()
}
