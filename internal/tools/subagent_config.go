package tools

// Loop kinds a sub-agent type can run.
const (
	LoopReact  = "react"
	LoopOODA   = "ooda"
	LoopDirect = "direct" // no tools, single LLM call
)

// readOnlyTools is the capability set for exploration/review agent
// types: inspection only, no mutations.
var readOnlyTools = []string{
	"read_file", "list_dir", "glob", "grep",
	"workspace_read", "workspace_list",
}

// AgentType declares a sub-agent flavor: its tool policy ("*" means all
// registered tools minus Task), its system prompt, and which loop drives
// it. The table is data, not code; new flavors are new entries.
type AgentType struct {
	Name         string
	Tools        []string // nil/empty with LoopDirect = no tools at all
	SystemPrompt string
	Loop         string
}

var agentTypes = map[string]AgentType{
	"general-purpose": {
		Name:  "general-purpose",
		Tools: []string{"*"},
		SystemPrompt: "You are a capable engineering agent handling a delegated task. " +
			"Work autonomously: investigate, act, and verify. " +
			"When finished, reply with a concise report of what you did and found.",
		Loop: LoopReact,
	},
	"Explore": {
		Name:  "Explore",
		Tools: readOnlyTools,
		SystemPrompt: "You are an exploration agent. Investigate the codebase or data " +
			"relevant to the task using read-only tools. Do not modify anything. " +
			"Report findings with concrete file paths and line references.",
		Loop: LoopReact,
	},
	"Plan": {
		Name:  "Plan",
		Tools: readOnlyTools,
		SystemPrompt: "You are a planning agent. Study the task and the relevant code " +
			"read-only, then produce a step-by-step implementation plan. " +
			"Do not make any modifications.",
		Loop: LoopReact,
	},
	"ScriptWriter": {
		Name: "ScriptWriter",
		Tools: append(append([]string{}, readOnlyTools...),
			"write_file", "edit_file", "workspace_write"),
		SystemPrompt: "You are a script-writing agent. Write the requested script or " +
			"file, reading whatever context you need first. Keep output minimal " +
			"and runnable.",
		Loop: LoopReact,
	},
	"Reflect": {
		Name:  "Reflect",
		Tools: readOnlyTools,
		SystemPrompt: "You are a reviewing agent. Verify the described work against " +
			"the original requirements. Respond with JSON only: " +
			`{"verdict": "PASS" or "NEEDS_REVISION", "missing": [...], ` +
			`"superfluous": [...], "suggestion": "..."}.`,
		Loop: LoopReact,
	},
	"Reflexion": {
		Name:  "Reflexion",
		Tools: nil,
		SystemPrompt: "You answer in two phases. First draft a response to the task. " +
			"Then critique your draft for errors and omissions, and output only " +
			"the revised final answer.",
		Loop: LoopDirect,
	},
	"SearchSubagent": {
		Name: "SearchSubagent",
		Tools: []string{
			"web_search", "web_fetch", "workspace_write", "workspace_read", "workspace_list",
		},
		SystemPrompt: "You are a research agent. Search the web for the requested " +
			"information, fetch the most promising pages, and distill what you " +
			"learn. Cite URLs for every claim.",
		Loop: LoopReact,
	},
	"OODASubagent": {
		Name:  "OODASubagent",
		Tools: []string{"*"},
		SystemPrompt: "You are an exploration agent driven by an observe-orient-decide-act " +
			"cycle. Follow the JSON instructions of each phase exactly.",
		Loop: LoopOODA,
	},
}

// LookupAgentType returns the registry entry for name.
func LookupAgentType(name string) (AgentType, bool) {
	at, ok := agentTypes[name]
	return at, ok
}

// AgentTypeNames lists the canonical agent types for the Task tool's
// description.
func AgentTypeNames() []string {
	return []string{
		"Explore", "general-purpose", "Plan", "ScriptWriter",
		"Reflect", "Reflexion", "SearchSubagent", "OODASubagent",
	}
}
