package config

// Config is the root configuration for the goforge runtime.
type Config struct {
	Agent      AgentConfig               `json:"agent"`
	Providers  ProvidersConfig           `json:"providers"`
	Sessions   SessionsConfig            `json:"sessions"`
	Compaction CompactionConfig          `json:"compaction"`
	Team       TeamConfig                `json:"team"`
	Subagents  SubagentsConfig           `json:"subagents"`
	Background BackgroundConfig          `json:"background"`
	Worktrees  WorktreesConfig           `json:"worktrees"`
	Skills     SkillsConfig              `json:"skills"`
	Memory     MemoryConfig              `json:"memory"`
	Telemetry  TelemetryConfig           `json:"telemetry,omitempty"`
	MCPServers map[string]MCPServerConfig `json:"mcp_servers,omitempty"`
}

// AgentConfig holds defaults for the main agent loop.
type AgentConfig struct {
	Workspace           string  `json:"workspace"`
	RestrictToWorkspace bool    `json:"restrict_to_workspace"`
	Provider            string  `json:"provider"`
	Model               string  `json:"model"`
	MaxTokens           int     `json:"max_tokens"`
	Temperature         float64 `json:"temperature"`
	MaxToolIterations   int     `json:"max_tool_iterations"`
	ContextWindow       int     `json:"context_window"`
}

// ProvidersConfig holds per-provider credentials and endpoints.
type ProvidersConfig struct {
	Anthropic ProviderConfig `json:"anthropic"`
	DeepSeek  ProviderConfig `json:"deepseek"`
	Brave     ProviderConfig `json:"brave,omitempty"`
}

// ProviderConfig is one provider's connection settings.
// APIKey and AuthToken are never written back to disk.
type ProviderConfig struct {
	APIKey    string `json:"api_key,omitempty"`
	AuthToken string `json:"-"`
	APIBase   string `json:"api_base,omitempty"`
	Model     string `json:"model,omitempty"`
	MaxRPM    int    `json:"max_rpm,omitempty"` // 0 = unlimited
}

// SessionsConfig controls where session state lives on disk.
type SessionsConfig struct {
	RootDir string `json:"root_dir"` // default ".sessions"
}

// CompactionConfig tunes the three compaction tiers.
type CompactionConfig struct {
	// AutoThresholdTokens triggers auto-compaction when the estimated
	// token count of the history exceeds it.
	AutoThresholdTokens int `json:"auto_threshold_tokens"`
	// KeepRecentResults is how many trailing tool results micro-compaction
	// leaves untouched.
	KeepRecentResults int `json:"keep_recent_results"`
	// TranscriptMaxChars caps the slice of serialized history handed to
	// the summarizer model.
	TranscriptMaxChars int `json:"transcript_max_chars"`
}

// TeamConfig tunes the teammate pool.
type TeamConfig struct {
	MaxTurns        int `json:"max_turns"`         // ReAct turns per working batch
	PollIntervalSec int `json:"poll_interval_sec"` // idle tick sleep
	IdleTimeoutSec  int `json:"idle_timeout_sec"`  // idle budget before shutdown
}

// SubagentsConfig tunes the sub-agent driver.
type SubagentsConfig struct {
	MaxConcurrent       int    `json:"max_concurrent"`
	MaxSpawnDepth       int    `json:"max_spawn_depth"`
	MaxChildrenPerAgent int    `json:"max_children_per_agent"`
	MaxToolCalls        int    `json:"max_tool_calls"`
	MaxOODACycles       int    `json:"max_ooda_cycles"`
	Model               string `json:"model,omitempty"` // override for sub-agents
}

// BackgroundConfig tunes the background executor.
type BackgroundConfig struct {
	TimeoutSec int `json:"timeout_sec"` // wall-clock cap per job
}

// WorktreesConfig tunes the git worktree manager.
type WorktreesConfig struct {
	RunTimeoutSec  int `json:"run_timeout_sec"`
	MaxOutputBytes int `json:"max_output_bytes"`
}

// SkillsConfig points at the skill library.
type SkillsConfig struct {
	Dir       string `json:"dir"`        // default ".skills"
	HotReload bool   `json:"hot_reload"` // watch Dir for changes
}

// MemoryConfig configures the long-term SQLite memory store.
type MemoryConfig struct {
	Enabled *bool  `json:"enabled,omitempty"` // nil = enabled
	Path    string `json:"path,omitempty"`    // default "<workspace>/.goforge/memory.db"
}

// TelemetryConfig configures optional OTLP trace export. Trace events are
// always written to trace.jsonl; when Enabled they are mirrored as spans.
type TelemetryConfig struct {
	Enabled     bool              `json:"enabled,omitempty"`
	Endpoint    string            `json:"endpoint,omitempty"`     // e.g. "localhost:4317"
	Protocol    string            `json:"protocol,omitempty"`     // "grpc" (default) or "http"
	Insecure    bool              `json:"insecure,omitempty"`
	ServiceName string            `json:"service_name,omitempty"` // default "goforge"
	Headers     map[string]string `json:"headers,omitempty"`
}

// MCPServerConfig describes one MCP server to bridge tools from.
type MCPServerConfig struct {
	Transport    string            `json:"transport"` // "stdio" (default), "sse", "http"
	Command      string            `json:"command,omitempty"`
	Args         []string          `json:"args,omitempty"`
	Env          map[string]string `json:"env,omitempty"`
	URL          string            `json:"url,omitempty"`
	Headers      map[string]string `json:"headers,omitempty"`
	AllowedTools []string          `json:"allowed_tools,omitempty"`
	DeniedTools  []string          `json:"denied_tools,omitempty"`
}

// MemoryEnabled reports whether the memory store should be opened.
func (m MemoryConfig) MemoryEnabled() bool {
	return m.Enabled == nil || *m.Enabled
}

// Default returns the built-in configuration. Load overlays the config
// file and environment on top of this.
func Default() *Config {
	return &Config{
		Agent: AgentConfig{
			Workspace:           ".",
			RestrictToWorkspace: true,
			Provider:            "deepseek",
			Model:               "",
			MaxTokens:           8192,
			Temperature:         0,
			MaxToolIterations:   100,
			ContextWindow:       200000,
		},
		Providers: ProvidersConfig{
			Anthropic: ProviderConfig{
				APIBase: "https://api.anthropic.com",
				Model:   "claude-sonnet-4-20250514",
			},
			DeepSeek: ProviderConfig{
				APIBase: "https://api.deepseek.com",
				Model:   "deepseek-chat",
			},
		},
		Sessions: SessionsConfig{
			RootDir: ".sessions",
		},
		Compaction: CompactionConfig{
			AutoThresholdTokens: 50000,
			KeepRecentResults:   3,
			TranscriptMaxChars:  80000,
		},
		Team: TeamConfig{
			MaxTurns:        50,
			PollIntervalSec: 5,
			IdleTimeoutSec:  60,
		},
		Subagents: SubagentsConfig{
			MaxConcurrent:       8,
			MaxSpawnDepth:       1,
			MaxChildrenPerAgent: 5,
			MaxToolCalls:        20,
			MaxOODACycles:       6,
		},
		Background: BackgroundConfig{
			TimeoutSec: 300,
		},
		Worktrees: WorktreesConfig{
			RunTimeoutSec:  300,
			MaxOutputBytes: 50000,
		},
		Skills: SkillsConfig{
			Dir:       ".skills",
			HotReload: true,
		},
		Telemetry: TelemetryConfig{
			Protocol:    "grpc",
			ServiceName: "goforge",
		},
	}
}
