package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json5"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Agent.Provider != "deepseek" {
		t.Errorf("default provider = %q", cfg.Agent.Provider)
	}
	if cfg.Compaction.AutoThresholdTokens != 50000 {
		t.Errorf("default threshold = %d", cfg.Compaction.AutoThresholdTokens)
	}
	if cfg.Team.MaxTurns != 50 || cfg.Team.PollIntervalSec != 5 {
		t.Errorf("team defaults = %+v", cfg.Team)
	}
}

func TestLoadJSON5Overlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json5")
	// Comments and trailing commas are legal.
	data := `{
		// local overrides
		agent: {
			provider: "anthropic",
			max_tokens: 4096,
		},
		team: { max_turns: 10 },
	}`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Agent.Provider != "anthropic" {
		t.Errorf("provider = %q, want anthropic", cfg.Agent.Provider)
	}
	if cfg.Agent.MaxTokens != 4096 {
		t.Errorf("max_tokens = %d, want 4096", cfg.Agent.MaxTokens)
	}
	if cfg.Team.MaxTurns != 10 {
		t.Errorf("team max_turns = %d, want 10", cfg.Team.MaxTurns)
	}
	// Untouched sections keep their defaults.
	if cfg.Worktrees.RunTimeoutSec != 300 {
		t.Errorf("worktree timeout = %d, want default 300", cfg.Worktrees.RunTimeoutSec)
	}
}

func TestLoadRejectsBadSyntax(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json5")
	if err := os.WriteFile(path, []byte("{agent: "), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load on truncated file succeeded, want error")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DEEPSEEK_API_KEY", "sk-test")
	t.Setenv("GOFORGE_WORKSPACE", "/tmp/ws")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json5"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Providers.DeepSeek.APIKey != "sk-test" {
		t.Errorf("api key = %q, want env override", cfg.Providers.DeepSeek.APIKey)
	}
	if cfg.Agent.Workspace != "/tmp/ws" {
		t.Errorf("workspace = %q, want env override", cfg.Agent.Workspace)
	}
}

func TestMemoryEnabled(t *testing.T) {
	off := false
	on := true
	tests := []struct {
		name string
		cfg  MemoryConfig
		want bool
	}{
		{"unset defaults on", MemoryConfig{}, true},
		{"explicit on", MemoryConfig{Enabled: &on}, true},
		{"explicit off", MemoryConfig{Enabled: &off}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.MemoryEnabled(); got != tt.want {
				t.Errorf("MemoryEnabled = %v, want %v", got, tt.want)
			}
		})
	}
}
