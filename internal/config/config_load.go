package config

import (
	"fmt"
	"os"

	"github.com/titanous/json5"
)

// Load reads configuration from the given path, applying defaults and env
// overrides. A missing file is not an error: defaults plus environment win.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	envStr := func(key string, target *string) {
		if v := os.Getenv(key); v != "" {
			*target = v
		}
	}

	envStr("DEEPSEEK_API_KEY", &cfg.Providers.DeepSeek.APIKey)
	envStr("DEEPSEEK_BASE_URL", &cfg.Providers.DeepSeek.APIBase)
	envStr("DEEPSEEK_MODEL", &cfg.Providers.DeepSeek.Model)

	envStr("ANTHROPIC_API_KEY", &cfg.Providers.Anthropic.APIKey)
	envStr("ANTHROPIC_AUTH_TOKEN", &cfg.Providers.Anthropic.AuthToken)
	envStr("ANTHROPIC_BASE_URL", &cfg.Providers.Anthropic.APIBase)
	envStr("ANTHROPIC_MODEL", &cfg.Providers.Anthropic.Model)

	envStr("BRAVE_API_KEY", &cfg.Providers.Brave.APIKey)

	envStr("GOFORGE_WORKSPACE", &cfg.Agent.Workspace)
	envStr("GOFORGE_SESSIONS_DIR", &cfg.Sessions.RootDir)
}
