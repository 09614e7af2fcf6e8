package providers

import (
	"fmt"
	"sort"

	"github.com/nextlevelbuilder/goforge/internal/config"
)

// Registry holds the configured providers by name.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry builds providers from config. Providers without credentials
// are skipped; an empty registry is valid (doctor reports it).
func NewRegistry(cfg *config.Config) *Registry {
	r := &Registry{providers: make(map[string]Provider)}

	if ds := cfg.Providers.DeepSeek; ds.APIKey != "" {
		r.providers["deepseek"] = RateLimited(
			NewOpenAIProvider("deepseek", ds.APIKey, ds.APIBase, ds.Model),
			ds.MaxRPM,
		)
	}

	if an := cfg.Providers.Anthropic; an.APIKey != "" || an.AuthToken != "" {
		r.providers["anthropic"] = RateLimited(
			NewAnthropicProvider(an.APIKey,
				WithAnthropicBaseURL(an.APIBase),
				WithAnthropicModel(an.Model),
				WithAnthropicAuthToken(an.AuthToken),
			),
			an.MaxRPM,
		)
	}

	return r
}

// Get returns the named provider.
func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("provider %q not configured", name)
	}
	return p, nil
}

// Pick returns the preferred provider, falling back to any configured one.
func (r *Registry) Pick(preferred string) (Provider, error) {
	if preferred != "" {
		if p, ok := r.providers[preferred]; ok {
			return p, nil
		}
	}
	for _, name := range r.Names() {
		return r.providers[name], nil
	}
	return nil, fmt.Errorf("no provider configured: set DEEPSEEK_API_KEY or ANTHROPIC_API_KEY")
}

// Names lists configured provider names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
