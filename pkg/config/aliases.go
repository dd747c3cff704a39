package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

// ModelAliases manages model alias resolution and validation.
type ModelAliases struct {
	Aliases   map[string]string   `yaml:"aliases"`
	Providers map[string][]string `yaml:"providers"`
}

// LoadAliases reads model aliases from a YAML file.
func LoadAliases(path string) (*ModelAliases, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var aliases ModelAliases
	if err := yaml.Unmarshal(data, &aliases); err != nil {
		return nil, fmt.Errorf("parse aliases %s: %w", path, err)
	}

	if aliases.Aliases == nil {
		aliases.Aliases = make(map[string]string)
	}
	if aliases.Providers == nil {
		aliases.Providers = make(map[string][]string)
	}

	return &aliases, nil
}

// LoadAliasesWithFallback loads aliases from path, then from models.yaml in the
// user config dir, falling back to DefaultAliases when neither exists.
func LoadAliasesWithFallback(path string) (*ModelAliases, error) {
	if path != "" {
		return LoadAliases(path)
	}

	userPath := filepath.Join(xdg.ConfigHome, AppName, "models.yaml")
	if _, err := os.Stat(userPath); err == nil {
		return LoadAliases(userPath)
	}

	return DefaultAliases(), nil
}

// Resolve returns the canonical selector for an alias.
// If the input is not an alias, it returns the input unchanged.
func (a *ModelAliases) Resolve(modelOrAlias string) string {
	if a == nil || a.Aliases == nil {
		return modelOrAlias
	}
	if canonical, ok := a.Aliases[modelOrAlias]; ok {
		return canonical
	}
	return modelOrAlias
}

// IsAlias returns true if the given string is a known alias.
func (a *ModelAliases) IsAlias(name string) bool {
	if a == nil || a.Aliases == nil {
		return false
	}
	_, ok := a.Aliases[name]
	return ok
}

// ValidateModel checks if a model exists in the provider's list.
func (a *ModelAliases) ValidateModel(provider, model string) error {
	if a == nil || a.Providers == nil {
		return nil
	}

	models, ok := a.Providers[provider]
	if !ok {
		return fmt.Errorf("unknown provider %q", provider)
	}

	for _, m := range models {
		if m == model {
			return nil
		}
	}

	return fmt.Errorf("model %q not in %s provider list", model, provider)
}

// ListAliases returns a copy of the aliases map.
func (a *ModelAliases) ListAliases() map[string]string {
	if a == nil || a.Aliases == nil {
		return make(map[string]string)
	}
	result := make(map[string]string, len(a.Aliases))
	for k, v := range a.Aliases {
		result[k] = v
	}
	return result
}

// ListProviders returns a sorted list of provider names.
func (a *ModelAliases) ListProviders() []string {
	if a == nil || a.Providers == nil {
		return nil
	}
	providers := make([]string, 0, len(a.Providers))
	for p := range a.Providers {
		providers = append(providers, p)
	}
	sort.Strings(providers)
	return providers
}

// GetProviderModels returns the models for a given provider.
func (a *ModelAliases) GetProviderModels(provider string) []string {
	if a == nil || a.Providers == nil {
		return nil
	}
	return a.Providers[provider]
}

// GetProviderForModel returns the provider name for a canonical model.
func (a *ModelAliases) GetProviderForModel(model string) string {
	if a == nil || a.Providers == nil {
		return ""
	}
	for _, provider := range a.ListProviders() {
		for _, m := range a.Providers[provider] {
			if m == model {
				return provider
			}
		}
	}
	return ""
}

// DefaultAliases returns the default model aliases configuration.
func DefaultAliases() *ModelAliases {
	return &ModelAliases{
		Aliases: map[string]string{
			// Google
			"fast":     "gemini/gemini-2.0-flash",
			"research": "gemini/gemini-2.0-pro",
			// Anthropic
			"quality": "anthropic/claude-sonnet-4-20250514",
			"deep":    "anthropic/claude-opus-4-20250514",
			// OpenAI
			"thinking": "openai/gpt-4o",
			// DeepSeek
			"cheap":  "deepseek/deepseek-chat",
			"reason": "deepseek/deepseek-reasoner",
			// Offline
			"offline": "mock/mock-1",
		},
		Providers: map[string][]string{
			"google":    {"gemini-2.0-flash", "gemini-2.0-pro", "gemini-1.5-pro"},
			"anthropic": {"claude-sonnet-4-20250514", "claude-opus-4-20250514"},
			"openai":    {"gpt-4o", "gpt-4o-mini"},
			"deepseek":  {"deepseek-chat", "deepseek-reasoner"},
			"mock":      {"mock-1"},
		},
	}
}
