package config

import (
	"fmt"
	"strings"
)

// ModelRef names a provider and a model within it.
type ModelRef struct {
	Provider string
	Model    string
}

func (r ModelRef) String() string {
	return r.Provider + "/" + r.Model
}

// providerPrefixes maps selector prefixes to adapter names.
var providerPrefixes = map[string]string{
	"gemini":    "google",
	"google":    "google",
	"vertex_ai": "google",
	"anthropic": "anthropic",
	"claude":    "anthropic",
	"openai":    "openai",
	"deepseek":  "deepseek",
	"mock":      "mock",
}

// ParseModel turns a selector like "gemini/gemini-2.0-flash", an alias like
// "fast", or a bare model name into a ModelRef.
func ParseModel(selector string, aliases *ModelAliases) (ModelRef, error) {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return ModelRef{}, fmt.Errorf("model selector is empty")
	}
	resolved := aliases.Resolve(selector)

	if prefix, model, ok := strings.Cut(resolved, "/"); ok {
		provider, known := providerPrefixes[strings.ToLower(prefix)]
		if !known {
			return ModelRef{}, fmt.Errorf("unknown provider %q in model %q", prefix, selector)
		}
		if model == "" {
			return ModelRef{}, fmt.Errorf("model %q has no model name", selector)
		}
		return ModelRef{Provider: provider, Model: model}, nil
	}

	if provider := aliases.GetProviderForModel(resolved); provider != "" {
		return ModelRef{Provider: provider, Model: resolved}, nil
	}
	if provider := inferProvider(resolved); provider != "" {
		return ModelRef{Provider: provider, Model: resolved}, nil
	}
	return ModelRef{}, fmt.Errorf("cannot infer provider for model %q", selector)
}

func inferProvider(model string) string {
	lower := strings.ToLower(model)
	switch {
	case strings.HasPrefix(lower, "gemini"):
		return "google"
	case strings.HasPrefix(lower, "claude"):
		return "anthropic"
	case strings.HasPrefix(lower, "gpt"), strings.HasPrefix(lower, "o1"), strings.HasPrefix(lower, "o3"):
		return "openai"
	case strings.HasPrefix(lower, "deepseek"):
		return "deepseek"
	case strings.HasPrefix(lower, "mock"):
		return "mock"
	}
	return ""
}
