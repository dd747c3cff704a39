package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// AppName names the config directory under XDG_CONFIG_HOME.
const AppName = "socflow"

// EnvPrefix prefixes environment overrides, e.g. SOCFLOW_SERVER__ADDR.
const EnvPrefix = "SOCFLOW_"

// Config holds the application configuration.
type Config struct {
	Model              string          `koanf:"model"`
	Pipeline           string          `koanf:"pipeline"`
	Temperature        float64         `koanf:"temperature"`
	MaxTokens          int             `koanf:"max_tokens"`
	MaxCapabilityCalls int             `koanf:"max_capability_calls"`
	Server             ServerConfig    `koanf:"server"`
	Intel              IntelConfig     `koanf:"intel"`
	Logs               LogsConfig      `koanf:"logs"`
	Evidence           EvidenceConfig  `koanf:"evidence"`
	Telemetry          TelemetryConfig `koanf:"telemetry"`
	Aliases            string          `koanf:"aliases"`
	Pricing            PricingConfig   `koanf:"pricing"`
	Routes             []RouteConfig   `koanf:"routes"`

	// Keys are only ever read from the environment.
	Keys APIKeys `koanf:"-"`
	// Path is the config file that was loaded, if any.
	Path string `koanf:"-"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr           string        `koanf:"addr"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
}

// IntelConfig points at an optional YAML reputation table.
type IntelConfig struct {
	File string `koanf:"file"`
}

// LogsConfig confines the log reader capability.
type LogsConfig struct {
	Dir string `koanf:"dir"`
}

// EvidenceConfig sets where run records are exported.
type EvidenceConfig struct {
	Dir string `koanf:"dir"`
}

// TelemetryConfig toggles trace export.
type TelemetryConfig struct {
	Enabled bool `koanf:"enabled"`
}

// RouteConfig binds trigger phrases to a pipeline for automatic selection.
type RouteConfig struct {
	Pipeline string   `koanf:"pipeline"`
	Triggers []string `koanf:"triggers"`
}

// PricingConfig lists per-model prices. An entry with model "default"
// applies to any model of its provider without its own entry.
type PricingConfig []ModelPricing

// ModelPricing defines per-1k token pricing in USD.
type ModelPricing struct {
	Provider        string  `koanf:"provider"`
	Model           string  `koanf:"model"`
	PromptPer1K     float64 `koanf:"prompt_per_1k"`
	CompletionPer1K float64 `koanf:"completion_per_1k"`
}

// Lookup returns the pricing entry for a provider and model.
func (p PricingConfig) Lookup(provider, model string) (ModelPricing, bool) {
	var fallback *ModelPricing
	for i := range p {
		if p[i].Provider != provider {
			continue
		}
		if p[i].Model == model {
			return p[i], true
		}
		if p[i].Model == "default" && fallback == nil {
			fallback = &p[i]
		}
	}
	if fallback != nil {
		return *fallback, true
	}
	return ModelPricing{}, false
}

// APIKeys holds provider credentials.
type APIKeys struct {
	Google    string
	Anthropic string
	OpenAI    string
	DeepSeek  string
}

var defaults = map[string]any{
	"model":                  "gemini/gemini-2.0-flash",
	"pipeline":               "threat",
	"temperature":            0.2,
	"max_tokens":             4096,
	"max_capability_calls":   4,
	"server.addr":            ":8000",
	"server.request_timeout": 5 * time.Minute,
	"logs.dir":               ".",
	"telemetry.enabled":      false,
}

// DefaultPath returns the config file location under XDG_CONFIG_HOME.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, AppName, "config.yaml")
}

// Load reads configuration from the config file and environment variables.
// Environment variables take precedence over file configuration. An empty path
// uses DefaultPath and tolerates its absence; an explicit path must exist.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return nil, fmt.Errorf("set default %s: %w", key, err)
		}
	}

	loaded := ""
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
		loaded = path
	} else if explicit {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.Path = loaded
	cfg.Keys = loadKeys()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("model is required")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %v", c.Temperature)
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("max_tokens must be positive, got %d", c.MaxTokens)
	}
	if c.MaxCapabilityCalls < 0 {
		return fmt.Errorf("max_capability_calls must not be negative, got %d", c.MaxCapabilityCalls)
	}
	if c.Server.RequestTimeout < 0 {
		return fmt.Errorf("server.request_timeout must not be negative")
	}
	for i, route := range c.Routes {
		if route.Pipeline == "" || len(route.Triggers) == 0 {
			return fmt.Errorf("routes[%d] needs a pipeline and triggers", i)
		}
		for _, trigger := range route.Triggers {
			if strings.TrimSpace(trigger) == "" {
				return fmt.Errorf("routes[%d] has an empty trigger", i)
			}
		}
	}
	for _, price := range c.Pricing {
		if price.Provider == "" || price.Model == "" {
			return fmt.Errorf("pricing entries need provider and model")
		}
		if price.PromptPer1K < 0 || price.CompletionPer1K < 0 {
			return fmt.Errorf("pricing %s/%s must not be negative", price.Provider, price.Model)
		}
	}
	return nil
}

// HasAdapter returns true if the API key for the given adapter is configured.
func (c *Config) HasAdapter(name string) bool {
	switch name {
	case "google":
		return c.Keys.Google != ""
	case "anthropic":
		return c.Keys.Anthropic != ""
	case "openai":
		return c.Keys.OpenAI != ""
	case "deepseek":
		return c.Keys.DeepSeek != ""
	case "mock":
		return true
	default:
		return false
	}
}

func loadKeys() APIKeys {
	return APIKeys{
		Google:    firstEnv("GEMINI_API_KEY", "GOOGLE_API_KEY"),
		Anthropic: os.Getenv("ANTHROPIC_API_KEY"),
		OpenAI:    os.Getenv("OPENAI_API_KEY"),
		DeepSeek:  os.Getenv("DEEPSEEK_API_KEY"),
	}
}

func firstEnv(names ...string) string {
	for _, name := range names {
		if val := os.Getenv(name); val != "" {
			return val
		}
	}
	return ""
}
