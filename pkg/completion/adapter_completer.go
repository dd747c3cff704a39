package completion

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/zen-systems/socflow/pkg/adapter"
	"github.com/zen-systems/socflow/pkg/capability"
	"github.com/zen-systems/socflow/pkg/config"
	"github.com/zen-systems/socflow/pkg/metrics"
	"github.com/zen-systems/socflow/pkg/tokens"
)

// DefaultMaxCapabilityCalls bounds capability rounds per stage.
const DefaultMaxCapabilityCalls = 4

// AdapterCompleter completes prompts through provider adapters and answers
// CALL lines from the capability registry.
type AdapterCompleter struct {
	adapters    map[string]adapter.Adapter
	model       config.ModelRef
	aliases     *config.ModelAliases
	registry    *capability.Registry
	temperature float64
	maxTokens   int
	maxCalls    int
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// Option configures an AdapterCompleter.
type Option func(*AdapterCompleter)

// WithRegistry sets the capability registry.
func WithRegistry(r *capability.Registry) Option {
	return func(c *AdapterCompleter) { c.registry = r }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(c *AdapterCompleter) { c.temperature = t }
}

// WithMaxTokens caps completion length.
func WithMaxTokens(n int) Option {
	return func(c *AdapterCompleter) { c.maxTokens = n }
}

// WithMaxCapabilityCalls bounds capability rounds per stage.
func WithMaxCapabilityCalls(n int) Option {
	return func(c *AdapterCompleter) { c.maxCalls = n }
}

// WithAliases sets the alias table used for per-stage model selectors.
func WithAliases(a *config.ModelAliases) Option {
	return func(c *AdapterCompleter) { c.aliases = a }
}

// WithMetrics records capability and token metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *AdapterCompleter) { c.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *AdapterCompleter) { c.logger = l }
}

// NewAdapterCompleter creates a completer whose default model is model.
// adapters is keyed by provider name.
func NewAdapterCompleter(adapters map[string]adapter.Adapter, model config.ModelRef, opts ...Option) (*AdapterCompleter, error) {
	c := &AdapterCompleter{
		adapters:    adapters,
		model:       model,
		aliases:     config.DefaultAliases(),
		temperature: 0.2,
		maxCalls:    DefaultMaxCapabilityCalls,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if _, ok := c.adapters[model.Provider]; !ok {
		return nil, fmt.Errorf("no adapter configured for provider %q", model.Provider)
	}
	if c.registry == nil {
		reg, err := capability.NewRegistry()
		if err != nil {
			return nil, err
		}
		reg.Freeze()
		c.registry = reg
	}
	return c, nil
}

// Model returns the default model.
func (c *AdapterCompleter) Model() config.ModelRef {
	return c.model
}

// Complete runs the prompt, answering capability calls until the model
// produces a reply that is not a call.
func (c *AdapterCompleter) Complete(ctx context.Context, req Request) (*Completion, error) {
	ref, err := c.resolve(req.Model)
	if err != nil {
		return nil, err
	}
	a, ok := c.adapters[ref.Provider]
	if !ok {
		return nil, fmt.Errorf("no adapter configured for provider %q", ref.Provider)
	}

	allowed := make(map[string]bool, len(req.Capabilities))
	for _, name := range req.Capabilities {
		if _, ok := c.registry.Lookup(name); !ok {
			return nil, &capability.CapabilityError{Name: name, Err: capability.ErrUnknownCapability}
		}
		allowed[name] = true
	}

	conversation := req.Prompt
	if len(req.Capabilities) > 0 {
		conversation += toolsAppendix(c.registry, req.Capabilities)
	}

	out := &Completion{Provider: ref.Provider, Model: ref.Model}
	for round := 0; ; round++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resp, err := a.Generate(ctx, adapter.GenerateRequest{
			Model:       ref.Model,
			Prompt:      conversation,
			Temperature: c.temperature,
			MaxTokens:   c.maxTokens,
		})
		if err != nil {
			return nil, err
		}
		if resp.Model != "" {
			out.Model = resp.Model
		}
		usage := c.usage(ref.Model, conversation, resp)
		out.Usage = out.Usage.Add(usage)
		c.metrics.ObserveTokens(ref.Provider, usage.PromptTokens, usage.CompletionTokens)

		name, argument, isCall := parseCall(resp.Content)
		if len(req.Capabilities) == 0 || !isCall {
			out.Text = resp.Content
			return out, nil
		}
		if round >= c.maxCalls {
			return nil, fmt.Errorf("stage %s exceeded %d capability calls", req.StageID, c.maxCalls)
		}

		call := CapabilityCall{Name: name, Argument: argument}
		var result string
		if !allowed[name] {
			call.Error = fmt.Sprintf("capability %s is not available to this stage", name)
			result = resultLine(name, map[string]string{"error": call.Error})
			c.metrics.ObserveCapabilityCall(name, "denied")
			c.logger.Warn("capability denied", "stage", req.StageID, "capability", name)
		} else {
			value, err := c.registry.Invoke(ctx, name, argument)
			if err != nil {
				c.metrics.ObserveCapabilityCall(name, "error")
				return nil, err
			}
			call.Result = value
			result = resultLine(name, value)
			c.metrics.ObserveCapabilityCall(name, "ok")
			c.logger.Debug("capability invoked", "stage", req.StageID, "capability", name)
		}
		out.CapabilityCalls = append(out.CapabilityCalls, call)
		conversation += "\n\n" + strings.TrimSpace(resp.Content) + "\n" + result
	}
}

func (c *AdapterCompleter) resolve(selector string) (config.ModelRef, error) {
	if strings.TrimSpace(selector) == "" {
		return c.model, nil
	}
	return config.ParseModel(selector, c.aliases)
}

func (c *AdapterCompleter) usage(model, prompt string, resp *adapter.Response) adapter.Usage {
	if resp.Usage != nil && (resp.Usage.PromptTokens > 0 || resp.Usage.CompletionTokens > 0) {
		u := *resp.Usage
		if u.TotalTokens == 0 {
			u.TotalTokens = u.PromptTokens + u.CompletionTokens
		}
		return u
	}
	counter := tokens.ForModel(model)
	prompted := counter.Count(prompt)
	completed := counter.Count(resp.Content)
	return adapter.Usage{
		PromptTokens:     prompted,
		CompletionTokens: completed,
		TotalTokens:      prompted + completed,
		Estimated:        true,
	}
}
