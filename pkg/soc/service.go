// Package soc wires configuration, adapters, capabilities and pipelines into
// the service used by the CLI and the HTTP server.
package soc

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/zen-systems/socflow/pkg/adapter"
	"github.com/zen-systems/socflow/pkg/capability"
	"github.com/zen-systems/socflow/pkg/completion"
	"github.com/zen-systems/socflow/pkg/config"
	"github.com/zen-systems/socflow/pkg/metrics"
	"github.com/zen-systems/socflow/pkg/pipeline"
	"github.com/zen-systems/socflow/pkg/router"
	"github.com/zen-systems/socflow/pkg/workflows"
)

// Service builds pipelines and runners from one configuration. Runners are
// cached per model selector and pipelines per name; both are safe to share.
type Service struct {
	cfg      *config.Config
	adapters map[string]adapter.Adapter
	registry *capability.Registry
	intel    *capability.ReputationLookup
	aliases  *config.ModelAliases
	router   *router.Router
	prom     *prometheus.Registry
	metrics  *metrics.Metrics
	logger   *slog.Logger

	mu        sync.Mutex
	runners   map[string]*pipeline.Runner
	pipelines map[string]*pipeline.Pipeline
}

// Option configures a Service.
type Option func(*Service)

// WithAdapters replaces the adapters built from the configured API keys.
func WithAdapters(adapters map[string]adapter.Adapter) Option {
	return func(s *Service) { s.adapters = adapters }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithAliases sets the model alias table.
func WithAliases(a *config.ModelAliases) Option {
	return func(s *Service) { s.aliases = a }
}

// WithPrometheus registers metrics on reg instead of a private registry.
func WithPrometheus(reg *prometheus.Registry) Option {
	return func(s *Service) { s.prom = reg }
}

// NewService builds the capability registry, the adapters and the metrics
// for cfg.
func NewService(ctx context.Context, cfg *config.Config, opts ...Option) (*Service, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	s := &Service{
		cfg:       cfg,
		logger:    slog.Default(),
		runners:   make(map[string]*pipeline.Runner),
		pipelines: make(map[string]*pipeline.Pipeline),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.aliases == nil {
		a, err := config.LoadAliasesWithFallback(cfg.Aliases)
		if err != nil {
			return nil, err
		}
		s.aliases = a
	}
	if s.adapters == nil {
		a, err := CreateAdapters(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create adapters: %w", err)
		}
		s.adapters = a
	}
	if s.prom == nil {
		s.prom = prometheus.NewRegistry()
	}
	s.metrics = metrics.New(s.prom)

	registry, intel, err := buildRegistry(cfg)
	if err != nil {
		return nil, err
	}
	s.registry = registry
	s.intel = intel

	fallback := cfg.Pipeline
	if fallback == "" || fallback == router.Auto {
		fallback = workflows.Default
	}
	routes := make([]router.Route, 0, len(cfg.Routes))
	for i, r := range cfg.Routes {
		if r.Pipeline == router.Auto {
			return nil, fmt.Errorf("routes[%d] cannot target %q", i, router.Auto)
		}
		if _, err := s.Pipeline(r.Pipeline); err != nil {
			return nil, fmt.Errorf("routes[%d]: %w", i, err)
		}
		routes = append(routes, router.Route{Pipeline: r.Pipeline, Triggers: r.Triggers})
	}
	s.router, err = router.New(append(routes, router.DefaultRoutes()...), fallback)
	if err != nil {
		return nil, fmt.Errorf("routes: %w", err)
	}
	return s, nil
}

// CreateAdapters returns one adapter per provider with a configured key.
// The mock adapter is always present.
func CreateAdapters(ctx context.Context, cfg *config.Config) (map[string]adapter.Adapter, error) {
	adapters := make(map[string]adapter.Adapter)

	if cfg.Keys.Google != "" {
		a, err := adapter.NewGoogleAdapter(ctx, cfg.Keys.Google)
		if err != nil {
			return nil, fmt.Errorf("failed to create google adapter: %w", err)
		}
		adapters["google"] = a
	}

	if cfg.Keys.Anthropic != "" {
		a, err := adapter.NewAnthropicAdapter(cfg.Keys.Anthropic)
		if err != nil {
			return nil, fmt.Errorf("failed to create anthropic adapter: %w", err)
		}
		adapters["anthropic"] = a
	}

	if cfg.Keys.OpenAI != "" {
		a, err := adapter.NewOpenAIAdapter(cfg.Keys.OpenAI)
		if err != nil {
			return nil, fmt.Errorf("failed to create openai adapter: %w", err)
		}
		adapters["openai"] = a
	}

	if cfg.Keys.DeepSeek != "" {
		a, err := adapter.NewDeepSeekAdapter(cfg.Keys.DeepSeek)
		if err != nil {
			return nil, fmt.Errorf("failed to create deepseek adapter: %w", err)
		}
		adapters["deepseek"] = a
	}

	adapters["mock"] = adapter.NewMockAdapter()

	return adapters, nil
}

func buildRegistry(cfg *config.Config) (*capability.Registry, *capability.ReputationLookup, error) {
	table := capability.DefaultReputationTable()
	if cfg.Intel.File != "" {
		extra, err := capability.LoadReputationTable(cfg.Intel.File)
		if err != nil {
			return nil, nil, fmt.Errorf("intel table: %w", err)
		}
		table = table.Merge(extra)
	}
	intel := capability.NewReputationLookup(table)

	logDir := cfg.Logs.Dir
	if logDir == "" {
		logDir = "."
	}
	logs, err := capability.NewLogReader(logDir)
	if err != nil {
		return nil, nil, fmt.Errorf("log reader: %w", err)
	}

	registry, err := capability.NewRegistry(intel, logs)
	if err != nil {
		return nil, nil, err
	}
	registry.Freeze()
	return registry, intel, nil
}

// Config returns the configuration the service was built from.
func (s *Service) Config() *config.Config { return s.cfg }

// Capabilities returns the frozen capability registry.
func (s *Service) Capabilities() *capability.Registry { return s.registry }

// Intel returns the reputation lookup registered as check_ip_reputation.
func (s *Service) Intel() *capability.ReputationLookup { return s.intel }

// Aliases returns the model alias table.
func (s *Service) Aliases() *config.ModelAliases { return s.aliases }

// Adapters returns the configured adapters keyed by provider.
func (s *Service) Adapters() map[string]adapter.Adapter { return s.adapters }

// Gatherer exposes the metrics registry for /metrics.
func (s *Service) Gatherer() prometheus.Gatherer { return s.prom }

// Metrics returns the service collectors.
func (s *Service) Metrics() *metrics.Metrics { return s.metrics }

// Route picks a pipeline for alert. Configured routes take precedence over
// the built-in ones on equal scores.
func (s *Service) Route(alert string) *router.Decision {
	return s.router.Route(alert)
}

// Pipeline returns a built-in pipeline by name, or loads a manifest when
// nameOrPath is a file. An empty name selects the configured default.
func (s *Service) Pipeline(nameOrPath string) (*pipeline.Pipeline, error) {
	if nameOrPath == "" {
		nameOrPath = s.cfg.Pipeline
	}
	if nameOrPath == "" {
		nameOrPath = workflows.Default
	}
	if nameOrPath == router.Auto {
		return nil, fmt.Errorf("pipeline %q is chosen per alert and cannot be built ahead of a run", router.Auto)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.pipelines[nameOrPath]; ok {
		return p, nil
	}

	var p *pipeline.Pipeline
	var err error
	if isBuiltin(nameOrPath) {
		p, err = workflows.Load(nameOrPath)
	} else if _, statErr := os.Stat(nameOrPath); statErr == nil {
		p, err = pipeline.LoadManifest(nameOrPath)
	} else {
		err = fmt.Errorf("unknown pipeline %q (available: %s)", nameOrPath, strings.Join(workflows.Names(), ", "))
	}
	if err != nil {
		return nil, err
	}
	if err := s.checkCapabilities(p); err != nil {
		return nil, err
	}
	s.pipelines[nameOrPath] = p
	return p, nil
}

func isBuiltin(name string) bool {
	for _, n := range workflows.Names() {
		if n == name {
			return true
		}
	}
	return false
}

// checkCapabilities rejects pipelines naming capabilities the registry lacks,
// so the failure surfaces before any stage runs.
func (s *Service) checkCapabilities(p *pipeline.Pipeline) error {
	for _, st := range p.Stages() {
		for _, name := range st.Capabilities {
			if _, ok := s.registry.Lookup(name); !ok {
				return fmt.Errorf("pipeline %s stage %s: %w", p.Name(), st.ID, &capability.CapabilityError{Name: name, Err: capability.ErrUnknownCapability})
			}
		}
	}
	return nil
}

// Runner returns the runner for a model selector. An empty selector uses the
// configured model.
func (s *Service) Runner(model string) (*pipeline.Runner, error) {
	if model == "" {
		model = s.cfg.Model
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.runners[model]; ok {
		return r, nil
	}

	ref, err := config.ParseModel(model, s.aliases)
	if err != nil {
		return nil, err
	}
	if s.aliases.IsAlias(model) {
		s.logger.Debug("model alias resolved", "alias", model, "model", ref.String())
	}
	if err := s.aliases.ValidateModel(ref.Provider, ref.Model); err != nil {
		s.logger.Warn("model not in provider list", "model", ref.String(), "error", err.Error())
	}
	c, err := completion.NewAdapterCompleter(s.adapters, ref,
		completion.WithRegistry(s.registry),
		completion.WithAliases(s.aliases),
		completion.WithTemperature(s.cfg.Temperature),
		completion.WithMaxTokens(s.cfg.MaxTokens),
		completion.WithMaxCapabilityCalls(s.cfg.MaxCapabilityCalls),
		completion.WithMetrics(s.metrics),
		completion.WithLogger(s.logger),
	)
	if err != nil {
		return nil, err
	}
	r, err := pipeline.NewRunner(c,
		pipeline.WithLogger(s.logger),
		pipeline.WithMetrics(s.metrics),
		pipeline.WithPricing(s.cfg.Pricing),
	)
	if err != nil {
		return nil, err
	}
	s.runners[model] = r
	return r, nil
}

// Analyze runs alert through the named pipeline with the selected model. The
// returned error covers setup only; stage failures are reported on the run.
func (s *Service) Analyze(ctx context.Context, alert, model, pipelineName string) (*pipeline.Run, error) {
	if pipelineName == "" {
		pipelineName = s.cfg.Pipeline
	}
	if pipelineName == router.Auto {
		d := s.router.Route(alert)
		s.logger.Info("pipeline routed",
			slog.String("pipeline", d.Pipeline),
			slog.Float64("confidence", d.Confidence),
			slog.String("reason", strings.Join(d.Reasons, "; ")),
		)
		pipelineName = d.Pipeline
	}
	p, err := s.Pipeline(pipelineName)
	if err != nil {
		return nil, err
	}
	r, err := s.Runner(model)
	if err != nil {
		return nil, err
	}
	run := r.Run(ctx, p, alert)
	if run.Err != nil {
		s.logger.Error("run failed",
			slog.String("run_id", run.ID),
			slog.String("pipeline", p.Name()),
			slog.String("stage", run.FailedStage),
			slog.String("error", run.Err.Error()),
		)
	}
	return run, nil
}
