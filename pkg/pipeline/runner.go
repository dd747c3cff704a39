package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/zen-systems/socflow/pkg/completion"
	"github.com/zen-systems/socflow/pkg/config"
	"github.com/zen-systems/socflow/pkg/metrics"
)

// Runner executes pipelines one stage at a time in topological order.
// A Runner holds no per-run state and may serve concurrent runs.
type Runner struct {
	completer completion.Completer
	logger    *slog.Logger
	tracer    trace.Tracer
	metrics   *metrics.Metrics
	pricing   config.PricingConfig
	now       func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithTracer sets the tracer used for run and stage spans.
func WithTracer(t trace.Tracer) Option {
	return func(r *Runner) { r.tracer = t }
}

// WithMetrics records run and stage metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithPricing enables cost estimates on finished runs.
func WithPricing(p config.PricingConfig) Option {
	return func(r *Runner) { r.pricing = p }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// NewRunner creates a runner around a completer.
func NewRunner(c completion.Completer, opts ...Option) (*Runner, error) {
	if c == nil {
		return nil, fmt.Errorf("completer is required")
	}
	r := &Runner{
		completer: c,
		logger:    slog.Default(),
		tracer:    otel.Tracer("github.com/zen-systems/socflow/pkg/pipeline"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run executes p against alert. It always returns a run; failures are
// reported through Run.Status, Run.FailedStage and Run.Err. The first failing
// stage stops the run and no later stage is attempted.
func (r *Runner) Run(ctx context.Context, p *Pipeline, alert string) *Run {
	run := newRun(uuid.NewString(), p, alert, r.now())
	if p == nil {
		r.finish(run, "", ErrNilPipeline)
		return run
	}

	ctx, span := r.tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("pipeline.name", p.Name()),
		attribute.String("pipeline.run_id", run.ID),
		attribute.Int("pipeline.stages", len(p.order)),
	))
	defer span.End()

	logger := r.logger.With("pipeline", p.Name(), "run_id", run.ID)

	if strings.TrimSpace(alert) == "" {
		r.finish(run, "", ErrEmptyAlert)
		r.endSpan(span, run)
		logger.Warn("run rejected", "error", ErrEmptyAlert)
		return run
	}

	logger.Info("run started", "stages", len(p.order))
	costs := newCostTracker(r.pricing)

	for _, id := range p.order {
		out, err := r.runStage(ctx, p, id, run)
		if err != nil {
			r.finish(run, id, err)
			run.Cost = costs.report()
			r.endSpan(span, run)
			logger.Error("run failed", "stage", id, "error", err)
			return run
		}
		run.record(out)
		costs.record(out)
		logger.Debug("stage completed", "stage", id, "duration", out.Duration, "tokens", out.Usage.TotalTokens)
	}

	r.finish(run, "", nil)
	run.Cost = costs.report()
	r.endSpan(span, run)
	logger.Info("run succeeded", "duration", run.Duration(), "tokens", run.Usage().TotalTokens)
	return run
}

func (r *Runner) runStage(ctx context.Context, p *Pipeline, id string, run *Run) (StageOutput, error) {
	stage := p.stage(id)

	ctx, span := r.tracer.Start(ctx, "pipeline.stage", trace.WithAttributes(
		attribute.String("pipeline.name", p.Name()),
		attribute.String("stage.id", id),
		attribute.StringSlice("stage.depends_on", stage.DependsOn),
	))
	defer span.End()

	prompt, err := assemble(p.templates[id], stage, run.Alert, run.outputs)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return StageOutput{}, err
	}

	if err := ctx.Err(); err != nil {
		return StageOutput{}, &CompletionError{Stage: id, Err: err}
	}

	start := r.now()
	comp, err := r.completer.Complete(ctx, completion.Request{
		StageID:      id,
		Prompt:       prompt,
		Capabilities: stage.Capabilities,
		Model:        stage.Model,
	})
	elapsed := r.now().Sub(start)
	r.metrics.ObserveStage(p.Name(), id, elapsed)
	if err != nil {
		cerr := &CompletionError{Stage: id, Err: err}
		span.RecordError(cerr)
		span.SetStatus(codes.Error, cerr.Error())
		return StageOutput{}, cerr
	}
	if comp == nil {
		return StageOutput{}, &CompletionError{Stage: id, Err: fmt.Errorf("completer returned no result")}
	}

	span.SetAttributes(
		attribute.String("llm.provider", comp.Provider),
		attribute.String("llm.model", comp.Model),
		attribute.Int("llm.tokens.total", comp.Usage.TotalTokens),
		attribute.Int("stage.capability_calls", len(comp.CapabilityCalls)),
	)

	return StageOutput{
		StageID:         id,
		Text:            comp.Text,
		CompletedAt:     r.now(),
		Provider:        comp.Provider,
		Model:           comp.Model,
		Usage:           comp.Usage,
		Duration:        elapsed,
		CapabilityCalls: comp.CapabilityCalls,
	}, nil
}

func (r *Runner) finish(run *Run, stage string, err error) {
	run.FinishedAt = r.now()
	name := ""
	if run.Pipeline != nil {
		name = run.Pipeline.Name()
	}
	if err != nil {
		run.Status = StatusFailed
		run.FailedStage = stage
		run.Err = err
	} else {
		run.Status = StatusSucceeded
	}
	r.metrics.ObserveRun(name, string(run.Status))
}

func (r *Runner) endSpan(span trace.Span, run *Run) {
	span.SetAttributes(attribute.String("pipeline.status", string(run.Status)))
	if run.Err != nil {
		span.RecordError(run.Err)
		span.SetStatus(codes.Error, run.Err.Error())
		return
	}
	span.SetStatus(codes.Ok, "")
}
