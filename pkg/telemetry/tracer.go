// Package telemetry configures OpenTelemetry tracing.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// Resource attribute keys describing the analysis defaults of the process.
const (
	DefaultPipelineKey = attribute.Key("socflow.pipeline.default")
	DefaultModelKey    = attribute.Key("socflow.model.default")
)

// Options describes the traced process.
type Options struct {
	ServiceName string
	Version     string
	// Pipeline and Model are the configured defaults; runs may override them.
	Pipeline string
	Model    string
	// Writer receives exported spans. Nil means stderr.
	Writer io.Writer
	Logger *slog.Logger
}

// InitTracer installs a global tracer provider that writes spans to
// opts.Writer. The returned function flushes and stops the provider.
func InitTracer(opts Options) (func(context.Context) error, error) {
	if opts.ServiceName == "" {
		return nil, fmt.Errorf("service name is required")
	}
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("create span exporter: %w", err)
	}

	attrs := []attribute.KeyValue{semconv.ServiceName(opts.ServiceName)}
	if opts.Version != "" {
		attrs = append(attrs, semconv.ServiceVersion(opts.Version))
	}
	if opts.Pipeline != "" {
		attrs = append(attrs, DefaultPipelineKey.String(opts.Pipeline))
	}
	if opts.Model != "" {
		attrs = append(attrs, DefaultModelKey.String(opts.Model))
	}
	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes("", attrs...))
	if err != nil {
		return nil, fmt.Errorf("build resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	logger.Info("tracing enabled",
		slog.String("service", opts.ServiceName),
		slog.String("pipeline", opts.Pipeline),
		slog.String("model", opts.Model),
	)
	return tp.Shutdown, nil
}
