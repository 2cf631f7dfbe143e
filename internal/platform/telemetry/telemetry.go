// Package telemetry sets up OpenTelemetry tracing. Finished spans are written
// to the service log, there is no collector.
package telemetry

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Config holds the tracing settings.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	SampleRate     float64 // 0.0 to 1.0
	Enabled        bool
}

func (c *Config) applyDefaults() {
	if c.ServiceName == "" {
		c.ServiceName = "flare"
	}
	if c.SampleRate <= 0 || c.SampleRate > 1 {
		c.SampleRate = 1
	}
}

// Provider owns the tracer provider installed as the global one.
type Provider struct {
	cfg Config
	tp  *sdktrace.TracerProvider
}

// NewProvider creates a tracer provider that logs finished spans at debug
// level and installs it, together with a W3C trace context propagator, as
// the global provider. A disabled config installs nothing.
func NewProvider(cfg Config, logger zerolog.Logger) *Provider {
	cfg.applyDefaults()
	if !cfg.Enabled {
		return &Provider{cfg: cfg}
	}
	return newProvider(cfg, sdktrace.WithSyncer(&logExporter{logger: logger}))
}

func newProvider(cfg Config, opts ...sdktrace.TracerProviderOption) *Provider {
	res := resource.NewSchemaless(
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.ServiceVersion),
		attribute.String("deployment.environment", cfg.Environment),
	)
	opts = append(opts,
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRate))),
	)
	tp := sdktrace.NewTracerProvider(opts...)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return &Provider{cfg: cfg, tp: tp}
}

// Shutdown flushes pending spans.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tp == nil {
		return nil
	}
	if err := p.tp.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown tracer provider: %w", err)
	}
	return nil
}

type logExporter struct {
	logger zerolog.Logger
}

func (e *logExporter) ExportSpans(_ context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, s := range spans {
		evt := e.logger.Debug().
			Str("trace_id", s.SpanContext().TraceID().String()).
			Str("span_id", s.SpanContext().SpanID().String()).
			Str("span", s.Name()).
			Dur("duration", s.EndTime().Sub(s.StartTime())).
			Str("status", s.Status().Code.String())
		if s.Parent().IsValid() {
			evt = evt.Str("parent_span_id", s.Parent().SpanID().String())
		}
		for _, kv := range s.Attributes() {
			evt = evt.Str(string(kv.Key), kv.Value.Emit())
		}
		evt.Msg("span")
	}
	return nil
}

func (e *logExporter) Shutdown(context.Context) error {
	return nil
}
