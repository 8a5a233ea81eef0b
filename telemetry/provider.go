// Package telemetry wires the terminal into OpenTelemetry. Traces can
// be exported over OTLP/gRPC to a collector or pretty-printed to
// stdout for development.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/vietpos/terminal/core"
)

// Metric names recorded by the terminal
const (
	MetricPollAttempts   = "pos.payment.poll_attempts"
	MetricOrdersCreated  = "pos.orders.created"
	MetricPaymentsSettled = "pos.payments.settled"
)

// Provider implements core.Telemetry with OpenTelemetry
type Provider struct {
	tracer        trace.Tracer
	meter         metric.Meter
	traceProvider *sdktrace.TracerProvider

	mu       sync.Mutex
	counters map[string]metric.Float64Counter
}

// ProviderOption configures a Provider
type ProviderOption func(*providerOptions)

type providerOptions struct {
	stdoutWriter io.Writer
}

// WithStdoutWriter redirects the stdout exporter's output. Used in tests.
func WithStdoutWriter(w io.Writer) ProviderOption {
	return func(o *providerOptions) {
		o.stdoutWriter = w
	}
}

// NewProvider creates a telemetry provider from configuration. When
// telemetry is disabled it returns a no-op implementation so callers
// never need a nil check.
func NewProvider(cfg core.TelemetryConfig, opts ...ProviderOption) (core.Telemetry, error) {
	if !cfg.Enabled {
		return &core.NoOpTelemetry{}, nil
	}

	var po providerOptions
	for _, opt := range opts {
		opt(&po)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(cfg.ServiceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	exporter, err := newExporter(cfg, po)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return &Provider{
		tracer:        tp.Tracer(cfg.ServiceName),
		meter:         otel.Meter(cfg.ServiceName),
		traceProvider: tp,
		counters:      make(map[string]metric.Float64Counter),
	}, nil
}

func newExporter(cfg core.TelemetryConfig, po providerOptions) (sdktrace.SpanExporter, error) {
	switch cfg.Exporter {
	case "stdout":
		stdoutOpts := []stdouttrace.Option{stdouttrace.WithPrettyPrint()}
		if po.stdoutWriter != nil {
			stdoutOpts = append(stdoutOpts, stdouttrace.WithWriter(po.stdoutWriter))
		}
		return stdouttrace.New(stdoutOpts...)
	case "otlp", "":
		return otlptracegrpc.New(context.Background(),
			otlptracegrpc.WithEndpoint(cfg.Endpoint),
			otlptracegrpc.WithInsecure(),
		)
	default:
		return nil, fmt.Errorf("%w: unknown telemetry exporter %q", core.ErrInvalidConfiguration, cfg.Exporter)
	}
}

// StartSpan starts a new span
func (p *Provider) StartSpan(ctx context.Context, name string) (context.Context, core.Span) {
	ctx, span := p.tracer.Start(ctx, name)
	return ctx, &otelSpan{span: span}
}

// RecordMetric adds to the named counter, creating it on first use
func (p *Provider) RecordMetric(name string, value float64, labels map[string]string) {
	counter, err := p.counter(name)
	if err != nil {
		return
	}

	attrs := make([]attribute.KeyValue, 0, len(labels))
	for k, v := range labels {
		attrs = append(attrs, attribute.String(k, v))
	}
	counter.Add(context.Background(), value, metric.WithAttributes(attrs...))
}

func (p *Provider) counter(name string) (metric.Float64Counter, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.counters[name]; ok {
		return c, nil
	}
	c, err := p.meter.Float64Counter(name)
	if err != nil {
		return nil, err
	}
	p.counters[name] = c
	return c, nil
}

// Shutdown flushes pending spans and stops the provider
func (p *Provider) Shutdown(ctx context.Context) error {
	return p.traceProvider.Shutdown(ctx)
}

// otelSpan adapts an OpenTelemetry span to core.Span
type otelSpan struct {
	span trace.Span
}

func (s *otelSpan) End() {
	s.span.End()
}

func (s *otelSpan) SetAttribute(key string, value interface{}) {
	switch v := value.(type) {
	case string:
		s.span.SetAttributes(attribute.String(key, v))
	case int:
		s.span.SetAttributes(attribute.Int(key, v))
	case int64:
		s.span.SetAttributes(attribute.Int64(key, v))
	case float64:
		s.span.SetAttributes(attribute.Float64(key, v))
	case bool:
		s.span.SetAttributes(attribute.Bool(key, v))
	default:
		s.span.SetAttributes(attribute.String(key, fmt.Sprintf("%v", v)))
	}
}

func (s *otelSpan) RecordError(err error) {
	if err != nil {
		s.span.RecordError(err)
	}
}
