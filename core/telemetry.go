package core

import "context"

// Span represents a unit of work in a distributed trace
type Span interface {
	End()
	SetAttribute(key string, value interface{})
	RecordError(err error)
}

// Telemetry provides tracing and metrics for terminal operations.
// Implementations must be safe for concurrent use.
type Telemetry interface {
	// StartSpan starts a new span as a child of the context's span
	StartSpan(ctx context.Context, name string) (context.Context, Span)

	// RecordMetric records a metric value with optional labels
	RecordMetric(name string, value float64, labels map[string]string)

	// Shutdown flushes and stops the provider
	Shutdown(ctx context.Context) error
}

// NoOpTelemetry discards all spans and metrics
type NoOpTelemetry struct{}

func (t *NoOpTelemetry) StartSpan(ctx context.Context, name string) (context.Context, Span) {
	return ctx, &NoOpSpan{}
}

func (t *NoOpTelemetry) RecordMetric(name string, value float64, labels map[string]string) {}

func (t *NoOpTelemetry) Shutdown(ctx context.Context) error { return nil }

// NoOpSpan is a span that does nothing
type NoOpSpan struct{}

func (s *NoOpSpan) End()                                      {}
func (s *NoOpSpan) SetAttribute(key string, value interface{}) {}
func (s *NoOpSpan) RecordError(err error)                      {}
