package telemetry

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietpos/terminal/core"
)

func TestDisabledTelemetryIsNoOp(t *testing.T) {
	provider, err := NewProvider(core.TelemetryConfig{Enabled: false})
	require.NoError(t, err)
	assert.IsType(t, &core.NoOpTelemetry{}, provider)

	// Safe to use without initialization
	ctx, span := provider.StartSpan(context.Background(), "checkout.submit")
	assert.NotNil(t, ctx)
	span.SetAttribute("order_id", "ord-1")
	span.End()
	provider.RecordMetric(MetricPollAttempts, 1, nil)
	assert.NoError(t, provider.Shutdown(context.Background()))
}

func TestStdoutExporterEmitsSpans(t *testing.T) {
	var buf bytes.Buffer
	provider, err := NewProvider(core.TelemetryConfig{
		Enabled:     true,
		Exporter:    "stdout",
		ServiceName: "posterm-test",
	}, WithStdoutWriter(&buf))
	require.NoError(t, err)

	_, span := provider.StartSpan(context.Background(), "payment.poll")
	span.SetAttribute("order_id", "ord-1")
	span.SetAttribute("attempt", 3)
	span.End()

	require.NoError(t, provider.Shutdown(context.Background()))
	assert.Contains(t, buf.String(), "payment.poll")
	assert.Contains(t, buf.String(), "order_id")
}

func TestUnknownExporterRejected(t *testing.T) {
	_, err := NewProvider(core.TelemetryConfig{
		Enabled:  true,
		Exporter: "carrier-pigeon",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrInvalidConfiguration)
}

func TestRecordMetric(t *testing.T) {
	var buf bytes.Buffer
	provider, err := NewProvider(core.TelemetryConfig{
		Enabled:     true,
		Exporter:    "stdout",
		ServiceName: "posterm-test",
	}, WithStdoutWriter(&buf))
	require.NoError(t, err)
	defer provider.Shutdown(context.Background())

	// Counters are created lazily and reused
	provider.RecordMetric(MetricPollAttempts, 1, map[string]string{"order_id": "ord-1"})
	provider.RecordMetric(MetricPollAttempts, 1, map[string]string{"order_id": "ord-1"})
	provider.RecordMetric(MetricOrdersCreated, 1, nil)
}

func TestNewTracedHTTPClient(t *testing.T) {
	client := NewTracedHTTPClient(nil)
	require.NotNil(t, client)
	assert.NotNil(t, client.Transport)

	base := NewTracedHTTPClient(client)
	assert.NotSame(t, client, base)
}
