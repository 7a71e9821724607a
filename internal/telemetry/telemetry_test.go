package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/deployd/internal/config"
)

func TestNew_Disabled(t *testing.T) {
	tel, err := New(context.Background(), config.ObservabilityConfig{})
	require.NoError(t, err)
	require.NotNil(t, tel)

	assert.NotNil(t, tel.Tracer("test"))
	assert.NotNil(t, tel.Meter("test"))

	health := tel.Health()
	assert.True(t, health.Healthy)
	assert.False(t, health.Degraded)
}

func TestNew_EnabledRequiresServiceName(t *testing.T) {
	_, err := New(context.Background(), config.ObservabilityConfig{
		EnableTelemetry: true,
		Endpoint:        "localhost:4317",
	})
	assert.Error(t, err)
}

func TestNew_EnabledRequiresEndpoint(t *testing.T) {
	_, err := New(context.Background(), config.ObservabilityConfig{
		EnableTelemetry: true,
		ServiceName:     "deployd",
	})
	assert.Error(t, err)
}

func TestTelemetry_NilSafe(t *testing.T) {
	var tel *Telemetry
	assert.NotPanics(t, func() {
		_ = tel.Tracer("test")
		_ = tel.Meter("test")
		_ = tel.Health()
		_ = tel.Shutdown(context.Background())
		_ = tel.ForceFlush(context.Background())
	})
	assert.True(t, tel.Health().Degraded)
}

func TestTelemetry_ShutdownMarksUnhealthy(t *testing.T) {
	tel, err := New(context.Background(), config.ObservabilityConfig{})
	require.NoError(t, err)

	require.NoError(t, tel.Shutdown(context.Background()))
	assert.False(t, tel.Health().Healthy)
}

func TestTestTelemetry_RecordsSpans(t *testing.T) {
	tt := NewTestTelemetry()

	tracer := tt.Tracer("test")
	_, span := tracer.Start(context.Background(), "pipeline.execute")
	span.End()
	_, span2 := tracer.Start(context.Background(), "gateway.invoke")
	span2.End()

	assert.Len(t, tt.Spans(), 2)
	tt.AssertSpanExists(t, "pipeline.execute")
	tt.AssertSpanExists(t, "gateway.invoke")
	assert.Nil(t, tt.SpanByName("missing"))
}

func TestTestTelemetry_RecordsMetrics(t *testing.T) {
	tt := NewTestTelemetry()

	meter := tt.Meter("test")
	counter, err := meter.Int64Counter("invocations.total")
	require.NoError(t, err)
	counter.Add(context.Background(), 3)

	require.NoError(t, tt.MetricReader.ForceFlush(context.Background()))
	assert.NotEmpty(t, tt.MetricReader.Metrics())
}
