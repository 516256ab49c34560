package observability

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func TestNewTracer_Disabled(t *testing.T) {
	t.Parallel()

	tracer, err := NewTracer(context.Background(), TracerConfig{})
	require.NoError(t, err)

	_, span := tracer.StartSpan(context.Background(), "noop")
	assert.False(t, span.SpanContext().IsValid())
	span.End()

	assert.NoError(t, tracer.Shutdown(context.Background()))
}

func TestNewTracer_EnabledWithoutExporter(t *testing.T) {
	tracer, err := NewTracer(context.Background(), TracerConfig{Enabled: true, SamplingRate: 1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = tracer.Shutdown(context.Background()) })

	_, span := tracer.StartSpan(context.Background(), "sampled")
	defer span.End()

	assert.True(t, span.SpanContext().IsValid())
	assert.True(t, span.SpanContext().IsSampled())
}

func TestSamplerFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		rate float64
		want string
	}{
		{rate: 1, want: "AlwaysOnSampler"},
		{rate: 2, want: "AlwaysOnSampler"},
		{rate: 0, want: "AlwaysOffSampler"},
		{rate: -1, want: "AlwaysOffSampler"},
		{rate: 0.5, want: "TraceIDRatioBased{0.5}"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, samplerFor(tt.rate).Description())
	}
}

func TestTraceContextPropagation(t *testing.T) {
	t.Parallel()

	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	tracer := NewTracerWithProvider(provider, "test")
	t.Cleanup(func() { _ = tracer.Shutdown(context.Background()) })

	ctx, span := tracer.StartSpan(context.Background(), "outbound")
	h := http.Header{}
	InjectTraceContext(ctx, h)
	span.End()

	require.NotEmpty(t, h.Get("traceparent"))

	extracted := trace.SpanContextFromContext(ExtractTraceContext(context.Background(), h))
	assert.Equal(t, span.SpanContext().TraceID(), extracted.TraceID())
	assert.Equal(t, span.SpanContext().SpanID(), extracted.SpanID())
	assert.True(t, extracted.IsRemote())

	require.Len(t, recorder.Ended(), 1)
	assert.Equal(t, "outbound", recorder.Ended()[0].Name())
}

func TestNopTracer(t *testing.T) {
	t.Parallel()

	tracer := NopTracer()
	_, span := tracer.StartSpan(context.Background(), "noop")
	span.End()

	assert.NoError(t, tracer.Shutdown(context.Background()))
}
