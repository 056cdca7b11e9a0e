package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithContextRoundTrip(t *testing.T) {
	logger := zap.NewNop()
	ctx := WithContext(context.Background(), logger)

	assert.Same(t, logger, FromContext(ctx))
}

func TestFromContextFallsBackToNop(t *testing.T) {
	logger := FromContext(context.Background())

	require.NotNil(t, logger)
	// Must be safe to use
	logger.Info("no logger attached")
}

func TestWithRequestIDEnrichesLoggerAndContext(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	ctx, enriched := WithRequestID(context.Background(), base, "req-42")
	enriched.Info("handled")

	assert.Equal(t, "req-42", GetRequestID(ctx))
	entries := recorded.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "req-42", entries[0].ContextMap()["request_id"])
}

func TestWithTenantIDEnrichesLoggerAndContext(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	ctx, enriched := WithTenantID(context.Background(), base, "tenant-7")
	enriched.Info("scoped")

	assert.Equal(t, "tenant-7", GetTenantID(ctx))
	entries := recorded.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "tenant-7", entries[0].ContextMap()["tenant_id"])
}

func TestWithCorrelationIDEnrichesLoggerAndContext(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	ctx, enriched := WithCorrelationID(context.Background(), base, "corr-1")
	enriched.Info("sync step")

	assert.Equal(t, "corr-1", GetCorrelationID(ctx))
	entries := recorded.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "corr-1", entries[0].ContextMap()["correlation_id"])
}

func TestGettersReturnEmptyWhenUnset(t *testing.T) {
	ctx := context.Background()

	assert.Empty(t, GetRequestID(ctx))
	assert.Empty(t, GetTenantID(ctx))
	assert.Empty(t, GetCorrelationID(ctx))
}

func TestEnrichmentChains(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	ctx, log := WithRequestID(context.Background(), base, "req-1")
	ctx, log = WithTenantID(ctx, log, "tenant-1")
	ctx, log = WithCorrelationID(ctx, log, "corr-1")
	log.Info("chained")

	assert.Equal(t, "req-1", GetRequestID(ctx))
	assert.Equal(t, "tenant-1", GetTenantID(ctx))
	assert.Equal(t, "corr-1", GetCorrelationID(ctx))

	entries := recorded.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "tenant-1", fields["tenant_id"])
	assert.Equal(t, "corr-1", fields["correlation_id"])
}

func TestWithTraceContextWithoutSpanIsPassthrough(t *testing.T) {
	logger := zap.NewNop()

	assert.Same(t, logger, WithTraceContext(context.Background(), logger))
}

func TestWithTraceContextAddsTraceFields(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	spanCtx := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: trace.TraceID{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10},
		SpanID:  trace.SpanID{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08},
	})
	ctx := trace.ContextWithSpanContext(context.Background(), spanCtx)

	WithTraceContext(ctx, base).Info("traced")

	entries := recorded.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, spanCtx.TraceID().String(), fields["trace_id"])
	assert.Equal(t, spanCtx.SpanID().String(), fields["span_id"])
}
