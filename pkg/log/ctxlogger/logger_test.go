package ctxlogger

import (
	"context"
	"testing"

	"github.com/smallbiznis/catalog/pkg/telemetry/correlation"
	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithContextAddsCorrelationAndOperation(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	SetServiceName("catalog")

	ctx := correlation.WithID(context.Background(), "cid-42")
	ctx = ContextWithOperation(ctx, "catalog.tree")
	WithContext(ctx, zap.New(core)).Info("hello")

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		fields := entries[0].ContextMap()
		assert.Equal(t, "cid-42", fields["correlation_id"])
		assert.Equal(t, "catalog.tree", fields["operation"])
		assert.Equal(t, "catalog", fields["service"])
		assert.NotContains(t, fields, "trace_id")
	}
}

func TestFieldsIncludeSpanContext(t *testing.T) {
	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	core, logs := observer.New(zap.InfoLevel)
	WithContext(ctx, zap.New(core)).Info("hello")

	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", fields["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", fields["span_id"])
	assert.NotContains(t, fields, "correlation_id")
}
