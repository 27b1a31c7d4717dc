package ctxlogger

import (
	"context"
	"sync/atomic"

	"github.com/smallbiznis/catalog/pkg/telemetry/correlation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type operationKey struct{}

var serviceName atomic.Pointer[string]

// SetServiceName configures the service name added to every log entry.
func SetServiceName(name string) {
	serviceName.Store(&name)
}

// ContextWithOperation annotates the context with the catalog operation being served.
func ContextWithOperation(ctx context.Context, operation string) context.Context {
	if operation == "" {
		return ctx
	}
	return context.WithValue(ctx, operationKey{}, operation)
}

func Operation(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	operation, _ := ctx.Value(operationKey{}).(string)
	return operation
}

// FromContext enriches the global logger.
func FromContext(ctx context.Context) *zap.Logger {
	return WithContext(ctx, zap.L())
}

func WithContext(ctx context.Context, base *zap.Logger) *zap.Logger {
	if ctx == nil || base == nil {
		return base
	}
	return base.With(Fields(ctx)...)
}

// Fields returns the call scoped fields carried by ctx. Values that are not
// set are left out rather than logged empty.
func Fields(ctx context.Context) []zap.Field {
	name := "unknown"
	if ptr := serviceName.Load(); ptr != nil {
		name = *ptr
	}
	fields := []zap.Field{zap.String("service", name)}

	if id := correlation.FromContext(ctx); id != "" {
		fields = append(fields, zap.String(correlation.LogField, id))
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}
	if operation := Operation(ctx); operation != "" {
		fields = append(fields, zap.String("operation", operation))
	}
	return fields
}
