package correlation

import (
	"context"
	"os"
	"strings"

	"github.com/oklog/ulid/v2"
)

// Correlation ids tie together the log lines and spans of one catalog call.
// They are ULIDs, so ids sort by the time the call started.

const (
	LogField      = "correlation_id"
	SpanAttribute = "catalog.correlation_id"

	// EnvVar lets a parent process hand its id to the CLI.
	EnvVar = "CATALOG_CORRELATION_ID"
)

type contextKey struct{}

func FromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(contextKey{}).(string)
	return id
}

func WithID(ctx context.Context, id string) context.Context {
	id = strings.TrimSpace(id)
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, contextKey{}, id)
}

func New() string {
	return ulid.Make().String()
}

// Ensure returns ctx carrying a correlation id, minting one when absent.
func Ensure(ctx context.Context) (context.Context, string) {
	if id := FromContext(ctx); id != "" {
		return ctx, id
	}
	id := New()
	return WithID(ctx, id), id
}

// Parse accepts a caller supplied id. Only well formed ULIDs are honoured.
func Parse(raw string) (string, bool) {
	id, err := ulid.ParseStrict(strings.TrimSpace(raw))
	if err != nil {
		return "", false
	}
	return id.String(), true
}

// FromEnv seeds ctx with the id found in EnvVar, if any.
func FromEnv(ctx context.Context) context.Context {
	if id, ok := Parse(os.Getenv(EnvVar)); ok {
		return WithID(ctx, id)
	}
	return ctx
}
