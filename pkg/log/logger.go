package log

import (
	"context"

	"github.com/smallbiznis/catalog/pkg/log/ctxlogger"
	"go.uber.org/zap"
)

// With enriches base with the metadata carried by ctx.
func With(ctx context.Context, base *zap.Logger) *zap.Logger {
	return ctxlogger.WithContext(ctx, base)
}
