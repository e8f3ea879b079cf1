package logging

import (
	"context"

	"go.uber.org/zap"
)

type loggerCtxKey struct{}

// WithLogger stores a logger in the context, typically a request-scoped
// child carrying correlation fields.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey{}, logger)
}

// FromContext retrieves the logger stored with WithLogger, or a nop
// logger when none is present.
func FromContext(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(loggerCtxKey{}).(*zap.Logger); ok && l != nil {
		return l
	}
	return zap.NewNop()
}
