package infrastructure

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// EnsureTraceID returns ctx unchanged when it already carries a trace ID
// (request header or active span), otherwise tags it with a fresh UUID so CLI
// runs still correlate their log lines.
func EnsureTraceID(ctx context.Context) context.Context {
	if GetTraceID(ctx) != "" {
		return ctx
	}
	return WithTraceID(ctx, uuid.NewString())
}

// WithComponent tags every record from logger with the owning component.
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	return logger.With(slog.String("component", component))
}

// WithError attaches err as the "error" attribute. A nil err is a no-op.
func WithError(logger *slog.Logger, err error) *slog.Logger {
	if err == nil {
		return logger
	}
	return logger.With(slog.String("error", err.Error()))
}
