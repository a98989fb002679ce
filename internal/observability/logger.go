package observability

import (
	"context"
	"io"
	"log/slog"

	"github.com/clipstats/clipstats/internal/config"
)

type ctxKey string

const executionIDKey ctxKey = "execution_id"

func NewLogger(cfg config.Config, writer io.Writer) *slog.Logger {
	if writer == nil {
		writer = io.Discard
	}
	var handler slog.Handler
	if cfg.Observability.LogJSON {
		handler = slog.NewJSONHandler(writer, &slog.HandlerOptions{Level: cfg.Observability.LogLevel})
	} else {
		handler = slog.NewTextHandler(writer, &slog.HandlerOptions{Level: cfg.Observability.LogLevel})
	}
	return slog.New(handler).With(
		slog.String("service", cfg.Service.Name),
		slog.String("profile", string(cfg.Profile)),
		slog.String("backend", string(cfg.Query.Backend)),
	)
}

func ContextWithExecutionID(ctx context.Context, executionID string) context.Context {
	return context.WithValue(ctx, executionIDKey, executionID)
}

func ExecutionIDFromContext(ctx context.Context) string {
	value, ok := ctx.Value(executionIDKey).(string)
	if !ok {
		return ""
	}
	return value
}
