package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/clipstats/clipstats/internal/cli/clipstatsctl"
	"github.com/clipstats/clipstats/internal/config"
	"github.com/clipstats/clipstats/internal/observability"
)

func main() {
	cfg, err := config.LoadFromEnv("clipstatsctl")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(2)
	}
	logger := observability.NewLogger(cfg, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := clipstatsctl.Run(ctx, os.Args[1:], clipstatsctl.Options{
		Config: cfg,
		Logger: logger,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	})
	stop()
	os.Exit(code)
}
