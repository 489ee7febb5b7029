package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/veritas-labs/veritas"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	level := parseLogLevel(os.Getenv("VERITAS_LOG_LEVEL"))
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app, err := veritas.New(veritas.WithLogger(logger), veritas.WithVersion(version))
	if err != nil {
		logger.Error("veritas: startup failed", "error", err)
		return 1
	}

	logger.Info("veritas starting", "version", version)
	if err := app.Run(ctx); err != nil {
		logger.Error("veritas: fatal error", "error", err)
		return 1
	}
	logger.Info("veritas stopped")
	return 0
}

func parseLogLevel(raw string) slog.Level {
	switch raw {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
