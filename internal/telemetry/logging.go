// Package telemetry provides the ambient logging, tracing, metrics, and
// retry helpers used by the manager, store, and schedule packages and by
// cmd/schedulerd.
package telemetry

import (
	"log/slog"
	"os"
	"strings"
)

// InitLogging configures a global slog logger. JSON if LITHIUM_JSON_LOG is
// set to 1/true/json, text otherwise.
func InitLogging(service string) *slog.Logger {
	mode := strings.ToLower(os.Getenv("LITHIUM_JSON_LOG"))
	var handler slog.Handler
	opts := &slog.HandlerOptions{AddSource: false, Level: levelFromEnv()}
	if mode == "1" || mode == "true" || mode == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler).With("service", service)
	slog.SetDefault(logger)
	return logger
}

func levelFromEnv() slog.Leveler {
	switch strings.ToLower(os.Getenv("LITHIUM_LOG_LEVEL")) {
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
