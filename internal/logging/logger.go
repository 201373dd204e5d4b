package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Init configures the global slog logger.
// In production (ENVIRONMENT=production) it uses JSON output for log aggregation.
// Otherwise it uses the human-readable text handler.
func Init() {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))

	var handler slog.Handler
	if env == "production" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
	}

	slog.SetDefault(slog.New(handler))
}

// WithSession returns a logger with session context fields attached.
// Use this for all logging within a viewer session's lifecycle.
func WithSession(sessionID string) *slog.Logger {
	return slog.With("session_id", sessionID)
}

// WithConversion returns a logger scoped to one container conversion.
func WithConversion(containerPath, recordingPath string) *slog.Logger {
	return slog.With(
		"container", containerPath,
		"recording", recordingPath,
	)
}
