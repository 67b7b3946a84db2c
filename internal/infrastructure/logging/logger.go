package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/nerrad567/tuya-fusion-core/internal/infrastructure/config"
)

// Logger wraps slog.Logger with the service's default fields.
//
// Thread Safety: all methods are safe for concurrent use.
type Logger struct {
	*slog.Logger
}

// New builds a Logger from the logging section of config.yaml: output
// destination (stdout/stderr), format (json for production, text for
// development), level filter, and the service/version default attrs
// every entry carries.
func New(cfg config.LoggingConfig, version string) *Logger {
	handler := newHandler(cfg).WithAttrs([]slog.Attr{
		slog.String("service", "tuyafusion"),
		slog.String("version", version),
	})

	return &Logger{Logger: slog.New(handler)}
}

func newHandler(cfg config.LoggingConfig) slog.Handler {
	var output io.Writer = os.Stdout
	if strings.EqualFold(cfg.Output, "stderr") {
		output = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	if strings.EqualFold(cfg.Format, "text") {
		return slog.NewTextHandler(output, opts)
	}
	return slog.NewJSONHandler(output, opts)
}

// parseLevel maps a config string to a slog.Level, defaulting to info
// for anything unrecognised.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With returns a child Logger carrying additional default attributes:
//
//	pushLog := logger.With("source", "openapi")
//	pushLog.Info("connected") // includes source=openapi
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Default returns a stdout JSON logger at info level, for use during
// startup before the config file is loaded.
func Default() *Logger {
	return New(config.LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}, "dev")
}
