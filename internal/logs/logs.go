package logs

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/hackgods/appointment-lifecycle/internal/config"
)

// New builds the process logger. Output goes to stdout and, when LOG_FILE is
// set, to a rotated file as well.
func New(cfg config.Config) *slog.Logger {
	return NewWithWriter(cfg, os.Stdout)
}

func NewWithWriter(cfg config.Config, stdout io.Writer) *slog.Logger {
	isDev := strings.EqualFold(cfg.Env, "dev") || strings.EqualFold(cfg.Env, "development")

	writers := []io.Writer{stdout}
	if cfg.LogFile != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    50,
			MaxBackups: 5,
			MaxAge:     14,
			Compress:   true,
		})
	}

	w := io.MultiWriter(writers...)
	opts := &slog.HandlerOptions{
		Level:     parseLevel(cfg.LogLevel),
		AddSource: isDev,
	}

	var h slog.Handler
	if strings.EqualFold(cfg.LogFormat, "json") || (cfg.LogFormat == "" && !isDev) {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}

	return slog.New(h).With(
		slog.String("service", cfg.Service),
		slog.String("env", cfg.Env),
	)
}

// Discard is used by tests that don't care about log output.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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
