package app

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/heartmarshall/zengin-sync/internal/config"
)

// ServiceName tags every log line.
const ServiceName = "zengin-sync"

// redactedKeys are attribute keys whose values never reach the log sink.
var redactedKeys = map[string]bool{
	"authorization":  true,
	"bot_token":      true,
	"dsn":            true,
	"secret":         true,
	"signing_secret": true,
	"token":          true,
}

// NewLogger builds the process logger and installs it as slog's default.
// "json" suits the Lambda and container sinks; "text" adds source
// locations for local runs. Output goes to stderr.
func NewLogger(cfg config.LogConfig) *slog.Logger {
	logger := newLogger(os.Stderr, cfg)
	slog.SetDefault(logger)
	return logger
}

func newLogger(w io.Writer, cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:       parseLevel(cfg.Level),
		AddSource:   strings.EqualFold(cfg.Format, "text"),
		ReplaceAttr: redact,
	}

	var handler slog.Handler = slog.NewTextHandler(w, opts)
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler).With(
		slog.String("service", ServiceName),
		slog.String("version", Version),
	)
}

func redact(_ []string, a slog.Attr) slog.Attr {
	if redactedKeys[strings.ToLower(a.Key)] {
		return slog.String(a.Key, "[redacted]")
	}
	return a
}

func parseLevel(s string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
