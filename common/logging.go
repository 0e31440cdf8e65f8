package common

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// LogEnvVar enables log output when set to a non-empty level name.
const LogEnvVar = "NODE_LOG"

type LoggingOpts struct {
	Debug   bool
	JSON    bool
	Service string
	Version string

	// Disabled routes all output to io.Discard.
	Disabled bool

	// Level overrides the Debug switch when non-nil.
	Level *slog.Level
}

func LoggerJSON(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		AddSource: level == slog.LevelDebug,
		Level:     level,
	}))
}

func LoggerText(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		AddSource: level == slog.LevelDebug,
		Level:     level,
	}))
}

func SetupLogger(opts *LoggingOpts) (log *slog.Logger) {
	if opts.Disabled {
		return slog.New(slog.DiscardHandler)
	}

	logLevel := slog.LevelInfo
	if opts.Debug {
		logLevel = slog.LevelDebug
	}
	if opts.Level != nil {
		logLevel = *opts.Level
	}

	if opts.JSON {
		log = LoggerJSON(os.Stderr, logLevel)
	} else {
		log = LoggerText(os.Stderr, logLevel)
	}

	if opts.Service != "" {
		log = log.With("service", opts.Service)
	}
	if opts.Version != "" {
		log = log.With("version", opts.Version)
	}
	return log
}

// LevelFromEnv interprets the value of LogEnvVar or the node log_level
// setting. Empty and "off" keep logging off; an unrecognised value enables
// info.
func LevelFromEnv(value string) (level slog.Level, enabled bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return slog.LevelInfo, false
	}
	switch strings.ToLower(value) {
	case "off", "none":
		return slog.LevelInfo, false
	case "debug", "trace":
		return slog.LevelDebug, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, true
	}
}
