package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

// Config holds logger configuration
type Config struct {
	Level        string `yaml:"level"`         // debug, info, warn, error
	Format       string `yaml:"format"`        // json, console
	Output       string `yaml:"output"`        // stdout, stderr, or file path
	EnableSource bool   `yaml:"enable_source"` // Enable source code location
	TimeFormat   string `yaml:"time_format"`   // Time format for console output
	NoColor      bool   `yaml:"no_color"`

	// writer overrides Output; used by tests
	writer io.Writer
}

// New creates a *slog.Logger from config. The returned closer releases the
// log file when Output is a path and is a no-op otherwise.
func New(config *Config) (*slog.Logger, io.Closer, error) {
	level := ParseLevel(config.Level)

	writer, closer, err := openOutput(config)
	if err != nil {
		return nil, nil, err
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: config.EnableSource,
	}

	var handler slog.Handler
	switch config.Format {
	case "json":
		handler = slog.NewJSONHandler(writer, opts)
	case "console", "":
		timeFormat := config.TimeFormat
		if timeFormat == "" {
			timeFormat = time.TimeOnly
		}
		handler = tint.NewHandler(writer, &tint.Options{
			Level:      level,
			AddSource:  config.EnableSource,
			TimeFormat: timeFormat,
			NoColor:    config.NoColor,
		})
	default:
		closer.Close()
		return nil, nil, fmt.Errorf("unknown log format %q", config.Format)
	}

	return slog.New(handler), closer, nil
}

// NewDefault creates a console logger at info level
func NewDefault() *slog.Logger {
	return slog.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level:      slog.LevelInfo,
		TimeFormat: time.TimeOnly,
	}))
}

// Discard returns a logger that drops everything. Handy in tests.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// ParseLevel converts a level name to slog.Level, defaulting to info
func ParseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func openOutput(config *Config) (io.Writer, io.Closer, error) {
	if config.writer != nil {
		return config.writer, nopCloser{}, nil
	}
	switch config.Output {
	case "stderr":
		return os.Stderr, nopCloser{}, nil
	case "stdout", "":
		return os.Stdout, nopCloser{}, nil
	default:
		f, err := os.OpenFile(config.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		return f, f, nil
	}
}
