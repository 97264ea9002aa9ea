package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// Config controls the agent's log output.
type Config struct {
	Level        string `koanf:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Format       string `koanf:"format" validate:"omitempty,oneof=json console"`
	Output       string `koanf:"output"` // stdout, stderr or a file path
	EnableSource bool   `koanf:"enable_source"`
	TimeFormat   string `koanf:"time_format"`
	NoColor      bool   `koanf:"no_color"`
}

type Logger struct {
	*slog.Logger
	closer io.Closer
}

// New builds a logger writing to the configured output. A file output is
// opened in append mode and released by Close.
func New(cfg Config) (*Logger, error) {
	var (
		writer io.Writer
		closer io.Closer
	)
	switch cfg.Output {
	case "stdout", "":
		writer = os.Stdout
	case "stderr":
		writer = os.Stderr
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		writer, closer = f, f
	}
	l := NewWithWriter(cfg, writer)
	l.closer = closer
	return l, nil
}

// NewWithWriter builds a logger on an arbitrary writer.
func NewWithWriter(cfg Config, w io.Writer) *Logger {
	level := parseLevel(cfg.Level)

	var handler slog.Handler
	switch cfg.Format {
	case "console", "":
		timeFormat := cfg.TimeFormat
		if timeFormat == "" {
			timeFormat = time.DateTime
		}
		handler = tint.NewHandler(w, &tint.Options{
			Level:      level,
			AddSource:  cfg.EnableSource,
			TimeFormat: timeFormat,
			NoColor:    cfg.NoColor,
		})
	default:
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level:     level,
			AddSource: cfg.EnableSource,
		})
	}
	return &Logger{Logger: slog.New(handler)}
}

// NewDefault is the console logger used before configuration is loaded.
func NewDefault() *Logger {
	return NewWithWriter(Config{Level: "info", TimeFormat: time.TimeOnly}, os.Stdout)
}

func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

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

// WithGroup creates a new logger with a group namespace
func (l *Logger) WithGroup(name string) *Logger {
	return &Logger{Logger: l.Logger.WithGroup(name), closer: l.closer}
}

// With creates a new logger with additional key-value pairs
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...), closer: l.closer}
}

// Component tags every record with the emitting component.
func (l *Logger) Component(name string) *slog.Logger {
	return l.Logger.With(slog.String("component", name))
}
