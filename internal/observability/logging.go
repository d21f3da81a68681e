// Package observability provides structured logging and telemetry setup.
package observability

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LogConfig controls the structured logger.
type LogConfig struct {
	Level  string
	Format string
	// File, when set, receives a copy of every record with rotation.
	File string
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("observability: unknown log level %q (must be debug, info, warn or error)", level)
	}
}

// NewLogger builds a logger writing to w, and to a rotating file when cfg.File
// is set. The returned closer releases the file and is never nil.
func NewLogger(cfg LogConfig, w io.Writer, command string) (*slog.Logger, io.Closer, error) {
	lvl, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}
	if w == nil {
		w = os.Stderr
	}

	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		rotating := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    50,
			MaxAge:     7,
			MaxBackups: 1,
			LocalTime:  false,
		}
		w = io.MultiWriter(w, rotating)
		closer = rotating
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	case "", "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		return nil, nil, fmt.Errorf("observability: unknown log format %q (must be json or text)", cfg.Format)
	}

	if command == "" {
		command = "edgeadmin"
	}
	return slog.New(handler).With("app", "edgeadmin", "command", command), closer, nil
}

// InitLogger builds a logger with NewLogger and installs it as the slog default.
func InitLogger(cfg LogConfig, w io.Writer, command string) (*slog.Logger, io.Closer, error) {
	logger, closer, err := NewLogger(cfg, w, command)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)
	return logger, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
