// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package logging provides leveled key-value logging with per-component
// prefixes. All snifrag components log through this package rather than
// the standard library logger.
package logging

import (
	"io"
	"os"

	charm "github.com/charmbracelet/log"
)

// Level controls the minimum severity that is emitted.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) toCharm() charm.Level {
	switch l {
	case LevelDebug:
		return charm.DebugLevel
	case LevelWarn:
		return charm.WarnLevel
	case LevelError:
		return charm.ErrorLevel
	default:
		return charm.InfoLevel
	}
}

// Config controls logger construction.
type Config struct {
	Level     Level
	Output    io.Writer
	Component string
	// Timestamps is on for daemons and off for one-shot CLI output.
	Timestamps bool
}

// DefaultConfig returns the configuration used when none is supplied.
func DefaultConfig() Config {
	return Config{
		Level:      LevelInfo,
		Output:     os.Stderr,
		Timestamps: true,
	}
}

// Logger emits structured key-value log records.
type Logger struct {
	l *charm.Logger
}

// New creates a logger from cfg.
func New(cfg Config) *Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	l := charm.NewWithOptions(out, charm.Options{
		ReportTimestamp: cfg.Timestamps,
		Level:           cfg.Level.toCharm(),
		Prefix:          cfg.Component,
	})
	return &Logger{l: l}
}

// Default returns a logger with the default configuration.
func Default() *Logger {
	return New(DefaultConfig())
}

// WithComponent returns a copy of the logger tagged with a component prefix.
func (x *Logger) WithComponent(name string) *Logger {
	return &Logger{l: x.l.WithPrefix(name)}
}

// WithError returns a copy of the logger carrying an error field.
func (x *Logger) WithError(err error) *Logger {
	return &Logger{l: x.l.With("error", err)}
}

// WithFields returns a copy of the logger carrying the given fields.
func (x *Logger) WithFields(fields map[string]any) *Logger {
	kv := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		kv = append(kv, k, v)
	}
	return &Logger{l: x.l.With(kv...)}
}

func (x *Logger) Debug(msg string, keyvals ...any) { x.l.Debug(msg, keyvals...) }
func (x *Logger) Info(msg string, keyvals ...any)  { x.l.Info(msg, keyvals...) }
func (x *Logger) Warn(msg string, keyvals ...any)  { x.l.Warn(msg, keyvals...) }
func (x *Logger) Error(msg string, keyvals ...any) { x.l.Error(msg, keyvals...) }
