// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging builds the zerolog logger shared by weaver's components.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/localagentweaver/weaver/internal/config"
)

// Logger is a configured logger plus the file it may own.
type Logger struct {
	zerolog.Logger
	file *os.File
}

// Close releases the log file, if any.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// New creates a logger from config. verbose forces debug level.
// Logs go to stderr unless cfg.File is set; stdout stays reserved for
// command output.
func New(cfg config.LogConfig, verbose bool) (*Logger, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	if verbose && level > zerolog.DebugLevel {
		level = zerolog.DebugLevel
	}

	var (
		out  io.Writer = os.Stderr
		file *os.File
		tty  = term.IsTerminal(int(os.Stderr.Fd()))
	)
	if cfg.File != "" {
		file, err = os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		out = file
		tty = false
	}

	return &Logger{Logger: build(out, cfg.Format, tty, level), file: file}, nil
}

// NewWriter creates a logger writing to w; used by tests and the TUI.
func NewWriter(w io.Writer, format string, level zerolog.Level) zerolog.Logger {
	return build(w, format, false, level)
}

func build(out io.Writer, format string, tty bool, level zerolog.Level) zerolog.Logger {
	switch strings.ToLower(format) {
	case "console":
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen, NoColor: !tty}
	case "json":
	default:
		if tty {
			out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
		}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// Component returns a child logger tagged with a component name.
func Component(base zerolog.Logger, name string) zerolog.Logger {
	return base.With().Str("component", name).Logger()
}

// TraceDuration logs start and end of an operation at trace level.
// Usage: defer logging.TraceDuration(logger, "docs.upload")()
func TraceDuration(logger *zerolog.Logger, name string) func() {
	start := time.Now()
	logger.Trace().Str("op", name).Msg("start")
	return func() {
		logger.Trace().Str("op", name).Dur("duration", time.Since(start)).Msg("finish")
	}
}

// Redact shortens a secret to a recognisable preview.
func Redact(s string) string {
	if len(s) <= 8 {
		return "***"
	}
	return s[:4] + "..." + s[len(s)-2:]
}
