// Package logger builds the process-wide zerolog.Logger, grounded on the
// teacher gateway's internal/logger/logger.go: console or JSON output,
// optional diode-backed async writer so a slow sink (redirected stdout,
// journald) never blocks the hot path, and a caller field for debugging.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/diode"
)

// Config controls level, format and sync/async output.
type Config struct {
	Level  string // debug, info, warn, error
	Format string // console, json
	Async  bool   // wrap the writer in a diode ring buffer
	Caller bool   // attach the call site to every event
}

// DefaultConfig matches the teacher's defaults, with JSON as the production format.
func DefaultConfig() Config {
	return Config{Level: "info", Format: "json", Async: false, Caller: false}
}

// New builds a zerolog.Logger writing to stdout per cfg.
func New(cfg Config) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	var output io.Writer = os.Stdout
	if cfg.Async {
		output = diode.NewWriter(output, 1000, 10*time.Millisecond, func(missed int) {
			fmt.Fprintf(os.Stderr, "logger dropped %d messages\n", missed)
		})
	}

	var logger zerolog.Logger
	switch strings.ToLower(cfg.Format) {
	case "console":
		logger = zerolog.New(zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339})
	case "json":
		logger = zerolog.New(output)
	default:
		return zerolog.Logger{}, fmt.Errorf("unsupported log format: %s", cfg.Format)
	}

	logger = logger.With().Timestamp().Logger().Level(level)
	if cfg.Caller {
		logger = logger.With().Caller().Logger()
	}
	return logger, nil
}
