package util

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

func parseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

// NewLogger returns a JSON logger on stdout; unknown levels fall back to info.
func NewLogger(level string) zerolog.Logger {
	return zerolog.New(os.Stdout).With().Timestamp().Logger().Level(parseLevel(level))
}

// NewConsoleLogger writes human-readable lines, used for the buy/sell trail printed by the CLIs.
func NewConsoleLogger(level string, w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stdout
	}
	out := zerolog.ConsoleWriter{Out: w, TimeFormat: time.DateTime, NoColor: true}
	return zerolog.New(out).With().Timestamp().Logger().Level(parseLevel(level))
}
