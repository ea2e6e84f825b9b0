// Package logging builds the CLI's stderr logger.
package logging

import (
	"io"
	"strings"

	"github.com/charmbracelet/log"
)

// Level names accepted by core.log_level and the verbosity flags.
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// New returns a logger writing to w at the named level. Unknown levels fall
// back to warn.
func New(w io.Writer, level string) *log.Logger {
	lvl, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		lvl = log.WarnLevel
	}
	return log.NewWithOptions(w, log.Options{
		Level:           lvl,
		ReportTimestamp: false,
	})
}

// Discard returns a logger that drops everything.
func Discard() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.FatalLevel})
}

// LevelFromFlags maps the verbosity switches onto a level. Explicit flags win
// over the configured level.
func LevelFromFlags(debug, verbose, onlyErrors bool, configured string) string {
	switch {
	case debug:
		return LevelDebug
	case verbose:
		return LevelInfo
	case onlyErrors:
		return LevelError
	case strings.TrimSpace(configured) != "":
		return configured
	default:
		return LevelWarn
	}
}
