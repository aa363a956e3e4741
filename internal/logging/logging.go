// Package logging configures the process-wide slog logger. The handler
// is backed by charmbracelet/log for readable local/dev output, the
// same pairing atlanticdynamic-firelynx uses in internal/logging.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

// Setup configures the default slog logger for the given level
// ("debug", "info", "warn", "error") and service name, and returns a
// logger pre-bound with a "service" field.
func Setup(serviceName, level string) *slog.Logger {
	handler := newHandler(level, os.Stderr)
	slog.SetDefault(slog.New(handler))
	return slog.Default().With("service", serviceName)
}

func newHandler(level string, w io.Writer) slog.Handler {
	lvl := log.InfoLevel
	reportTimestamp := true

	switch strings.ToLower(level) {
	case "debug":
		lvl = log.DebugLevel
	case "warn", "warning":
		lvl = log.WarnLevel
	case "error":
		lvl = log.ErrorLevel
	case "info", "":
		lvl = log.InfoLevel
	}

	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: reportTimestamp,
		Level:           lvl,
	})
}
