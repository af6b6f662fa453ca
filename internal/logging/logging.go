// Package logging configures the structured logger shared by the server
// and CLI binaries.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New builds a logrus.Logger writing to stderr at the given level
// ("debug", "info", "warn", "error"; unrecognized values fall back to
// info). Use WithComponent to scope a component's log lines.
func New(level string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	logger.SetLevel(parsed)

	return logger
}

// WithComponent returns a field-scoped entry that stamps component on
// every log line it produces.
func WithComponent(logger *logrus.Logger, component string) *logrus.Entry {
	return logger.WithFields(logrus.Fields{"component": component})
}
