// Package logging configures the process-wide structured logger.
// All components log through logrus entries tagged with a "component" field
// so one process log can be filtered per subsystem.
package logging

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

var root = logrus.New()

// Configure sets the global log level and output format.
// format is "json" or "text"; level is any logrus level name ("info", "debug", ...).
// Unknown values fall back to text/info rather than failing startup.
func Configure(level, format string) {
	if strings.EqualFold(format, "json") {
		root.SetFormatter(&logrus.JSONFormatter{})
	} else {
		root.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	root.SetLevel(parsed)
	root.SetOutput(os.Stderr)
}

// Root returns the shared process logger.
func Root() *logrus.Logger {
	return root
}

// Named returns an entry tagged with the given component name.
func Named(component string) *logrus.Entry {
	entry := logrus.NewEntry(root)
	if component != "" {
		entry = entry.WithField("component", component)
	}
	return entry
}
