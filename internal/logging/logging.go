// Package logging centralizes the module's structured logging so every
// component tags its lines instead of calling log.Printf directly.
package logging

import (
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	once sync.Once
	base *logrus.Logger
)

// root returns the shared root logger, creating it with sane defaults on
// first use. Tests can redirect output via SetOutput.
func root() *logrus.Logger {
	once.Do(func() {
		base = logrus.New()
		base.SetOutput(os.Stderr)
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		base.SetLevel(logrus.InfoLevel)
	})
	return base
}

// SetOutput redirects the shared logger's output, mainly for tests.
func SetOutput(w io.Writer) {
	root().SetOutput(w)
}

// SetVerbose toggles debug-level logging module-wide.
func SetVerbose(v bool) {
	if v {
		root().SetLevel(logrus.DebugLevel)
	} else {
		root().SetLevel(logrus.InfoLevel)
	}
}

// For returns a component-scoped logger. The sensor client, cleaner,
// inference engine and pipeline call this once at construction time and
// keep the returned entry; the feature extractor and config watcher call
// it where they log. The sliding window does not log.
func For(component string) *logrus.Entry {
	return root().WithField("component", component)
}
