// Package logging builds the application's logrus logger.
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// New returns a logger writing to stdout. Production output is JSON.
func New(level string, production bool) *logrus.Logger {
	return NewWithWriter(os.Stdout, level, production)
}

func NewWithWriter(w io.Writer, level string, production bool) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(w)

	if production {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
		logger.WithField("level", level).Warn("unknown log level, using info")
	}
	logger.SetLevel(lvl)
	return logger
}

// Discard returns a logger that drops everything, for tests
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
