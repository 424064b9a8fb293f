// Package logger builds the process logger. Components receive a
// logrus.FieldLogger at construction; nothing in this repository logs
// through package-level state.
package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New returns a configured logrus logger. Unknown level strings fall back
// to info. When jsonFormat is false the text formatter with full
// timestamps is used.
func New(level string, jsonFormat bool) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	log.SetLevel(parsed)

	if jsonFormat {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}
	return log
}

// Discard returns a logger that drops everything. Intended for tests.
func Discard() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(discardWriter{})
	return log
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }
