// Package logging builds the process logger.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

type Options struct {
	// Level is a logrus level name; unknown values fall back to info.
	Level string
	// Format is "json" or "text".
	Format string
	Output io.Writer
}

// New returns a configured logger. LOG_LEVEL and LOG_FORMAT override the
// options when set.
func New(opts Options) *logrus.Logger {
	log := logrus.New()

	level := opts.Level
	if v, ok := os.LookupEnv("LOG_LEVEL"); ok {
		level = v
	}
	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)

	format := opts.Format
	if v, ok := os.LookupEnv("LOG_FORMAT"); ok {
		format = v
	}
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	if opts.Output != nil {
		log.SetOutput(opts.Output)
	} else {
		log.SetOutput(os.Stdout)
	}
	return log
}

// Discard returns a logger that drops everything.
func Discard() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}
