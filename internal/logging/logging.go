package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"groucho/internal/eventbus"
)

// Options controls Setup.
type Options struct {
	Level   string
	Verbose bool
	// File, when set, receives log output in addition to stderr.
	File string
	// Quiet drops stderr output; used while the TUI owns the terminal.
	Quiet bool
}

// Setup configures the logrus standard logger and returns a closer for the
// log file, if one was opened.
func Setup(opts Options) (io.Closer, error) {
	logger := logrus.StandardLogger()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	level := ParseLevel(opts.Level)
	if opts.Verbose {
		level = logrus.DebugLevel
	}
	logger.SetLevel(level)

	var writers []io.Writer
	if !opts.Quiet {
		writers = append(writers, os.Stderr)
	}

	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		writers = append(writers, f)
		closer = f
	}

	switch len(writers) {
	case 0:
		logger.SetOutput(io.Discard)
	case 1:
		logger.SetOutput(writers[0])
	default:
		logger.SetOutput(io.MultiWriter(writers...))
	}
	return closer, nil
}

// ParseLevel maps the configuration log levels onto logrus levels. Unknown
// values fall back to info.
func ParseLevel(level string) logrus.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return logrus.DebugLevel
	case "WARNING", "WARN":
		return logrus.WarnLevel
	case "ERROR":
		return logrus.ErrorLevel
	case "CRITICAL", "FATAL":
		return logrus.FatalLevel
	default:
		return logrus.InfoLevel
	}
}

// For returns the entry a package logs through.
func For(process string) *logrus.Entry {
	return logrus.WithField("process", process)
}

// BusHook reports event bus diagnostics through entry.
func BusHook(entry *logrus.Entry) eventbus.ErrorHook {
	return func(err error) {
		var lerr *eventbus.ListenerError
		if errors.As(err, &lerr) {
			fields := logrus.Fields{
				"event":    lerr.Event,
				"key":      lerr.Key,
				"listener": lerr.ListenerID,
			}
			if lerr.Wildcard() {
				fields["wildcard"] = true
			}
			entry.WithFields(fields).Error(lerr.Error())
			if len(lerr.Stack) > 0 {
				entry.WithFields(fields).Debug(string(lerr.Stack))
			}
			return
		}

		var uerr *eventbus.UsageError
		if errors.As(err, &uerr) {
			entry.WithFields(logrus.Fields{"op": uerr.Op, "event": uerr.Event}).Warn(uerr.Error())
			return
		}
		entry.Error(err.Error())
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
