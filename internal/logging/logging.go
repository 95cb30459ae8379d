package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

// Options controls where log lines go.
type Options struct {
	// Level is a name understood by ParseLevel. When empty, LOG_LEVEL is
	// consulted and then Default.
	Level   string
	Default logrus.Level

	// File, when set, receives every level through an lfshook hook.
	File string

	// Console disables stderr output when false; the call view owns the
	// terminal while a call is running.
	Console bool
}

// Init builds the process logger and installs it as the logrus standard
// logger.
func Init(opts Options) *logrus.Logger {
	level := ParseLevel(opts.Level, opts.Default)
	if opts.Level == "" {
		if l, ok := os.LookupEnv("LOG_LEVEL"); ok {
			level = ParseLevel(l, opts.Default)
		}
	}

	logger := logrus.StandardLogger()
	logger.SetLevel(level)
	logger.SetFormatter(&prefixed.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05.000",
	})

	if opts.Console {
		logger.SetOutput(os.Stderr)
	} else {
		logger.SetOutput(io.Discard)
	}

	if opts.File != "" {
		paths := lfshook.PathMap{}
		for _, l := range logrus.AllLevels {
			paths[l] = opts.File
		}
		logger.AddHook(lfshook.NewHook(paths, &logrus.TextFormatter{FullTimestamp: true}))
	}

	return logger
}

// ParseLevel maps user-facing names to logrus levels.
func ParseLevel(name string, fallback logrus.Level) logrus.Level {
	switch strings.ToLower(name) {
	case "dev", "development", "debug":
		return logrus.DebugLevel
	case "trace":
		return logrus.TraceLevel
	case "info":
		return logrus.InfoLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error", "production", "prod":
		return logrus.ErrorLevel
	default:
		return fallback
	}
}
