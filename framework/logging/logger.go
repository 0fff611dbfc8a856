package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// LevelEnv selects the log level.
const LevelEnv = "GO_BEANS_LOG_LEVEL"

// Logger is the structured logger used across the framework.
type Logger interface {
	Debug(args ...any)
	Info(args ...any)
	Warn(args ...any)
	Error(args ...any)
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	WithField(key string, value any) Logger
	WithFields(fields map[string]any) Logger
}

// logger wraps a logrus entry to implement Logger
type logger struct {
	*logrus.Entry
}

// NewLogger creates a text logger on stderr with the level taken from
// GO_BEANS_LOG_LEVEL.
func NewLogger() Logger {
	return New(os.Stderr, getLogLevel())
}

// New creates a logger writing to out at level.
func New(out io.Writer, level logrus.Level) Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05",
		DisableQuote:    true,
	})
	l.SetLevel(level)
	l.SetOutput(out)

	return &logger{Entry: logrus.NewEntry(l)}
}

// Discard returns a logger that drops everything.
func Discard() Logger {
	return New(io.Discard, logrus.PanicLevel)
}

// getLogLevel determines the log level from the environment
func getLogLevel() logrus.Level {
	switch strings.ToUpper(os.Getenv(LevelEnv)) {
	case "DEBUG":
		return logrus.DebugLevel
	case "WARN", "WARNING":
		return logrus.WarnLevel
	case "ERROR":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// WithField creates a new logger with a single field
func (l *logger) WithField(key string, value any) Logger {
	return &logger{Entry: l.Entry.WithField(key, value)}
}

// WithFields creates a new logger with multiple fields
func (l *logger) WithFields(fields map[string]any) Logger {
	return &logger{Entry: l.Entry.WithFields(logrus.Fields(fields))}
}
