package logging

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

type loggerKey struct{}

// ParseLevel maps the LOG_LEVEL names to logrus levels. Unknown names fall
// back to info.
func ParseLevel(name string) logrus.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "silent":
		return logrus.PanicLevel
	case "error":
		return logrus.ErrorLevel
	case "warn":
		return logrus.WarnLevel
	case "info":
		return logrus.InfoLevel
	case "debug":
		return logrus.DebugLevel
	default:
		return logrus.InfoLevel
	}
}

// NewLogger returns a stderr logger; format is "text" or "json".
func NewLogger(level logrus.Level, format string) *logrus.Logger {
	return newLogger(os.Stderr, level, format)
}

func newLogger(w io.Writer, level logrus.Level, format string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(w)
	logger.SetLevel(level)
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}
	return logger
}

func WithLogger(ctx context.Context, logger *logrus.Entry) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext returns the logger stored in ctx, or nil.
func FromContext(ctx context.Context) *logrus.Entry {
	if ctx == nil {
		return nil
	}
	switch typed := ctx.Value(loggerKey{}).(type) {
	case *logrus.Entry:
		return typed
	case *logrus.Logger:
		return logrus.NewEntry(typed)
	default:
		return nil
	}
}
