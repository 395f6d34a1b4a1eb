package logger

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

type ctxKey struct{}

type implLogger struct {
	entry *logrus.Entry
}

// New creates a Logger writing to stdout at the given level ("debug", "info", "warn", "error").
// Unknown levels fall back to info. format "json" switches to logrus.JSONFormatter.
func New(level, format string) Logger {
	return NewWithOutput(os.Stdout, level, format)
}

// NewWithOutput is New with an explicit sink.
func NewWithOutput(w io.Writer, level, format string) Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(parseLevel(level))

	if strings.ToLower(format) == "json" {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	return &implLogger{entry: logrus.NewEntry(l)}
}

// WithRunID returns a context whose log lines carry run_id.
func WithRunID(ctx context.Context, runID string) context.Context {
	return WithField(ctx, "run_id", runID)
}

// WithField returns a context that adds key=value to every log line written with it.
func WithField(ctx context.Context, key string, value interface{}) context.Context {
	fields := logrus.Fields{}
	if parent, ok := ctx.Value(ctxKey{}).(logrus.Fields); ok {
		for k, v := range parent {
			fields[k] = v
		}
	}
	fields[key] = value
	return context.WithValue(ctx, ctxKey{}, fields)
}

func parseLevel(level string) logrus.Level {
	lvl, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

func (l *implLogger) withContext(ctx context.Context) *logrus.Entry {
	if ctx == nil {
		return l.entry
	}
	if fields, ok := ctx.Value(ctxKey{}).(logrus.Fields); ok {
		return l.entry.WithFields(fields)
	}
	return l.entry
}

func (l *implLogger) Debug(ctx context.Context, msg string, args ...interface{}) {
	l.withContext(ctx).Debugf(msg, args...)
}

func (l *implLogger) Info(ctx context.Context, msg string, args ...interface{}) {
	l.withContext(ctx).Infof(msg, args...)
}

func (l *implLogger) Warn(ctx context.Context, msg string, args ...interface{}) {
	l.withContext(ctx).Warnf(msg, args...)
}

func (l *implLogger) Error(ctx context.Context, msg string, args ...interface{}) {
	l.withContext(ctx).Errorf(msg, args...)
}

// Discard returns a Logger that drops everything. Used by tests and dry runs of library code.
func Discard() Logger {
	return NewWithOutput(io.Discard, "error", "text")
}
