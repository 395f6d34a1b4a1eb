package logger

import "context"

// Logger is the printf-style logger used across the pipeline.
// Every call takes the context so run-scoped fields follow the item being processed.
type Logger interface {
	Debug(ctx context.Context, msg string, args ...interface{})
	Info(ctx context.Context, msg string, args ...interface{})
	Warn(ctx context.Context, msg string, args ...interface{})
	Error(ctx context.Context, msg string, args ...interface{})
}
