package log

import (
	"context"
	"log/slog"
)

// ContextKey type for context keys
type ContextKey string

const (
	// LoggerContextKey is the context key for the logger
	LoggerContextKey ContextKey = "logger"
)

// NewContext returns a copy of ctx carrying logger
func NewContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, LoggerContextKey, logger)
}

// FromContext extracts a logger from the context
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(LoggerContextKey).(*Logger); ok {
		return logger
	}
	return &Logger{
		Logger:    slog.Default(),
		component: "unknown",
	}
}

// StructuredLogger provides domain-level structured logging helpers
type StructuredLogger struct {
	logger *Logger
}

// NewStructuredLogger creates a new structured logger
func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{
		logger: logger,
	}
}

// LogTransactionSubmitted logs a transaction handed to the remote store
func (sl *StructuredLogger) LogTransactionSubmitted(ctx context.Context, uid, key, desc string, amountCents int64, kind, category string) {
	fields := NewFields().
		WithUser(uid).
		WithTransaction(key, desc, amountCents, kind, category).
		WithOperation(OpWrite)

	sl.logger.InfoContext(ctx, "Transaction submitted", fields.ToSlice()...)
}

// LogSnapshotApplied logs a decoded snapshot
func (sl *StructuredLogger) LogSnapshotApplied(ctx context.Context, uid, path string, size, dropped int) {
	fields := NewFields().
		WithUser(uid).
		WithSnapshot(path, size, dropped).
		WithOperation(OpSnapshot)

	sl.logger.DebugContext(ctx, "Snapshot applied", fields.ToSlice()...)
}

// LogError logs an error with structured context
func (sl *StructuredLogger) LogError(ctx context.Context, msg string, err error, operation string, fields LogFields) {
	if fields == nil {
		fields = NewFields()
	}
	allFields := fields.
		WithError(err).
		WithOperation(operation)

	sl.logger.ErrorContext(ctx, msg, allFields.ToSlice()...)
}
