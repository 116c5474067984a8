package infrastructure

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/google/uuid"
)

// GenerateTraceID creates a new unique trace ID using UUID v4
func GenerateTraceID() string {
	return uuid.New().String()
}

// EnsureTraceID ensures the context has a trace ID, generating one if needed
func EnsureTraceID(ctx context.Context) context.Context {
	if GetTraceID(ctx) == "" {
		return WithTraceID(ctx, GenerateTraceID())
	}
	return ctx
}

// WithComponent creates a logger with a component field
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	return logger.With("component", component)
}

// WithError creates a logger with an error field
func WithError(logger *slog.Logger, err error) *slog.Logger {
	if err == nil {
		return logger
	}
	return logger.With("error", err.Error())
}

// WithWorkbook tags a logger with the workbook file name and, when set, the sheet.
func WithWorkbook(logger *slog.Logger, path, sheet string) *slog.Logger {
	logger = logger.With("workbook", filepath.Base(path))
	if sheet != "" {
		logger = logger.With("sheet", sheet)
	}
	return logger
}
