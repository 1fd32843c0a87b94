package application

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/example/room-booking/internal/logging"
)

func defaultLogger(logger *zap.Logger) *zap.Logger {
	if logger != nil {
		return logger
	}
	return zap.L()
}

func serviceLogger(ctx context.Context, base *zap.Logger, serviceName, operation string, fields ...zap.Field) *zap.Logger {
	logger := logging.FromContext(ctx)
	if logger == nil {
		logger = base
	}
	if logger == nil {
		logger = zap.L()
	}

	pairs := []zap.Field{zap.String("service", serviceName)}
	if operation != "" {
		pairs = append(pairs, zap.String("operation", operation))
	}
	pairs = append(pairs, fields...)
	return logger.With(pairs...)
}

// logFailure records a failed operation. Collaborator failures log at error
// level, domain refusals at warn.
func logFailure(logger *zap.Logger, message string, err error) {
	kind := ErrorKind(err)
	fields := []zap.Field{zap.Error(err), zap.String("error_kind", kind)}
	if kind == "internal" || kind == "unexpected" {
		logger.Error(message, fields...)
		return
	}
	logger.Warn(message, fields...)
}

// ErrorKind maps sentinel and typed errors to a stable logging label.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrCapacityExceeded):
		return "capacity_exceeded"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	}

	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return "validation"
	}

	var iErr *InternalError
	if errors.As(err, &iErr) {
		return "internal"
	}

	return "unexpected"
}
