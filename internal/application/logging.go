package application

import (
	"context"
	"errors"

	"github.com/example/advising-portal/internal/logging"
	"go.uber.org/zap"
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
		logger = defaultLogger(base)
	}

	pairs := []zap.Field{zap.String("service", serviceName)}
	if operation != "" {
		pairs = append(pairs, zap.String("operation", operation))
	}
	pairs = append(pairs, fields...)
	return logger.With(pairs...)
}

// logResult logs err at a level matching its kind. Client errors are not
// failures of the service and stay at info.
func logResult(logger *zap.Logger, err error, failMsg, okMsg string, fields ...zap.Field) {
	if err == nil {
		logger.Info(okMsg, fields...)
		return
	}
	fields = append(fields, zap.Error(err), zap.String("error_kind", ErrorKind(err)))
	if ErrorKind(err) == "unexpected" {
		logger.Error(failMsg, fields...)
		return
	}
	logger.Info(failMsg, fields...)
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
	}

	var (
		vErr     *ValidationError
		cErr     *ConflictError
		tErr     *InvalidTransitionError
		codeErr  *CheckInCodeMismatchError
		banErr   *BanLimitExceededError
		batchErr *PartialBatchError
	)
	switch {
	case errors.As(err, &batchErr):
		return "partial_batch"
	case errors.As(err, &vErr):
		return "validation"
	case errors.As(err, &cErr):
		return "conflict"
	case errors.As(err, &tErr):
		return "invalid_transition"
	case errors.As(err, &codeErr):
		return "check_in_code_mismatch"
	case errors.As(err, &banErr):
		return "ban_limit_exceeded"
	}

	return "unexpected"
}
