package log

import (
	"context"
	"errors"
	"log/slog"

	"ledger/internal/core"
)

// Outcome logs the result of a ledger operation. Success logs at Info,
// rejected input or a missing record at Warn and anything else at Error.
func (l *Logger) Outcome(ctx context.Context, msg string, op string, fields LogFields, err error) {
	if fields == nil {
		fields = NewFields()
	}
	fields = fields.WithOperation(op).WithError(err)

	level := slog.LevelInfo
	switch {
	case err == nil:
	case errors.Is(err, core.ErrValidation), errors.Is(err, core.ErrNotFound):
		level = slog.LevelWarn
	default:
		level = slog.LevelError
	}

	args := append([]any{FieldComponent, l.component}, fields.ToSlice()...)
	l.Logger.Log(ctx, level, msg, args...)
}
