package core

import (
	"errors"
	"fmt"
)

// Error families. Callers branch on these with errors.Is; the concrete
// errors below wrap one of them.
var (
	// ErrValidation marks user input rejected before any state changed.
	ErrValidation = errors.New("validation error")
	// ErrStorage marks an I/O failure of a persisted file or database.
	ErrStorage = errors.New("storage error")
	// ErrIntegrity marks data that is inconsistent with what the caller expected.
	ErrIntegrity = errors.New("data integrity error")
	// ErrMigration marks a failed schema upgrade. The pre-migration data is intact.
	ErrMigration = errors.New("migration error")
)

var (
	ErrInvalidAmount = &ValidationError{Field: "amount", Message: "amount must be a positive number"}
	ErrEmptyCategory = &ValidationError{Field: "category", Message: "category is required"}
	ErrInvalidRange  = &ValidationError{Field: "range", Message: "start date is after end date"}

	ErrNotFound     = fmt.Errorf("%w: record not found", ErrIntegrity)
	ErrMalformedRow = fmt.Errorf("%w: malformed row", ErrIntegrity)
)

// ValidationError describes a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// StorageError wraps an I/O failure with the operation and path involved.
func StorageError(op, path string, err error) error {
	return fmt.Errorf("%w: %s %s: %w", ErrStorage, op, path, err)
}

// MalformedRowError reports a persisted row that could not be decoded.
func MalformedRowError(row int, field string, err error) error {
	return fmt.Errorf("%w: row %d, %s: %v", ErrMalformedRow, row, field, err)
}

// Error type labels, shared with structured logging.
const (
	ErrorTypeValidation = "validation_error"
	ErrorTypeStorage    = "storage_error"
	ErrorTypeIntegrity  = "integrity_error"
	ErrorTypeMigration  = "migration_error"
	ErrorTypeNotFound   = "not_found_error"
	ErrorTypeInternal   = "internal_error"
)

// ErrorType classifies err into one of the ErrorType labels.
func ErrorType(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return ErrorTypeValidation
	case errors.Is(err, ErrMigration):
		return ErrorTypeMigration
	case errors.Is(err, ErrNotFound):
		return ErrorTypeNotFound
	case errors.Is(err, ErrIntegrity):
		return ErrorTypeIntegrity
	case errors.Is(err, ErrStorage):
		return ErrorTypeStorage
	default:
		return ErrorTypeInternal
	}
}
