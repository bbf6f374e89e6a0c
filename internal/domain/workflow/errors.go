package workflow

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownTransition is returned for a transition name outside the dispatch table
	ErrUnknownTransition = errors.New("unknown transition")

	// ErrNotFound is returned when the engine has no such process or task
	ErrNotFound = errors.New("not found")

	// ErrValidation is wrapped by every ValidationError
	ErrValidation = errors.New("validation failed")

	// ErrExportEmpty is returned when an export window matches no process
	ErrExportEmpty = errors.New("no data to export")

	// ErrDownloadKey is returned for an expired, forged or foreign download key
	ErrDownloadKey = errors.New("invalid download key")
)

// UpstreamError reports a failed engine call.
type UpstreamError struct {
	Op      string
	Message string
	Err     error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// ValidationError reports a rejected request parameter.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NewValidationError builds a ValidationError for a field.
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
