package engine

import (
	"errors"
	"fmt"
)

// ErrInsufficientData means fewer qualifying games than the configured
// minimum sample size. It is expected and non-fatal.
var ErrInsufficientData = errors.New("insufficient data")

// ErrNoValue means a floor/ceiling exists but no line clears the tolerance
// test. It is expected and non-fatal.
var ErrNoValue = errors.New("no value")

// InsufficientDataError carries the sample counts behind ErrInsufficientData.
type InsufficientDataError struct {
	Have int
	Need int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: %d games, need %d", e.Have, e.Need)
}

func (e *InsufficientDataError) Unwrap() error {
	return ErrInsufficientData
}

// ValidationError reports malformed input. Callers skip the entity and keep
// scanning.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
