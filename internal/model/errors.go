package model

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sentinel errors shared by the data-access services. Callers classify
// failures with errors.Is and decide the transport mapping themselves.
var (
	// ErrNotFound reports that a required row is absent.
	ErrNotFound = errors.New("record not found")

	// ErrUnauthorized reports that the acting user lacks rights for the
	// requested mutation.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalid reports a semantically forbidden operation, such as the
	// owner being granted a membership.
	ErrInvalid = errors.New("invalid operation")

	// ErrConflict reports a uniqueness violation, such as a duplicate
	// membership or namespace.
	ErrConflict = errors.New("conflict")
)

// ValidationError carries structured per-field errors for malformed input.
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, msg))
	}
	sort.Strings(parts)
	return "validation failed: " + strings.Join(parts, "; ")
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}
