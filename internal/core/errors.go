package core

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthenticated is returned when no caller identity is present.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrNotFound is returned when an entity or its parent does not exist.
	ErrNotFound = errors.New("not found")
	// ErrForbidden is returned when the caller does not own the entity.
	ErrForbidden = errors.New("unauthorized")
	// ErrConflict is returned when an instance already exists for the period.
	ErrConflict = errors.New("instance already exists for period")

	ErrInvalidPeriod = errors.New("invalid period")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidDate   = errors.New("invalid date")
)

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}
