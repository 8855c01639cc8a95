package service

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by the store when a referenced entity does not exist.
var ErrNotFound = errors.New("not found")

// ValidationError reports a rejected mutation: bad amount, bad or missing
// date, or a missing referenced entity. It is surfaced to the caller and
// never retried internally.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

func validationErr(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
