package ledger

import (
	"errors"
	"fmt"
)

// ErrDeclined is the sentinel matched by errors.Is when a guarded mutation
// required user confirmation and the confirmation was refused. No state has
// been changed.
var ErrDeclined = errors.New("confirmation declined")

// DeclinedError carries the confirmation message of a refused guarded
// mutation, so callers can surface what the user was asked.
type DeclinedError struct {
	Message string
}

func (e *DeclinedError) Error() string { return "confirmation declined: " + e.Message }

func (e *DeclinedError) Is(target error) bool { return target == ErrDeclined }

func declined(message string) error { return &DeclinedError{Message: message} }

// ValidationError is a user-correctable input problem: a missing or
// non-positive field, a swap that exceeds holdings, a duplicate pair name.
// Nothing has been mutated when one is returned.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// Validationf builds a ValidationError from a format string.
func Validationf(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// StorageError wraps a failure of the underlying persistence layer. Callers
// must not assume any part of the failed operation is visible.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage: %s: %v", e.Op, e.Err) }

func (e *StorageError) Unwrap() error { return e.Err }

// IntegrityError marks a data inconsistency, such as an operation referencing
// a pair or trade that no longer exists.
type IntegrityError struct {
	Reason string
}

func (e *IntegrityError) Error() string { return e.Reason }

func integrityf(format string, args ...any) *IntegrityError {
	return &IntegrityError{Reason: fmt.Sprintf(format, args...)}
}
