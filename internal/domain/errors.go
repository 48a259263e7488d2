package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Every failure returned by the room engine wraps exactly one
// of these so transports can map it to a status code.
var (
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrFailedPrecondition = errors.New("failed precondition")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrNotFound           = errors.New("not found")
	ErrResourceExhausted  = errors.New("resource exhausted")
	ErrAlreadyExists      = errors.New("already exists")
	ErrDeadlineExceeded   = errors.New("deadline exceeded")
	ErrInternal           = errors.New("internal error")
)

var kinds = []error{
	ErrUnauthenticated,
	ErrInvalidArgument,
	ErrFailedPrecondition,
	ErrPermissionDenied,
	ErrNotFound,
	ErrResourceExhausted,
	ErrAlreadyExists,
	ErrDeadlineExceeded,
	ErrInternal,
}

// KindOf returns the error kind err wraps, or nil if it wraps none.
func KindOf(err error) error {
	if err == nil {
		return nil
	}
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// StructuralError reports a stored room that violates the record shape.
type StructuralError struct {
	Field  string
	Reason string
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("malformed room: %s %s", e.Field, e.Reason)
}

func (e *StructuralError) Unwrap() error { return ErrInvalidArgument }

func (e *StructuralError) within(prefix string) *StructuralError {
	return &StructuralError{Field: prefix + "." + e.Field, Reason: e.Reason}
}

func structural(field, reason string) *StructuralError {
	return &StructuralError{Field: field, Reason: reason}
}

// PhaseMismatchError reports an operation attempted in the wrong phase.
type PhaseMismatchError struct {
	Allowed []Phase
	Actual  Phase
}

func (e *PhaseMismatchError) Error() string {
	names := make([]string, len(e.Allowed))
	for i, p := range e.Allowed {
		names[i] = p.String()
	}
	return fmt.Sprintf("room is %s, want %s", e.Actual, strings.Join(names, " or "))
}

func (e *PhaseMismatchError) Unwrap() error { return ErrFailedPrecondition }
