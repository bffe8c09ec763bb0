package completion

import (
	"errors"
	"fmt"
)

// Validation failures; always local, never reach the network
var (
	ErrIncompleteExpense     = &ValidationError{Reason: "incomplete expense row"}
	ErrMissingAttachmentName = &ValidationError{Reason: "missing attachment name"}
	ErrInvalidAmount         = &ValidationError{Reason: "invalid expense amount"}
	ErrUnknownExpenseField   = &ValidationError{Reason: "unknown expense field"}
)

var (
	ErrExpenseNotFound      = errors.New("expense row not found")
	ErrAttachmentNotFound   = errors.New("attachment not found")
	ErrConfirmationRequired = errors.New("removing a stored attachment requires confirmation")
	ErrSessionClosed        = errors.New("session is not editable")
)

// ValidationError blocks composition before any network call
type ValidationError struct {
	Reason string
	ID     string
}

func (e *ValidationError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("validation failed: %s (%s)", e.Reason, e.ID)
	}
	return "validation failed: " + e.Reason
}

// Is matches validation errors by reason so row-specific errors
// still compare equal to the package sentinels.
func (e *ValidationError) Is(target error) bool {
	t, ok := target.(*ValidationError)
	return ok && t.Reason == e.Reason
}

// NotFoundError reports a fetch that yielded nothing
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// TransportError wraps a failed provider call
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func transportError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &TransportError{Op: op, Err: err}
}
