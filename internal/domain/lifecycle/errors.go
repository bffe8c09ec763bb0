package lifecycle

import "errors"

var (
	// ErrInvalidTransition is returned when a state transition is not allowed
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrGuardFailed is returned when every guarded transition rejects the trigger
	ErrGuardFailed = errors.New("guard condition failed")
)
