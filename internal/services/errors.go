package services

import "errors"

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrStepOutOfOrder  = errors.New("step submitted out of order")
)

// ValidationError carries the message shown to the visitor when a step is incomplete.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Message
}
