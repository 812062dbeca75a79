package service

import "fmt"

// PreconditionError means generation input was insufficient to proceed; no
// partial state is created.
type PreconditionError struct {
	Reason string
}

func (e *PreconditionError) Error() string {
	return e.Reason
}

func preconditionErrorf(format string, args ...any) error {
	return &PreconditionError{Reason: fmt.Sprintf(format, args...)}
}

// StateError means an operation was attempted against an order in the wrong
// lifecycle state, or against contents that violate a submit gate.
type StateError struct {
	Reason string
}

func (e *StateError) Error() string {
	return e.Reason
}

func stateErrorf(format string, args ...any) error {
	return &StateError{Reason: fmt.Sprintf(format, args...)}
}
