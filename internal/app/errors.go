package app

import (
	"errors"
	"fmt"
)

var (
	ErrNoPlacement          = errors.New("no location selected on the map")
	ErrNotFound             = errors.New("not found")
	ErrEventFull            = errors.New("event is full")
	ErrOrganizerCannotLeave = errors.New("organizer cannot leave their own event")
	ErrUnknownCommand       = errors.New("unknown command")
)

// ValidationError is a rejected form or command field. Reducers never run
// on input that failed validation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
