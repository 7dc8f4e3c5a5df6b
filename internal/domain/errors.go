package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUserRequired is returned when a request carries no user id.
	ErrUserRequired = errors.New("user id required")
	// ErrSessionNotFound is returned when a user has no engine registered.
	ErrSessionNotFound = errors.New("game session not found")
	// ErrSessionRunning is returned when starting a session that is already running.
	ErrSessionRunning = errors.New("game session already running")
	// ErrSessionNotRunning is returned when acting on a session outside the running phase.
	ErrSessionNotRunning = errors.New("game session not running")
	// ErrPlayerElsewhere is returned when another instance already runs the user's engine.
	ErrPlayerElsewhere = errors.New("user is playing on another instance")
	// ErrInvalidLimit indicates a negative or malformed limit parameter.
	ErrInvalidLimit = errors.New("invalid limit")
)

// PersistenceError reports a store read or write that did not happen.
// It is never fatal: in-memory session state has already advanced.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Persistence wraps err as a PersistenceError, or returns nil.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Err: err}
}
