package leaderboard

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the engine is an *Error whose Kind is
// one of these, so callers can branch with errors.Is.
var (
	ErrValidation = errors.New("invalid argument")
	ErrStore      = errors.New("store failure")
	ErrSource     = errors.New("source failure")
)

// Error carries the failing operation, its kind and the underlying cause.
type Error struct {
	Op   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("leaderboard.%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("leaderboard.%s: %v: %v", e.Op, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func invalid(op, msg string) error {
	return &Error{Op: op, Kind: ErrValidation, Err: errors.New(msg)}
}

func storeErr(op string, err error) error {
	return &Error{Op: op, Kind: ErrStore, Err: err}
}

func sourceErr(op string, err error) error {
	return &Error{Op: op, Kind: ErrSource, Err: err}
}
