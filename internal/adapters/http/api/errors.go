package api

import (
	"errors"
	"fmt"
	"net/http"

	service "github.com/akashca-pro/codex-problem-service-sub000/internal/app"
	"github.com/akashca-pro/codex-problem-service-sub000/internal/domain/leaderboard"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrBackpressure = errors.New("backpressure")
	ErrUnavailable  = errors.New("service unavailable")
)

// Error is an API failure tagged with the handler that produced it.
type Error struct {
	Op   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Kind != nil:
		return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
}

func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// NewKind returns an error of the given kind with no cause.
func NewKind(op string, kind error) error { return &Error{Op: op, Kind: kind} }

// Wrap tags err with op.
func Wrap(op string, err error) error { return &Error{Op: op, Err: err} }

// WrapKind tags err with op and kind.
func WrapKind(op string, kind, err error) error { return &Error{Op: op, Kind: kind, Err: err} }

// classify maps an error to an HTTP status and a response code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, leaderboard.ErrValidation),
		errors.Is(err, service.ErrInvalidSubmission):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, ErrBackpressure), errors.Is(err, service.ErrBackpressure):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, service.ErrResyncThrottled):
		return http.StatusTooManyRequests, "throttled"
	case errors.Is(err, ErrUnavailable),
		errors.Is(err, service.ErrNotStarted),
		errors.Is(err, service.ErrNoSource):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
