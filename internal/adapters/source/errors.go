package source

import "errors"

var (
	// ErrDuplicate is returned by Record for an already recorded submission id.
	ErrDuplicate = errors.New("submission already recorded")
	// ErrInvalidSubmission is returned by Record when an id field is empty.
	ErrInvalidSubmission = errors.New("submission id, user id and problem id are required")
	// ErrOpen wraps failures to open the database.
	ErrOpen = errors.New("open submission source")
)
