package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrWrongType     = errors.New("operation against a key holding the wrong kind of value")
	ErrNotInteger    = errors.New("hash value is not an integer")
	ErrInvalidScore  = errors.New("invalid score")
	ErrInvalidCursor = errors.New("invalid scan cursor")
	ErrClosed        = errors.New("store closed")
)
