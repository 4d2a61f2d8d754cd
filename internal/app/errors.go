package service

import "errors"

var (
	// ErrNotStarted is returned by operations that need the workers running.
	ErrNotStarted = errors.New("service not started")
	// ErrStopped is returned by Start after Stop.
	ErrStopped = errors.New("service stopped")
	// ErrNoSource is returned when no authoritative source is configured.
	ErrNoSource = errors.New("no authoritative source configured")
	// ErrBackpressure is returned by Submit when the queue is full.
	ErrBackpressure = errors.New("submission queue is full")
	// ErrResyncThrottled is returned by Resync when called too often.
	ErrResyncThrottled = errors.New("resync requested too soon after the previous one")
	// ErrInvalidSubmission is returned by Submit for a submission missing ids.
	ErrInvalidSubmission = errors.New("invalid submission")
)
