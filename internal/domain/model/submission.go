package model

import "time"

// Submission is a judged attempt at a problem, as ingested from clients.
type Submission struct {
	ID          string // unique id for idempotency
	UserID      string
	Username    string // optional; latest non-empty value wins
	Entity      string // optional grouping, e.g. country
	ProblemID   string
	Difficulty  string // easy, medium, hard or any configured name
	Accepted    bool
	SubmittedAt time.Time
	// Points is filled in by scoring; 0 for rejected submissions.
	Points float64
}

// RecordResult tells the caller what recording a submission changed.
type RecordResult struct {
	// FirstSolve is true when this is the user's first accepted submission for the problem.
	FirstSolve bool
}
