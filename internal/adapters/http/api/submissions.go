package api

import (
	"context"
	"net/http"
	"time"

	"github.com/akashca-pro/codex-problem-service-sub000/internal/domain/model"
)

// SubmissionDependencies defines the interface for submission ingestion.
type SubmissionDependencies interface {
	Submit(ctx context.Context, sub model.Submission) (duplicate bool, err error)
}

// submissionRequest mirrors the OpenAPI schema for POST /submissions.
type submissionRequest struct {
	SubmissionID string `json:"submission_id" validate:"required,max=128"`
	UserID       string `json:"user_id" validate:"required,max=128"`
	Username     string `json:"username" validate:"max=256"`
	Entity       string `json:"entity" validate:"max=128"`
	ProblemID    string `json:"problem_id" validate:"required,max=128"`
	Difficulty   string `json:"difficulty" validate:"omitempty,max=32"`
	Accepted     bool   `json:"accepted"`
	SubmittedAt  string `json:"submitted_at" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
}

func (req *submissionRequest) toModel() model.Submission {
	sub := model.Submission{
		ID:         req.SubmissionID,
		UserID:     req.UserID,
		Username:   req.Username,
		Entity:     req.Entity,
		ProblemID:  req.ProblemID,
		Difficulty: req.Difficulty,
		Accepted:   req.Accepted,
	}
	if ts, err := time.Parse(time.RFC3339, req.SubmittedAt); err == nil {
		sub.SubmittedAt = ts.UTC()
	}
	return sub
}

type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

// SubmissionsHandler handles submission requests.
type SubmissionsHandler struct {
	deps SubmissionDependencies
}

// NewSubmissionsHandler creates a new submissions handler.
func NewSubmissionsHandler(deps SubmissionDependencies) *SubmissionsHandler {
	return &SubmissionsHandler{deps: deps}
}

// HandlePostSubmission handles POST /submissions requests.
func (h *SubmissionsHandler) HandlePostSubmission(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_submission"
	var req submissionRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}

	duplicate, err := h.deps.Submit(r.Context(), req.toModel())
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	if duplicate {
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", Duplicate: true})
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted"})
}
