package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	eventqueue "github.com/akashca-pro/codex-problem-service-sub000/internal/adapters/mq/queue"
	"github.com/akashca-pro/codex-problem-service-sub000/internal/adapters/source"
	"github.com/akashca-pro/codex-problem-service-sub000/internal/domain/model"
	"github.com/akashca-pro/codex-problem-service-sub000/pkg/logger"
	"github.com/akashca-pro/codex-problem-service-sub000/pkg/metrics"
)

// Submit de-duplicates a submission by id and queues it for scoring. It
// reports duplicate=true for an id seen recently; such submissions are not
// queued again.
func (s *Service) Submit(ctx context.Context, sub model.Submission) (duplicate bool, err error) { //nolint:gocritic // hugeParam: submissions travel by value
	if sub.ID == "" || sub.UserID == "" || sub.ProblemID == "" {
		return false, fmt.Errorf("%w: submission_id, user_id and problem_id are required", ErrInvalidSubmission)
	}
	if s.source == nil {
		return false, ErrNoSource
	}

	s.mu.RLock()
	started, q := s.started, s.queue
	s.mu.RUnlock()
	if !started {
		return false, ErrNotStarted
	}

	if s.deduper.SeenAndRecord(ctx, sub.ID) {
		metrics.RecordSubmissionDuplicate()
		return true, nil
	}
	if sub.SubmittedAt.IsZero() {
		sub.SubmittedAt = time.Now().UTC()
	}

	if err := q.Enqueue(ctx, sub); err != nil {
		s.deduper.Unrecord(ctx, sub.ID)
		switch {
		case errors.Is(err, eventqueue.ErrFull):
			return false, ErrBackpressure
		case errors.Is(err, eventqueue.ErrClosed):
			return false, ErrNotStarted
		default:
			return false, err
		}
	}
	metrics.RecordSubmissionAccepted()
	return false, nil
}

// Apply records a scored submission in the source and mirrors the change into
// the ranking cache. Only the first accepted solve of a problem scores. A
// submission that names a different entity than the stored one moves the
// user first, so the points land in the new entity set.
func (s *Service) Apply(ctx context.Context, sub model.Submission) error { //nolint:gocritic // hugeParam: submissions travel by value
	if s.source == nil {
		return ErrNoSource
	}
	res, err := s.source.Record(ctx, sub)
	if errors.Is(err, source.ErrDuplicate) {
		metrics.RecordSubmissionApplied("duplicate")
		s.logger.Debug(ctx, "submission already recorded", logger.String("submission_id", sub.ID))
		return nil
	}
	if err != nil {
		metrics.RecordSubmissionApplied("error")
		return fmt.Errorf("record submission: %w", err)
	}

	if err := s.moveTo(ctx, sub.UserID, sub.Entity); err != nil {
		metrics.RecordSubmissionApplied("error")
		return err
	}

	if res.FirstSolve {
		if err := s.engine.IncrementScore(ctx, sub.UserID, sub.Entity, sub.Points); err != nil {
			metrics.RecordSubmissionApplied("error")
			return err
		}
		s.engine.IncrementProblemsSolved(ctx, sub.UserID)
	}
	if sub.Username != "" {
		s.engine.SetUsername(ctx, sub.UserID, sub.Username)
	}

	outcome := "recorded"
	if res.FirstSolve {
		outcome = "scored"
	}
	metrics.RecordSubmissionApplied(outcome)
	return nil
}
