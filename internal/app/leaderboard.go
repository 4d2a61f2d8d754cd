package service

import (
	"context"

	"github.com/akashca-pro/codex-problem-service-sub000/internal/domain/types"
)

// Leaderboard returns the top limit users globally.
func (s *Service) Leaderboard(ctx context.Context, limit int) (types.Leaderboard, error) {
	rows, err := s.engine.GetTopKGlobal(ctx, limit)
	if err != nil {
		return types.Leaderboard{}, err
	}
	return types.Leaderboard{Scope: "global", Entries: types.FromEntries(rows)}, nil
}

// EntityLeaderboard returns the top limit users of one entity.
func (s *Service) EntityLeaderboard(ctx context.Context, entity string, limit int) (types.Leaderboard, error) {
	rows, err := s.engine.GetTopKEntity(ctx, entity, limit)
	if err != nil {
		return types.Leaderboard{}, err
	}
	return types.Leaderboard{Scope: "entity", Entity: entity, Entries: types.FromEntries(rows)}, nil
}

// User returns a user's standing. Ranks are 0-based, -1 when unranked.
func (s *Service) User(ctx context.Context, id string) (types.User, error) {
	d, err := s.engine.GetUserLeaderboardData(ctx, id)
	if err != nil {
		return types.User{}, err
	}
	solved, err := s.engine.GetProblemsSolved(ctx, id)
	if err != nil {
		return types.User{}, err
	}
	return types.FromUser(d, solved), nil
}

// SetUser sets the user's score and, when entity is non-empty, moves them to
// that entity first.
func (s *Service) SetUser(ctx context.Context, id string, score float64, entity string) error {
	if err := s.moveTo(ctx, id, entity); err != nil {
		return err
	}
	return s.engine.AddOrSetUser(ctx, id, score, entity)
}

// IncrementScore adds delta to the user's score, moving them to a non-empty
// entity first.
func (s *Service) IncrementScore(ctx context.Context, id, entity string, delta float64) error {
	if err := s.moveTo(ctx, id, entity); err != nil {
		return err
	}
	return s.engine.IncrementScore(ctx, id, entity, delta)
}

// DecrementScore subtracts delta from the user's score, moving them to a
// non-empty entity first.
func (s *Service) DecrementScore(ctx context.Context, id, entity string, delta float64) error {
	if err := s.moveTo(ctx, id, entity); err != nil {
		return err
	}
	return s.engine.DecrementScore(ctx, id, entity, delta)
}

// moveTo moves the user to entity when it differs from the stored one, so a
// user is only ever a member of their stored entity's set.
func (s *Service) moveTo(ctx context.Context, id, entity string) error {
	if entity == "" || id == "" {
		return nil
	}
	current, err := s.engine.GetEntity(ctx, id)
	if err != nil {
		return err
	}
	if current == entity {
		return nil
	}
	return s.engine.UpdateEntity(ctx, id, entity)
}

// UpdateEntity moves the user to entity.
func (s *Service) UpdateEntity(ctx context.Context, id, entity string) error {
	return s.engine.UpdateEntity(ctx, id, entity)
}

// SetUsername records the user's display name. Store failures are logged by
// the engine and not reported.
func (s *Service) SetUsername(ctx context.Context, id, name string) {
	s.engine.SetUsername(ctx, id, name)
}

// RemoveUser deletes the user from every ranking.
func (s *Service) RemoveUser(ctx context.Context, id string) error {
	return s.engine.RemoveUser(ctx, id)
}
