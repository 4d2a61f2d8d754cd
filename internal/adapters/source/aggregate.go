package source

import (
	"context"
	"sort"

	"github.com/dgraph-io/badger/v4"

	"github.com/akashca-pro/codex-problem-service-sub000/internal/domain/model"
)

type pair struct{ user, entity string }

// aggregate is the leaderboard view of the whole log.
type aggregate struct {
	totals       map[string]float64
	entityTotals map[pair]float64
	latestEntity map[string]string
	latestName   map[string]string
	solved       map[string]int64
}

// aggregate folds the log in time order. Only the submissions Record marked
// as first solves score, and their points go to the entity they were made
// under. Every (user, entity) pair seen is reported, even with a zero total.
func (s *BadgerSource) aggregate(ctx context.Context) (aggregate, error) {
	a := aggregate{
		totals:       map[string]float64{},
		entityTotals: map[pair]float64{},
		latestEntity: map[string]string{},
		latestName:   map[string]string{},
		solved:       map[string]int64{},
	}

	err := s.db.View(func(txn *badger.Txn) error {
		firstSolves, err := firstSolvesTxn(ctx, txn)
		if err != nil {
			return err
		}
		return eachTxn(ctx, txn, func(sub model.Submission) {
			if sub.Entity != "" {
				a.latestEntity[sub.UserID] = sub.Entity
				a.entityTotals[pair{sub.UserID, sub.Entity}] += 0
			}
			if sub.Username != "" {
				a.latestName[sub.UserID] = sub.Username
			}
			if _, ok := firstSolves[sub.ID]; !ok || !sub.Accepted {
				return
			}
			a.solved[sub.UserID]++
			a.totals[sub.UserID] += sub.Points
			if sub.Entity != "" {
				a.entityTotals[pair{sub.UserID, sub.Entity}] += sub.Points
			}
		})
	})
	return a, err
}

// UserTotals returns every user with at least one accepted submission and
// the sum of their first-solve points.
func (s *BadgerSource) UserTotals(ctx context.Context) ([]model.UserScore, error) {
	a, err := s.aggregate(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.UserScore, 0, len(a.totals))
	for _, u := range sortedUsers(a.totals) {
		out = append(out, model.UserScore{UserID: u, TotalScore: a.totals[u]})
	}
	return out, nil
}

// UserLatestEntities returns the entity of each user's most recent submission
// that carried one.
func (s *BadgerSource) UserLatestEntities(ctx context.Context) ([]model.UserEntity, error) {
	a, err := s.aggregate(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.UserEntity, 0, len(a.latestEntity))
	for _, u := range sortedUsers(a.latestEntity) {
		out = append(out, model.UserEntity{UserID: u, Entity: a.latestEntity[u]})
	}
	return out, nil
}

// UserEntityTotals returns first-solve points per (user, entity).
func (s *BadgerSource) UserEntityTotals(ctx context.Context) ([]model.UserEntityScore, error) {
	a, err := s.aggregate(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.UserEntityScore, 0, len(a.entityTotals))
	for p, total := range a.entityTotals {
		out = append(out, model.UserEntityScore{UserID: p.user, Entity: p.entity, TotalScore: total})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UserID != out[j].UserID {
			return out[i].UserID < out[j].UserID
		}
		return out[i].Entity < out[j].Entity
	})
	return out, nil
}

// UserSolvedCounts returns the number of distinct accepted problems per user.
func (s *BadgerSource) UserSolvedCounts(ctx context.Context) ([]model.UserCount, error) {
	a, err := s.aggregate(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.UserCount, 0, len(a.solved))
	for _, u := range sortedUsers(a.solved) {
		out = append(out, model.UserCount{UserID: u, Count: a.solved[u]})
	}
	return out, nil
}

// UserLatestUsernames returns the most recent non-empty username per user.
func (s *BadgerSource) UserLatestUsernames(ctx context.Context) ([]model.UserName, error) {
	a, err := s.aggregate(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.UserName, 0, len(a.latestName))
	for _, u := range sortedUsers(a.latestName) {
		out = append(out, model.UserName{UserID: u, Username: a.latestName[u]})
	}
	return out, nil
}

func sortedUsers[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
