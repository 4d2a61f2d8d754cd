package leaderboard

import (
	"context"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/akashca-pro/codex-problem-service-sub000/internal/adapters/repository"
	"github.com/akashca-pro/codex-problem-service-sub000/internal/domain/model"
	"github.com/akashca-pro/codex-problem-service-sub000/internal/domain/ranking"
	"github.com/akashca-pro/codex-problem-service-sub000/pkg/metrics"
)

// GetScore returns the user's global score, 0 when absent.
func (e *Engine) GetScore(ctx context.Context, id string) (score float64, err error) {
	const op = "get_score"
	defer func() { metrics.RecordQuery(op, err) }()
	score, _, err = e.store.ZScore(ctx, e.keys.Global(), id)
	if err != nil {
		return 0, storeErr(op, err)
	}
	return score, nil
}

// GetEntity returns the user's entity, "" when none.
func (e *Engine) GetEntity(ctx context.Context, id string) (entity string, err error) {
	const op = "get_entity"
	defer func() { metrics.RecordQuery(op, err) }()
	entity, _, err = e.store.HGet(ctx, e.keys.UserEntity(), id)
	if err != nil {
		return "", storeErr(op, err)
	}
	return entity, nil
}

// GetRankGlobal returns the user's 0-based position in the global set, -1
// when absent. Equal scores are not shared here; the store's own tie order
// decides, unlike the competition ranks of GetTopKGlobal.
func (e *Engine) GetRankGlobal(ctx context.Context, id string) (rank int64, err error) {
	const op = "get_rank_global"
	defer func() { metrics.RecordQuery(op, err) }()
	rank, err = e.revRank(ctx, e.keys.Global(), id)
	if err != nil {
		return -1, storeErr(op, err)
	}
	return rank, nil
}

// GetRankEntity returns the user's 0-based position within their entity set,
// -1 when they have no entity or are absent from it.
func (e *Engine) GetRankEntity(ctx context.Context, id string) (rank int64, err error) {
	const op = "get_rank_entity"
	defer func() { metrics.RecordQuery(op, err) }()
	entity, _, err := e.store.HGet(ctx, e.keys.UserEntity(), id)
	if err != nil {
		return -1, storeErr(op, err)
	}
	if entity == "" {
		return -1, nil
	}
	rank, err = e.revRank(ctx, e.keys.Entity(entity), id)
	if err != nil {
		return -1, storeErr(op, err)
	}
	return rank, nil
}

func (e *Engine) revRank(ctx context.Context, key, id string) (int64, error) {
	rank, ok, err := e.store.ZRevRank(ctx, key, id)
	if err != nil {
		return -1, err
	}
	if !ok {
		return -1, nil
	}
	return rank, nil
}

// GetUsername returns the user's display name and whether one is stored.
func (e *Engine) GetUsername(ctx context.Context, id string) (name string, found bool, err error) {
	const op = "get_username"
	defer func() { metrics.RecordQuery(op, err) }()
	name, found, err = e.store.HGet(ctx, e.keys.UserUsername(), id)
	if err != nil {
		return "", false, storeErr(op, err)
	}
	return name, found, nil
}

// GetProblemsSolved returns the user's solved count, 0 when absent.
func (e *Engine) GetProblemsSolved(ctx context.Context, id string) (n int64, err error) {
	const op = "get_problems_solved"
	defer func() { metrics.RecordQuery(op, err) }()
	raw, ok, err := e.store.HGet(ctx, e.keys.UserSolved(), id)
	if err != nil {
		return 0, storeErr(op, err)
	}
	if !ok {
		return 0, nil
	}
	return parseCount(raw), nil
}

// GetUserLeaderboardData composes score, entity, username and both ranks.
// The reads are independent and may observe different moments.
func (e *Engine) GetUserLeaderboardData(ctx context.Context, id string) (d model.UserLeaderboardData, err error) {
	const op = "get_user_leaderboard_data"
	defer func() { metrics.RecordQuery(op, err) }()

	d = model.UserLeaderboardData{UserID: id, GlobalRank: -1, EntityRank: -1}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		d.Score, _, err = e.store.ZScore(gctx, e.keys.Global(), id)
		return err
	})
	g.Go(func() (err error) {
		d.GlobalRank, err = e.revRank(gctx, e.keys.Global(), id)
		return err
	})
	g.Go(func() (err error) {
		d.Username, _, err = e.store.HGet(gctx, e.keys.UserUsername(), id)
		return err
	})
	g.Go(func() error {
		entity, _, err := e.store.HGet(gctx, e.keys.UserEntity(), id)
		if err != nil || entity == "" {
			return err
		}
		d.Entity = entity
		d.EntityRank, err = e.revRank(gctx, e.keys.Entity(entity), id)
		return err
	})
	if err := g.Wait(); err != nil {
		return model.UserLeaderboardData{}, storeErr(op, err)
	}
	return d, nil
}

// GetTopKGlobal returns the k best users with metadata and competition ranks.
func (e *Engine) GetTopKGlobal(ctx context.Context, k int) (out []model.LeaderboardEntry, err error) {
	const op = "get_top_k_global"
	defer func(start time.Time) {
		metrics.RecordQuery(op, err)
		metrics.RecordTopK("global", len(out), msSince(start))
	}(time.Now())

	if k < 1 {
		return nil, invalid(op, "k must be at least 1")
	}
	out, err = e.topK(ctx, e.keys.Global(), k)
	if err != nil {
		return nil, storeErr(op, err)
	}
	return out, nil
}

// GetTopKEntity is GetTopKGlobal scoped to one entity. An empty entity yields
// an empty view.
func (e *Engine) GetTopKEntity(ctx context.Context, entity string, k int) (out []model.LeaderboardEntry, err error) {
	const op = "get_top_k_entity"
	defer func(start time.Time) {
		metrics.RecordQuery(op, err)
		metrics.RecordTopK("entity", len(out), msSince(start))
	}(time.Now())

	if entity == "" {
		return []model.LeaderboardEntry{}, nil
	}
	if k < 1 {
		return nil, invalid(op, "k must be at least 1")
	}
	out, err = e.topK(ctx, e.keys.Entity(entity), k)
	if err != nil {
		return nil, storeErr(op, err)
	}
	return out, nil
}

func (e *Engine) topK(ctx context.Context, key string, k int) ([]model.LeaderboardEntry, error) {
	members, err := e.store.ZRevRangeWithScores(ctx, key, 0, int64(k-1))
	if err != nil {
		return nil, err
	}
	out, err := e.hydrate(ctx, members)
	if err != nil {
		return nil, err
	}
	ranking.Assign(out,
		func(r *model.LeaderboardEntry) float64 { return r.Score },
		func(r *model.LeaderboardEntry, rank int) { r.Rank = rank },
	)
	return out, nil
}

// hydrate fills entity, username and solved count with one HMGET per hash,
// issued concurrently.
func (e *Engine) hydrate(ctx context.Context, members []repository.Member) ([]model.LeaderboardEntry, error) {
	out := make([]model.LeaderboardEntry, len(members))
	if len(members) == 0 {
		return out, nil
	}
	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.ID
		out[i] = model.LeaderboardEntry{ID: m.ID, Score: m.Score}
	}

	var entities, names, solved map[string]string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		entities, err = e.store.HMGet(gctx, e.keys.UserEntity(), ids...)
		return err
	})
	g.Go(func() (err error) {
		names, err = e.store.HMGet(gctx, e.keys.UserUsername(), ids...)
		return err
	})
	g.Go(func() (err error) {
		solved, err = e.store.HMGet(gctx, e.keys.UserSolved(), ids...)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i := range out {
		id := out[i].ID
		out[i].Entity = entities[id]
		out[i].Username = names[id]
		out[i].ProblemsSolved = parseCount(solved[id])
	}
	return out, nil
}

func parseCount(raw string) int64 {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
