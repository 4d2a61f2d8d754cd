package leaderboard

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/akashca-pro/codex-problem-service-sub000/internal/adapters/repository"
	"github.com/akashca-pro/codex-problem-service-sub000/internal/domain/model"
)

// storeFactories builds each Store backend fresh for every Convey leaf.
func storeFactories(t *testing.T) map[string]func() repository.Store {
	t.Helper()
	mr := miniredis.RunT(t)
	return map[string]func() repository.Store{
		"memory": func() repository.Store { return repository.NewMemStore() },
		"redis": func() repository.Store {
			mr.FlushAll()
			return repository.NewRedisStoreFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
		},
	}
}

type fakeSource struct {
	totals       []model.UserScore
	latest       []model.UserEntity
	entityTotals []model.UserEntityScore
	solved       []model.UserCount
	names        []model.UserName
	err          error
}

func (f *fakeSource) UserTotals(context.Context) ([]model.UserScore, error) {
	return f.totals, f.err
}

func (f *fakeSource) UserLatestEntities(context.Context) ([]model.UserEntity, error) {
	return f.latest, nil
}

func (f *fakeSource) UserEntityTotals(context.Context) ([]model.UserEntityScore, error) {
	return f.entityTotals, nil
}

func (f *fakeSource) UserSolvedCounts(context.Context) ([]model.UserCount, error) {
	return f.solved, nil
}

func (f *fakeSource) UserLatestUsernames(context.Context) ([]model.UserName, error) {
	return f.names, nil
}

var errInjected = errors.New("injected failure")

// flakyStore fails every call while failing is set.
type flakyStore struct {
	repository.Store
	failing atomic.Bool
	txCalls atomic.Int32
}

func (f *flakyStore) fail() error {
	if f.failing.Load() {
		return errInjected
	}
	return nil
}

func (f *flakyStore) ZScore(ctx context.Context, key, member string) (float64, bool, error) {
	if err := f.fail(); err != nil {
		return 0, false, err
	}
	return f.Store.ZScore(ctx, key, member)
}

func (f *flakyStore) ZRevRank(ctx context.Context, key, member string) (int64, bool, error) {
	if err := f.fail(); err != nil {
		return 0, false, err
	}
	return f.Store.ZRevRank(ctx, key, member)
}

func (f *flakyStore) ZRevRangeWithScores(ctx context.Context, key string, start, stop int64) ([]repository.Member, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	return f.Store.ZRevRangeWithScores(ctx, key, start, stop)
}

func (f *flakyStore) HGet(ctx context.Context, key, field string) (string, bool, error) {
	if err := f.fail(); err != nil {
		return "", false, err
	}
	return f.Store.HGet(ctx, key, field)
}

func (f *flakyStore) HMGet(ctx context.Context, key string, fields ...string) (map[string]string, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	return f.Store.HMGet(ctx, key, fields...)
}

func (f *flakyStore) HSet(ctx context.Context, key, field, value string) error {
	if err := f.fail(); err != nil {
		return err
	}
	return f.Store.HSet(ctx, key, field, value)
}

func (f *flakyStore) HIncrBy(ctx context.Context, key, field string, incr int64) (int64, error) {
	if err := f.fail(); err != nil {
		return 0, err
	}
	return f.Store.HIncrBy(ctx, key, field, incr)
}

func (f *flakyStore) Tx(ctx context.Context, fn func(b repository.Batch)) error {
	f.txCalls.Add(1)
	if err := f.fail(); err != nil {
		return err
	}
	return f.Store.Tx(ctx, fn)
}

func (f *flakyStore) Scan(ctx context.Context, cursor uint64, prefix string, count int64) ([]string, uint64, error) {
	if err := f.fail(); err != nil {
		return nil, 0, err
	}
	return f.Store.Scan(ctx, cursor, prefix, count)
}

func ids(rows []model.LeaderboardEntry) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.ID
	}
	return out
}

func ranks(rows []model.LeaderboardEntry) []int {
	out := make([]int, len(rows))
	for i, r := range rows {
		out[i] = r.Rank
	}
	return out
}
