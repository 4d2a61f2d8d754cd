package source

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akashca-pro/codex-problem-service-sub000/internal/domain/model"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func openMem(t *testing.T) *BadgerSource {
	t.Helper()
	s, err := Open(InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sub(id, user, problem string, accepted bool, points float64, at int) model.Submission {
	return model.Submission{
		ID:          id,
		UserID:      user,
		ProblemID:   problem,
		Accepted:    accepted,
		Points:      points,
		SubmittedAt: t0.Add(time.Duration(at) * time.Minute),
	}
}

func TestRecordFirstSolve(t *testing.T) {
	ctx := context.Background()
	s := openMem(t)

	res, err := s.Record(ctx, sub("s1", "u1", "p1", false, 0, 0))
	require.NoError(t, err)
	assert.False(t, res.FirstSolve)

	res, err = s.Record(ctx, sub("s2", "u1", "p1", true, 10, 1))
	require.NoError(t, err)
	assert.True(t, res.FirstSolve)

	res, err = s.Record(ctx, sub("s3", "u1", "p1", true, 10, 2))
	require.NoError(t, err)
	assert.False(t, res.FirstSolve)

	res, err = s.Record(ctx, sub("s4", "u2", "p1", true, 10, 3))
	require.NoError(t, err)
	assert.True(t, res.FirstSolve)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestRecordRejectsDuplicatesAndInvalid(t *testing.T) {
	ctx := context.Background()
	s := openMem(t)

	_, err := s.Record(ctx, sub("s1", "u1", "p1", true, 10, 0))
	require.NoError(t, err)
	_, err = s.Record(ctx, sub("s1", "u1", "p2", true, 10, 1))
	assert.ErrorIs(t, err, ErrDuplicate)

	_, err = s.Record(ctx, sub("", "u1", "p1", true, 10, 0))
	assert.ErrorIs(t, err, ErrInvalidSubmission)
	_, err = s.Record(ctx, sub("s9", "", "p1", true, 10, 0))
	assert.ErrorIs(t, err, ErrInvalidSubmission)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestConcurrentRecordSolvesOnce(t *testing.T) {
	ctx := context.Background()
	s := openMem(t)

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		firsts int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := s.Record(ctx, sub(string(rune('a'+i)), "u1", "p1", true, 10, i))
			if err != nil {
				t.Errorf("record: %v", err)
				return
			}
			if res.FirstSolve {
				mu.Lock()
				firsts++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, firsts)
}

func TestAggregates(t *testing.T) {
	ctx := context.Background()
	s := openMem(t)

	subs := []model.Submission{
		sub("s1", "u1", "p1", true, 10, 0),
		sub("s2", "u1", "p2", true, 20, 1),
		sub("s3", "u1", "p1", true, 10, 2), // repeat solve, no points
		sub("s4", "u2", "p1", false, 0, 3),
		sub("s5", "u2", "p3", true, 40, 4),
		sub("s6", "u3", "p1", false, 0, 5),
	}
	subs[0].Entity, subs[0].Username = "IN", "ann"
	subs[1].Entity = "US"
	subs[2].Username = "annie"
	subs[3].Entity = "DE"
	subs[4].Entity = "FR"
	subs[5].Entity = "IN"

	// record out of order; the log is kept in submission time order
	for _, i := range []int{4, 1, 5, 0, 3, 2} {
		_, err := s.Record(ctx, subs[i])
		require.NoError(t, err)
	}

	totals, err := s.UserTotals(ctx)
	require.NoError(t, err)
	assert.Equal(t, []model.UserScore{
		{UserID: "u1", TotalScore: 30},
		{UserID: "u2", TotalScore: 40},
	}, totals)

	latest, err := s.UserLatestEntities(ctx)
	require.NoError(t, err)
	assert.Equal(t, []model.UserEntity{
		{UserID: "u1", Entity: "US"},
		{UserID: "u2", Entity: "FR"},
		{UserID: "u3", Entity: "IN"},
	}, latest)

	pairs, err := s.UserEntityTotals(ctx)
	require.NoError(t, err)
	assert.Equal(t, []model.UserEntityScore{
		{UserID: "u1", Entity: "IN", TotalScore: 10},
		{UserID: "u1", Entity: "US", TotalScore: 20},
		{UserID: "u2", Entity: "DE", TotalScore: 0},
		{UserID: "u2", Entity: "FR", TotalScore: 40},
		{UserID: "u3", Entity: "IN", TotalScore: 0},
	}, pairs)

	solved, err := s.UserSolvedCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []model.UserCount{
		{UserID: "u1", Count: 2},
		{UserID: "u2", Count: 1},
	}, solved)

	names, err := s.UserLatestUsernames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []model.UserName{{UserID: "u1", Username: "annie"}}, names)
}

func TestAggregatesKeepArrivalFirstSolve(t *testing.T) {
	ctx := context.Background()
	s := openMem(t)

	late := sub("s1", "u1", "p1", true, 40, 5)
	late.Entity = "US"
	early := sub("s2", "u1", "p1", true, 10, 1)
	early.Entity = "IN"

	res, err := s.Record(ctx, late)
	require.NoError(t, err)
	assert.True(t, res.FirstSolve)
	res, err = s.Record(ctx, early)
	require.NoError(t, err)
	assert.False(t, res.FirstSolve)

	totals, err := s.UserTotals(ctx)
	require.NoError(t, err)
	assert.Equal(t, []model.UserScore{{UserID: "u1", TotalScore: 40}}, totals)

	pairs, err := s.UserEntityTotals(ctx)
	require.NoError(t, err)
	assert.Equal(t, []model.UserEntityScore{
		{UserID: "u1", Entity: "IN", TotalScore: 0},
		{UserID: "u1", Entity: "US", TotalScore: 40},
	}, pairs)

	solved, err := s.UserSolvedCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []model.UserCount{{UserID: "u1", Count: 1}}, solved)

	latest, err := s.UserLatestEntities(ctx)
	require.NoError(t, err)
	assert.Equal(t, []model.UserEntity{{UserID: "u1", Entity: "US"}}, latest)
}

func TestAggregatesHonourContext(t *testing.T) {
	s := openMem(t)
	_, err := s.Record(context.Background(), sub("s1", "u1", "p1", true, 10, 0))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.UserTotals(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOnDiskReopen(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig(dir)
	cfg.GCInterval = time.Hour

	s, err := Open(cfg)
	require.NoError(t, err)
	_, err = s.Record(context.Background(), sub("s1", "u1", "p1", true, 10, 0))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(cfg)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Record(context.Background(), sub("s1", "u1", "p1", true, 10, 0))
	assert.ErrorIs(t, err, ErrDuplicate)
	totals, err := s.UserTotals(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []model.UserScore{{UserID: "u1", TotalScore: 10}}, totals)
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(Config{})
	assert.ErrorIs(t, err, ErrOpen)
}
