package leaderboard

import (
	"context"
	"math"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/akashca-pro/codex-problem-service-sub000/internal/adapters/repository"
	"github.com/akashca-pro/codex-problem-service-sub000/pkg/logger"
	"github.com/akashca-pro/codex-problem-service-sub000/pkg/metrics"
)

func validScore(op string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return invalid(op, "score must be a finite number")
	}
	return nil
}

// AddOrSetUser sets the user's global score to score. A non-empty entity
// also sets the score in that entity's set and records it as the user's
// entity. Moving a user away from a previous entity is UpdateEntity's job.
func (e *Engine) AddOrSetUser(ctx context.Context, id string, score float64, entity string) (err error) {
	const op = "add_or_set_user"
	defer func() { metrics.RecordMutation(op, err) }()

	if err := e.checkNamespace(op); err != nil {
		return err
	}
	if id == "" {
		return invalid(op, "user id must not be empty")
	}
	if err := validScore(op, score); err != nil {
		return err
	}

	err = e.store.Tx(ctx, func(b repository.Batch) {
		b.ZAdd(e.keys.Global(), id, score)
		if entity != "" {
			b.ZAdd(e.keys.Entity(entity), id, score)
			b.HSet(e.keys.UserEntity(), id, entity)
		}
	})
	if err != nil {
		return storeErr(op, err)
	}
	return nil
}

// IncrementScore adds delta to the user's global score and to their entity
// score. With an empty entity the stored entity is read first, in a separate
// round trip; a concurrent UpdateEntity may move the user in between and the
// delta then lands on the old entity set until the next Resync. A non-empty
// entity is used as given and recorded as the user's entity.
func (e *Engine) IncrementScore(ctx context.Context, id, entity string, delta float64) (err error) {
	const op = "increment_score"
	defer func() { metrics.RecordMutation(op, err) }()
	return e.incrementScore(ctx, op, id, entity, delta)
}

// DecrementScore is IncrementScore with -delta.
func (e *Engine) DecrementScore(ctx context.Context, id, entity string, delta float64) (err error) {
	const op = "decrement_score"
	defer func() { metrics.RecordMutation(op, err) }()
	return e.incrementScore(ctx, op, id, entity, -delta)
}

func (e *Engine) incrementScore(ctx context.Context, op, id, entity string, delta float64) error {
	if err := e.checkNamespace(op); err != nil {
		return err
	}
	if id == "" {
		return invalid(op, "user id must not be empty")
	}
	if err := validScore(op, delta); err != nil {
		return err
	}

	target := entity
	if target == "" {
		stored, _, err := e.store.HGet(ctx, e.keys.UserEntity(), id)
		if err != nil {
			return storeErr(op, err)
		}
		target = stored
	}

	err := e.store.Tx(ctx, func(b repository.Batch) {
		b.ZIncrBy(e.keys.Global(), id, delta)
		if target != "" {
			b.ZIncrBy(e.keys.Entity(target), id, delta)
		}
		if entity != "" {
			b.HSet(e.keys.UserEntity(), id, entity)
		}
	})
	if err != nil {
		return storeErr(op, err)
	}
	return nil
}

// IncrementProblemsSolved adds one to the user's solved count. Failures are
// logged and counted, never returned.
func (e *Engine) IncrementProblemsSolved(ctx context.Context, id string) {
	const op = "increment_problems_solved"
	if err := e.checkNamespace(op); err != nil {
		e.log.Warn(ctx, "skipping solved increment", logger.Error(err))
		return
	}
	if id == "" {
		e.log.Warn(ctx, "skipping solved increment for empty user id")
		return
	}
	_, err := e.store.HIncrBy(ctx, e.keys.UserSolved(), id, 1)
	metrics.RecordMutation(op, err)
	if err != nil {
		metrics.RecordBestEffortFailure(op)
		e.log.Warn(ctx, "failed to increment problems solved", logger.String("user_id", id), logger.Error(err))
	}
}

// SetUsername records the user's display name. Failures are logged and
// counted, never returned.
func (e *Engine) SetUsername(ctx context.Context, id, name string) {
	const op = "set_username"
	if err := e.checkNamespace(op); err != nil {
		e.log.Warn(ctx, "skipping username update", logger.Error(err))
		return
	}
	if id == "" {
		e.log.Warn(ctx, "skipping username update for empty user id")
		return
	}
	err := e.store.HSet(ctx, e.keys.UserUsername(), id, name)
	metrics.RecordMutation(op, err)
	if err != nil {
		metrics.RecordBestEffortFailure(op)
		e.log.Warn(ctx, "failed to set username", logger.String("user_id", id), logger.Error(err))
	}
}

// RemoveUser deletes the user from the global set, their entity set and all
// metadata.
func (e *Engine) RemoveUser(ctx context.Context, id string) (err error) {
	const op = "remove_user"
	defer func() { metrics.RecordMutation(op, err) }()

	if err := e.checkNamespace(op); err != nil {
		return err
	}
	if id == "" {
		return invalid(op, "user id must not be empty")
	}
	entity, _, err := e.store.HGet(ctx, e.keys.UserEntity(), id)
	if err != nil {
		return storeErr(op, err)
	}

	err = e.store.Tx(ctx, func(b repository.Batch) {
		b.ZRem(e.keys.Global(), id)
		if entity != "" {
			b.ZRem(e.keys.Entity(entity), id)
		}
		b.HDel(e.keys.UserEntity(), id)
		b.HDel(e.keys.UserSolved(), id)
		b.HDel(e.keys.UserUsername(), id)
	})
	if err != nil {
		return storeErr(op, err)
	}
	return nil
}

// userState is what UpdateEntity reads before rewriting a user.
type userState struct {
	entity      string
	score       float64
	inGlobal    bool
	username    string
	hasUsername bool
	solved      int64
}

func (e *Engine) readUserState(ctx context.Context, id string) (userState, error) {
	var (
		st        userState
		solvedRaw string
		hasSolved bool
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		st.entity, _, err = e.store.HGet(gctx, e.keys.UserEntity(), id)
		return err
	})
	g.Go(func() (err error) {
		st.score, st.inGlobal, err = e.store.ZScore(gctx, e.keys.Global(), id)
		return err
	})
	g.Go(func() (err error) {
		st.username, st.hasUsername, err = e.store.HGet(gctx, e.keys.UserUsername(), id)
		return err
	})
	g.Go(func() (err error) {
		solvedRaw, hasSolved, err = e.store.HGet(gctx, e.keys.UserSolved(), id)
		return err
	})
	if err := g.Wait(); err != nil {
		return userState{}, err
	}
	if hasSolved {
		st.solved = parseCount(solvedRaw)
	}
	return st, nil
}

// UpdateEntity moves the user to newEntity at their current global score and
// rewrites all three metadata fields. It is a no-op when the entity is
// unchanged. A user absent from the global set only gets metadata written.
func (e *Engine) UpdateEntity(ctx context.Context, id, newEntity string) (err error) {
	const op = "update_entity"
	defer func() { metrics.RecordMutation(op, err) }()

	if err := e.checkNamespace(op); err != nil {
		return err
	}
	if id == "" {
		return invalid(op, "user id must not be empty")
	}
	if newEntity == "" {
		return invalid(op, "new entity must not be empty")
	}

	st, err := e.readUserState(ctx, id)
	if err != nil {
		return storeErr(op, err)
	}
	if st.entity == newEntity {
		return nil
	}

	err = e.store.Tx(ctx, func(b repository.Batch) {
		if st.entity != "" {
			b.ZRem(e.keys.Entity(st.entity), id)
		}
		if st.inGlobal {
			b.ZAdd(e.keys.Entity(newEntity), id, st.score)
		}
		b.HSet(e.keys.UserEntity(), id, newEntity)
		b.HSet(e.keys.UserSolved(), id, strconv.FormatInt(st.solved, 10))
		if st.hasUsername {
			b.HSet(e.keys.UserUsername(), id, st.username)
		} else {
			b.HDel(e.keys.UserUsername(), id)
		}
	})
	if err != nil {
		return storeErr(op, err)
	}
	e.log.Debug(ctx, "user moved", logger.String("user_id", id), logger.String("from", st.entity), logger.String("to", newEntity))
	return nil
}
