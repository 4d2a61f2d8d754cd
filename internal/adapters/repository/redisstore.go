package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/akashca-pro/codex-problem-service-sub000/pkg/metrics"
)

// RedisStore implements Store on a Redis server. Tx maps to MULTI/EXEC.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore dials Redis with cfg and verifies the connection.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(cfg.options())
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return &RedisStore{client: client}, nil
}

// NewRedisStoreFromClient wraps an existing client. Close closes it.
func NewRedisStoreFromClient(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if strings.HasPrefix(err.Error(), "WRONGTYPE") {
		return fmt.Errorf("redis %s: %w: %w", op, ErrWrongType, err)
	}
	if errors.Is(err, redis.ErrClosed) {
		return fmt.Errorf("redis %s: %w", op, ErrClosed)
	}
	return fmt.Errorf("redis %s: %w", op, err)
}

// ZScore implements Store.
func (s *RedisStore) ZScore(ctx context.Context, key, member string) (score float64, ok bool, err error) {
	defer func(start time.Time) { observe("zscore", start, err) }(time.Now())
	score, err = s.client.ZScore(ctx, key, member).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, wrap("zscore", err)
	}
	return score, true, nil
}

// ZRevRank implements Store.
func (s *RedisStore) ZRevRank(ctx context.Context, key, member string) (rank int64, ok bool, err error) {
	defer func(start time.Time) { observe("zrevrank", start, err) }(time.Now())
	rank, err = s.client.ZRevRank(ctx, key, member).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, wrap("zrevrank", err)
	}
	return rank, true, nil
}

// ZRevRangeWithScores implements Store.
func (s *RedisStore) ZRevRangeWithScores(ctx context.Context, key string, start, stop int64) (out []Member, err error) {
	defer func(t time.Time) { observe("zrevrange", t, err) }(time.Now())
	zs, err := s.client.ZRevRangeWithScores(ctx, key, start, stop).Result()
	if err != nil {
		return nil, wrap("zrevrange", err)
	}
	out = make([]Member, 0, len(zs))
	for _, z := range zs {
		id, _ := z.Member.(string)
		out = append(out, Member{ID: id, Score: z.Score})
	}
	return out, nil
}

// ZCard implements Store.
func (s *RedisStore) ZCard(ctx context.Context, key string) (n int64, err error) {
	defer func(start time.Time) { observe("zcard", start, err) }(time.Now())
	n, err = s.client.ZCard(ctx, key).Result()
	return n, wrap("zcard", err)
}

// HGet implements Store.
func (s *RedisStore) HGet(ctx context.Context, key, field string) (val string, ok bool, err error) {
	defer func(start time.Time) { observe("hget", start, err) }(time.Now())
	val, err = s.client.HGet(ctx, key, field).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, wrap("hget", err)
	}
	return val, true, nil
}

// HMGet implements Store.
func (s *RedisStore) HMGet(ctx context.Context, key string, fields ...string) (out map[string]string, err error) {
	defer func(start time.Time) { observe("hmget", start, err) }(time.Now())
	out = make(map[string]string, len(fields))
	if len(fields) == 0 {
		return out, nil
	}
	vals, err := s.client.HMGet(ctx, key, fields...).Result()
	if err != nil {
		return nil, wrap("hmget", err)
	}
	for i, v := range vals {
		if str, ok := v.(string); ok {
			out[fields[i]] = str
		}
	}
	return out, nil
}

// HSet implements Store.
func (s *RedisStore) HSet(ctx context.Context, key, field, value string) (err error) {
	defer func(start time.Time) { observe("hset", start, err) }(time.Now())
	return wrap("hset", s.client.HSet(ctx, key, field, value).Err())
}

// HIncrBy implements Store.
func (s *RedisStore) HIncrBy(ctx context.Context, key, field string, incr int64) (n int64, err error) {
	defer func(start time.Time) { observe("hincrby", start, err) }(time.Now())
	n, err = s.client.HIncrBy(ctx, key, field, incr).Result()
	return n, wrap("hincrby", err)
}

type redisBatch struct {
	ctx  context.Context
	cmds []func(redis.Pipeliner)
}

func (b *redisBatch) ZAdd(key, member string, score float64) {
	b.cmds = append(b.cmds, func(p redis.Pipeliner) { p.ZAdd(b.ctx, key, redis.Z{Score: score, Member: member}) })
}

func (b *redisBatch) ZIncrBy(key, member string, delta float64) {
	b.cmds = append(b.cmds, func(p redis.Pipeliner) { p.ZIncrBy(b.ctx, key, delta, member) })
}

func (b *redisBatch) ZRem(key string, members ...string) {
	if len(members) == 0 {
		return
	}
	args := make([]any, len(members))
	for i, m := range members {
		args[i] = m
	}
	b.cmds = append(b.cmds, func(p redis.Pipeliner) { p.ZRem(b.ctx, key, args...) })
}

func (b *redisBatch) HSet(key, field, value string) {
	b.cmds = append(b.cmds, func(p redis.Pipeliner) { p.HSet(b.ctx, key, field, value) })
}

func (b *redisBatch) HDel(key string, fields ...string) {
	if len(fields) == 0 {
		return
	}
	b.cmds = append(b.cmds, func(p redis.Pipeliner) { p.HDel(b.ctx, key, fields...) })
}

func (b *redisBatch) HIncrBy(key, field string, incr int64) {
	b.cmds = append(b.cmds, func(p redis.Pipeliner) { p.HIncrBy(b.ctx, key, field, incr) })
}

func (b *redisBatch) Del(keys ...string) {
	if len(keys) == 0 {
		return
	}
	b.cmds = append(b.cmds, func(p redis.Pipeliner) { p.Del(b.ctx, keys...) })
}

func (b *redisBatch) Len() int { return len(b.cmds) }

// Tx implements Store with MULTI/EXEC.
func (s *RedisStore) Tx(ctx context.Context, fn func(b Batch)) (err error) {
	b := &redisBatch{ctx: ctx}
	fn(b)
	if len(b.cmds) == 0 {
		return nil
	}
	defer func(start time.Time) { observe("tx", start, err) }(time.Now())
	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for _, c := range b.cmds {
			c(p)
		}
		return nil
	})
	if err != nil {
		return wrap("tx", err)
	}
	metrics.RecordStoreTx(len(b.cmds))
	return nil
}

// Scan implements Store with SCAN MATCH <escaped prefix>*.
func (s *RedisStore) Scan(ctx context.Context, cursor uint64, prefix string, count int64) (keys []string, next uint64, err error) {
	defer func(start time.Time) { observe("scan", start, err) }(time.Now())
	keys, next, err = s.client.Scan(ctx, cursor, escapeGlob(prefix)+"*", count).Result()
	if err != nil {
		return nil, 0, wrap("scan", err)
	}
	return keys, next, nil
}

// Del implements Store.
func (s *RedisStore) Del(ctx context.Context, keys ...string) (n int64, err error) {
	defer func(start time.Time) { observe("del", start, err) }(time.Now())
	if len(keys) == 0 {
		return 0, nil
	}
	n, err = s.client.Del(ctx, keys...).Result()
	return n, wrap("del", err)
}

// Ping implements Store.
func (s *RedisStore) Ping(ctx context.Context) error {
	return wrap("ping", s.client.Ping(ctx).Err())
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// escapeGlob escapes the characters SCAN MATCH treats specially.
func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
