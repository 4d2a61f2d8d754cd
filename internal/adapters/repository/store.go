// Package repository is the ordered-set store adapter: sorted sets, hash maps,
// prefix scans and atomic multi-command transactions. Two backends implement
// Store, a Redis client and an in-process treap store.
package repository

import "context"

// Member is one sorted-set member with its score.
type Member struct {
	ID    string
	Score float64
}

// Store provides read/write access to ordered sets and hashes.
//
// Read methods report absence through their bool result rather than an error.
// Ordering of equal scores follows Redis: members with equal scores are
// returned in reverse lexicographic order by ZRevRange and ZRevRank.
type Store interface {
	// ZScore returns the score of member in key.
	ZScore(ctx context.Context, key, member string) (float64, bool, error)
	// ZRevRank returns the 0-based position of member in descending order.
	ZRevRank(ctx context.Context, key, member string) (int64, bool, error)
	// ZRevRangeWithScores returns members between start and stop (inclusive,
	// negative indexes count from the end) in descending score order.
	ZRevRangeWithScores(ctx context.Context, key string, start, stop int64) ([]Member, error)
	// ZCard returns the number of members in key.
	ZCard(ctx context.Context, key string) (int64, error)

	HGet(ctx context.Context, key, field string) (string, bool, error)
	// HMGet returns the values of the fields that exist; missing fields are absent from the map.
	HMGet(ctx context.Context, key string, fields ...string) (map[string]string, error)
	HSet(ctx context.Context, key, field, value string) error
	HIncrBy(ctx context.Context, key, field string, incr int64) (int64, error)

	// Tx queues the commands fn issues on the batch and executes them as one
	// atomic unit. An empty batch is a no-op.
	Tx(ctx context.Context, fn func(b Batch)) error

	// Scan returns a page of keys starting with prefix. A returned cursor of 0
	// means the iteration is complete. count is a hint.
	Scan(ctx context.Context, cursor uint64, prefix string, count int64) ([]string, uint64, error)
	// Del removes keys and returns how many existed.
	Del(ctx context.Context, keys ...string) (int64, error)

	Ping(ctx context.Context) error
	Close() error
}

// Batch collects commands for Store.Tx.
type Batch interface {
	ZAdd(key, member string, score float64)
	ZIncrBy(key, member string, delta float64)
	ZRem(key string, members ...string)
	HSet(key, field, value string)
	HDel(key string, fields ...string)
	HIncrBy(key, field string, incr int64)
	Del(keys ...string)
	// Len is the number of queued commands.
	Len() int
}
