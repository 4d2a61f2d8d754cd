package repository

import (
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultMaxCursors = 1024

// MemOption configures a MemStore.
type MemOption func(*MemStore)

// WithMaxScanCursors bounds how many unfinished scan cursors are remembered.
func WithMaxScanCursors(n int) MemOption {
	return func(s *MemStore) {
		if n > 0 {
			s.maxCursors = n
		}
	}
}

// RedisConfig holds connection settings for NewRedisStore.
type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultRedisConfig returns settings for a local Redis.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		PoolSize:     10,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

func (c RedisConfig) options() *redis.Options {
	return &redis.Options{
		Addr:         c.Addr,
		Password:     c.Password,
		DB:           c.DB,
		PoolSize:     c.PoolSize,
		DialTimeout:  c.DialTimeout,
		ReadTimeout:  c.ReadTimeout,
		WriteTimeout: c.WriteTimeout,
	}
}
