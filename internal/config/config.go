// Package config defines service configuration and its loading from
// defaults, an optional YAML file and RANK_* environment variables.
package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/akashca-pro/codex-problem-service-sub000/internal/domain/keys"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat is text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// Namespace prefixes every key the engine writes.
	Namespace string `koanf:"namespace"`

	// StoreBackend selects the ordered-set store: memory or redis.
	StoreBackend  string `koanf:"store_backend"`
	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`
	RedisPoolSize int    `koanf:"redis_pool_size"`

	// SourcePath is the badger directory holding submissions. Ignored when
	// SourceInMemory is set.
	SourcePath     string `koanf:"source_path"`
	SourceInMemory bool   `koanf:"source_in_memory"`

	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// ScanBatchSize is the SCAN COUNT hint used by resync and force-clear.
	ScanBatchSize int `koanf:"scan_batch_size"`

	// ResyncOnStart rebuilds the namespace from the source at start-up.
	ResyncOnStart bool `koanf:"resync_on_start"`
	// ResyncIntervalSec schedules periodic resyncs; 0 disables them.
	ResyncIntervalSec int `koanf:"resync_interval_sec"`
	// ResyncMinIntervalMS throttles on-demand resyncs.
	ResyncMinIntervalMS int `koanf:"resync_min_interval_ms"`

	// QueueSize bounds the in-memory submission queue.
	QueueSize int `koanf:"queue_size"`
	// WorkerCount sets the number of submission workers.
	WorkerCount int `koanf:"worker_count"`
	// DedupeSize bounds the submission-id dedupe cache.
	DedupeSize int `koanf:"dedupe_size"`

	// DifficultyWeights maps difficulty names to the points a first solve earns.
	DifficultyWeights map[string]float64 `koanf:"difficulty_weights"`
	// DefaultDifficultyWeight is used for unknown difficulties.
	DefaultDifficultyWeight float64 `koanf:"default_difficulty_weight"`

	// MetricsEnabled toggles prometheus recording.
	MetricsEnabled bool `koanf:"metrics_enabled"`
	// MetricsRefreshSec is how often runtime gauges are sampled; 0 disables sampling.
	MetricsRefreshSec int `koanf:"metrics_refresh_sec"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		Addr:                ":9080",
		Namespace:           "leaderboard",
		StoreBackend:        BackendMemory,
		RedisAddr:           "localhost:6379",
		RedisPoolSize:       runtime.NumCPU() * 10,
		SourcePath:          "data/submissions",
		SourceInMemory:      true,
		MaxLeaderboardLimit: 100,
		ScanBatchSize:       100,
		ResyncOnStart:       true,
		ResyncIntervalSec:   0,
		ResyncMinIntervalMS: 5_000,
		QueueSize:           10_000,
		WorkerCount:         runtime.NumCPU() * 2,
		DedupeSize:          100_000,
		DifficultyWeights: map[string]float64{
			"easy":   10,
			"medium": 20,
			"hard":   40,
		},
		DefaultDifficultyWeight: 10,
		MetricsEnabled:          true,
		MetricsRefreshSec:       15,
	}
}

// ResyncInterval returns the periodic resync interval, zero when disabled.
func (c *Config) ResyncInterval() time.Duration {
	return time.Duration(c.ResyncIntervalSec) * time.Second
}

// ResyncMinInterval returns the minimum gap between on-demand resyncs.
func (c *Config) ResyncMinInterval() time.Duration {
	return time.Duration(c.ResyncMinIntervalMS) * time.Millisecond
}

// MetricsRefresh returns the runtime gauge sampling period.
func (c *Config) MetricsRefresh() time.Duration {
	return time.Duration(c.MetricsRefreshSec) * time.Second
}

// Validate checks the configuration for values the service cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case strings.TrimSpace(c.Namespace) == "":
		return fmt.Errorf("%w: namespace must not be empty", ErrInvalidConfig)
	case keys.Validate(c.Namespace) != nil:
		return fmt.Errorf("%w: %w", ErrInvalidConfig, keys.Validate(c.Namespace))
	case c.StoreBackend != BackendMemory && c.StoreBackend != BackendRedis:
		return fmt.Errorf("%w: unknown store_backend %q", ErrInvalidConfig, c.StoreBackend)
	case c.StoreBackend == BackendRedis && c.RedisAddr == "":
		return fmt.Errorf("%w: redis_addr required for redis backend", ErrInvalidConfig)
	case !c.SourceInMemory && c.SourcePath == "":
		return fmt.Errorf("%w: source_path required when source_in_memory is false", ErrInvalidConfig)
	case c.MaxLeaderboardLimit < 1:
		return fmt.Errorf("%w: max_leaderboard_limit must be positive", ErrInvalidConfig)
	case c.ScanBatchSize < 1:
		return fmt.Errorf("%w: scan_batch_size must be positive", ErrInvalidConfig)
	case c.ResyncIntervalSec < 0 || c.ResyncMinIntervalMS < 0:
		return fmt.Errorf("%w: resync intervals must not be negative", ErrInvalidConfig)
	case c.QueueSize < 1 || c.WorkerCount < 1 || c.DedupeSize < 1:
		return fmt.Errorf("%w: queue_size, worker_count and dedupe_size must be positive", ErrInvalidConfig)
	case c.MetricsRefreshSec < 0:
		return fmt.Errorf("%w: metrics_refresh_sec must not be negative", ErrInvalidConfig)
	case c.DefaultDifficultyWeight < 0:
		return fmt.Errorf("%w: default_difficulty_weight must not be negative", ErrInvalidConfig)
	}
	for name, w := range c.DifficultyWeights {
		if w < 0 {
			return fmt.Errorf("%w: difficulty weight %q is negative", ErrInvalidConfig, name)
		}
	}
	return nil
}
