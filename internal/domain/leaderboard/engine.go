// Package leaderboard is the ranking cache: global and per-entity score sets
// with per-user metadata, kept in an ordered-set store and rebuilt on demand
// from an authoritative source.
//
// The engine starts no goroutines of its own and holds no locks. Each
// mutation is one store transaction; queries are independent reads. The only
// cross-operation race is the entity lookup in IncrementScore, which Resync
// repairs.
package leaderboard

import (
	"context"
	"time"

	"github.com/akashca-pro/codex-problem-service-sub000/internal/adapters/repository"
	"github.com/akashca-pro/codex-problem-service-sub000/internal/domain/keys"
	"github.com/akashca-pro/codex-problem-service-sub000/internal/domain/model"
	"github.com/akashca-pro/codex-problem-service-sub000/pkg/logger"
)

const defaultScanBatchSize = 100

// Source is the authoritative aggregation source. Each call returns the full
// current dataset.
type Source interface {
	UserTotals(ctx context.Context) ([]model.UserScore, error)
	UserLatestEntities(ctx context.Context) ([]model.UserEntity, error)
	UserEntityTotals(ctx context.Context) ([]model.UserEntityScore, error)
	UserSolvedCounts(ctx context.Context) ([]model.UserCount, error)
	UserLatestUsernames(ctx context.Context) ([]model.UserName, error)
}

// Engine implements the leaderboard operations for one namespace.
type Engine struct {
	store     repository.Store
	source    Source
	keys      keys.Resolver
	nsErr     error
	log       logger.Logger
	scanBatch int64
}

// Option configures an Engine.
type Option func(*Engine)

// WithNamespace sets the key namespace. Defaults to keys.DefaultNamespace.
// A namespace rejected by keys.Validate makes every write and Resync fail
// with ErrValidation.
func WithNamespace(ns string) Option {
	return func(e *Engine) { e.keys = keys.New(ns) }
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithScanBatchSize sets the SCAN COUNT hint used by Resync and ForceClear.
func WithScanBatchSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.scanBatch = int64(n)
		}
	}
}

// New returns an engine over store. source may be nil, in which case Resync
// fails with ErrSource. The engine does not own store and never closes it.
func New(store repository.Store, source Source, opts ...Option) *Engine {
	e := &Engine{
		store:     store,
		source:    source,
		keys:      keys.New(""),
		log:       logger.Nop(),
		scanBatch: defaultScanBatchSize,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.nsErr = keys.Validate(e.keys.Namespace())
	return e
}

// checkNamespace rejects writes from an engine built with an invalid
// namespace.
func (e *Engine) checkNamespace(op string) error {
	if e.nsErr != nil {
		return &Error{Op: op, Kind: ErrValidation, Err: e.nsErr}
	}
	return nil
}

// Namespace returns the namespace the engine writes to.
func (e *Engine) Namespace() string { return e.keys.Namespace() }

// Keys returns the key resolver of the engine's namespace.
func (e *Engine) Keys() keys.Resolver { return e.keys }

func msSince(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}
