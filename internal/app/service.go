// Package service wires the leaderboard engine to submission ingestion and
// implements the dependencies required by the HTTP API.
package service

import (
	"context"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	eventqueue "github.com/akashca-pro/codex-problem-service-sub000/internal/adapters/mq/queue"
	workerpool "github.com/akashca-pro/codex-problem-service-sub000/internal/adapters/mq/worker"
	"github.com/akashca-pro/codex-problem-service-sub000/internal/adapters/repository"
	"github.com/akashca-pro/codex-problem-service-sub000/internal/config"
	"github.com/akashca-pro/codex-problem-service-sub000/internal/domain/dedupe"
	"github.com/akashca-pro/codex-problem-service-sub000/internal/domain/leaderboard"
	"github.com/akashca-pro/codex-problem-service-sub000/internal/domain/model"
	"github.com/akashca-pro/codex-problem-service-sub000/internal/domain/scoring"
	"github.com/akashca-pro/codex-problem-service-sub000/internal/domain/types"
	"github.com/akashca-pro/codex-problem-service-sub000/pkg/logger"
	"github.com/akashca-pro/codex-problem-service-sub000/pkg/metrics"
)

// Source is the authoritative submission store.
type Source interface {
	leaderboard.Source
	Record(ctx context.Context, sub model.Submission) (model.RecordResult, error)
	Count(ctx context.Context) (int, error)
}

// Service implements the API dependencies for the leaderboard system.
type Service struct {
	mu sync.RWMutex

	// Injected; owned by the caller.
	store  repository.Store
	source Source

	// Built by New.
	engine  *leaderboard.Engine
	scorer  scoring.Scorer
	deduper dedupe.Deduper

	// Built by Start.
	queue *eventqueue.InMemoryQueue
	pool  *workerpool.Pool

	// Configuration
	namespace         string
	scanBatchSize     int
	workerCount       int
	queueSize         int
	dedupeSize        int
	weights           map[string]float64
	defaultWeight     float64
	resyncOnStart     bool
	resyncInterval    time.Duration
	resyncMinInterval time.Duration

	// Resync coordination
	resyncGroup  singleflight.Group
	resyncLimit  *rate.Limiter
	lastResync   *types.ResyncResult
	lastResyncAt time.Time

	// State
	started bool
	stopped bool
	stopCh  chan struct{}
	bg      sync.WaitGroup

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithNamespace sets the key namespace of the engine.
func WithNamespace(ns string) Option {
	return func(s *Service) { s.namespace = ns }
}

// WithScanBatchSize sets the SCAN COUNT hint used by resync and force-clear.
func WithScanBatchSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.scanBatchSize = n
		}
	}
}

// WithWorkerCount sets the number of submission workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the submission queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the submission-id cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithDifficultyWeights sets the points per difficulty.
func WithDifficultyWeights(weights map[string]float64, defaultWeight float64) Option {
	return func(s *Service) {
		s.weights = weights
		s.defaultWeight = defaultWeight
	}
}

// WithResyncOnStart rebuilds the namespace from the source during Start.
func WithResyncOnStart(enabled bool) Option {
	return func(s *Service) { s.resyncOnStart = enabled }
}

// WithResyncInterval schedules periodic resyncs. Zero disables them.
func WithResyncInterval(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.resyncInterval = d
		}
	}
}

// WithResyncMinInterval throttles on-demand resyncs. Zero disables throttling.
func WithResyncMinInterval(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.resyncMinInterval = d
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// OptionsFromConfig maps the process configuration to service options.
func OptionsFromConfig(cfg *config.Config) []Option {
	return []Option{
		WithNamespace(cfg.Namespace),
		WithScanBatchSize(cfg.ScanBatchSize),
		WithWorkerCount(cfg.WorkerCount),
		WithQueueSize(cfg.QueueSize),
		WithDedupeSize(cfg.DedupeSize),
		WithDifficultyWeights(cfg.DifficultyWeights, cfg.DefaultDifficultyWeight),
		WithResyncOnStart(cfg.ResyncOnStart),
		WithResyncInterval(cfg.ResyncInterval()),
		WithResyncMinInterval(cfg.ResyncMinInterval()),
	}
}

// New constructs a Service over store and source. source may be nil, in
// which case submissions and resyncs are unavailable.
func New(store repository.Store, source Source, opts ...Option) *Service {
	s := &Service{
		store:             store,
		source:            source,
		scanBatchSize:     100,
		workerCount:       runtime.NumCPU() * 2,
		queueSize:         10_000,
		dedupeSize:        100_000,
		resyncMinInterval: 5 * time.Second,
		stopCh:            make(chan struct{}),
		logger:            logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	var engineSource leaderboard.Source
	if source != nil {
		engineSource = source
	}
	s.engine = leaderboard.New(store, engineSource,
		leaderboard.WithNamespace(s.namespace),
		leaderboard.WithLogger(s.logger.Named("leaderboard")),
		leaderboard.WithScanBatchSize(s.scanBatchSize),
	)
	s.scorer = scoring.NewDifficultyScorer(scoring.WithWeights(s.weights, s.defaultWeight))
	s.deduper = dedupe.NewInMemory(dedupe.WithMaxSize(s.dedupeSize))

	limit := rate.Inf
	if s.resyncMinInterval > 0 {
		limit = rate.Every(s.resyncMinInterval)
	}
	s.resyncLimit = rate.NewLimiter(limit, 1)
	return s
}

// Engine exposes the leaderboard engine for one-shot maintenance commands.
func (s *Service) Engine() *leaderboard.Engine { return s.engine }

// Start launches the workers, runs the start-up resync and schedules the
// background loops. A failed start-up resync is logged, not returned. A
// stopped service cannot be started again.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	if s.stopped {
		s.mu.Unlock()
		return ErrStopped
	}
	s.logger.Info(ctx, "starting leaderboard service...", logger.String("namespace", s.engine.Namespace()))

	s.queue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
	s.pool = workerpool.NewPool(s.workerCount, s.queue, s.scorer, s,
		workerpool.WithLogger(s.logger),
	)
	// Workers outlive the request context that started them.
	s.pool.Start(context.WithoutCancel(ctx))
	s.started = true
	s.mu.Unlock()

	if s.resyncOnStart && s.source != nil {
		if _, err := s.runResync(ctx, "startup", false); err != nil {
			s.logger.Error(ctx, "start-up resync failed; serving existing cache", logger.Error(err))
		}
	}

	if s.resyncInterval > 0 && s.source != nil {
		s.bg.Add(1)
		go s.periodicResync()
	}
	if refresh := metrics.Global().RefreshInterval(); refresh > 0 {
		s.bg.Add(1)
		go s.sampleRuntime(s.queue, refresh)
	}

	s.logger.Info(ctx, "leaderboard service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
	)
	return nil
}

// Stop drains the submission queue and stops the background loops. The
// store and source are left open for the caller to close.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	s.stopped = true
	pool := s.pool
	s.mu.Unlock()

	s.logger.Info(ctx, "stopping leaderboard service...")
	close(s.stopCh)
	err := pool.Shutdown(ctx)
	s.bg.Wait()
	s.logger.Info(ctx, "leaderboard service stopped", logger.Int64("processed", pool.Processed()))
	return err
}

// sampleRuntime refreshes the process gauges and the queue depth gauge.
func (s *Service) sampleRuntime(q *eventqueue.InMemoryQueue, every time.Duration) {
	defer s.bg.Done()
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	var ms runtime.MemStats
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			runtime.ReadMemStats(&ms)
			metrics.UpdateSystemMemoryUsage(ms.Alloc)
			metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
			metrics.UpdateQueueSize(q.Len())
		}
	}
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":     s.started,
		"namespace":   s.engine.Namespace(),
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
		"dedupeCount": s.deduper.Size(),
	}
	if s.queue != nil {
		stats["queueLength"] = s.queue.Len()
	}
	if s.pool != nil {
		stats["processed"] = s.pool.Processed()
		stats["failed"] = s.pool.Failed()
	}
	if n, err := s.store.ZCard(ctx, s.engine.Keys().Global()); err == nil {
		stats["rankedUsers"] = n
	}
	if s.source != nil {
		if n, err := s.source.Count(ctx); err == nil {
			stats["submissions"] = n
		}
	}
	if s.lastResync != nil {
		stats["lastResync"] = *s.lastResync
		stats["lastResyncAt"] = s.lastResyncAt.UTC().Format(time.RFC3339)
	}
	return stats
}

// Ready reports whether the store answers.
func (s *Service) Ready(ctx context.Context) error {
	return s.store.Ping(ctx)
}
