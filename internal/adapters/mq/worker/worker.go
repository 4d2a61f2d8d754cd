// Package worker drains the submission queue: each submission is scored and
// handed to an Applier that records it and updates the leaderboard.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/akashca-pro/codex-problem-service-sub000/internal/domain/model"
	"github.com/akashca-pro/codex-problem-service-sub000/pkg/logger"
	"github.com/akashca-pro/codex-problem-service-sub000/pkg/metrics"
)

const (
	defaultWorkerMultiplier = 2 // multiplier for runtime.NumCPU()
	workerStopTimeout       = 5 * time.Second
)

// Scorer computes the points of a submission.
type Scorer interface {
	Score(ctx context.Context, sub model.Submission) (float64, error)
}

// Applier records a scored submission.
type Applier interface {
	Apply(ctx context.Context, sub model.Submission) error
}

// Queue is where workers receive submissions from.
type Queue interface {
	Dequeue() <-chan model.Submission
}

// InMemoryWorker processes submissions one at a time.
type InMemoryWorker struct {
	queue   Queue
	scorer  Scorer
	applier Applier
	name    string

	processed atomic.Int64
	failed    atomic.Int64

	shutdown chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a worker.
func NewInMemoryWorker(queue Queue, scorer Scorer, applier Applier, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    queue,
		scorer:   scorer,
		applier:  applier,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.Named(w.name)
	return w
}

// Run processes submissions until the queue is closed and drained, ctx is
// cancelled or Shutdown is called.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	items := w.queue.Dequeue()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case sub, ok := <-items:
			if !ok {
				return
			}
			metrics.RecordQueueDequeue()
			if err := w.process(ctx, sub); err != nil {
				w.failed.Add(1)
				w.logger.Error(ctx, "error processing submission", logger.String("submission_id", sub.ID), logger.Error(err))
				continue
			}
			w.processed.Add(1)
		}
	}
}

// Shutdown stops the worker without draining the queue.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.stopOnce.Do(func() { close(w.shutdown) })
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Done is closed when Run returns.
func (w *InMemoryWorker) Done() <-chan struct{} { return w.done }

func (w *InMemoryWorker) process(ctx context.Context, sub model.Submission) error { //nolint:gocritic // hugeParam: submissions travel by value
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	scoreStart := time.Now()
	points, err := w.scorer.Score(ctx, sub)
	metrics.RecordScoringLatency(float64(time.Since(scoreStart).Microseconds()) / 1000)
	if err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "scoring_error")
		return fmt.Errorf("score submission %s: %w", sub.ID, err)
	}
	sub.Points = points

	if err := w.applier.Apply(ctx, sub); err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "apply_error")
		return fmt.Errorf("apply submission %s: %w", sub.ID, err)
	}
	return nil
}

// Pool runs a fixed set of workers over one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	logger  logger.Logger
}

// NewPool creates workerCount workers. workerCount < 1 picks a default from
// the number of CPUs.
func NewPool(workerCount int, queue Queue, scorer Scorer, applier Applier, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}
	base := &InMemoryWorker{logger: logger.Nop()}
	for _, opt := range opts {
		opt(base)
	}
	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   queue,
		logger:  base.logger.Named("worker-pool"),
	}
	for i := range p.workers {
		wopts := append(append([]Option{}, opts...), WithName("worker-"+strconv.Itoa(i)))
		p.workers[i] = NewInMemoryWorker(queue, scorer, applier, wopts...)
	}
	metrics.UpdateWorkerCount(workerCount)
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Processed returns the number of successfully applied submissions.
func (p *Pool) Processed() int64 {
	var n int64
	for _, w := range p.workers {
		n += w.processed.Load()
	}
	return n
}

// Failed returns the number of submissions that could not be scored or applied.
func (p *Pool) Failed() int64 {
	var n int64
	for _, w := range p.workers {
		n += w.failed.Load()
	}
	return n
}

// Start launches every worker.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Shutdown closes the queue and lets the workers drain it. Workers still
// running when ctx expires are stopped and the remaining submissions dropped.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	var timedOut int
	for _, w := range p.workers {
		select {
		case <-w.done:
		case <-ctx.Done():
			stopCtx, cancel := context.WithTimeout(context.Background(), workerStopTimeout)
			_ = w.Shutdown(stopCtx)
			cancel()
			timedOut++
		}
	}
	metrics.UpdateWorkerCount(0)
	if timedOut > 0 {
		p.logger.Warn(ctx, "workers stopped before draining the queue", logger.Int("workers", timedOut))
		return fmt.Errorf("worker pool shutdown: %w", ctx.Err())
	}
	return nil
}
