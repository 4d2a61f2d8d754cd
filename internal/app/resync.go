package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/akashca-pro/codex-problem-service-sub000/internal/domain/types"
	"github.com/akashca-pro/codex-problem-service-sub000/pkg/logger"
	"github.com/akashca-pro/codex-problem-service-sub000/pkg/metrics"
)

const resyncKey = "resync"

// Resync rebuilds the namespace from the source on demand. Concurrent callers
// share one run. A call arriving sooner than the configured minimum interval
// after the previous run fails with ErrResyncThrottled.
func (s *Service) Resync(ctx context.Context) (types.ResyncResult, error) {
	return s.runResync(ctx, "on_demand", true)
}

// runResync serializes rebuilds through a single-flight group. The rebuild
// itself is detached from ctx so an abandoned caller cannot leave the
// namespace half written.
func (s *Service) runResync(ctx context.Context, trigger string, throttled bool) (types.ResyncResult, error) {
	if s.source == nil {
		return types.ResyncResult{}, ErrNoSource
	}

	ch := s.resyncGroup.DoChan(resyncKey, func() (any, error) {
		if throttled && !s.resyncLimit.Allow() {
			metrics.RecordResyncSkipped("throttled")
			return types.ResyncResult{}, ErrResyncThrottled
		}
		runID := uuid.NewString()
		log := s.logger.With(logger.String("run_id", runID), logger.String("trigger", trigger))
		runCtx := context.WithoutCancel(ctx)
		log.Info(runCtx, "resync started")

		stats, err := s.engine.Resync(runCtx)
		if err != nil {
			log.Error(runCtx, "resync failed", logger.Error(err))
			return types.ResyncResult{}, err
		}
		res := types.ResyncResult{
			RunID:       runID,
			Users:       stats.Users,
			Entities:    stats.Entities,
			KeysDeleted: stats.KeysDeleted,
			DurationMS:  float64(stats.Duration.Microseconds()) / 1000,
		}
		s.mu.Lock()
		s.lastResync = &res
		s.lastResyncAt = time.Now()
		s.mu.Unlock()
		return res, nil
	})

	select {
	case r := <-ch:
		if r.Shared {
			metrics.RecordResyncSkipped("coalesced")
		}
		res, _ := r.Val.(types.ResyncResult)
		return res, r.Err
	case <-ctx.Done():
		return types.ResyncResult{}, ctx.Err()
	}
}

func (s *Service) periodicResync() {
	defer s.bg.Done()
	ticker := time.NewTicker(s.resyncInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			ctx := context.Background()
			if _, err := s.runResync(ctx, "periodic", false); err != nil {
				s.logger.Error(ctx, "periodic resync failed", logger.Error(err))
			}
		}
	}
}

// ForceClear deletes every key under namespace. It is a maintenance
// operation and is not atomic.
func (s *Service) ForceClear(ctx context.Context, namespace string) (int, error) {
	return s.engine.ForceClear(ctx, namespace)
}
