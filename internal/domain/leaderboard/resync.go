package leaderboard

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/akashca-pro/codex-problem-service-sub000/internal/adapters/repository"
	"github.com/akashca-pro/codex-problem-service-sub000/internal/domain/model"
	"github.com/akashca-pro/codex-problem-service-sub000/pkg/logger"
	"github.com/akashca-pro/codex-problem-service-sub000/pkg/metrics"
)

var errNoSource = errors.New("no authoritative source configured")

// ResyncStats describes a completed rebuild.
type ResyncStats struct {
	Users         int
	Entities      int
	EntityMembers int
	Usernames     int
	SolvedCounts  int
	KeysDeleted   int
	Duration      time.Duration
}

// snapshot is everything read from the source for one rebuild.
type snapshot struct {
	totals       []model.UserScore
	latest       []model.UserEntity
	entityTotals []model.UserEntityScore
	solved       []model.UserCount
	names        []model.UserName
}

// Resync replaces the namespace with the state of the source. The delete and
// the repopulation run as one transaction, so readers see either the old or
// the new namespace. Concurrent Resync calls must be serialized by the caller.
func (e *Engine) Resync(ctx context.Context) (stats ResyncStats, err error) {
	const op = "resync"
	start := time.Now()
	defer func() {
		stats.Duration = time.Since(start)
		metrics.RecordResync(err, msSince(start), stats.Users, stats.Entities)
	}()

	if err := e.checkNamespace(op); err != nil {
		return stats, err
	}
	if e.source == nil {
		return stats, sourceErr(op, errNoSource)
	}
	snap, err := e.readSource(ctx)
	if err != nil {
		return stats, sourceErr(op, err)
	}
	existing, err := e.scanNamespace(ctx, e.keys)
	if err != nil {
		return stats, storeErr(op, err)
	}

	sets := buildEntitySets(snap)
	stale := mergeKeys(existing, e.keys.Global(), e.keys.UserEntity(), e.keys.UserSolved(), e.keys.UserUsername())

	err = e.store.Tx(ctx, func(b repository.Batch) {
		b.Del(stale...)
		for _, u := range snap.totals {
			b.ZAdd(e.keys.Global(), u.UserID, u.TotalScore)
		}
		for _, u := range snap.latest {
			if u.Entity != "" {
				b.HSet(e.keys.UserEntity(), u.UserID, u.Entity)
			}
		}
		for _, entity := range sortedKeys(sets) {
			for _, m := range sets[entity] {
				b.ZAdd(e.keys.Entity(entity), m.ID, m.Score)
				stats.EntityMembers++
			}
		}
		for _, c := range snap.solved {
			b.HSet(e.keys.UserSolved(), c.UserID, strconv.FormatInt(c.Count, 10))
		}
		for _, n := range snap.names {
			if n.Username != "" {
				b.HSet(e.keys.UserUsername(), n.UserID, n.Username)
				stats.Usernames++
			}
		}
	})
	if err != nil {
		return ResyncStats{}, storeErr(op, err)
	}

	stats.Users = len(snap.totals)
	stats.Entities = len(sets)
	stats.SolvedCounts = len(snap.solved)
	stats.KeysDeleted = len(existing)
	e.log.Info(ctx, "resync completed",
		logger.String("namespace", e.keys.Namespace()),
		logger.Int("users", stats.Users),
		logger.Int("entities", stats.Entities),
		logger.Int("keys_deleted", stats.KeysDeleted),
		logger.Duration("duration", time.Since(start)),
	)
	return stats, nil
}

func (e *Engine) readSource(ctx context.Context) (snapshot, error) {
	var s snapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { s.totals, err = e.source.UserTotals(gctx); return err })
	g.Go(func() (err error) { s.latest, err = e.source.UserLatestEntities(gctx); return err })
	g.Go(func() (err error) { s.entityTotals, err = e.source.UserEntityTotals(gctx); return err })
	g.Go(func() (err error) { s.solved, err = e.source.UserSolvedCounts(gctx); return err })
	g.Go(func() (err error) { s.names, err = e.source.UserLatestUsernames(gctx); return err })
	return s, g.Wait()
}

// buildEntitySets places every user with a global total into the set of
// their latest entity, scored with their total for that entity (0 if the
// source has none). Totals for other entities the user once belonged to
// are dropped so each user sits in at most one entity set.
func buildEntitySets(s snapshot) map[string][]repository.Member {
	ranked := make(map[string]bool, len(s.totals))
	for _, u := range s.totals {
		ranked[u.UserID] = true
	}
	pairTotal := make(map[[2]string]float64, len(s.entityTotals))
	for _, p := range s.entityTotals {
		pairTotal[[2]string{p.UserID, p.Entity}] += p.TotalScore
	}

	sets := make(map[string][]repository.Member)
	for _, u := range s.latest {
		if u.Entity == "" || !ranked[u.UserID] {
			continue
		}
		sets[u.Entity] = append(sets[u.Entity], repository.Member{
			ID:    u.UserID,
			Score: pairTotal[[2]string{u.UserID, u.Entity}],
		})
	}
	return sets
}

func mergeKeys(existing []string, always ...string) []string {
	seen := make(map[string]struct{}, len(existing)+len(always))
	out := make([]string, 0, len(existing)+len(always))
	for _, k := range append(append([]string{}, existing...), always...) {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
