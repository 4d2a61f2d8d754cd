package rankcheck

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sort"

	"github.com/akashca-pro/codex-problem-service-sub000/internal/domain/ranking"
	"github.com/akashca-pro/codex-problem-service-sub000/internal/domain/types"
)

const sampleUsers = 25

// mismatch describes one disagreement between the service and the
// locally computed scores.
type mismatch struct {
	Scope  string
	UserID string
	Detail string
}

func (m mismatch) String() string {
	if m.UserID == "" {
		return fmt.Sprintf("[%s] %s", m.Scope, m.Detail)
	}
	return fmt.Sprintf("[%s] %s: %s", m.Scope, m.UserID, m.Detail)
}

type verifier struct {
	client   *client
	cfg      *Config
	expected map[string]*expectation
}

// verify checks the global board, every entity board and a sample of users.
func (v *verifier) verify(ctx context.Context, stats *Stats) ([]mismatch, error) {
	var out []mismatch

	global, err := v.client.leaderboard(ctx, "", v.cfg.TopN)
	if err != nil {
		return nil, err
	}
	stats.Ranked = len(global.Entries)
	out = append(out, v.checkBoard("global", "", global, stats)...)

	for _, entity := range v.cfg.Entities {
		lb, err := v.client.leaderboard(ctx, entity, v.cfg.TopN)
		if err != nil {
			return nil, err
		}
		out = append(out, v.checkBoard("entity:"+entity, entity, lb, stats)...)
	}

	for _, id := range v.sample() {
		u, err := v.client.user(ctx, id)
		if err != nil {
			return nil, err
		}
		stats.Checked++
		want := v.expected[id]
		switch {
		case !sameScore(u.Score, want.Score):
			out = append(out, mismatch{"user", id, fmt.Sprintf("score %v, want %v", u.Score, want.Score)})
		case u.Entity != want.Entity:
			out = append(out, mismatch{"user", id, fmt.Sprintf("entity %q, want %q", u.Entity, want.Entity)})
		case u.GlobalRank < 0 || u.EntityRank < 0:
			out = append(out, mismatch{"user", id, "not ranked"})
		case u.ProblemsSolved != want.Solved:
			out = append(out, mismatch{"user", id, fmt.Sprintf("solved %d, want %d", u.ProblemsSolved, want.Solved)})
		}
	}
	return out, nil
}

// checkBoard validates ordering, competition ranks and the score of every
// entry that belongs to this run. Entries from other runs are counted as
// foreign and only take part in the ordering checks.
func (v *verifier) checkBoard(scope, entity string, lb types.Leaderboard, stats *Stats) []mismatch {
	var out []mismatch
	scores := make([]float64, len(lb.Entries))
	foreign := 0
	for i, e := range lb.Entries {
		scores[i] = e.Score
		if i > 0 && e.Score > lb.Entries[i-1].Score {
			out = append(out, mismatch{scope, e.UserID, fmt.Sprintf("score %v above previous %v", e.Score, lb.Entries[i-1].Score)})
		}
		want, ok := v.expected[e.UserID]
		if !ok {
			foreign++
			continue
		}
		stats.Checked++
		if !sameScore(e.Score, want.Score) {
			out = append(out, mismatch{scope, e.UserID, fmt.Sprintf("score %v, want %v", e.Score, want.Score)})
		}
		if entity != "" && want.Entity != entity {
			out = append(out, mismatch{scope, e.UserID, fmt.Sprintf("listed under %q, belongs to %q", entity, want.Entity)})
		}
		if e.Username != "name-"+e.UserID {
			out = append(out, mismatch{scope, e.UserID, fmt.Sprintf("username %q", e.Username)})
		}
	}
	stats.Foreign += foreign

	for i, r := range ranking.Competition(scores) {
		if lb.Entries[i].Rank != r {
			out = append(out, mismatch{scope, lb.Entries[i].UserID, fmt.Sprintf("rank %d, want %d", lb.Entries[i].Rank, r)})
		}
	}

	if foreign > 0 {
		return out
	}
	want := v.topScores(entity)
	if len(want) != len(scores) {
		return append(out, mismatch{Scope: scope, Detail: fmt.Sprintf("%d entries, want %d", len(scores), len(want))})
	}
	for i := range want {
		if !sameScore(scores[i], want[i]) {
			out = append(out, mismatch{Scope: scope, Detail: fmt.Sprintf("position %d score %v, want %v", i, scores[i], want[i])})
			break
		}
	}
	return out
}

// topScores returns the best cfg.TopN expected scores, optionally for one
// entity.
func (v *verifier) topScores(entity string) []float64 {
	var all []float64
	for _, e := range v.expected {
		if entity == "" || e.Entity == entity {
			all = append(all, e.Score)
		}
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(all)))
	if len(all) > v.cfg.TopN {
		all = all[:v.cfg.TopN]
	}
	return all
}

// sample picks a deterministic subset of expected users.
func (v *verifier) sample() []string {
	ids := make([]string, 0, len(v.expected))
	for id := range v.expected {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	if len(ids) > sampleUsers {
		ids = ids[:sampleUsers]
	}
	return ids
}

func sameScore(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}
