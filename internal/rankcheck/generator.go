package rankcheck

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/akashca-pro/codex-problem-service-sub000/internal/domain/model"
	"github.com/akashca-pro/codex-problem-service-sub000/internal/domain/scoring"
)

const acceptRate = 0.6

// submission mirrors the POST /submissions body.
type submission struct {
	SubmissionID string `json:"submission_id"`
	UserID       string `json:"user_id"`
	Username     string `json:"username,omitempty"`
	Entity       string `json:"entity,omitempty"`
	ProblemID    string `json:"problem_id"`
	Difficulty   string `json:"difficulty"`
	Accepted     bool   `json:"accepted"`
	SubmittedAt  string `json:"submitted_at"`
}

// expectation is what the service should converge to for one user.
type expectation struct {
	Score  float64
	Entity string
	Solved int64
}

// generate builds cfg.Submissions submissions in chronological order and the
// scores they should produce. Each user stays in one entity so the entity
// leaderboards are exact.
func generate(ctx context.Context, cfg *Config, rng *rand.Rand) ([]submission, map[string]*expectation, error) {
	scorer := scoring.NewDifficultyScorer(scoring.WithWeights(cfg.Weights, 0))
	difficulties := make([]string, 0, len(cfg.Weights))
	for d := range cfg.Weights {
		difficulties = append(difficulties, d)
	}
	sort.Strings(difficulties)

	users := make([]string, cfg.Users)
	entityOf := make(map[string]string, cfg.Users)
	for i := range users {
		users[i] = "u-" + uuid.NewString()[:8]
		entityOf[users[i]] = cfg.Entities[rng.IntN(len(cfg.Entities))]
	}

	run := uuid.NewString()[:8]
	base := time.Now().UTC().Add(-time.Duration(cfg.Submissions) * time.Millisecond)
	expected := make(map[string]*expectation, cfg.Users)
	solved := map[[2]string]bool{}
	subs := make([]submission, cfg.Submissions)

	for i := range subs {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		user := users[rng.IntN(len(users))]
		difficulty := difficulties[rng.IntN(len(difficulties))]
		problem := fmt.Sprintf("%s-%d", difficulty, rng.IntN(cfg.Problems))
		s := submission{
			SubmissionID: fmt.Sprintf("%s-%06d", run, i),
			UserID:       user,
			Username:     "name-" + user,
			Entity:       entityOf[user],
			ProblemID:    problem,
			Difficulty:   difficulty,
			Accepted:     rng.Float64() < acceptRate,
			SubmittedAt:  base.Add(time.Duration(i) * time.Millisecond).Format(time.RFC3339),
		}
		subs[i] = s

		if !s.Accepted || solved[[2]string{user, problem}] {
			continue
		}
		solved[[2]string{user, problem}] = true
		points, err := scorer.Score(ctx, model.Submission{Accepted: true, Difficulty: difficulty})
		if err != nil {
			return nil, nil, err
		}
		e := expected[user]
		if e == nil {
			e = &expectation{Entity: entityOf[user]}
			expected[user] = e
		}
		e.Score += points
		e.Solved++
	}
	return subs, expected, nil
}
