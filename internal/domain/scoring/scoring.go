// Package scoring turns a judged submission into leaderboard points.
package scoring

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/akashca-pro/codex-problem-service-sub000/internal/domain/model"
)

const defaultDifficultyWeight = 10

// DefaultWeights are used when no weights are configured.
var DefaultWeights = map[string]float64{
	"easy":   10,
	"medium": 20,
	"hard":   40,
}

// Option applies a configuration option to the DifficultyScorer.
type Option func(*DifficultyScorer)

// WithWeights replaces the difficulty weights. Names are matched
// case-insensitively; non-positive weights are ignored.
func WithWeights(weights map[string]float64, defaultWeight float64) Option {
	return func(s *DifficultyScorer) {
		s.weights = make(map[string]float64, len(weights))
		for name, w := range weights {
			if w > 0 && !math.IsInf(w, 0) {
				s.weights[strings.ToLower(strings.TrimSpace(name))] = w
			}
		}
		if defaultWeight > 0 && !math.IsInf(defaultWeight, 0) {
			s.defaultWeight = defaultWeight
		}
	}
}

// Scorer computes the points a submission is worth.
type Scorer interface {
	// Score returns the points for sub, honoring ctx for cancellation.
	Score(ctx context.Context, sub model.Submission) (float64, error)
}

// DifficultyScorer awards a fixed weight per problem difficulty. Rejected
// submissions are worth nothing.
type DifficultyScorer struct {
	weights       map[string]float64
	defaultWeight float64
}

// NewDifficultyScorer creates a scorer with DefaultWeights unless overridden.
func NewDifficultyScorer(opts ...Option) *DifficultyScorer {
	s := &DifficultyScorer{
		weights:       make(map[string]float64, len(DefaultWeights)),
		defaultWeight: defaultDifficultyWeight,
	}
	for name, w := range DefaultWeights {
		s.weights[name] = w
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score returns the weight of the submission's difficulty, or the default
// weight for unknown difficulties.
func (s *DifficultyScorer) Score(ctx context.Context, sub model.Submission) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("context cancelled: %w", err)
	}
	if !sub.Accepted {
		return 0, nil
	}
	return s.Weight(sub.Difficulty), nil
}

// Weight returns the points for a difficulty name.
func (s *DifficultyScorer) Weight(difficulty string) float64 {
	if w, ok := s.weights[strings.ToLower(strings.TrimSpace(difficulty))]; ok {
		return w
	}
	return s.defaultWeight
}
