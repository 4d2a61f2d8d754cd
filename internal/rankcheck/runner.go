package rankcheck

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"os"
	"time"

	"github.com/akashca-pro/codex-problem-service-sub000/pkg/logger"
)

// ErrMismatch is returned when the served leaderboards disagree with the
// locally computed scores.
var ErrMismatch = errors.New("leaderboard mismatch")

// ErrNotSettled is returned when the service did not finish scoring the
// submissions within Config.Settle.
var ErrNotSettled = errors.New("submissions not processed in time")

const pollInterval = 100 * time.Millisecond

// Runner executes a check run.
type Runner struct {
	cfg    Config
	client *client
	rng    *rand.Rand
	log    logger.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithSeed makes the generated workload reproducible.
func WithSeed(seed uint64) RunnerOption {
	return func(r *Runner) { r.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) }
}

// WithLogger sets the run logger.
func WithLogger(l logger.Logger) RunnerOption {
	return func(r *Runner) {
		if l != nil {
			r.log = l
		}
	}
}

// WithHTTPClient replaces the HTTP client, mainly for tests.
func WithHTTPClient(c *http.Client) RunnerOption {
	return func(r *Runner) {
		if c != nil {
			r.client.http = c
		}
	}
}

// NewRunner validates cfg and builds a Runner.
func NewRunner(cfg Config, opts ...RunnerOption) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("rankcheck: %w", err)
	}
	r := &Runner{
		cfg:    cfg,
		client: newClient(&cfg),
		rng:    rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)),
		log:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run generates and submits the workload, waits for it to be scored and
// verifies the leaderboards. Mismatches are logged and reported through
// ErrMismatch.
func (r *Runner) Run(ctx context.Context) (stats Stats, err error) {
	start := time.Now()
	defer func() { stats.Duration = time.Since(start) }()

	subs, expected, err := generate(ctx, &r.cfg, r.rng)
	if err != nil {
		return stats, err
	}
	stats.Generated = len(subs)
	r.log.Info(ctx, "workload generated",
		logger.Int("submissions", len(subs)),
		logger.Int("scoredUsers", len(expected)),
	)
	if r.cfg.OutputFile != "" {
		if err := writeSubmissions(r.cfg.OutputFile, subs); err != nil {
			return stats, err
		}
	}

	baseline, err := r.processed(ctx)
	if err != nil {
		return stats, err
	}
	if err := r.client.submitAll(ctx, &r.cfg, subs, &stats, r.log); err != nil {
		return stats, err
	}
	r.log.Info(ctx, "submissions posted",
		logger.Int("accepted", stats.Accepted),
		logger.Int("duplicate", stats.Duplicate),
		logger.Int("failed", stats.Failed),
		logger.Int("throttled", stats.Throttled),
	)

	if err := r.settle(ctx, baseline+int64(stats.Accepted)); err != nil {
		return stats, err
	}

	v := &verifier{client: r.client, cfg: &r.cfg, expected: expected}
	if err := r.verify(ctx, v, &stats, "after submit"); err != nil {
		return stats, err
	}
	if !r.cfg.Resync {
		return stats, nil
	}

	res, status, err := r.client.resync(ctx)
	switch {
	case status == http.StatusTooManyRequests:
		r.log.Warn(ctx, "resync throttled; skipping post-resync verification")
		return stats, nil
	case err != nil:
		return stats, err
	}
	r.log.Info(ctx, "resync completed",
		logger.String("run_id", res.RunID),
		logger.Int("users", res.Users),
		logger.Float64("duration_ms", res.DurationMS),
	)
	return stats, r.verify(ctx, v, &stats, "after resync")
}

func (r *Runner) verify(ctx context.Context, v *verifier, stats *Stats, phase string) error {
	found, err := v.verify(ctx, stats)
	if err != nil {
		return err
	}
	stats.Mismatches += len(found)
	for _, m := range found {
		r.log.Error(ctx, "mismatch", logger.String("phase", phase), logger.String("detail", m.String()))
	}
	if len(found) > 0 {
		return fmt.Errorf("%w: %d in %s", ErrMismatch, len(found), phase)
	}
	r.log.Info(ctx, "leaderboards verified",
		logger.String("phase", phase),
		logger.Int("checked", stats.Checked),
		logger.Int("foreign", stats.Foreign),
	)
	return nil
}

// processed reads the processed plus failed job count from /stats.
func (r *Runner) processed(ctx context.Context) (int64, error) {
	st, err := r.client.stats(ctx)
	if err != nil {
		return 0, err
	}
	var n int64
	for _, key := range []string{"processed", "failed"} {
		if v, ok := st[key].(float64); ok {
			n += int64(v)
		}
	}
	return n, nil
}

// settle polls /stats until target jobs have been handled.
func (r *Runner) settle(ctx context.Context, target int64) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Settle)
	defer cancel()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		n, err := r.processed(ctx)
		if err == nil && n >= target {
			return nil
		}
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("%w: %d of %d", ErrNotSettled, n, target)
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func writeSubmissions(path string, subs []submission) error {
	raw, err := json.MarshalIndent(subs, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal submissions: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
