// Command rank-check drives a running rankd with a synthetic workload and
// verifies the leaderboards it serves.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/akashca-pro/codex-problem-service-sub000/internal/rankcheck"
	"github.com/akashca-pro/codex-problem-service-sub000/pkg/logger"
)

func main() {
	if err := newCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newCmd() *cobra.Command {
	cfg := rankcheck.DefaultConfig()
	var seed uint64
	var weights map[string]string

	cmd := &cobra.Command{
		Use:          "rank-check",
		Short:        "Submit a synthetic workload to rankd and verify its leaderboards",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := logger.Init(logger.WithWriter(cmd.ErrOrStderr())); err != nil {
				return err
			}
			if len(weights) > 0 {
				parsed, err := parseWeights(weights)
				if err != nil {
					return err
				}
				cfg.Weights = parsed
			}
			if cfg.Verbose {
				_ = logger.SetLevelString("debug")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cmd, cfg, seed)
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.BaseURL, "url", cfg.BaseURL, "base URL of rankd")
	f.IntVar(&cfg.Users, "users", cfg.Users, "distinct users to simulate")
	f.IntVar(&cfg.Problems, "problems", cfg.Problems, "distinct problems per difficulty")
	f.IntVar(&cfg.Submissions, "submissions", cfg.Submissions, "submissions to generate")
	f.StringSliceVar(&cfg.Entities, "entities", cfg.Entities, "entities users are spread over")
	f.StringToStringVar(&weights, "weights", nil, "points per difficulty, e.g. easy=10,hard=40; must match the server")
	f.IntVar(&cfg.TopN, "top", cfg.TopN, "leaderboard size to verify")
	f.IntVar(&cfg.Workers, "workers", cfg.Workers, "concurrent requests")
	f.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "HTTP request timeout")
	f.DurationVar(&cfg.Settle, "settle", cfg.Settle, "how long to wait for scoring to finish")
	f.StringVar(&cfg.OutputFile, "output", "", "write generated submissions to this JSON file")
	f.BoolVar(&cfg.Resync, "resync", false, "trigger a resync and verify again")
	f.BoolVarP(&cfg.Verbose, "verbose", "v", false, "log every rejected submission")
	f.Uint64Var(&seed, "seed", 0, "random seed; 0 picks one")
	return cmd
}

func parseWeights(in map[string]string) (map[string]float64, error) {
	out := make(map[string]float64, len(in))
	for name, raw := range in {
		w, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("weight %q: %w", name, err)
		}
		out[name] = w
	}
	return out, nil
}

func run(ctx context.Context, cmd *cobra.Command, cfg rankcheck.Config, seed uint64) error {
	log := logger.Named("rank-check")
	opts := []rankcheck.RunnerOption{rankcheck.WithLogger(log)}
	if seed != 0 {
		opts = append(opts, rankcheck.WithSeed(seed))
	}
	r, err := rankcheck.NewRunner(cfg, opts...)
	if err != nil {
		return err
	}

	stats, err := r.Run(ctx)
	p := message.NewPrinter(language.English)
	p.Fprintf(cmd.OutOrStdout(), "generated %d, accepted %d, duplicate %d, failed %d, retried %d\n",
		stats.Generated, stats.Accepted, stats.Duplicate, stats.Failed, stats.Throttled)
	p.Fprintf(cmd.OutOrStdout(), "ranked %d, checked %d, foreign %d, mismatches %d in %v\n",
		stats.Ranked, stats.Checked, stats.Foreign, stats.Mismatches, stats.Duration.Round(time.Millisecond))

	switch {
	case errors.Is(err, rankcheck.ErrMismatch):
		return fmt.Errorf("verification failed: %w", err)
	case err != nil:
		log.Error(ctx, "check aborted", logger.Error(err))
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "OK")
	return nil
}
