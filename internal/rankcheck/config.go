// Package rankcheck drives a running rankd over HTTP: it submits synthetic
// submissions, waits for them to be scored and checks the served leaderboards
// against scores computed locally.
package rankcheck

import (
	"errors"
	"time"
)

// Config holds configuration for a check run.
type Config struct {
	BaseURL     string        // Base URL of the service
	Users       int           // Distinct users to simulate
	Problems    int           // Distinct problems per difficulty
	Submissions int           // Submissions to generate
	Entities    []string      // Entities users are spread over
	Weights     map[string]float64
	TopN        int           // Leaderboard size to fetch
	Workers     int           // Concurrent HTTP requests
	Timeout     time.Duration // HTTP request timeout
	Settle      time.Duration // How long to wait for scoring to finish
	OutputFile  string        // Optional JSON dump of generated submissions
	Resync      bool          // Trigger a resync and verify again
	Verbose     bool
}

// DefaultConfig returns settings for a local rankd.
func DefaultConfig() Config {
	return Config{
		BaseURL:     "http://localhost:9080",
		Users:       200,
		Problems:    20,
		Submissions: 5000,
		Entities:    []string{"IN", "US", "DE", "BR", "JP"},
		Weights:     map[string]float64{"easy": 10, "medium": 20, "hard": 40},
		TopN:        50,
		Workers:     16,
		Timeout:     10 * time.Second,
		Settle:      time.Minute,
	}
}

// Validate rejects configurations the generator cannot work with.
func (c Config) Validate() error {
	switch {
	case c.BaseURL == "":
		return errors.New("base url is required")
	case c.Users < 1 || c.Problems < 1 || c.Submissions < 1:
		return errors.New("users, problems and submissions must be positive")
	case len(c.Entities) == 0:
		return errors.New("at least one entity is required")
	case len(c.Weights) == 0:
		return errors.New("at least one difficulty weight is required")
	case c.TopN < 1 || c.Workers < 1:
		return errors.New("top and workers must be positive")
	}
	return nil
}

// Stats holds run statistics.
type Stats struct {
	Generated  int
	Accepted   int
	Duplicate  int
	Failed     int
	Throttled  int
	Ranked     int
	Checked    int
	Foreign    int
	Mismatches int
	Duration   time.Duration
}
