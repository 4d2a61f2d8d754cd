// Package types contains the JSON shapes served by the HTTP API.
package types

import "github.com/akashca-pro/codex-problem-service-sub000/internal/domain/model"

// Entry is one leaderboard row.
type Entry struct {
	Rank           int     `json:"rank"`
	UserID         string  `json:"user_id"`
	Score          float64 `json:"score"`
	Entity         string  `json:"entity,omitempty"`
	Username       string  `json:"username,omitempty"`
	ProblemsSolved int64   `json:"problems_solved"`
}

// Leaderboard is a ranked view for one scope.
type Leaderboard struct {
	Scope   string  `json:"scope"`
	Entity  string  `json:"entity,omitempty"`
	Entries []Entry `json:"entries"`
}

// User is a single user's standing.
type User struct {
	UserID         string  `json:"user_id"`
	Username       *string `json:"username"`
	Score          float64 `json:"score"`
	Entity         string  `json:"entity"`
	GlobalRank     int64   `json:"global_rank"`
	EntityRank     int64   `json:"entity_rank"`
	ProblemsSolved int64   `json:"problems_solved"`
}

// ResyncResult reports a completed resync.
type ResyncResult struct {
	RunID       string  `json:"run_id"`
	Users       int     `json:"users"`
	Entities    int     `json:"entities"`
	KeysDeleted int     `json:"keys_deleted"`
	DurationMS  float64 `json:"duration_ms"`
}

// FromEntries converts hydrated engine rows.
func FromEntries(in []model.LeaderboardEntry) []Entry {
	out := make([]Entry, len(in))
	for i, e := range in {
		out[i] = Entry{
			Rank:           e.Rank,
			UserID:         e.ID,
			Score:          e.Score,
			Entity:         e.Entity,
			Username:       e.Username,
			ProblemsSolved: e.ProblemsSolved,
		}
	}
	return out
}

// FromUser converts a user's standing. An unknown username is null.
func FromUser(d model.UserLeaderboardData, solved int64) User {
	u := User{
		UserID:         d.UserID,
		Score:          d.Score,
		Entity:         d.Entity,
		GlobalRank:     d.GlobalRank,
		EntityRank:     d.EntityRank,
		ProblemsSolved: solved,
	}
	if d.Username != "" {
		name := d.Username
		u.Username = &name
	}
	return u
}
