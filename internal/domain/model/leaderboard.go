// Package model contains domain models passed between layers.
package model

// LeaderboardEntry is one hydrated row of a ranked view. It is derived at
// query time and never stored.
type LeaderboardEntry struct {
	ID             string
	Score          float64
	Entity         string
	Username       string
	ProblemsSolved int64
	// Rank is the competition rank: ties share the position of the first tied entry.
	Rank int
}

// UserLeaderboardData is a single user's position. Ranks are 0-based
// positional ranks, -1 when the user is absent from the set.
type UserLeaderboardData struct {
	UserID     string
	Username   string
	Score      float64
	Entity     string
	GlobalRank int64
	EntityRank int64
}

// Records returned by the authoritative source.

type UserScore struct {
	UserID     string
	TotalScore float64
}

type UserEntity struct {
	UserID string
	Entity string
}

type UserEntityScore struct {
	UserID     string
	Entity     string
	TotalScore float64
}

type UserCount struct {
	UserID string
	Count  int64
}

type UserName struct {
	UserID   string
	Username string
}
