// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/akashca-pro/codex-problem-service-sub000/internal/domain/types"
)

const (
	defaultLimit    = 10
	defaultMaxLimit = 1000
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	SubmissionDependencies
	LeaderboardDependencies
	UserDependencies
	AdminDependencies
	HealthDependencies
	StatsProvider
}

// Entry mirrors the read shape returned by leaderboard queries.
type Entry = types.Entry

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	submissionsHandler *SubmissionsHandler
	leaderboardHandler *LeaderboardHandler
	userHandler        *UserHandler
	adminHandler       *AdminHandler
}

// Option configures a Server.
type Option func(*serverConfig)

type serverConfig struct {
	maxLimit int
}

// WithMaxLimit caps the limit query parameter of leaderboard reads.
func WithMaxLimit(n int) Option {
	return func(c *serverConfig) {
		if n > 0 {
			c.maxLimit = n
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	cfg := serverConfig{maxLimit: defaultMaxLimit}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Server{
		healthHandler:      NewHealthHandler(deps),
		statsHandler:       NewStatsHandler(deps),
		submissionsHandler: NewSubmissionsHandler(deps),
		leaderboardHandler: NewLeaderboardHandler(deps, cfg.maxLimit),
		userHandler:        NewUserHandler(deps),
		adminHandler:       NewAdminHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /readyz", MetricsMiddleware(s.healthHandler.HandleReady, "readyz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("POST /submissions", MetricsMiddleware(s.submissionsHandler.HandlePostSubmission, "submissions"))

	mux.HandleFunc("GET /leaderboard", MetricsMiddleware(s.leaderboardHandler.HandleGetGlobal, "leaderboard"))
	mux.HandleFunc("GET /leaderboard/{entity}", MetricsMiddleware(s.leaderboardHandler.HandleGetEntity, "leaderboard_entity"))

	mux.HandleFunc("GET /users/{id}", MetricsMiddleware(s.userHandler.HandleGet, "user"))
	mux.HandleFunc("PUT /users/{id}", MetricsMiddleware(s.userHandler.HandlePut, "user"))
	mux.HandleFunc("DELETE /users/{id}", MetricsMiddleware(s.userHandler.HandleDelete, "user"))
	mux.HandleFunc("POST /users/{id}/increment", MetricsMiddleware(s.userHandler.HandleIncrement, "user_increment"))
	mux.HandleFunc("POST /users/{id}/decrement", MetricsMiddleware(s.userHandler.HandleDecrement, "user_decrement"))
	mux.HandleFunc("PUT /users/{id}/entity", MetricsMiddleware(s.userHandler.HandleEntity, "user_entity"))
	mux.HandleFunc("PUT /users/{id}/username", MetricsMiddleware(s.userHandler.HandleUsername, "user_username"))

	mux.HandleFunc("POST /admin/resync", MetricsMiddleware(s.adminHandler.HandleResync, "admin_resync"))
}
