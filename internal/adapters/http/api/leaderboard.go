package api

import (
	"context"
	"net/http"

	"github.com/akashca-pro/codex-problem-service-sub000/internal/domain/types"
)

// LeaderboardDependencies defines the interface for leaderboard reads.
type LeaderboardDependencies interface {
	Leaderboard(ctx context.Context, limit int) (types.Leaderboard, error)
	EntityLeaderboard(ctx context.Context, entity string, limit int) (types.Leaderboard, error)
}

// LeaderboardHandler handles leaderboard requests.
type LeaderboardHandler struct {
	deps     LeaderboardDependencies
	maxLimit int
}

// NewLeaderboardHandler creates a new leaderboard handler.
func NewLeaderboardHandler(deps LeaderboardDependencies, maxLimit int) *LeaderboardHandler {
	return &LeaderboardHandler{
		deps:     deps,
		maxLimit: maxLimit,
	}
}

// HandleGetGlobal handles GET /leaderboard?limit=N requests.
func (h *LeaderboardHandler) HandleGetGlobal(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_leaderboard"
	n, err := parseLimit(r, h.maxLimit)
	if err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	lb, err := h.deps.Leaderboard(r.Context(), n)
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, lb)
}

// HandleGetEntity handles GET /leaderboard/{entity}?limit=N requests.
func (h *LeaderboardHandler) HandleGetEntity(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_entity_leaderboard"
	n, err := parseLimit(r, h.maxLimit)
	if err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	lb, err := h.deps.EntityLeaderboard(r.Context(), r.PathValue("entity"), n)
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, lb)
}
