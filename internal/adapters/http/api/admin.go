package api

import (
	"context"
	"net/http"

	"github.com/akashca-pro/codex-problem-service-sub000/internal/domain/types"
)

// AdminDependencies defines the interface for maintenance operations.
type AdminDependencies interface {
	Resync(ctx context.Context) (types.ResyncResult, error)
}

// AdminHandler handles /admin requests.
type AdminHandler struct {
	deps AdminDependencies
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(deps AdminDependencies) *AdminHandler {
	return &AdminHandler{deps: deps}
}

// HandleResync handles POST /admin/resync.
func (h *AdminHandler) HandleResync(w http.ResponseWriter, r *http.Request) {
	res, err := h.deps.Resync(r.Context())
	if err != nil {
		writeError(w, Wrap("api.resync", err))
		return
	}
	writeJSON(w, http.StatusOK, res)
}
