package api

import (
	"context"
	"net/http"

	"github.com/akashca-pro/codex-problem-service-sub000/internal/domain/types"
)

// UserDependencies defines the interface for per-user operations.
type UserDependencies interface {
	User(ctx context.Context, id string) (types.User, error)
	SetUser(ctx context.Context, id string, score float64, entity string) error
	IncrementScore(ctx context.Context, id, entity string, delta float64) error
	DecrementScore(ctx context.Context, id, entity string, delta float64) error
	UpdateEntity(ctx context.Context, id, entity string) error
	SetUsername(ctx context.Context, id, name string)
	RemoveUser(ctx context.Context, id string) error
}

type setUserRequest struct {
	Score  *float64 `json:"score" validate:"required"`
	Entity string   `json:"entity" validate:"max=128"`
}

type deltaRequest struct {
	Delta  *float64 `json:"delta" validate:"required"`
	Entity string   `json:"entity" validate:"max=128"`
}

type entityRequest struct {
	Entity string `json:"entity" validate:"required,max=128"`
}

type usernameRequest struct {
	Username string `json:"username" validate:"required,max=256"`
}

type okResponse struct {
	Status string `json:"status"`
}

// UserHandler handles /users/{id} requests.
type UserHandler struct {
	deps UserDependencies
}

// NewUserHandler creates a new user handler.
func NewUserHandler(deps UserDependencies) *UserHandler {
	return &UserHandler{deps: deps}
}

// HandleGet handles GET /users/{id}. Unranked users are returned with rank -1.
func (h *UserHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_user"
	u, err := h.deps.User(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// HandlePut handles PUT /users/{id}.
func (h *UserHandler) HandlePut(w http.ResponseWriter, r *http.Request) {
	const op = "api.put_user"
	var req setUserRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	h.respond(w, op, h.deps.SetUser(r.Context(), r.PathValue("id"), *req.Score, req.Entity))
}

// HandleIncrement handles POST /users/{id}/increment.
func (h *UserHandler) HandleIncrement(w http.ResponseWriter, r *http.Request) {
	const op = "api.increment_user"
	var req deltaRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	h.respond(w, op, h.deps.IncrementScore(r.Context(), r.PathValue("id"), req.Entity, *req.Delta))
}

// HandleDecrement handles POST /users/{id}/decrement.
func (h *UserHandler) HandleDecrement(w http.ResponseWriter, r *http.Request) {
	const op = "api.decrement_user"
	var req deltaRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	h.respond(w, op, h.deps.DecrementScore(r.Context(), r.PathValue("id"), req.Entity, *req.Delta))
}

// HandleEntity handles PUT /users/{id}/entity.
func (h *UserHandler) HandleEntity(w http.ResponseWriter, r *http.Request) {
	const op = "api.update_entity"
	var req entityRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	h.respond(w, op, h.deps.UpdateEntity(r.Context(), r.PathValue("id"), req.Entity))
}

// HandleUsername handles PUT /users/{id}/username. The write is best-effort.
func (h *UserHandler) HandleUsername(w http.ResponseWriter, r *http.Request) {
	const op = "api.set_username"
	var req usernameRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	h.deps.SetUsername(r.Context(), r.PathValue("id"), req.Username)
	writeJSON(w, http.StatusAccepted, okResponse{Status: "accepted"})
}

// HandleDelete handles DELETE /users/{id}.
func (h *UserHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	h.respond(w, "api.delete_user", h.deps.RemoveUser(r.Context(), r.PathValue("id")))
}

func (h *UserHandler) respond(w http.ResponseWriter, op string, err error) {
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, okResponse{Status: "ok"})
}
