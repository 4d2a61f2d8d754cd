package api

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/akashca-pro/codex-problem-service-sub000/pkg/metrics"
)

// HealthDependencies defines the readiness probe.
type HealthDependencies interface {
	Ready(ctx context.Context) error
}

// HealthHandler handles health check requests.
type HealthHandler struct {
	deps    HealthDependencies
	metrics http.Handler
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(deps HealthDependencies) *HealthHandler {
	return &HealthHandler{
		deps:    deps,
		metrics: promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}),
	}
}

// HandleHealth handles GET /healthz requests with the Prometheus exposition
// of the service registry.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.metrics.ServeHTTP(w, r)
}

// HandleReady handles GET /readyz requests. It fails while the ranking store
// does not answer.
func (h *HealthHandler) HandleReady(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Ready(r.Context()); err != nil {
		writeError(w, WrapKind("api.ready", ErrUnavailable, err))
		return
	}
	writeJSON(w, http.StatusOK, okResponse{Status: "ready"})
}
