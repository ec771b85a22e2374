package account

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/logsmart/authcore/pkg/ratelimiter"
	"github.com/logsmart/authcore/pkg/rbac"
)

// PoolStats is a snapshot of the database connection pool.
type PoolStats struct {
	TotalConns        int32 `json:"total_conns"`
	IdleConns         int32 `json:"idle_conns"`
	AcquiredConns     int32 `json:"acquired_conns"`
	MaxConns          int32 `json:"max_conns"`
	AcquireCount      int64 `json:"acquire_count"`
	EmptyAcquireCount int64 `json:"empty_acquire_count"`
}

// OperatorHandler serves platform diagnostics to LogSmart operators.
type OperatorHandler struct {
	metrics   http.Handler
	poolStats func() PoolStats
	deps      Deps
}

// NewOperatorHandler wires the metrics exporter and a pool stats source.
// Either may be nil, in which case its route is not mounted.
func NewOperatorHandler(deps Deps, metrics http.Handler, poolStats func() PoolStats) *OperatorHandler {
	return &OperatorHandler{metrics: metrics, poolStats: poolStats, deps: deps.withDefaults()}
}

// Routes mounts the operator endpoints behind the platform admin capability.
func (h *OperatorHandler) Routes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.deps.limit(ratelimiter.ClassGeneral), h.deps.Gate.Require(rbac.CapabilityPlatformAdmin))
		if h.metrics != nil {
			r.Handle("/metrics", h.metrics)
		}
		if h.poolStats != nil {
			r.Get("/health/database", h.database)
		}
	})
}

func (h *OperatorHandler) database(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.poolStats())
}
