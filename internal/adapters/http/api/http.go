// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/allot/internal/domain/lifecycle"
	"github.com/okian/allot/internal/domain/model"
	"github.com/okian/allot/internal/domain/planning"
)

// Planner produces recommendations and optimization plans.
type Planner interface {
	Recommend(ctx context.Context, projectID string) (planning.Recommendations, error)
	Optimize(ctx context.Context, projectIDs []string, apply bool) (planning.Plan, error)
}

// Lifecycle mutates allocations and project state.
type Lifecycle interface {
	AllocateBatch(ctx context.Context, projectID string, reqs []lifecycle.AllocateRequest) ([]model.Allocation, error)
	Remove(ctx context.Context, employeeID, projectID string) (model.Allocation, error)
	Confirm(ctx context.Context, employeeID, projectID string) (model.Allocation, error)
	CompleteProject(ctx context.Context, projectID string) ([]model.Allocation, error)
	SetProjectStatus(ctx context.Context, projectID string, to model.ProjectStatus) (model.Project, error)
	Capacity(ctx context.Context, employeeID string) (lifecycle.Capacity, error)
}

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	Planner
	Lifecycle
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler     *HealthHandler
	statsHandler      *StatsHandler
	planningHandler   *PlanningHandler
	allocationHandler *AllocationHandler
	projectHandler    *ProjectHandler
	deduper           dedupe.Deduper
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithDeduper replaces the in-memory idempotency key store. A nil deduper
// disables Idempotency-Key handling.
func WithDeduper(d dedupe.Deduper) ServerOption {
	return func(s *Server) { s.deduper = d }
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...ServerOption) *Server {
	s := &Server{
		healthHandler:     NewHealthHandler(),
		statsHandler:      NewStatsHandler(statsProvider),
		planningHandler:   NewPlanningHandler(deps),
		allocationHandler: NewAllocationHandler(deps),
		projectHandler:    NewProjectHandler(deps),
		deduper:           dedupe.NewInMemoryDeduper(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.Handle("GET /metrics", s.healthHandler.MetricsHandler())
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("POST /recommendations", MetricsMiddleware(s.planningHandler.HandleRecommend, "recommendations"))
	mux.HandleFunc("POST /optimize", MetricsMiddleware(s.idempotent(s.planningHandler.HandleOptimize), "optimize"))

	mux.HandleFunc("POST /allocations", MetricsMiddleware(s.idempotent(s.allocationHandler.HandleAllocate), "allocations"))
	mux.HandleFunc("POST /allocations/remove", MetricsMiddleware(s.idempotent(s.allocationHandler.HandleRemove), "allocations_remove"))
	mux.HandleFunc("POST /allocations/confirm", MetricsMiddleware(s.idempotent(s.allocationHandler.HandleConfirm), "allocations_confirm"))

	mux.HandleFunc("POST /projects/{id}/complete", MetricsMiddleware(s.idempotent(s.projectHandler.HandleComplete), "project_complete"))
	mux.HandleFunc("POST /projects/{id}/status", MetricsMiddleware(s.idempotent(s.projectHandler.HandleStatus), "project_status"))
	mux.HandleFunc("GET /employees/{id}/capacity", MetricsMiddleware(s.projectHandler.HandleCapacity, "employee_capacity"))
}

func (s *Server) idempotent(next http.HandlerFunc) http.HandlerFunc {
	return IdempotencyMiddleware(s.deduper, next)
}

type detailResponse struct {
	Detail      string             `json:"detail"`
	Allocations []model.Allocation `json:"allocations,omitempty"`
	Allocation  *model.Allocation  `json:"allocation,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
