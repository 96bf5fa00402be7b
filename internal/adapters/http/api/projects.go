package api

import (
	"net/http"
	"strings"

	"github.com/okian/allot/internal/domain/model"
)

// ProjectHandler handles project status changes and capacity reads.
type ProjectHandler struct {
	deps Lifecycle
}

// NewProjectHandler creates a new project handler.
func NewProjectHandler(deps Lifecycle) *ProjectHandler {
	return &ProjectHandler{deps: deps}
}

type completeResponse struct {
	ProjectID string             `json:"project_id"`
	Completed []model.Allocation `json:"completed"`
}

type capacityResponse struct {
	EmployeeID string             `json:"employee_id"`
	Remaining  float64            `json:"capacity_remaining"`
	Active     []model.Allocation `json:"active_allocations"`
}

func pathID(r *http.Request) (string, error) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		return "", missing("id")
	}
	return id, nil
}

// HandleComplete handles POST /projects/{id}/complete.
func (h *ProjectHandler) HandleComplete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	done, err := h.deps.CompleteProject(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if done == nil {
		done = []model.Allocation{}
	}
	writeJSON(w, http.StatusOK, completeResponse{ProjectID: id, Completed: done})
}

// HandleStatus handles POST /projects/{id}/status.
func (h *ProjectHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req statusRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	status, err := req.parse()
	if err != nil {
		writeError(w, err)
		return
	}
	p, err := h.deps.SetProjectStatus(r.Context(), id, status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleCapacity handles GET /employees/{id}/capacity.
func (h *ProjectHandler) HandleCapacity(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	c, err := h.deps.Capacity(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	active := c.Active
	if active == nil {
		active = []model.Allocation{}
	}
	writeJSON(w, http.StatusOK, capacityResponse{EmployeeID: c.EmployeeID, Remaining: c.Remaining.Float64(), Active: active})
}
