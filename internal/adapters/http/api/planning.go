package api

import (
	"net/http"

	"github.com/okian/allot/internal/domain/fault"
	"github.com/okian/allot/internal/domain/model"
	"github.com/okian/allot/internal/domain/optimizer"
	"github.com/okian/allot/internal/domain/planning"
)

// PlanningHandler serves recommendations and optimization runs.
type PlanningHandler struct {
	deps Planner
}

// NewPlanningHandler creates a new planning handler.
func NewPlanningHandler(deps Planner) *PlanningHandler {
	return &PlanningHandler{deps: deps}
}

// HandleRecommend handles POST /recommendations.
func (h *PlanningHandler) HandleRecommend(w http.ResponseWriter, r *http.Request) {
	var req recommendRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, err)
		return
	}
	out, err := h.deps.Recommend(r.Context(), req.ProjectID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type assignmentResponse struct {
	EmployeeID string  `json:"employee_id"`
	ProjectID  string  `json:"project_id"`
	Percentage float64 `json:"percentage"`
	Hours      float64 `json:"hours"`
	Score      float64 `json:"score"`
}

type proposalResponse struct {
	EmployeeID string            `json:"employee_id"`
	ProjectID  string            `json:"project_id"`
	Allocation *model.Allocation `json:"allocation,omitempty"`
	Error      string            `json:"error,omitempty"`
	ErrorKind  string            `json:"error_kind,omitempty"`
}

type optimizeResponse struct {
	planning.Plan
	Assignments []assignmentResponse `json:"assignments"`
	Proposals   []proposalResponse   `json:"proposals,omitempty"`
}

func newAssignments(as []optimizer.Assignment) []assignmentResponse {
	out := make([]assignmentResponse, len(as))
	for i, a := range as {
		out[i] = assignmentResponse{
			EmployeeID: a.EmployeeID,
			ProjectID:  a.ProjectID,
			Percentage: a.Percentage.Float64(),
			Hours:      a.Hours,
			Score:      a.Score,
		}
	}
	return out
}

// HandleOptimize handles POST /optimize.
func (h *PlanningHandler) HandleOptimize(w http.ResponseWriter, r *http.Request) {
	var req optimizeRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, err)
		return
	}
	plan, err := h.deps.Optimize(r.Context(), req.ProjectIDs, req.Apply)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := optimizeResponse{Plan: plan, Assignments: newAssignments(plan.Assignments)}
	for _, p := range plan.Proposals {
		pr := proposalResponse{EmployeeID: p.Assignment.EmployeeID, ProjectID: p.Assignment.ProjectID}
		if p.Err != nil {
			pr.Error = p.Err.Error()
			pr.ErrorKind = fault.KindName(p.Err)
		} else {
			al := p.Allocation
			pr.Allocation = &al
		}
		resp.Proposals = append(resp.Proposals, pr)
	}
	writeJSON(w, http.StatusOK, resp)
}
