package api

import (
	"net/http"
)

// Response details.
const (
	detailAllocated = "Employees allocated successfully"
	detailRemoved   = "Allocation successfully removed"
	detailConfirmed = "Allocation confirmed"
)

// AllocationHandler handles manual allocation changes.
type AllocationHandler struct {
	deps Lifecycle
}

// NewAllocationHandler creates a new allocation handler.
func NewAllocationHandler(deps Lifecycle) *AllocationHandler {
	return &AllocationHandler{deps: deps}
}

// HandleAllocate handles POST /allocations. A batch is all or nothing.
func (h *AllocationHandler) HandleAllocate(w http.ResponseWriter, r *http.Request) {
	var req allocateRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, err)
		return
	}
	created, err := h.deps.AllocateBatch(r.Context(), req.ProjectID, req.toDomain())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, detailResponse{Detail: detailAllocated, Allocations: created})
}

// HandleRemove handles POST /allocations/remove.
func (h *AllocationHandler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	var req pairRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, err)
		return
	}
	al, err := h.deps.Remove(r.Context(), req.EmployeeID, req.ProjectID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detailResponse{Detail: detailRemoved, Allocation: &al})
}

// HandleConfirm handles POST /allocations/confirm.
func (h *AllocationHandler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	var req pairRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, err)
		return
	}
	al, err := h.deps.Confirm(r.Context(), req.EmployeeID, req.ProjectID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detailResponse{Detail: detailConfirmed, Allocation: &al})
}
