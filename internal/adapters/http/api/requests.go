package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/okian/allot/internal/domain/lifecycle"
	"github.com/okian/allot/internal/domain/model"
)

const maxBodyBytes = 1 << 20

// decode reads one JSON document from the request body into v.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if err == io.EOF {
			return fmt.Errorf("%w: empty body", ErrBadRequest)
		}
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	return nil
}

func missing(field string) error {
	return fmt.Errorf("%w: missing %s", ErrBadRequest, field)
}

type recommendRequest struct {
	ProjectID string `json:"project_id"`
}

func (r recommendRequest) validate() error {
	if strings.TrimSpace(r.ProjectID) == "" {
		return missing("project_id")
	}
	return nil
}

type optimizeRequest struct {
	ProjectIDs []string `json:"project_ids"`
	Apply      bool     `json:"apply"`
}

func (r optimizeRequest) validate() error {
	for _, id := range r.ProjectIDs {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("%w: blank project id", ErrBadRequest)
		}
	}
	return nil
}

// allocationEntry is one employee of an allocate request.
type allocationEntry struct {
	EmployeeID string   `json:"employee_id"`
	Percentage *float64 `json:"allocation_percentage"`
	SkillName  string   `json:"skill_name"`
}

func (e allocationEntry) validate() error {
	switch {
	case strings.TrimSpace(e.EmployeeID) == "":
		return missing("employee_id")
	case e.Percentage == nil:
		return missing("allocation_percentage")
	case strings.TrimSpace(e.SkillName) == "":
		return missing("skill_name")
	}
	if *e.Percentage <= 0 || *e.Percentage > 100 {
		return fmt.Errorf("%w: allocation_percentage must be in (0, 100]", ErrBadRequest)
	}
	return nil
}

// allocateRequest accepts a single employee inline or a batch under "employees".
type allocateRequest struct {
	ProjectID string `json:"project_id"`
	allocationEntry
	Employees []allocationEntry `json:"employees"`
}

func (r allocateRequest) entries() []allocationEntry {
	if len(r.Employees) > 0 {
		return r.Employees
	}
	return []allocationEntry{r.allocationEntry}
}

func (r allocateRequest) validate() error {
	if strings.TrimSpace(r.ProjectID) == "" {
		return missing("project_id")
	}
	if len(r.Employees) > 0 && r.EmployeeID != "" {
		return fmt.Errorf("%w: use either employee_id or employees", ErrBadRequest)
	}
	for _, e := range r.entries() {
		if err := e.validate(); err != nil {
			return err
		}
	}
	return nil
}

func (r allocateRequest) toDomain() []lifecycle.AllocateRequest {
	entries := r.entries()
	out := make([]lifecycle.AllocateRequest, len(entries))
	for i, e := range entries {
		out[i] = lifecycle.AllocateRequest{
			EmployeeID: e.EmployeeID,
			ProjectID:  r.ProjectID,
			Percentage: model.PercentFromFloat(*e.Percentage),
			SkillName:  e.SkillName,
		}
	}
	return out
}

type pairRequest struct {
	EmployeeID string `json:"employee_id"`
	ProjectID  string `json:"project_id"`
}

func (r pairRequest) validate() error {
	switch {
	case strings.TrimSpace(r.EmployeeID) == "":
		return missing("employee_id")
	case strings.TrimSpace(r.ProjectID) == "":
		return missing("project_id")
	}
	return nil
}

type statusRequest struct {
	Status string `json:"status"`
}

func (r statusRequest) parse() (model.ProjectStatus, error) {
	if strings.TrimSpace(r.Status) == "" {
		return "", missing("status")
	}
	st, ok := model.ParseProjectStatus(r.Status)
	if !ok {
		return "", fmt.Errorf("%w: unknown status %q", ErrBadRequest, r.Status)
	}
	return st, nil
}
