package model

// ProjectStatus is the lifecycle state of a project.
type ProjectStatus string

// Project statuses.
const (
	ProjectPlanning  ProjectStatus = "planning"
	ProjectActive    ProjectStatus = "active"
	ProjectCompleted ProjectStatus = "completed"
	ProjectOnHold    ProjectStatus = "on-hold"
)

// ParseProjectStatus validates a wire value.
func ParseProjectStatus(s string) (ProjectStatus, bool) {
	switch st := ProjectStatus(s); st {
	case ProjectPlanning, ProjectActive, ProjectCompleted, ProjectOnHold:
		return st, true
	default:
		return "", false
	}
}

// Project is a unit of work that needs staffing.
type Project struct {
	ID          string        `json:"id" yaml:"id"`
	Name        string        `json:"name" yaml:"name"`
	HoursNeeded float64       `json:"hours_needed" yaml:"hours_needed"`
	Priority    int           `json:"priority" yaml:"priority"`
	Status      ProjectStatus `json:"status" yaml:"status"`
	ManagerID   string        `json:"manager_id,omitempty" yaml:"manager_id,omitempty"`
}

// SkillRequirement asks for a number of people holding one skill.
type SkillRequirement struct {
	ProjectID          string `json:"project_id" yaml:"project_id"`
	SkillID            string `json:"skill_id" yaml:"skill_id"`
	EmployeesRequested int    `json:"employees_requested" yaml:"employees_requested"`
}

// Headcount is the number of people a project asks for, never less than one.
func Headcount(reqs []SkillRequirement) int {
	n := 0
	for _, r := range reqs {
		if r.EmployeesRequested > 0 {
			n += r.EmployeesRequested
		}
	}
	if n < 1 {
		return 1
	}
	return n
}

// RequiredSkillIDs returns the distinct skill ids in requirement order.
func RequiredSkillIDs(reqs []SkillRequirement) []string {
	seen := make(map[string]struct{}, len(reqs))
	ids := make([]string, 0, len(reqs))
	for _, r := range reqs {
		if _, ok := seen[r.SkillID]; ok || r.SkillID == "" {
			continue
		}
		seen[r.SkillID] = struct{}{}
		ids = append(ids, r.SkillID)
	}
	return ids
}
