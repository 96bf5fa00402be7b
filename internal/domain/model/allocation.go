package model

import "time"

// AllocationStatus is the lifecycle state of an allocation.
type AllocationStatus string

// Allocation statuses. Completed is terminal.
const (
	AllocationProposed  AllocationStatus = "proposed"
	AllocationConfirmed AllocationStatus = "confirmed"
	AllocationCompleted AllocationStatus = "completed"
)

// Active reports whether the allocation still holds capacity.
func (s AllocationStatus) Active() bool {
	return s == AllocationProposed || s == AllocationConfirmed
}

// Allocation commits a share of an employee's capacity to a project.
type Allocation struct {
	ID             string           `json:"id"`
	EmployeeID     string           `json:"employee_id"`
	ProjectID      string           `json:"project_id"`
	Percentage     Percent          `json:"percentage"`
	HoursAllocated float64          `json:"hours_allocated"`
	Status         AllocationStatus `json:"status"`
	Recommended    bool             `json:"is_recommended"`
	Confidence     *float64         `json:"confidence,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
}

// ScoreBreakdown explains how a match score was composed.
type ScoreBreakdown struct {
	SkillMatch   float64  `json:"skill_match"`
	Performance  float64  `json:"performance"`
	Availability float64  `json:"availability"`
	Matched      []string `json:"matched_skills"`
	Text         string   `json:"text"`
}

// ScoreEntry is the fit of one employee for one project. Never persisted.
type ScoreEntry struct {
	EmployeeID string         `json:"employee_id"`
	ProjectID  string         `json:"project_id"`
	Score      float64        `json:"score"`
	Breakdown  ScoreBreakdown `json:"breakdown"`
}
