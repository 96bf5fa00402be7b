package model

import "strings"

// Roles an employee record may carry. Only RoleEmployee is assignable.
const (
	RoleEmployee = "employee"
	RoleManager  = "manager"
)

// Skill is one skill held by an employee. Proficiency is optional (0 when unknown, up to 5).
type Skill struct {
	ID          string  `json:"id" yaml:"id"`
	Name        string  `json:"name" yaml:"name"`
	Proficiency float64 `json:"proficiency,omitempty" yaml:"proficiency,omitempty"`
}

// Employee is an assignable person as stored by the repository.
type Employee struct {
	ID                string  `json:"id" yaml:"id"`
	Name              string  `json:"name" yaml:"name"`
	Skills            []Skill `json:"skills" yaml:"skills"`
	Performance       float64 `json:"performance" yaml:"performance"`
	CapacityRemaining Percent `json:"capacity_remaining" yaml:"capacity_remaining"`
	Active            bool    `json:"active" yaml:"active"`
	Role              string  `json:"role" yaml:"role"`
}

// Assignable reports whether the employee can receive new work at all.
func (e Employee) Assignable() bool {
	return e.Active && (e.Role == "" || e.Role == RoleEmployee)
}

// HasSkill reports whether the employee holds the skill with the given id.
func (e Employee) HasSkill(id string) bool {
	for _, s := range e.Skills {
		if s.ID == id {
			return true
		}
	}
	return false
}

// HasSkillNamed matches a skill by name (case-insensitive) or by id.
func (e Employee) HasSkillNamed(name string) bool {
	name = strings.TrimSpace(name)
	for _, s := range e.Skills {
		if strings.EqualFold(s.Name, name) || s.ID == name {
			return true
		}
	}
	return false
}

// Clone returns a deep copy.
func (e Employee) Clone() Employee {
	c := e
	c.Skills = append([]Skill(nil), e.Skills...)
	return c
}
