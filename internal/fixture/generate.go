package fixture

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/google/uuid"
	"github.com/okian/allot/internal/domain/model"
)

// skillCatalog is the pool generated employees and projects draw from.
var skillCatalog = []model.Skill{
	{ID: "go", Name: "Go"},
	{ID: "sql", Name: "SQL"},
	{ID: "python", Name: "Python"},
	{ID: "react", Name: "React"},
	{ID: "k8s", Name: "Kubernetes"},
	{ID: "terraform", Name: "Terraform"},
	{ID: "java", Name: "Java"},
	{ID: "design", Name: "Figma"},
}

var firstNames = []string{"Ada", "Ben", "Cyd", "Dara", "Eli", "Fay", "Gus", "Hana", "Ivo", "Juno", "Kai", "Lea"}

// GenerateOptions sizes a random working set.
type GenerateOptions struct {
	Employees int
	Projects  int
	// MaxSkills bounds the skills per employee and requirements per project.
	MaxSkills int
	Seed      int64
}

// Generate builds a random but reproducible working set: the same options
// always yield the same ids, names and numbers.
func Generate(opts GenerateOptions) (*WorkingSet, error) {
	if opts.Employees < 0 || opts.Projects < 0 {
		return nil, invalid("negative size")
	}
	if opts.MaxSkills < 1 {
		opts.MaxSkills = 3
	}
	if opts.MaxSkills > len(skillCatalog) {
		opts.MaxSkills = len(skillCatalog)
	}
	rng := rand.New(rand.NewSource(opts.Seed)) //nolint:gosec // reproducible fixtures, not secrets

	newID := func(prefix string) (string, error) {
		id, err := uuid.NewRandomFromReader(rng)
		if err != nil {
			return "", fmt.Errorf("generate id: %w", err)
		}
		return prefix + "-" + id.String()[:8], nil
	}

	ws := &WorkingSet{HoursPerWeek: 40}
	for i := 0; i < opts.Employees; i++ {
		id, err := newID("emp")
		if err != nil {
			return nil, err
		}
		ws.Employees = append(ws.Employees, Employee{
			ID:          id,
			Name:        fmt.Sprintf("%s %d", firstNames[i%len(firstNames)], i+1),
			Skills:      pickSkills(rng, opts.MaxSkills, true),
			Performance: math.Round((1+rng.Float64()*4)*10) / 10,
		})
	}
	for i := 0; i < opts.Projects; i++ {
		id, err := newID("prj")
		if err != nil {
			return nil, err
		}
		p := Project{
			ID:          id,
			Name:        fmt.Sprintf("Project %d", i+1),
			HoursNeeded: float64(10 * (1 + rng.Intn(8))),
			Priority:    1 + rng.Intn(5),
			Status:      string(model.ProjectPlanning),
		}
		for _, s := range pickSkills(rng, opts.MaxSkills, false) {
			p.Requirements = append(p.Requirements, Requirement{SkillID: s.ID, Headcount: 1 + rng.Intn(2)})
		}
		ws.Projects = append(ws.Projects, p)
	}
	return ws, nil
}

// pickSkills draws 1..limit distinct skills from the catalog.
func pickSkills(rng *rand.Rand, limit int, proficiency bool) []model.Skill {
	n := 1 + rng.Intn(limit)
	out := make([]model.Skill, 0, n)
	for _, i := range rng.Perm(len(skillCatalog))[:n] {
		s := skillCatalog[i]
		if proficiency {
			s.Proficiency = float64(1 + rng.Intn(5))
		}
		out = append(out, s)
	}
	return out
}
