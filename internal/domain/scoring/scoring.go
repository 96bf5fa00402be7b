// Package scoring computes bounded employee–project match scores.
package scoring

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/okian/allot/internal/domain/model"
)

// Weights of the three score components.
type Weights struct {
	Skill        float64
	Performance  float64
	Availability float64
}

// DefaultWeights are the production weights: 0.6 skill, 0.2 performance, 0.2 availability.
var DefaultWeights = Weights{Skill: 0.6, Performance: 0.2, Availability: 0.2}

const maxPerformance = 5

// Option applies a configuration option to the Scorer.
type Option func(*Scorer)

// WithWeights overrides the component weights. Negative or all-zero weights are ignored.
func WithWeights(w Weights) Option {
	return func(s *Scorer) {
		if w.Skill < 0 || w.Performance < 0 || w.Availability < 0 {
			return
		}
		if w.Skill+w.Performance+w.Availability == 0 {
			return
		}
		s.weights = w
	}
}

// Scorer is a pure function of its inputs; it holds only weights.
type Scorer struct {
	weights Weights
}

// New creates a Scorer.
func New(opts ...Option) *Scorer {
	s := &Scorer{weights: DefaultWeights}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var defaultScorer = New()

// Score scores e against reqs with the default weights.
func Score(e model.Employee, reqs []model.SkillRequirement) (model.ScoreEntry, bool) {
	return defaultScorer.Score(e, reqs)
}

// Score returns the match of e for the project described by reqs.
// ok is false when reqs is empty or e holds none of the required skills;
// such pairs must not reach the optimizer.
func (s *Scorer) Score(e model.Employee, reqs []model.SkillRequirement) (model.ScoreEntry, bool) {
	required := model.RequiredSkillIDs(reqs)
	if len(required) == 0 {
		return model.ScoreEntry{}, false
	}

	matched := make([]string, 0, len(required))
	for _, id := range required {
		if e.HasSkill(id) {
			matched = append(matched, id)
		}
	}
	if len(matched) == 0 {
		return model.ScoreEntry{}, false
	}

	skill := float64(len(matched)) / float64(len(required))
	perf := clamp01(e.Performance / maxPerformance)
	avail := clamp01(e.CapacityRemaining.Fraction())
	score := clamp01(s.weights.Skill*skill + s.weights.Performance*perf + s.weights.Availability*avail)

	return model.ScoreEntry{
		EmployeeID: e.ID,
		ProjectID:  reqs[0].ProjectID,
		Score:      score,
		Breakdown: model.ScoreBreakdown{
			SkillMatch:   skill,
			Performance:  perf,
			Availability: avail,
			Matched:      matched,
			Text: fmt.Sprintf("Skill match: %d%%, Performance: %s/5, Availability: %s%%",
				int(skill*100), strconv.FormatFloat(e.Performance, 'f', -1, 64),
				strconv.FormatFloat(e.CapacityRemaining.Float64(), 'f', -1, 64)),
		},
	}, true
}

// Matrix scores every assignable employee against every project in reqs.
// Entries are ordered by project id, then score desc, then employee id.
func (s *Scorer) Matrix(employees []model.Employee, reqs map[string][]model.SkillRequirement) []model.ScoreEntry {
	out := make([]model.ScoreEntry, 0, len(employees))
	for projectID, r := range reqs {
		for _, e := range employees {
			if !e.Assignable() {
				continue
			}
			entry, ok := s.Score(e, r)
			if !ok {
				continue
			}
			entry.ProjectID = projectID
			out = append(out, entry)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ProjectID != out[j].ProjectID {
			return out[i].ProjectID < out[j].ProjectID
		}
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].EmployeeID < out[j].EmployeeID
	})
	return out
}

// Points scales a score to the integer objective units used by the optimizer.
func Points(score float64) int64 {
	return int64(math.Round(score * 100))
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
