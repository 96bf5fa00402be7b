package optimizer

// greedy walks candidates by score and takes every pair that still fits.
// It never consults the exact search.
func (inst *instance) greedy() Result {
	used := make([]float64, len(inst.employees))
	count := make([]int, len(inst.projects))
	covered := make([]float64, len(inst.projects))

	res := Result{Mode: MethodHeuristic}
	for _, c := range inst.cands {
		pr := inst.projects[c.p]
		load := inst.load[c.p]
		if count[c.p] >= pr.Headcount || covered[c.p] >= pr.HoursNeeded-epsilon {
			continue
		}
		if used[c.e]+load > inst.employees[c.e].AvailableHours+epsilon {
			continue
		}
		used[c.e] += load
		count[c.p]++
		covered[c.p] += inst.employees[c.e].Efficiency * load
		res.ObjectiveValue += c.points
		res.Assignments = append(res.Assignments, inst.assignment(c))
	}

	for p, pr := range inst.projects {
		if gap := pr.HoursNeeded - covered[p]; gap > epsilon {
			if res.Unmet == nil {
				res.Unmet = make(map[string]float64)
			}
			res.Unmet[pr.ID] = gap
		}
	}

	switch {
	case len(res.Assignments) == 0:
		res.Status = StatusInfeasible
	case len(res.Unmet) > 0:
		res.Status = StatusPartial
	default:
		res.Status = StatusFeasible
	}
	sortAssignments(res.Assignments)
	return res
}
