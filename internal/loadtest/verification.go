package loadtest

import (
	"errors"
	"fmt"
	"math"
)

// capacityEpsilon absorbs the two-decimal rounding of percentages on the wire.
const capacityEpsilon = 0.011

// verifyRecommendations checks one recommendation envelope for internal
// consistency: the right project, scores in range and non-increasing,
// non-negative hours, and no duplicate candidates.
func verifyRecommendations(projectID string, r recommendations) error {
	if r.ProjectID != projectID {
		return fmt.Errorf("asked for %s, got %s", projectID, r.ProjectID)
	}
	seen := make(map[string]struct{}, len(r.Recommendations))
	var errs []error
	for i, rec := range r.Recommendations {
		if rec.MatchScore < 0 || rec.MatchScore > 1 {
			errs = append(errs, fmt.Errorf("%s: score %.3f out of range", rec.EmployeeID, rec.MatchScore))
		}
		if rec.AvailableHours < 0 {
			errs = append(errs, fmt.Errorf("%s: negative available hours", rec.EmployeeID))
		}
		if i > 0 && rec.MatchScore > r.Recommendations[i-1].MatchScore {
			errs = append(errs, fmt.Errorf("entry %d scores higher than entry %d", i, i-1))
		}
		if _, dup := seen[rec.EmployeeID]; dup {
			errs = append(errs, fmt.Errorf("%s listed twice", rec.EmployeeID))
		}
		seen[rec.EmployeeID] = struct{}{}
	}
	return errors.Join(errs...)
}

// verifyCapacity checks that an employee's remaining capacity is within
// bounds and agrees with the active allocations reported beside it.
func verifyCapacity(c capacityResponse) error {
	if c.CapacityRemaining < -capacityEpsilon || c.CapacityRemaining > 100+capacityEpsilon {
		return fmt.Errorf("%s: remaining capacity %.2f out of range", c.EmployeeID, c.CapacityRemaining)
	}
	used := 0.0
	for _, a := range c.ActiveAllocations {
		used += a.Percentage
	}
	tolerance := capacityEpsilon * float64(len(c.ActiveAllocations)+1)
	if math.Abs(100-used-c.CapacityRemaining) > tolerance {
		return fmt.Errorf("%s: remaining %.2f does not match %.2f allocated", c.EmployeeID, c.CapacityRemaining, used)
	}
	return nil
}
