// Package model contains domain models passed between layers.
package model

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// PercentScale is the number of Percent units in one percentage point.
const PercentScale = 100

// Full is an employee's whole capacity.
const Full Percent = 100 * PercentScale

// Percent is a capacity share in hundredths of a percentage point.
// Integer arithmetic keeps remaining + allocated exactly equal to Full.
type Percent int64

// PercentFromFloat converts percentage points (e.g. 37.5) to Percent.
func PercentFromFloat(f float64) Percent {
	return Percent(math.Round(f * PercentScale))
}

// PercentOfHours converts a weekly hour load to a share of hoursPerWeek.
func PercentOfHours(hours, hoursPerWeek float64) Percent {
	if hoursPerWeek <= 0 {
		return 0
	}
	return PercentFromFloat(hours / hoursPerWeek * 100)
}

// Float64 returns the value in percentage points.
func (p Percent) Float64() float64 {
	return float64(p) / PercentScale
}

// Fraction returns the value as a fraction of Full.
func (p Percent) Fraction() float64 {
	return float64(p) / float64(Full)
}

// Hours converts the share to weekly hours.
func (p Percent) Hours(hoursPerWeek float64) float64 {
	return p.Fraction() * hoursPerWeek
}

// ValidAllocation reports whether p can be requested for a single allocation.
func (p Percent) ValidAllocation() bool {
	return p > 0 && p <= Full
}

func (p Percent) String() string {
	return strconv.FormatFloat(p.Float64(), 'f', -1, 64) + "%"
}

// MarshalJSON encodes the value in percentage points.
func (p Percent) MarshalJSON() ([]byte, error) {
	return strconv.AppendFloat(nil, p.Float64(), 'f', -1, 64), nil
}

// UnmarshalJSON decodes a number of percentage points.
func (p *Percent) UnmarshalJSON(b []byte) error {
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("percent: %w", err)
	}
	*p = PercentFromFloat(f)
	return nil
}
