// Package loadtest drives a running allot server over HTTP and checks that
// its answers stay consistent under concurrent load.
package loadtest

import (
	"time"

	"github.com/okian/allot/internal/fixture"
)

// Config holds configuration for a load run.
type Config struct {
	BaseURL  string              // Base URL of the service
	Set      *fixture.WorkingSet // Employees and projects known to the server
	Requests int                 // Number of recommendation requests
	Workers  int                 // Number of concurrent workers
	Timeout  time.Duration       // HTTP request timeout
	Apply    bool                // Run an applied optimization after the recommendations
	Verbose  bool                // Log every failed request
}

// Stats holds run statistics.
type Stats struct {
	RequestsSubmitted  int           `json:"requests_submitted"`
	RequestsSuccessful int           `json:"requests_successful"`
	RequestsWarning    int           `json:"requests_warning"`
	RequestsFailed     int           `json:"requests_failed"`
	Violations         int           `json:"violations"`
	Proposed           int           `json:"proposed"`
	CapacityChecked    int           `json:"capacity_checked"`
	RequestsPerSecond  float64       `json:"requests_per_second"`
	StartTime          time.Time     `json:"start_time"`
	EndTime            time.Time     `json:"end_time"`
	Duration           time.Duration `json:"duration"`
}

type recommendation struct {
	EmployeeID     string  `json:"employee_id"`
	MatchScore     float64 `json:"match_score"`
	AvailableHours float64 `json:"available_hours"`
	Selected       bool    `json:"selected"`
}

type recommendations struct {
	ProjectID       string           `json:"project_id"`
	Status          string           `json:"status"`
	Recommendations []recommendation `json:"recommendations"`
}

type proposal struct {
	EmployeeID string `json:"employee_id"`
	ProjectID  string `json:"project_id"`
	Allocation *struct {
		ID string `json:"id"`
	} `json:"allocation"`
	Error string `json:"error"`
}

type optimizeResponse struct {
	Status    string     `json:"status"`
	Proposals []proposal `json:"proposals"`
}

type capacityResponse struct {
	EmployeeID        string  `json:"employee_id"`
	CapacityRemaining float64 `json:"capacity_remaining"`
	ActiveAllocations []struct {
		Percentage float64 `json:"percentage"`
	} `json:"active_allocations"`
}
