// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Defaults come from New; Load layers a YAML file and ALLOT_* env vars on top.
// - Validate reports every problem wrapped in ErrInvalidConfig.
package config

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// Repository drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

// Solver modes, mirrored from the optimizer so config stays dependency free.
const (
	SolverAuto      = "auto"
	SolverExact     = "exact"
	SolverHeuristic = "heuristic"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat selects text or json output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// HoursPerWeek is the standard week used to convert percentages to hours.
	HoursPerWeek float64 `koanf:"hours_per_week"`
	// RecommendationLimit caps the recommendation list.
	RecommendationLimit int `koanf:"recommendation_limit"`

	// SolverMode is auto, exact or heuristic.
	SolverMode string `koanf:"solver_mode"`
	// SolverTimeoutMS bounds one exact search.
	SolverTimeoutMS int `koanf:"solver_timeout_ms"`
	// SolverMaxNodes bounds the nodes one exact search may visit.
	SolverMaxNodes int64 `koanf:"solver_max_nodes"`

	// SolveQueueSize bounds pending optimization jobs.
	SolveQueueSize int `koanf:"solve_queue_size"`
	// SolveWorkers sets the number of solver goroutines.
	SolveWorkers int `koanf:"solve_workers"`

	// RepositoryDriver is memory, sqlite or redis.
	RepositoryDriver string `koanf:"repository_driver"`
	SQLitePath       string `koanf:"sqlite_path"`
	RedisAddr        string `koanf:"redis_addr"`
	RedisKeyPrefix   string `koanf:"redis_key_prefix"`

	// FixturePath optionally seeds the repository from a YAML working set at startup.
	FixturePath string `koanf:"fixture_path"`

	// TraceOutput enables span export: "stdout", a file path, or empty for off.
	TraceOutput string `koanf:"trace_output"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		Addr:                ":9080",
		HoursPerWeek:        40,
		RecommendationLimit: 10,
		SolverMode:          SolverAuto,
		SolverTimeoutMS:     2000,
		SolverMaxNodes:      5_000_000,
		SolveQueueSize:      64,
		SolveWorkers:        runtime.NumCPU(),
		RepositoryDriver:    DriverMemory,
		SQLitePath:          "allot.db",
		RedisAddr:           "localhost:6379",
		RedisKeyPrefix:      "allot",
	}
}

// SolverTimeout returns SolverTimeoutMS as a duration.
func (c *Config) SolverTimeout() time.Duration {
	return time.Duration(c.SolverTimeoutMS) * time.Millisecond
}

// Validate checks the configuration and returns every problem found.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	if strings.TrimSpace(c.Addr) == "" {
		add("addr must not be empty")
	}
	if c.HoursPerWeek <= 0 {
		add("hours_per_week must be positive, got %v", c.HoursPerWeek)
	}
	if c.RecommendationLimit < 1 {
		add("recommendation_limit must be at least 1, got %d", c.RecommendationLimit)
	}
	switch c.SolverMode {
	case SolverAuto, SolverExact, SolverHeuristic:
	default:
		add("solver_mode must be auto, exact or heuristic, got %q", c.SolverMode)
	}
	if c.SolverTimeoutMS <= 0 {
		add("solver_timeout_ms must be positive, got %d", c.SolverTimeoutMS)
	}
	if c.SolverMaxNodes <= 0 {
		add("solver_max_nodes must be positive, got %d", c.SolverMaxNodes)
	}
	if c.SolveQueueSize < 1 {
		add("solve_queue_size must be at least 1, got %d", c.SolveQueueSize)
	}
	if c.SolveWorkers < 1 {
		add("solve_workers must be at least 1, got %d", c.SolveWorkers)
	}
	switch c.RepositoryDriver {
	case DriverMemory:
	case DriverSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			add("sqlite_path is required for the sqlite driver")
		}
	case DriverRedis:
		if strings.TrimSpace(c.RedisAddr) == "" {
			add("redis_addr is required for the redis driver")
		}
	default:
		add("repository_driver must be memory, sqlite or redis, got %q", c.RepositoryDriver)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		add("log_format must be text or json, got %q", c.LogFormat)
	}
	return errors.Join(errs...)
}
