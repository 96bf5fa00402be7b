package loadtest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/allot/internal/domain/model"
	"github.com/okian/allot/internal/domain/planning"
	"github.com/okian/allot/pkg/logger"
)

// Run configuration errors.
var (
	ErrNoProjects = errors.New("working set has no open projects")
	ErrViolations = errors.New("consistency violations found")
)

// Run executes a complete load run: a health check, concurrent
// recommendations, an optional applied optimization and a capacity sweep.
// It returns ErrViolations when any answer was inconsistent.
func Run(ctx context.Context, cfg Config) (Stats, error) {
	stats := Stats{StartTime: time.Now()}
	if cfg.Workers < 1 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	log := logger.Get().Named("loadtest")
	c := newClient(cfg.BaseURL, cfg.Timeout)

	projects := openProjects(cfg)
	if len(projects) == 0 {
		return stats, ErrNoProjects
	}

	log.Info(ctx, "starting load run",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("requests", cfg.Requests),
		logger.Int("workers", cfg.Workers),
		logger.Int("projects", len(projects)),
		logger.Bool("apply", cfg.Apply))

	if err := c.getJSON(ctx, "/healthz", nil); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	recommend(ctx, cfg, c, projects, &stats, log)

	if cfg.Apply {
		if err := optimize(ctx, c, &stats, log); err != nil {
			return stats, err
		}
	}

	if err := sweepCapacity(ctx, cfg, c, &stats, log); err != nil {
		return stats, err
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	if stats.Duration > 0 {
		stats.RequestsPerSecond = float64(stats.RequestsSubmitted) / stats.Duration.Seconds()
	}
	log.Info(ctx, "final statistics",
		logger.Int("submitted", stats.RequestsSubmitted),
		logger.Int("successful", stats.RequestsSuccessful),
		logger.Int("warning", stats.RequestsWarning),
		logger.Int("failed", stats.RequestsFailed),
		logger.Int("violations", stats.Violations),
		logger.Int("proposed", stats.Proposed),
		logger.Duration("duration", stats.Duration),
		logger.Float64("requestsPerSecond", stats.RequestsPerSecond))

	if stats.Violations > 0 {
		return stats, fmt.Errorf("%w: %d", ErrViolations, stats.Violations)
	}
	return stats, nil
}

func openProjects(cfg Config) []string {
	if cfg.Set == nil {
		return nil
	}
	var ids []string
	for _, p := range cfg.Set.Projects {
		if p.Status != string(model.ProjectCompleted) {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

// recommend fires cfg.Requests recommendation calls round-robin over the
// open projects using a fixed pool of workers.
func recommend(ctx context.Context, cfg Config, c *client, projects []string, stats *Stats, log logger.Logger) {
	var submitted, successful, warning, failed, violations atomic.Int64

	jobs := make(chan string, cfg.Workers*2)
	var wg sync.WaitGroup
	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for projectID := range jobs {
				submitted.Add(1)
				var out recommendations
				if err := c.postJSON(ctx, "/recommendations", map[string]string{"project_id": projectID}, &out, http.StatusOK); err != nil {
					failed.Add(1)
					if cfg.Verbose {
						log.Warn(ctx, "recommendation failed", logger.String("project", projectID), logger.Error(err))
					}
					continue
				}
				if out.Status == planning.StatusWarning {
					warning.Add(1)
				} else {
					successful.Add(1)
				}
				if err := verifyRecommendations(projectID, out); err != nil {
					violations.Add(1)
					log.Error(ctx, "inconsistent recommendations", logger.String("project", projectID), logger.Error(err))
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := 0; i < cfg.Requests; i++ {
			select {
			case <-ctx.Done():
				return
			case jobs <- projects[i%len(projects)]:
			}
		}
	}()
	wg.Wait()

	stats.RequestsSubmitted += int(submitted.Load())
	stats.RequestsSuccessful += int(successful.Load())
	stats.RequestsWarning += int(warning.Load())
	stats.RequestsFailed += int(failed.Load())
	stats.Violations += int(violations.Load())
}

// optimize applies one optimization over every planning project.
func optimize(ctx context.Context, c *client, stats *Stats, log logger.Logger) error {
	var out optimizeResponse
	stats.RequestsSubmitted++
	if err := c.postJSON(ctx, "/optimize", map[string]any{"apply": true}, &out, http.StatusOK); err != nil {
		stats.RequestsFailed++
		return fmt.Errorf("optimize failed: %w", err)
	}
	stats.RequestsSuccessful++
	for _, p := range out.Proposals {
		if p.Error != "" || p.Allocation == nil {
			log.Warn(ctx, "proposal rejected",
				logger.String("employee", p.EmployeeID),
				logger.String("project", p.ProjectID),
				logger.String("error", p.Error))
			continue
		}
		stats.Proposed++
	}
	log.Info(ctx, "optimization applied", logger.String("status", out.Status), logger.Int("proposed", stats.Proposed))
	return nil
}

// sweepCapacity reads every employee's capacity and checks it.
func sweepCapacity(ctx context.Context, cfg Config, c *client, stats *Stats, log logger.Logger) error {
	for _, e := range cfg.Set.Employees {
		var out capacityResponse
		stats.RequestsSubmitted++
		if err := c.getJSON(ctx, "/employees/"+e.ID+"/capacity", &out); err != nil {
			stats.RequestsFailed++
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn(ctx, "capacity lookup failed", logger.String("employee", e.ID), logger.Error(err))
			continue
		}
		stats.RequestsSuccessful++
		stats.CapacityChecked++
		if err := verifyCapacity(out); err != nil {
			stats.Violations++
			log.Error(ctx, "inconsistent capacity", logger.Error(err))
		}
	}
	return nil
}
