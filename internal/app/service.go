// Package service assembles the allocation engine and implements the
// dependencies required by the HTTP API.
package service

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/okian/allot/internal/adapters/mq/queue"
	"github.com/okian/allot/internal/adapters/mq/worker"
	"github.com/okian/allot/internal/adapters/repository"
	"github.com/okian/allot/internal/adapters/repository/redisstore"
	"github.com/okian/allot/internal/adapters/repository/sqlite"
	"github.com/okian/allot/internal/config"
	"github.com/okian/allot/internal/domain/ledger"
	"github.com/okian/allot/internal/domain/lifecycle"
	"github.com/okian/allot/internal/domain/model"
	"github.com/okian/allot/internal/domain/optimizer"
	"github.com/okian/allot/internal/domain/planning"
	"github.com/okian/allot/internal/fixture"
	"github.com/okian/allot/pkg/logger"
	"github.com/okian/allot/pkg/metrics"
	"github.com/redis/go-redis/v9"
)

const stopTimeout = 10 * time.Second

// Service owns the repository, the capacity ledger, the solve pool and the
// planner, and exposes them through the API dependency interfaces.
type Service struct {
	mu sync.RWMutex

	// Core components
	repo      repository.Repository
	ledger    *ledger.Ledger
	lifecycle *lifecycle.Manager
	planner   *planning.Planner
	queue     *queue.InMemoryQueue
	pool      *worker.Pool

	// Configuration
	driver         string
	sqlitePath     string
	redisAddr      string
	redisPrefix    string
	fixturePath    string
	hoursPerWeek   float64
	limit          int
	solverMode     optimizer.Mode
	solverTimeout  time.Duration
	solverMaxNodes int64
	workerCount    int
	queueSize      int

	// State
	started bool

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithRepositoryDriver selects memory, sqlite or redis persistence.
func WithRepositoryDriver(driver string) Option {
	return func(s *Service) {
		if driver != "" {
			s.driver = driver
		}
	}
}

// WithSQLitePath sets the database file used by the sqlite driver.
func WithSQLitePath(path string) Option {
	return func(s *Service) {
		if path != "" {
			s.sqlitePath = path
		}
	}
}

// WithRedis sets the server address and key prefix used by the redis driver.
func WithRedis(addr, prefix string) Option {
	return func(s *Service) {
		if addr != "" {
			s.redisAddr = addr
		}
		if prefix != "" {
			s.redisPrefix = prefix
		}
	}
}

// WithFixture seeds the repository from a YAML working set on Start.
func WithFixture(path string) Option {
	return func(s *Service) { s.fixturePath = path }
}

// WithHoursPerWeek sets the standard working week.
func WithHoursPerWeek(hours float64) Option {
	return func(s *Service) {
		if hours > 0 {
			s.hoursPerWeek = hours
		}
	}
}

// WithRecommendationLimit caps recommendation lists.
func WithRecommendationLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.limit = n
		}
	}
}

// WithSolver configures the optimizer run by the workers.
func WithSolver(mode string, timeout time.Duration, maxNodes int64) Option {
	return func(s *Service) {
		if mode != "" {
			s.solverMode = optimizer.Mode(mode)
		}
		if timeout > 0 {
			s.solverTimeout = timeout
		}
		if maxNodes > 0 {
			s.solverMaxNodes = maxNodes
		}
	}
}

// WithWorkerCount sets the number of solver goroutines.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum number of pending solve jobs.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// OptionsFromConfig translates process configuration into service options.
func OptionsFromConfig(cfg *config.Config) []Option {
	return []Option{
		WithRepositoryDriver(cfg.RepositoryDriver),
		WithSQLitePath(cfg.SQLitePath),
		WithRedis(cfg.RedisAddr, cfg.RedisKeyPrefix),
		WithFixture(cfg.FixturePath),
		WithHoursPerWeek(cfg.HoursPerWeek),
		WithRecommendationLimit(cfg.RecommendationLimit),
		WithSolver(cfg.SolverMode, cfg.SolverTimeout(), cfg.SolverMaxNodes),
		WithWorkerCount(cfg.SolveWorkers),
		WithQueueSize(cfg.SolveQueueSize),
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		driver:       config.DriverMemory,
		sqlitePath:   "allot.db",
		redisAddr:    "localhost:6379",
		redisPrefix:  "allot",
		hoursPerWeek: optimizer.DefaultHoursPerWeek,
		limit:        planning.DefaultLimit,
		solverMode:   optimizer.ModeAuto,
		workerCount:  runtime.NumCPU(),
		queueSize:    64,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start opens the repository and starts the solve workers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	s.logger.Info(ctx, "starting allocation service...", logger.String("driver", s.driver))

	repo, err := s.openRepository(ctx)
	if err != nil {
		return err
	}
	if s.fixturePath != "" {
		if err := seed(ctx, repo, s.fixturePath); err != nil {
			_ = repo.Close()
			return err
		}
		s.logger.Info(ctx, "seeded repository", logger.String("fixture", s.fixturePath))
	}

	s.repo = repo
	s.ledger = ledger.New()
	s.lifecycle = lifecycle.New(repo, s.ledger, lifecycle.WithHoursPerWeek(s.hoursPerWeek))

	solverOpts := []optimizer.Option{optimizer.WithMode(s.solverMode)}
	if s.solverTimeout > 0 {
		solverOpts = append(solverOpts, optimizer.WithTimeout(s.solverTimeout))
	}
	if s.solverMaxNodes > 0 {
		solverOpts = append(solverOpts, optimizer.WithMaxNodes(s.solverMaxNodes))
	}
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.pool = worker.NewPool(s.workerCount, s.queue, optimizer.New(solverOpts...))
	// Workers outlive the start request; Stop ends them.
	s.pool.Start(context.WithoutCancel(ctx))

	s.planner = planning.New(repo, s.lifecycle, worker.NewClient(s.queue), planning.WithLimit(s.limit))

	s.started = true
	s.logger.Info(ctx, "allocation service started",
		logger.Int("workers", s.pool.Size()),
		logger.Int("queueSize", s.queueSize),
		logger.String("solverMode", string(s.solverMode)),
	)
	return nil
}

func (s *Service) openRepository(ctx context.Context) (repository.Repository, error) {
	switch s.driver {
	case config.DriverMemory:
		return repository.NewMemoryStore(), nil
	case config.DriverSQLite:
		store, err := sqlite.Open(ctx, s.sqlitePath)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.DriverRedis:
		store, err := redisstore.New(ctx, &redis.Options{Addr: s.redisAddr}, s.redisPrefix)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, s.driver)
	}
}

func seed(ctx context.Context, repo repository.Repository, path string) error {
	ws, err := fixture.Load(path)
	if err != nil {
		return err
	}
	return ws.Seed(ctx, repo, time.Now().UTC())
}

// Stop drains the solve queue and closes the repository.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	s.logger.Info(ctx, "stopping allocation service...")

	if err := s.pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "worker pool shutdown", logger.Error(err))
	}
	if err := s.repo.Close(); err != nil {
		s.logger.Warn(ctx, "closing repository", logger.Error(err))
	}

	s.started = false
	s.logger.Info(ctx, "allocation service stopped")
}

// components returns the running lifecycle manager and planner.
func (s *Service) components() (*lifecycle.Manager, *planning.Planner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, nil, ErrNotStarted
	}
	return s.lifecycle, s.planner, nil
}

// Recommend ranks candidates for one project.
func (s *Service) Recommend(ctx context.Context, projectID string) (planning.Recommendations, error) {
	_, p, err := s.components()
	if err != nil {
		return planning.Recommendations{}, err
	}
	return p.Recommend(ctx, projectID)
}

// Optimize solves several projects together and optionally proposes the result.
func (s *Service) Optimize(ctx context.Context, projectIDs []string, apply bool) (planning.Plan, error) {
	_, p, err := s.components()
	if err != nil {
		return planning.Plan{}, err
	}
	return p.Optimize(ctx, projectIDs, apply)
}

// AllocateBatch confirms a set of allocations to one project.
func (s *Service) AllocateBatch(ctx context.Context, projectID string, reqs []lifecycle.AllocateRequest) ([]model.Allocation, error) {
	lc, _, err := s.components()
	if err != nil {
		return nil, err
	}
	return lc.AllocateBatch(ctx, projectID, reqs)
}

// Remove deletes an employee's active allocation to a project.
func (s *Service) Remove(ctx context.Context, employeeID, projectID string) (model.Allocation, error) {
	lc, _, err := s.components()
	if err != nil {
		return model.Allocation{}, err
	}
	return lc.Remove(ctx, employeeID, projectID)
}

// Confirm promotes a proposed allocation.
func (s *Service) Confirm(ctx context.Context, employeeID, projectID string) (model.Allocation, error) {
	lc, _, err := s.components()
	if err != nil {
		return model.Allocation{}, err
	}
	return lc.Confirm(ctx, employeeID, projectID)
}

// CompleteProject completes a project and releases its allocations.
func (s *Service) CompleteProject(ctx context.Context, projectID string) ([]model.Allocation, error) {
	lc, _, err := s.components()
	if err != nil {
		return nil, err
	}
	return lc.CompleteProject(ctx, projectID)
}

// SetProjectStatus moves a project to another status.
func (s *Service) SetProjectStatus(ctx context.Context, projectID string, to model.ProjectStatus) (model.Project, error) {
	lc, _, err := s.components()
	if err != nil {
		return model.Project{}, err
	}
	return lc.SetProjectStatus(ctx, projectID, to)
}

// Capacity reports an employee's remaining capacity and active allocations.
func (s *Service) Capacity(ctx context.Context, employeeID string) (lifecycle.Capacity, error) {
	lc, _, err := s.components()
	if err != nil {
		return lifecycle.Capacity{}, err
	}
	return lc.Capacity(ctx, employeeID)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":     s.started,
		"driver":      s.driver,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"solverMode":  string(s.solverMode),
	}
	if !s.started {
		return stats
	}

	totals := s.ledger.Totals()
	stats["queueLength"] = s.queue.Len(context.Background())
	stats["solvesProcessed"] = s.pool.Processed()
	stats["trackedEmployees"] = totals.Employees
	stats["activeAllocations"] = totals.ActiveAllocations
	stats["allocatedPercent"] = totals.Allocated.Float64()

	metrics.UpdateLedgerTotals(totals.Employees, totals.ActiveAllocations, totals.Allocated.Float64())
	return stats
}
