// Package worker runs optimization jobs from the solve queue on a fixed pool
// of goroutines.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/okian/allot/internal/adapters/mq/queue"
	"github.com/okian/allot/internal/domain/optimizer"
	"github.com/okian/allot/pkg/logger"
	"github.com/okian/allot/pkg/metrics"
	"github.com/okian/allot/pkg/tracing"
)

// Default worker configuration constants.
const (
	poolShutdownTimeout = 30 * time.Second
)

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Job
}

// Enqueuer defines how callers submit jobs.
type Enqueuer interface {
	Enqueue(ctx context.Context, j queue.Job) error
}

// Worker runs jobs until stopped.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue is drained.
	Run(ctx context.Context)

	// Shutdown stops the worker after its current job.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker solves jobs taken from a Queue.
type InMemoryWorker struct {
	queue  Queue
	solver optimizer.Solver
	name   string
	onDone func()

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, solver optimizer.Solver, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		solver:   solver,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.With(logger.String("worker", w.name))
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case j, ok := <-jobs:
			if !ok {
				return
			}
			w.process(j)
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	close(w.shutdown)

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// process solves one job and replies. The job's own context bounds the solve.
func (w *InMemoryWorker) process(j queue.Job) {
	start := time.Now()
	out := w.solve(j, start)

	metrics.RecordJobLatency(float64(time.Since(start).Microseconds()) / 1000)
	if w.onDone != nil {
		w.onDone()
	}
	j.Reply <- out
}

func (w *InMemoryWorker) solve(j queue.Job, start time.Time) queue.Outcome {
	ctx := j.Ctx
	if err := ctx.Err(); err != nil {
		w.logger.Debug(context.Background(), "skipping abandoned job", logger.String("job", j.ID))
		return queue.Outcome{Err: err}
	}

	ctx, span := tracing.StartSpan(ctx, "solve", tracing.KindInternal)
	span.SetAttributes(map[string]any{
		"job.id":          j.ID,
		"solve.employees": len(j.Problem.Employees),
		"solve.projects":  len(j.Problem.Projects),
		"solve.wait_ms":   start.Sub(j.EnqueuedAt).Milliseconds(),
	})
	res, err := w.solver.Solve(ctx, j.Problem)
	if err == nil {
		span.SetAttributes(map[string]any{
			"solve.mode":   res.Mode,
			"solve.status": string(res.Status),
			"solve.nodes":  res.Nodes,
		})
	}
	tracing.EndSpan(span, err)

	if err != nil {
		metrics.RecordError("worker", "solve")
		w.logger.Error(ctx, "solve failed", logger.String("job", j.ID), logger.Error(err))
	}
	return queue.Outcome{Result: res, Err: err}
}

// Pool manages multiple workers.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue

	processed atomic.Int64

	logger logger.Logger
}

// NewPool creates a new worker pool. A non-positive count uses runtime.NumCPU().
func NewPool(workerCount int, q Queue, solver optimizer.Solver) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}

	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := 0; i < workerCount; i++ {
		p.workers[i] = NewInMemoryWorker(q, solver,
			WithName("worker-"+strconv.Itoa(i)),
			WithOnDone(func() { p.processed.Add(1) }),
		)
	}
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Processed returns the number of jobs handled since start.
func (p *Pool) Processed() int64 { return p.processed.Load() }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	metrics.UpdateWorkerCount(len(p.workers))
}

// Shutdown closes the queue and waits for the workers to drain it.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut bool
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			timedOut = true
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	metrics.UpdateWorkerCount(0)
	if timedOut {
		return fmt.Errorf("worker pool shutdown: %w", shutdownCtx.Err())
	}
	return nil
}

// Client submits problems to the queue and waits for the worker's answer.
// It satisfies optimizer.Solver, so callers need not know a pool is involved.
type Client struct {
	queue Enqueuer
}

// NewClient creates a Client over q.
func NewClient(q Enqueuer) *Client {
	return &Client{queue: q}
}

// Solve enqueues p and blocks until a worker replies or ctx is done.
// A full or closed queue returns an error wrapping fault.ErrBackpressure.
func (c *Client) Solve(ctx context.Context, p optimizer.Problem) (optimizer.Result, error) {
	j := queue.NewJob(ctx, p)
	if err := c.queue.Enqueue(ctx, j); err != nil {
		return optimizer.Result{}, fmt.Errorf("submit solve: %w", err)
	}
	select {
	case out := <-j.Reply:
		return out.Result, out.Err
	case <-ctx.Done():
		return optimizer.Result{}, ctx.Err()
	}
}
