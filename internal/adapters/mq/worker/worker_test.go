package worker_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/allot/internal/adapters/mq/queue"
	"github.com/okian/allot/internal/adapters/mq/worker"
	"github.com/okian/allot/internal/domain/fault"
	"github.com/okian/allot/internal/domain/optimizer"
	logging "github.com/okian/allot/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logging.Init(); err != nil {
		panic(err)
	}
}

// countingSolver answers every problem with its own project count as the
// objective and can be told to fail or block.
type countingSolver struct {
	calls atomic.Int64
	err   error
	block chan struct{}
}

func (s *countingSolver) Solve(ctx context.Context, p optimizer.Problem) (optimizer.Result, error) {
	s.calls.Add(1)
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return optimizer.Result{}, ctx.Err()
		}
	}
	if s.err != nil {
		return optimizer.Result{}, s.err
	}
	return optimizer.Result{
		Mode:           optimizer.MethodOptimal,
		Status:         optimizer.StatusOptimal,
		ObjectiveValue: int64(len(p.Projects)),
	}, nil
}

func problem(projects int) optimizer.Problem {
	p := optimizer.Problem{HoursPerWeek: 40}
	for i := 0; i < projects; i++ {
		p.Projects = append(p.Projects, optimizer.Project{ID: "p", HoursNeeded: 10, Headcount: 1})
	}
	return p
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a queue and a worker", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(4))
		solver := &countingSolver{}
		w := worker.NewInMemoryWorker(q, solver, worker.WithName("test-worker"))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		convey.Convey("When a job is enqueued", func() {
			j := queue.NewJob(ctx, problem(3))
			convey.So(q.Enqueue(ctx, j), convey.ShouldBeNil)

			convey.Convey("Then the worker replies with the solver result", func() {
				select {
				case out := <-j.Reply:
					convey.So(out.Err, convey.ShouldBeNil)
					convey.So(out.Result.ObjectiveValue, convey.ShouldEqual, 3)
				case <-time.After(2 * time.Second):
					convey.So("timeout", convey.ShouldBeEmpty)
				}
			})
		})

		convey.Convey("When the job's caller has gone away", func() {
			jobCtx, jobCancel := context.WithCancel(context.Background())
			jobCancel()
			j := queue.NewJob(jobCtx, problem(1))
			convey.So(q.Enqueue(ctx, j), convey.ShouldBeNil)

			convey.Convey("Then the job is skipped without solving", func() {
				out := <-j.Reply
				convey.So(errors.Is(out.Err, context.Canceled), convey.ShouldBeTrue)
				convey.So(solver.calls.Load(), convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When shutting down", func() {
			sctx, scancel := context.WithTimeout(context.Background(), time.Second)
			defer scancel()

			convey.Convey("Then the worker stops", func() {
				convey.So(w.Shutdown(sctx), convey.ShouldBeNil)
			})
		})
	})
}

func TestPool(t *testing.T) {
	convey.Convey("Given a started pool of three workers", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(16))
		solver := &countingSolver{}
		pool := worker.NewPool(3, q, solver)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		pool.Start(ctx)

		convey.So(pool.Size(), convey.ShouldEqual, 3)

		convey.Convey("When many clients solve concurrently", func() {
			client := worker.NewClient(q)
			var wg sync.WaitGroup
			var failures atomic.Int64
			for i := 1; i <= 10; i++ {
				wg.Add(1)
				go func(n int) {
					defer wg.Done()
					res, err := client.Solve(ctx, problem(n))
					if err != nil || res.ObjectiveValue != int64(n) {
						failures.Add(1)
					}
				}(i)
			}
			wg.Wait()

			convey.Convey("Then every caller gets its own answer", func() {
				convey.So(failures.Load(), convey.ShouldEqual, 0)
				convey.So(pool.Processed(), convey.ShouldEqual, 10)
			})
		})

		convey.Convey("When the pool is shut down", func() {
			convey.So(pool.Shutdown(context.Background()), convey.ShouldBeNil)

			convey.Convey("Then new work is refused with backpressure", func() {
				_, err := worker.NewClient(q).Solve(context.Background(), problem(1))
				convey.So(errors.Is(err, fault.ErrBackpressure), convey.ShouldBeTrue)
				convey.So(errors.Is(err, queue.ErrClosed), convey.ShouldBeTrue)
			})
		})
	})
}

func TestClient(t *testing.T) {
	convey.Convey("Given a full queue with no workers", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(1))
		ctx := context.Background()
		convey.So(q.Enqueue(ctx, queue.NewJob(ctx, problem(1))), convey.ShouldBeNil)

		convey.Convey("Then Solve fails fast with backpressure", func() {
			_, err := worker.NewClient(q).Solve(ctx, problem(1))
			convey.So(errors.Is(err, queue.ErrFull), convey.ShouldBeTrue)
			convey.So(errors.Is(err, fault.ErrBackpressure), convey.ShouldBeTrue)
		})
	})

	convey.Convey("Given a solver that fails", t, func() {
		q := queue.NewInMemoryQueue()
		boom := errors.New("boom")
		pool := worker.NewPool(1, q, &countingSolver{err: boom})
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		pool.Start(ctx)
		defer func() { _ = pool.Shutdown(context.Background()) }()

		convey.Convey("Then the error reaches the caller", func() {
			_, err := worker.NewClient(q).Solve(ctx, problem(1))
			convey.So(errors.Is(err, boom), convey.ShouldBeTrue)
		})
	})

	convey.Convey("Given a solver that blocks", t, func() {
		q := queue.NewInMemoryQueue()
		solver := &countingSolver{block: make(chan struct{})}
		pool := worker.NewPool(1, q, solver)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		pool.Start(ctx)
		defer func() {
			close(solver.block)
			_ = pool.Shutdown(context.Background())
		}()

		convey.Convey("Then the caller's deadline ends the wait", func() {
			callCtx, callCancel := context.WithTimeout(ctx, 50*time.Millisecond)
			defer callCancel()
			_, err := worker.NewClient(q).Solve(callCtx, problem(1))
			convey.So(errors.Is(err, context.DeadlineExceeded), convey.ShouldBeTrue)
		})
	})
}
