package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/allot/internal/domain/fault"
	"github.com/okian/allot/internal/domain/optimizer"
	. "github.com/smartystreets/goconvey/convey"
)

func job(ctx context.Context) Job {
	return NewJob(ctx, optimizer.Problem{HoursPerWeek: 40})
}

func TestInMemoryQueue(t *testing.T) {
	Convey("Given a queue with capacity 2", t, func() {
		q := NewInMemoryQueue(WithCapacity(2))
		ctx := context.Background()

		Convey("It starts empty and open", func() {
			So(q.Len(ctx), ShouldEqual, 0)
			So(q.IsClosed(), ShouldBeFalse)
			So(q.Capacity(), ShouldEqual, 2)
		})

		Convey("Jobs come out in order", func() {
			first, second := job(ctx), job(ctx)
			So(q.Enqueue(ctx, first), ShouldBeNil)
			So(q.Enqueue(ctx, second), ShouldBeNil)
			So(q.Len(ctx), ShouldEqual, 2)

			dctx, cancel := context.WithCancel(ctx)
			defer cancel()
			ch := q.Dequeue(dctx)
			So((<-ch).ID, ShouldEqual, first.ID)
			So((<-ch).ID, ShouldEqual, second.ID)
		})

		Convey("A full queue reports backpressure", func() {
			So(q.Enqueue(ctx, job(ctx)), ShouldBeNil)
			So(q.Enqueue(ctx, job(ctx)), ShouldBeNil)
			err := q.Enqueue(ctx, job(ctx))
			So(errors.Is(err, ErrFull), ShouldBeTrue)
			So(errors.Is(err, fault.ErrBackpressure), ShouldBeTrue)
			So(q.Len(ctx), ShouldEqual, 2)
		})

		Convey("A cancelled producer context is rejected", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			So(errors.Is(q.Enqueue(cctx, job(cctx)), context.Canceled), ShouldBeTrue)
		})

		Convey("Closing drains queued jobs and rejects new ones", func() {
			queued := job(ctx)
			So(q.Enqueue(ctx, queued), ShouldBeNil)
			So(q.Close(), ShouldBeNil)
			So(q.IsClosed(), ShouldBeTrue)
			So(errors.Is(q.Enqueue(ctx, job(ctx)), ErrClosed), ShouldBeTrue)

			ch := q.Dequeue(ctx)
			So((<-ch).ID, ShouldEqual, queued.ID)
			select {
			case _, ok := <-ch:
				So(ok, ShouldBeFalse)
			case <-time.After(time.Second):
				So("dequeue channel not closed", ShouldBeEmpty)
			}
			So(q.Close(), ShouldBeNil)
		})
	})
}

func TestInMemoryQueueConcurrentProducers(t *testing.T) {
	Convey("Given many producers and one consumer", t, func() {
		q := NewInMemoryQueue(WithCapacity(8))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		const producers, perProducer = 8, 25
		received := make(chan string, producers*perProducer)
		go func() {
			for j := range q.Dequeue(ctx) {
				received <- j.ID
			}
		}()

		var wg sync.WaitGroup
		for i := 0; i < producers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for n := 0; n < perProducer; n++ {
					for errors.Is(q.Enqueue(ctx, job(ctx)), ErrFull) {
						time.Sleep(time.Millisecond)
					}
				}
			}()
		}
		wg.Wait()

		seen := map[string]bool{}
		timeout := time.After(5 * time.Second)
		for len(seen) < producers*perProducer {
			select {
			case id := <-received:
				seen[id] = true
			case <-timeout:
				So(len(seen), ShouldEqual, producers*perProducer)
				return
			}
		}
		So(len(seen), ShouldEqual, producers*perProducer)
	})
}
