package worker_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	worker "github.com/okian/tierlens/internal/adapters/mq/worker"
	model "github.com/okian/tierlens/internal/domain/model"
	logging "github.com/okian/tierlens/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

type mockQueue struct {
	jobs chan worker.Job
	once sync.Once
}

func newMockQueue() *mockQueue {
	return &mockQueue{jobs: make(chan worker.Job, 10)}
}

func (mq *mockQueue) Dequeue(ctx context.Context) <-chan worker.Job {
	return mq.jobs
}

func (mq *mockQueue) Close() error {
	mq.once.Do(func() { close(mq.jobs) })
	return nil
}

// recorder remembers processed job ids and fails the ones it is told to.
type recorder struct {
	mu        sync.Mutex
	processed map[string]bool
	failures  map[string]error
	panics    map[string]bool
}

func newRecorder() *recorder {
	return &recorder{processed: map[string]bool{}, failures: map[string]error{}, panics: map[string]bool{}}
}

func (r *recorder) Process(ctx context.Context, j worker.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.panics[j.ID] {
		panic("boom")
	}
	if err, ok := r.failures[j.ID]; ok {
		return err
	}
	r.processed[j.ID] = true
	return nil
}

func (r *recorder) seen(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.processed[id]
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.processed)
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

func job(id string) worker.Job {
	return model.Job{ID: id, Request: model.AnalysisRequest{Viewer: 1, Category: "cats"}, SubmittedAt: time.Now()}
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a running worker", t, func() {
		_ = logging.Init(logging.WithWriter(io.Discard))

		queue := newMockQueue()
		rec := newRecorder()
		w := worker.NewInMemoryWorker(queue, rec, worker.WithName("test-worker"))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		convey.Convey("Queued jobs reach the processor", func() {
			queue.jobs <- job("job-1")
			convey.So(waitFor(func() bool { return rec.seen("job-1") }), convey.ShouldBeTrue)
		})

		convey.Convey("A failing job does not stop the loop", func() {
			rec.mu.Lock()
			rec.failures["job-2"] = errors.New("factorization failed")
			rec.panics["job-3"] = true
			rec.mu.Unlock()

			queue.jobs <- job("job-2")
			queue.jobs <- job("job-3")
			queue.jobs <- job("job-4")
			convey.So(waitFor(func() bool { return rec.seen("job-4") }), convey.ShouldBeTrue)
			convey.So(rec.seen("job-2"), convey.ShouldBeFalse)
			convey.So(rec.seen("job-3"), convey.ShouldBeFalse)
		})

		convey.Convey("Shutdown returns once the loop exits", func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
			defer shutdownCancel()
			convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
			convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
		})
	})

	convey.Convey("Given a job timeout", t, func() {
		_ = logging.Init(logging.WithWriter(io.Discard))

		queue := newMockQueue()
		deadlines := make(chan bool, 1)
		p := worker.ProcessorFunc(func(ctx context.Context, j worker.Job) error {
			_, ok := ctx.Deadline()
			deadlines <- ok
			return nil
		})
		w := worker.NewInMemoryWorker(queue, p, worker.WithJobTimeout(time.Minute))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		queue.jobs <- job("job-1")
		select {
		case hasDeadline := <-deadlines:
			convey.So(hasDeadline, convey.ShouldBeTrue)
		case <-time.After(time.Second):
			convey.So("job never ran", convey.ShouldBeEmpty)
		}
	})
}

func TestWorkerPool(t *testing.T) {
	convey.Convey("Given a started pool", t, func() {
		_ = logging.Init(logging.WithWriter(io.Discard))

		queue := newMockQueue()
		rec := newRecorder()
		pool := worker.NewPool(3, queue, rec)
		convey.So(pool.Size(), convey.ShouldEqual, 3)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		pool.Start(ctx)

		convey.Convey("Every job is processed once", func() {
			for _, id := range []string{"a", "b", "c", "d", "e"} {
				queue.jobs <- job(id)
			}
			convey.So(waitFor(func() bool { return rec.count() == 5 }), convey.ShouldBeTrue)
		})

		convey.Convey("Shutdown closes the queue and waits for workers", func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
			defer shutdownCancel()
			convey.So(pool.Shutdown(shutdownCtx), convey.ShouldBeNil)

			_, open := <-queue.jobs
			convey.So(open, convey.ShouldBeFalse)
		})
	})

	convey.Convey("A non-positive count falls back to the CPU count", t, func() {
		_ = logging.Init(logging.WithWriter(io.Discard))
		pool := worker.NewPool(0, newMockQueue(), newRecorder())
		convey.So(pool.Size(), convey.ShouldBeGreaterThan, 0)
	})
}
