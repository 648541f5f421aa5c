package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"docverify/internal/metrics"
)

// workQueue is the bounded worker pool driving job execution. A parked
// job (waiting out a retry backoff) does not hold a worker slot; a timer
// re-enqueues it when the backoff elapses.
type workQueue struct {
	run     func(ctx context.Context, jobID uuid.UUID)
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch   chan uuid.UUID
	done chan struct{}
	wg   sync.WaitGroup
	once sync.Once

	mu      sync.Mutex
	closed  bool
	senders sync.WaitGroup
	timers  map[uuid.UUID]*time.Timer
}

func newWorkQueue(run func(ctx context.Context, jobID uuid.UUID), logger *slog.Logger, workers, size int, timeout time.Duration) *workQueue {
	if workers <= 0 {
		workers = 4
	}
	if size <= 0 {
		size = 256
	}
	if timeout <= 0 {
		timeout = 3 * time.Minute
	}
	q := &workQueue{
		run:     run,
		logger:  logger,
		workers: workers,
		timeout: timeout,
		ch:      make(chan uuid.UUID, size),
		done:    make(chan struct{}),
		timers:  make(map[uuid.UUID]*time.Timer),
	}
	q.start()
	return q
}

func (q *workQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Debug("worker started", "worker_id", workerID)

				for jobID := range q.ch {
					metrics.QueueDepth.Set(float64(len(q.ch)))
					ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
					q.run(ctx, jobID)
					cancel()
				}

				q.logger.Debug("worker stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *workQueue) Enqueue(jobID uuid.UUID) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		q.logger.Warn("cannot enqueue: queue is shutting down", "job_id", jobID)
		return
	}
	q.senders.Add(1)
	q.mu.Unlock()
	defer q.senders.Done()

	// The blocking send must not hold q.mu: with a saturated queue every
	// worker calling Park would block on the mutex and nothing could
	// drain the channel.
	select {
	case q.ch <- jobID:
	default:
		q.logger.Warn("queue full, applying backpressure", "job_id", jobID)
		select {
		case q.ch <- jobID:
		case <-q.done:
			q.logger.Warn("cannot enqueue: queue is shutting down", "job_id", jobID)
			return
		}
	}
	metrics.QueueDepth.Set(float64(len(q.ch)))
}

// Park schedules a job to re-enter the queue after delay, freeing the
// worker slot in the meantime.
func (q *workQueue) Park(jobID uuid.UUID, delay time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	if t, ok := q.timers[jobID]; ok {
		t.Stop()
	} else {
		metrics.JobsParked.Inc()
	}
	q.timers[jobID] = time.AfterFunc(delay, func() {
		q.mu.Lock()
		delete(q.timers, jobID)
		q.mu.Unlock()
		metrics.JobsParked.Dec()
		q.Enqueue(jobID)
	})
}

// Shutdown stops backoff timers, drains in-flight work and waits until
// workers exit or ctx expires. Parked jobs stay checkpointed and are
// picked up by recovery on the next start.
func (q *workQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	for id, t := range q.timers {
		t.Stop()
		delete(q.timers, id)
		metrics.JobsParked.Dec()
	}
	close(q.done)
	q.mu.Unlock()

	// Senders blocked on a full queue bail out via done; only then is
	// the channel safe to close.
	q.senders.Wait()
	close(q.ch)

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("shutdown interrupted by context")
	case <-done:
		q.logger.Info("queue drained, shutdown complete")
	}
}
