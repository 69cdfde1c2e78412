// Package async runs ticketed extraction jobs out-of-band and sweeps
// expired job records.
package async

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/lexatlas/toc-extractor/internal/observability"
)

// ErrQueueClosed is returned by Enqueue after Shutdown has begun.
var ErrQueueClosed = errors.New("job queue is shutting down")

// Job identifies one unit of queued work.
type Job struct {
	TicketID    string
	SubmittedAt time.Time
}

// WorkerQueue executes jobs on a fixed pool of goroutines.
type WorkerQueue struct {
	handler func(ctx context.Context, job Job)
	logger  *observability.Logger
	workers int
	timeout time.Duration

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool
}

// Option configures a WorkerQueue.
type Option func(*WorkerQueue)

func WithWorkers(n int) Option {
	return func(q *WorkerQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *WorkerQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}

func WithJobTimeout(d time.Duration) Option {
	return func(q *WorkerQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

// NewWorkerQueue starts a pool of workers feeding jobs to handler. Each job
// runs under its own timeout-bounded context.
func NewWorkerQueue(handler func(ctx context.Context, job Job), logger *observability.Logger, opts ...Option) *WorkerQueue {
	q := &WorkerQueue{
		handler: handler,
		logger:  logger.WithOperation("queue"),
		workers: 4,
		timeout: 10 * time.Minute,
		ch:      make(chan Job, 64),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *WorkerQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Debug().Int("worker_id", workerID).Msg("worker started")

				for job := range q.ch {
					ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
					q.handler(ctx, job)
					cancel()
				}

				q.logger.Debug().Int("worker_id", workerID).Msg("worker stopped")
			}(i + 1)
		}
	})
}

// Enqueue schedules a job. Blocks when the buffer is full, applying
// backpressure to submitters rather than dropping work.
func (q *WorkerQueue) Enqueue(_ context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.ch <- job:
	default:
		q.logger.Warn().Str("ticket_id", job.TicketID).Msg("queue full, applying backpressure")
		q.ch <- job
	}
	return nil
}

// Shutdown stops intake and waits for in-flight jobs to drain, or for ctx to
// expire.
func (q *WorkerQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn().Msg("queue shutdown interrupted by context")
	case <-done:
		q.logger.Info().Msg("queue drained, shutdown complete")
	}
}
