package async

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"docintake/internal/model"
	"docintake/internal/service"
)

var (
	ErrQueueFull   = errors.New("processing queue is full")
	ErrQueueClosed = errors.New("processing queue is shut down")
)

// Job is one processing request.
type Job struct {
	DocumentID  string
	SubmittedAt time.Time
}

// Processor is the slice of the document service the queue drives.
type Processor interface {
	Process(ctx context.Context, id string) (*model.Document, error)
}

// Queue fans document processing out to a fixed pool of workers. Enqueue is
// non-blocking; a full queue is reported to the caller rather than applying
// backpressure to the upload path.
type Queue struct {
	proc    Processor
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool
}

type Option func(*Queue)

func WithWorkers(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}

func WithJobTimeout(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

// NewQueue builds the queue and starts its workers.
func NewQueue(proc Processor, logger *slog.Logger, opts ...Option) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &Queue{
		proc:    proc,
		logger:  logger,
		workers: 4,
		timeout: 3 * time.Minute,
		ch:      make(chan Job, 256),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *Queue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Info("worker started", "worker_id", workerID)

				for job := range q.ch {
					ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
					doc, err := q.proc.Process(ctx, job.DocumentID)
					cancel()

					switch {
					case errors.Is(err, service.ErrAlreadyProcessing):
						// Lost the claim to a concurrent caller; nothing to do.
						q.logger.Debug("processing skipped", "worker_id", workerID, "document_id", job.DocumentID)
					case err != nil:
						q.logger.Error("processing failed", "worker_id", workerID, "document_id", job.DocumentID, "error", err)
					default:
						q.logger.Debug("processing finished", "worker_id", workerID, "document_id", job.DocumentID, "status", doc.Status)
					}
				}
			}(i)
		}
	})
}

// Enqueue submits a job without blocking.
func (q *Queue) Enqueue(ctx context.Context, job Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now().UTC()
	}

	// The send happens under the same lock that guards close(q.ch) in
	// Shutdown; a send after the channel is closed would panic.
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.ch <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Shutdown stops accepting jobs and waits for in-flight work to drain,
// bounded by ctx.
func (q *Queue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		q.logger.Warn("queue shutdown timed out", "error", ctx.Err())
	}
}
