package async

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"docintake/internal/model"
	"docintake/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// procStub records processed IDs and lets tests control the outcome.
type procStub struct {
	mu        sync.Mutex
	processed []string
	err       error
	block     chan struct{} // optional; Process waits on it when set
}

func (p *procStub) Process(ctx context.Context, id string) (*model.Document, error) {
	if p.block != nil {
		select {
		case <-p.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	p.mu.Lock()
	p.processed = append(p.processed, id)
	p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	return &model.Document{ID: id, Status: model.StatusProcessed}, nil
}

func (p *procStub) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.processed)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestQueue_ProcessesJobs(t *testing.T) {
	proc := &procStub{}
	q := NewQueue(proc, discardLogger(), WithWorkers(2), WithQueueSize(16))

	for i := 0; i < 5; i++ {
		err := q.Enqueue(context.Background(), Job{DocumentID: "doc"})
		require.NoError(t, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	q.Shutdown(ctx)

	assert.Equal(t, 5, proc.count())
}

func TestQueue_SetsSubmittedAt(t *testing.T) {
	proc := &procStub{}
	q := NewQueue(proc, discardLogger(), WithWorkers(1))
	defer q.Shutdown(context.Background())

	err := q.Enqueue(context.Background(), Job{DocumentID: "doc"})
	assert.NoError(t, err)
}

func TestQueue_FullQueue(t *testing.T) {
	block := make(chan struct{})
	proc := &procStub{block: block}
	q := NewQueue(proc, discardLogger(), WithWorkers(1), WithQueueSize(1))

	// First job occupies the worker, second fills the buffer.
	require.NoError(t, q.Enqueue(context.Background(), Job{DocumentID: "a"}))

	// Give the worker a moment to pick up the first job.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, q.Enqueue(context.Background(), Job{DocumentID: "b"}))

	err := q.Enqueue(context.Background(), Job{DocumentID: "c"})
	assert.ErrorIs(t, err, ErrQueueFull)

	close(block)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	q.Shutdown(ctx)
}

func TestQueue_EnqueueAfterShutdown(t *testing.T) {
	proc := &procStub{}
	q := NewQueue(proc, discardLogger(), WithWorkers(1))
	q.Shutdown(context.Background())

	err := q.Enqueue(context.Background(), Job{DocumentID: "doc"})
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestQueue_EnqueueRacingShutdown(t *testing.T) {
	// Enqueue and Shutdown from different goroutines must never send on the
	// closed channel; late submitters get ErrQueueClosed instead.
	for i := 0; i < 100; i++ {
		proc := &procStub{}
		q := NewQueue(proc, discardLogger(), WithWorkers(1), WithQueueSize(4))

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				err := q.Enqueue(context.Background(), Job{DocumentID: "doc"})
				if errors.Is(err, ErrQueueClosed) {
					return
				}
				if err != nil {
					assert.ErrorIs(t, err, ErrQueueFull)
				}
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		q.Shutdown(ctx)
		cancel()
		wg.Wait()
	}
}

func TestQueue_ShutdownIdempotent(t *testing.T) {
	proc := &procStub{}
	q := NewQueue(proc, discardLogger(), WithWorkers(1))

	q.Shutdown(context.Background())
	// Second call must not panic on the closed channel.
	q.Shutdown(context.Background())
}

func TestQueue_ToleratesProcessingErrors(t *testing.T) {
	proc := &procStub{err: errors.New("boom")}
	q := NewQueue(proc, discardLogger(), WithWorkers(1), WithQueueSize(8))

	for i := 0; i < 3; i++ {
		require.NoError(t, q.Enqueue(context.Background(), Job{DocumentID: "doc"}))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	q.Shutdown(ctx)

	// Errors are logged per job; the workers keep draining.
	assert.Equal(t, 3, proc.count())
}

func TestQueue_LostClaimIsBenign(t *testing.T) {
	proc := &procStub{err: service.ErrAlreadyProcessing}
	q := NewQueue(proc, discardLogger(), WithWorkers(1), WithQueueSize(8))

	require.NoError(t, q.Enqueue(context.Background(), Job{DocumentID: "doc"}))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	q.Shutdown(ctx)

	assert.Equal(t, 1, proc.count())
}
