package monitoring

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// writeJob is one asynchronous insert.
type writeJob struct {
	kind    string
	session string
	run     func(ctx context.Context) error
	attempt int
}

// writerPool runs monitoring writes off the message path.
type writerPool struct {
	jobs       chan *writeJob
	maxRetries int
	logger     *slog.Logger

	mu      sync.RWMutex
	closed  bool
	workers sync.WaitGroup
	pending sync.WaitGroup
}

func newWriterPool(workers, queueSize, maxRetries int, logger *slog.Logger) *writerPool {
	p := &writerPool{
		jobs:       make(chan *writeJob, queueSize),
		maxRetries: maxRetries,
		logger:     logger,
	}
	for i := 0; i < workers; i++ {
		p.workers.Add(1)
		go p.worker(i)
	}
	logger.Debug("started monitoring writers", slog.Int("workers", workers))
	return p
}

// enqueue queues job without blocking. It returns false when the queue is
// full or the pool is closed, in which case the write is dropped.
func (p *writerPool) enqueue(job *writeJob) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}
	p.pending.Add(1)
	select {
	case p.jobs <- job:
		return true
	default:
		p.pending.Done()
		p.logger.Warn("monitoring queue full, dropping write",
			slog.String("kind", job.kind), slog.Int("size", cap(p.jobs)))
		return false
	}
}

// requeue puts a failed job back until maxRetries is reached.
func (p *writerPool) requeue(job *writeJob) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed || job.attempt >= p.maxRetries {
		return false
	}
	job.attempt++
	select {
	case p.jobs <- job:
		return true
	case <-time.After(10 * time.Millisecond):
		return false
	}
}

func (p *writerPool) worker(id int) {
	defer p.workers.Done()
	for job := range p.jobs {
		p.process(id, job)
	}
}

func (p *writerPool) process(id int, job *writeJob) {
	if job.attempt > 0 {
		time.Sleep(time.Duration(job.attempt*job.attempt) * 100 * time.Millisecond)
	}
	// Writes outlive the request that produced them.
	err := job.run(context.Background())
	if err == nil {
		p.pending.Done()
		return
	}
	if p.requeue(job) {
		p.logger.Warn("monitoring write failed, retrying",
			slog.Int("worker", id), slog.String("kind", job.kind),
			slog.String("session", job.session), slog.Int("attempt", job.attempt), slog.Any("error", err))
		return
	}
	p.logger.Error("monitoring write failed",
		slog.Int("worker", id), slog.String("kind", job.kind),
		slog.String("session", job.session), slog.Any("error", err))
	p.pending.Done()
}

// flush waits until every queued write has finished.
func (p *writerPool) flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// stop closes the queue and waits for the workers to drain it.
func (p *writerPool) stop(ctx context.Context, timeout time.Duration) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.workers.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		p.logger.Warn("monitoring shutdown timeout, writes may be dropped", slog.Int("queued", len(p.jobs)))
		return nil
	case <-ctx.Done():
		p.logger.Warn("monitoring shutdown cancelled, writes may be dropped", slog.Int("queued", len(p.jobs)))
		return ctx.Err()
	}
}
