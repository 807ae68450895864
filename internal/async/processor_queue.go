package async

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/joseph-ayodele/docintake/internal/llm"
	"github.com/joseph-ayodele/docintake/internal/pipeline"
)

// Processor is the part of *pipeline.Processor the queue drives.
type Processor interface {
	Run(ctx context.Context, path string, schema llm.SchemaName) pipeline.Result
	Cancel()
}

// ProcessorQueue feeds jobs to a Processor from a single consumer goroutine,
// so documents are processed one at a time in arrival order.
type ProcessorQueue struct {
	proc     Processor
	logger   *slog.Logger
	timeout  time.Duration
	onResult func(Job, pipeline.Result)

	ch   chan Job
	done chan struct{}
	once sync.Once

	mu      sync.Mutex
	closed  bool
	pending map[string]bool
}

type Option func(*ProcessorQueue)

func WithQueueSize(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}

func WithProcessTimeout(d time.Duration) Option {
	return func(q *ProcessorQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

// WithResultHandler is called on the consumer goroutine after every job.
func WithResultHandler(fn func(Job, pipeline.Result)) Option {
	return func(q *ProcessorQueue) {
		q.onResult = fn
	}
}

func NewProcessorQueue(proc Processor, logger *slog.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &ProcessorQueue{
		proc:    proc,
		logger:  logger,
		timeout: 5 * time.Minute,
		ch:      make(chan Job, 256),
		done:    make(chan struct{}),
		pending: map[string]bool{},
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *ProcessorQueue) start() {
	q.once.Do(func() {
		go func() {
			defer close(q.done)
			q.logger.Info("queue.worker.started")
			for job := range q.ch {
				q.mu.Lock()
				delete(q.pending, job.Path)
				q.mu.Unlock()

				ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
				res := q.proc.Run(ctx, job.Path, job.Schema)
				cancel()

				if res.Success {
					q.logger.Info("queue.job.ok", "path", job.Path, "run_id", res.Run.ID, "wait_ms", time.Since(job.SubmittedAt).Milliseconds())
				} else {
					q.logger.Error("queue.job.failed", "path", job.Path, "run_id", res.Run.ID, "err", res.Err)
				}
				if q.onResult != nil {
					q.onResult(job, res)
				}
			}
			q.logger.Info("queue.worker.stopped")
		}()
	})
}

// Enqueue adds job unless its path is already waiting. It blocks while the queue is full.
func (q *ProcessorQueue) Enqueue(ctx context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("queue.enqueue.rejected", "path", job.Path)
		return ErrClosed
	}
	if q.pending[job.Path] && !job.Force {
		q.logger.Debug("queue.enqueue.duplicate", "path", job.Path)
		return nil
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	select {
	case q.ch <- job:
	default:
		q.logger.Warn("queue.full", "path", job.Path)
		select {
		case q.ch <- job:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	q.pending[job.Path] = true
	q.logger.Info("queue.enqueued", "path", job.Path, "force", job.Force)
	return nil
}

// Shutdown stops intake and waits for queued jobs. When ctx ends first the
// running document is cancelled at its next stage boundary.
func (q *ProcessorQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	select {
	case <-ctx.Done():
		q.logger.Warn("queue.shutdown.interrupted")
		q.proc.Cancel()
	case <-q.done:
		q.logger.Info("queue.shutdown.drained")
	}
}
