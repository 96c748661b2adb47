package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/trezcool/academia/core"
)

var (
	ErrQueueFull = errors.New("job queue is full")
	ErrClosed    = errors.New("job queue is closed")
)

type job struct {
	name string
	run  func(ctx context.Context) error
}

// Pool runs enqueued jobs on a fixed number of workers. A failed job is logged and never retried.
type Pool struct {
	concurrency int
	jobs        chan job
	logger      core.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup // pending jobs
}

var _ core.JobQueue = (*Pool)(nil)

func NewPool(concurrency, queueSize int, logger core.Logger) *Pool {
	if concurrency < 1 {
		concurrency = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	return &Pool{
		concurrency: concurrency,
		jobs:        make(chan job, queueSize),
		logger:      logger,
	}
}

// Enqueue never blocks: it returns ErrQueueFull when the buffer is full.
func (p *Pool) Enqueue(name string, fn func(ctx context.Context) error) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	p.wg.Add(1)
	select {
	case p.jobs <- job{name: name, run: fn}:
		return nil
	default:
		p.wg.Done()
		return ErrQueueFull
	}
}

// Run starts the workers and blocks until the pool is closed and drained.
// Jobs receive ctx; cancelling it does not stop the workers.
func (p *Pool) Run(ctx context.Context) error {
	var g errgroup.Group
	for i := 0; i < p.concurrency; i++ {
		g.Go(func() error {
			for j := range p.jobs {
				p.execute(ctx, j)
			}
			return nil
		})
	}
	return g.Wait()
}

func (p *Pool) execute(ctx context.Context, j job) {
	defer p.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			err := errors.Errorf("job %s panicked: %v", j.name, r)
			p.logger.Error(err.Error(), err)
		}
	}()
	if err := j.run(ctx); err != nil {
		p.logger.Error(fmt.Sprintf("job %s: %v", j.name, err), err)
	}
}

// Wait blocks until every enqueued job has run.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Close stops accepting jobs; workers exit once the queue is drained.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.jobs)
	}
}

// syncQueue runs jobs inline, in the caller's goroutine.
type syncQueue struct {
	logger core.Logger
}

// NewSyncQueue returns a JobQueue for the CLI & tests, where jobs must be done when Enqueue returns.
func NewSyncQueue(logger core.Logger) core.JobQueue {
	return syncQueue{logger: logger}
}

func (q syncQueue) Enqueue(name string, fn func(ctx context.Context) error) error {
	if err := fn(context.Background()); err != nil {
		q.logger.Error(fmt.Sprintf("job %s: %v", name, err), err)
	}
	return nil
}
