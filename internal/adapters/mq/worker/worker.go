// Package worker runs queued event checks and stores their results.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/mapcheck/internal/adapters/mq/queue"
	"github.com/okian/mapcheck/internal/adapters/repository"
	"github.com/okian/mapcheck/internal/domain/diagnostic"
	"github.com/okian/mapcheck/internal/domain/errorsummary"
	model "github.com/okian/mapcheck/internal/domain/model"
	"github.com/okian/mapcheck/internal/domain/proguard"
	"github.com/okian/mapcheck/pkg/logger"
	"github.com/okian/mapcheck/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerMultiplier = 4 // multiplier for runtime.NumCPU()
)

// Diagnoser checks one event and builds its banner.
type Diagnoser interface {
	Diagnose(ctx context.Context, scope proguard.Scope, event *model.Event) ([]diagnostic.Diagnostic, errorsummary.Banner)
}

// ResultWriter stores diagnosis results.
type ResultWriter interface {
	Put(ctx context.Context, r repository.Result) (bool, error)
}

// Releaser frees an event's in-flight slot.
type Releaser interface {
	Done(ctx context.Context, key string)
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.CheckJob
}

// Worker processes check jobs.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown gracefully stops the worker.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker for jobs from an in-memory queue.
type InMemoryWorker struct {
	queue     Queue
	diagnoser Diagnoser
	results   ResultWriter
	releaser  Releaser
	name      string
	now       func() time.Time
	processed *atomic.Int64

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, d Diagnoser, results ResultWriter, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     q,
		diagnoser: d,
		results:   results,
		releaser:  nopReleaser{},
		name:      "worker",
		now:       time.Now,
		processed: &atomic.Int64{},
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
		logger:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.Named(w.name)
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.process(ctx, job); err != nil {
				w.logger.Error(ctx, "error processing job", logger.String("event_id", job.Event.ID), logger.Error(err))
			}
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// process diagnoses one job and stores the result. The in-flight slot is
// always released.
func (w *InMemoryWorker) process(ctx context.Context, job queue.CheckJob) (err error) { //nolint:gocritic // hugeParam: jobs travel by value over the channel
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
		w.releaser.Done(ctx, job.Key())
		w.processed.Add(1)
	}()

	res := repository.Result{
		Owner:    job.Scope.OrgSlug,
		Project:  job.Scope.ProjectSlug,
		EventID:  job.Event.ID,
		Revision: job.Revision,
	}
	diags, banner, perr := w.diagnose(ctx, job)
	if perr != nil {
		metrics.RecordWorkerError()
		res.Status = repository.StatusFailed
		res.Error = perr.Error()
		res.Diagnostics = []model.EventError{}
		err = perr
	} else {
		res.Status = repository.StatusDone
		res.Diagnostics = diagnostic.ToEventErrors(diags)
		res.Banner = &banner
	}
	res.CheckedAt = w.now()

	stored, putErr := w.results.Put(ctx, res)
	if putErr != nil {
		metrics.RecordWorkerError()
		return fmt.Errorf("storing diagnosis of %s: %w", job.Event.ID, putErr)
	}
	if !stored {
		w.logger.Debug(ctx, "dropped stale diagnosis",
			logger.String("event_id", job.Event.ID),
			logger.Int("revision", int(job.Revision)))
	}
	return err
}

func (w *InMemoryWorker) diagnose(ctx context.Context, job queue.CheckJob) (diags []diagnostic.Diagnostic, banner errorsummary.Banner, err error) { //nolint:gocritic // hugeParam
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("diagnosis panicked: %v", r)
		}
	}()
	diags, banner = w.diagnoser.Diagnose(ctx, job.Scope, &job.Event)
	return diags, banner, nil
}

type nopReleaser struct{}

func (nopReleaser) Done(context.Context, string) {}

// Pool manages multiple workers.
type Pool struct {
	workers   []*InMemoryWorker
	queue     Queue
	processed atomic.Int64
	wg        sync.WaitGroup
	started   atomic.Bool
	logger    logger.Logger
}

// NewPool creates a pool of workerCount workers. A count below one uses a
// multiple of the CPU count.
func NewPool(workerCount int, q Queue, d Diagnoser, results ResultWriter, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Nop(),
	}

	for i := 0; i < workerCount; i++ {
		wopts := append([]Option{}, opts...)
		wopts = append(wopts, WithName("worker-"+strconv.Itoa(i)), withCounter(&p.processed))
		p.workers[i] = NewInMemoryWorker(q, d, results, wopts...)
	}
	if len(p.workers) > 0 {
		p.logger = p.workers[0].logger
	}

	metrics.UpdateWorkerCount(workerCount)
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Processed returns the number of jobs handled since start.
func (p *Pool) Processed() int64 { return p.processed.Load() }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	if !p.started.CompareAndSwap(false, true) {
		return
	}
	for _, w := range p.workers {
		p.wg.Add(1)
		go func(w *InMemoryWorker) {
			defer p.wg.Done()
			w.Run(ctx)
		}(w)
	}
}

// Shutdown closes the queue so no new jobs arrive and waits for the workers
// to drain it.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		p.logger.Warn(ctx, "worker pool shutdown timed out", logger.Int("workers", len(p.workers)))
		for _, w := range p.workers {
			w.shutdownOnce.Do(func() { close(w.shutdown) })
		}
		return fmt.Errorf("worker pool shutdown: %w", ctx.Err())
	}
}
