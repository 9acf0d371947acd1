package application

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/jobrunner/geoalgebra/internal/domain"
	"github.com/jobrunner/geoalgebra/internal/ports/output"
)

// Dispatcher defaults.
const (
	DefaultWorkers   = 2
	DefaultQueueSize = 64
)

// Runner executes a single job.
type Runner interface {
	Execute(ctx context.Context, job *domain.Job) domain.Response
}

// DispatcherConfig holds configuration for the dispatcher.
type DispatcherConfig struct {
	Workers   int
	QueueSize int
}

type task struct {
	ctx   context.Context
	job   *domain.Job
	reply chan domain.Response
}

// Dispatcher runs jobs on a fixed pool of workers fed from a bounded
// queue. Each submitted job yields exactly one response; responses of
// independent jobs may arrive in any order.
type Dispatcher struct {
	runner  Runner
	metrics output.MetricsCollector
	logger  *slog.Logger
	workers int

	mu       sync.RWMutex
	queue    chan task
	started  bool
	closed   bool
	wg       sync.WaitGroup
	done     chan struct{}
	stopOnce sync.Once
}

// NewDispatcher creates a dispatcher. Call Start before submitting jobs.
func NewDispatcher(runner Runner, metrics output.MetricsCollector, logger *slog.Logger, cfg DispatcherConfig) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	return &Dispatcher{
		runner:  runner,
		metrics: metrics,
		logger:  logger,
		workers: cfg.Workers,
		queue:   make(chan task, cfg.QueueSize),
		done:    make(chan struct{}),
	}
}

// Start launches the workers. Calling Start more than once has no effect.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true

	d.logger.Info("starting job dispatcher", "workers", d.workers, "queue_size", cap(d.queue))
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.work(i)
	}
}

// Submit enqueues job. It blocks while the queue is full until ctx is
// done or the dispatcher stops. The returned channel is buffered and receives exactly one
// response.
func (d *Dispatcher) Submit(ctx context.Context, job *domain.Job) (<-chan domain.Response, error) {
	if job == nil {
		return nil, &domain.ValidationError{Field: "job", Constraint: "non-nil", Message: "job is required"}
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return nil, domain.ErrDispatcherClosed
	}

	t := task{ctx: context.WithoutCancel(ctx), job: job, reply: make(chan domain.Response, 1)}
	select {
	case d.queue <- t:
		d.metrics.SetQueuedJobs(len(d.queue))
		return t.reply, nil
	case <-d.done:
		return nil, domain.ErrDispatcherClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Do submits job and waits for its response.
func (d *Dispatcher) Do(ctx context.Context, job *domain.Job) (domain.Response, error) {
	reply, err := d.Submit(ctx, job)
	if err != nil {
		return domain.Response{}, err
	}
	select {
	case resp := <-reply:
		return resp, nil
	case <-ctx.Done():
		return domain.Response{}, ctx.Err()
	}
}

// Stop rejects new jobs, lets the workers drain the queue and waits for
// them to finish.
func (d *Dispatcher) Stop() {
	// Release senders blocked on a full queue; they hold the read lock.
	d.stopOnce.Do(func() { close(d.done) })

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	started := d.started
	d.mu.Unlock()

	if !started {
		for t := range d.queue {
			t.reply <- domain.NewErrorResponse(t.job, domain.ErrDispatcherClosed)
		}
		return
	}

	d.logger.Info("stopping job dispatcher")
	d.wg.Wait()
}

// Workers returns the number of workers.
func (d *Dispatcher) Workers() int {
	return d.workers
}

// QueuedJobs returns the number of jobs waiting for a worker.
func (d *Dispatcher) QueuedJobs() int {
	return len(d.queue)
}

func (d *Dispatcher) work(id int) {
	defer d.wg.Done()
	for t := range d.queue {
		d.metrics.SetQueuedJobs(len(d.queue))
		t.reply <- d.run(id, t)
	}
}

// run executes one task, turning a panic into an error response.
func (d *Dispatcher) run(worker int, t task) (resp domain.Response) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("job panicked",
				"worker", worker,
				"id", t.job.ID,
				"type", t.job.Type,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			d.metrics.IncJobCount(string(t.job.Type), false)
			resp = domain.NewErrorResponse(t.job, fmt.Errorf("%w: %v", domain.ErrJobPanicked, r))
		}
	}()
	return d.runner.Execute(t.ctx, t.job)
}
