package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/hurttlocker/zoonotes/internal/telemetry"
)

// DefaultWorkers is the pool size when none is configured.
const DefaultWorkers = 2

var (
	// ErrQueueFull is returned by Submit when the backlog is at capacity.
	ErrQueueFull = errors.New("job queue is full")
	// ErrRunnerStopped is returned by Submit after Shutdown.
	ErrRunnerStopped = errors.New("job runner stopped")
)

// Work is the body of a job. Its result is stored on the job when it
// completes.
type Work func(ctx context.Context) (any, error)

type task struct {
	id   string
	work Work
}

// RunnerConfig configures NewRunner.
type RunnerConfig struct {
	Workers   int
	QueueSize int
	Logger    *slog.Logger
	Metrics   *telemetry.Metrics
}

// Runner executes submitted work on a bounded pool of workers.
type Runner struct {
	reg     *Registry
	queue   chan task
	workers int
	logger  *slog.Logger
	metrics *telemetry.Metrics

	mu      sync.RWMutex
	stopped bool
	g       *errgroup.Group
	cancel  context.CancelFunc
}

// NewRunner returns a runner over reg. Call Start before submitting.
func NewRunner(reg *Registry, cfg RunnerConfig) *Runner {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = cfg.Workers * 16
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Runner{
		reg:     reg,
		queue:   make(chan task, cfg.QueueSize),
		workers: cfg.Workers,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
	}
}

// Registry returns the registry jobs are tracked in.
func (r *Runner) Registry() *Registry {
	return r.reg
}

// Start launches the workers. They stop when ctx is canceled or Shutdown
// is called.
func (r *Runner) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)

	r.mu.Lock()
	r.g, r.cancel = g, cancel
	r.mu.Unlock()

	for i := 0; i < r.workers; i++ {
		g.Go(func() error {
			r.worker(gctx)
			return nil
		})
	}
}

// Submit registers a PENDING job and queues its work. When the backlog is
// full the job is recorded as FAILED and its snapshot is returned together
// with ErrQueueFull, so callers can still report its ID.
func (r *Runner) Submit(ctx context.Context, source string, work Work) (Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.stopped {
		return Job{}, ErrRunnerStopped
	}

	j := r.reg.Create(source)
	r.metrics.RecordJobTransition(ctx, "", string(StatusPending))

	select {
	case r.queue <- task{id: j.ID, work: work}:
		return j, nil
	default:
		if failed, ok := r.fail(ctx, j.ID, StatusPending, ErrQueueFull); ok {
			j = failed
		}
		return j, ErrQueueFull
	}
}

// Shutdown stops accepting work, lets queued jobs drain and waits for the
// workers. If ctx expires first, in-flight work is canceled.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return nil
	}
	r.stopped = true
	close(r.queue)
	g, cancel := r.g, r.cancel
	r.mu.Unlock()

	if g == nil {
		return nil
	}
	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	select {
	case err := <-done:
		cancel()
		return err
	case <-ctx.Done():
		cancel()
		<-done
		return ctx.Err()
	}
}

func (r *Runner) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			r.drainCanceled()
			return
		case t, ok := <-r.queue:
			if !ok {
				return
			}
			r.run(ctx, t)
		}
	}
}

func (r *Runner) run(ctx context.Context, t task) {
	if _, err := r.reg.Transition(t.id, StatusPending, StatusProcessing, nil); err != nil {
		r.logger.Warn("job not runnable", "job", t.id, "error", err)
		return
	}
	r.metrics.RecordJobTransition(ctx, string(StatusPending), string(StatusProcessing))

	result, err := r.execute(ctx, t.work)
	if err == nil && ctx.Err() != nil {
		// Canceled mid-flight; the result is abandoned.
		err = ctx.Err()
	}
	if err != nil {
		r.fail(ctx, t.id, StatusProcessing, err)
		return
	}

	if _, err := r.reg.Transition(t.id, StatusProcessing, StatusCompleted, func(j *Job) {
		j.Result = result
	}); err != nil {
		r.logger.Warn("completing job", "job", t.id, "error", err)
		return
	}
	r.metrics.RecordJobTransition(ctx, string(StatusProcessing), string(StatusCompleted))
	r.logger.Info("job completed", "job", t.id)
}

// execute runs work, turning a panic into an error so one bad job cannot
// take the pool down.
func (r *Runner) execute(ctx context.Context, work Work) (result any, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("job panicked: %v", p)
		}
	}()
	return work(ctx)
}

func (r *Runner) fail(ctx context.Context, id string, from Status, cause error) (Job, bool) {
	j, err := r.reg.Transition(id, from, StatusFailed, func(j *Job) {
		j.Error = cause.Error()
	})
	if err != nil {
		r.logger.Warn("failing job", "job", id, "error", err)
		return Job{}, false
	}
	r.metrics.RecordJobTransition(context.WithoutCancel(ctx), string(from), string(StatusFailed))
	r.logger.Warn("job failed", "job", id, "error", cause)
	return j, true
}

// drainCanceled fails every job still queued when the pool is canceled.
func (r *Runner) drainCanceled() {
	for {
		select {
		case t, ok := <-r.queue:
			if !ok {
				return
			}
			r.fail(context.Background(), t.id, StatusPending, context.Canceled)
		default:
			return
		}
	}
}
