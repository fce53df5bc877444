// Package scheduler runs sweep functions on fixed intervals. The sweep
// functions stay callable on their own; this package only owns the timers.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
	// RunOnStart fires one sweep immediately instead of waiting a full interval.
	RunOnStart bool
}

// Locker keeps one instance of a job running across processes.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

type Runner struct {
	jobs    []Job
	locker  Locker
	lockTTL time.Duration
	timeout time.Duration
	logger  *zap.Logger
	wg      sync.WaitGroup
}

type Option func(*Runner)

func WithLocker(l Locker, ttl time.Duration) Option {
	return func(r *Runner) { r.locker, r.lockTTL = l, ttl }
}

// WithRunTimeout bounds a single sweep.
func WithRunTimeout(d time.Duration) Option { return func(r *Runner) { r.timeout = d } }

func New(logger *zap.Logger, opts ...Option) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Runner{logger: logger, lockTTL: time.Minute, timeout: 10 * time.Minute}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *Runner) Add(j Job) { r.jobs = append(r.jobs, j) }

// Start launches one goroutine per job; they stop when ctx is done.
func (r *Runner) Start(ctx context.Context) {
	for _, j := range r.jobs {
		if j.Interval <= 0 {
			r.logger.Warn("job has no interval, not scheduling", zap.String("job", j.Name))
			continue
		}
		r.wg.Add(1)
		go r.loop(ctx, j)
	}
}

// Wait blocks until every job loop has returned.
func (r *Runner) Wait() { r.wg.Wait() }

func (r *Runner) loop(ctx context.Context, j Job) {
	defer r.wg.Done()
	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()

	r.logger.Info("job scheduled", zap.String("job", j.Name), zap.Duration("interval", j.Interval))
	if j.RunOnStart {
		_ = r.RunOnce(ctx, j)
	}
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("job stopped", zap.String("job", j.Name))
			return
		case <-ticker.C:
			_ = r.RunOnce(ctx, j)
		}
	}
}

// RunOnce executes a single sweep: under the lock when one is configured,
// with panics turned into errors. Errors are logged and returned, never fatal.
func (r *Runner) RunOnce(ctx context.Context, j Job) (err error) {
	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if r.locker != nil {
		release, ok, lerr := r.locker.TryLock(runCtx, "lock:job:"+j.Name, r.lockTTL)
		if lerr != nil {
			r.logger.Error("job lock failed", zap.String("job", j.Name), zap.Error(lerr))
			return lerr
		}
		if !ok {
			r.logger.Debug("job already running elsewhere", zap.String("job", j.Name))
			return nil
		}
		defer release()
	}

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("job %s panicked: %v", j.Name, p)
			r.logger.Error("job panicked", zap.String("job", j.Name), zap.Any("panic", p))
		}
	}()

	start := time.Now()
	if err = j.Run(runCtx); err != nil {
		r.logger.Error("job failed", zap.String("job", j.Name), zap.Duration("took", time.Since(start)), zap.Error(err))
		return err
	}
	r.logger.Debug("job finished", zap.String("job", j.Name), zap.Duration("took", time.Since(start)))
	return nil
}
