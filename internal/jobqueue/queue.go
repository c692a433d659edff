// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package jobqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/matt-FFFFFF/upscaler/internal/cancellation"
	"github.com/matt-FFFFFF/upscaler/internal/ctxlog"
	"github.com/matt-FFFFFF/upscaler/internal/job"
)

var (
	// ErrQueueClosed is returned by Submit after Shutdown.
	ErrQueueClosed = errors.New("job queue is shut down")
	// ErrAmbiguousConfig is returned by New when both a runner and runner collaborators are given.
	ErrAmbiguousConfig = errors.New("provide either a runner or a logger/clock, not both")
)

// pollInterval bounds how long the idle worker sleeps before rechecking for shutdown.
const pollInterval = 100 * time.Millisecond

// Observer receives job lifecycle notifications. JobQueued runs on the submitting goroutine
// with the queue lock held and must not call back into the queue. The others run on the worker,
// except JobFinished for a job cancelled while queued, which runs on the goroutine calling Cancel.
type Observer interface {
	JobQueued(ctx context.Context, j job.Job)
	JobStarted(ctx context.Context, j job.Job)
	JobFinished(ctx context.Context, j job.Job, res job.Result, err error)
}

type item struct {
	job        job.Job
	onProgress job.ProgressFunc
	future     *Future
	onStart    func()
	onFinish   FinishFunc
}

// FinishFunc completes a job on the worker once the runner returns. Its outcome replaces the
// runner's and is what the future and the observers see.
type FinishFunc func(ctx context.Context, res job.Result, err error) (job.Result, error)

// SubmitOption configures one submission.
type SubmitOption func(*item)

// OnStart runs fn on the worker immediately before the job starts.
func OnStart(fn func()) SubmitOption {
	return func(it *item) {
		it.onStart = fn
	}
}

// OnFinish runs fn on the worker after the job has run and before its future resolves.
// It is not called for a job cancelled while still queued.
func OnFinish(fn FinishFunc) SubmitOption {
	return func(it *item) {
		it.onFinish = fn
	}
}

// Queue is a FIFO of jobs drained by one worker goroutine.
type Queue struct {
	runner    *job.Runner
	observers []Observer
	ctx       context.Context
	logger    *slog.Logger

	mu      sync.Mutex
	pending []*item
	running *item
	closed  bool
	notify  chan struct{}
	done    chan struct{}
}

// Option configures a Queue.
type Option func(*config)

type config struct {
	runner    *job.Runner
	logger    *slog.Logger
	clock     job.Clock
	observers []Observer
	ctx       context.Context
}

// WithRunner uses an existing runner. It cannot be combined with WithLogger or WithClock.
func WithRunner(r *job.Runner) Option {
	return func(c *config) {
		c.runner = r
	}
}

// WithLogger builds the queue's runner with this logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithClock builds the queue's runner with this clock.
func WithClock(clock job.Clock) Option {
	return func(c *config) {
		c.clock = clock
	}
}

// WithObserver adds a lifecycle observer.
func WithObserver(o Observer) Option {
	return func(c *config) {
		if o != nil {
			c.observers = append(c.observers, o)
		}
	}
}

// WithContext sets the context passed to every job. It defaults to context.Background().
// Cancelling it is observed by running jobs as cancellation.
func WithContext(ctx context.Context) Option {
	return func(c *config) {
		c.ctx = ctx
	}
}

// New creates a queue and starts its worker.
func New(opts ...Option) (*Queue, error) {
	c := &config{ctx: context.Background()}
	for _, opt := range opts {
		opt(c)
	}

	if c.runner != nil && (c.logger != nil || c.clock != nil) {
		return nil, ErrAmbiguousConfig
	}

	runner := c.runner
	if runner == nil {
		runner = job.NewRunner(job.WithLogger(c.logger), job.WithClock(c.clock))
	}

	q := &Queue{
		runner:    runner,
		observers: c.observers,
		ctx:       c.ctx,
		logger:    ctxlog.OrDiscard(c.logger),
		notify:    make(chan struct{}, 1),
		done:      make(chan struct{}),
	}

	go q.worker()

	return q, nil
}

// Submit enqueues j and returns immediately.
// If j has no cancellation signal the queue attaches one so Cancel can reach it.
func (q *Queue) Submit(j job.Job, onProgress job.ProgressFunc, opts ...SubmitOption) (*Future, error) {
	if j.Cancel == nil {
		j.Cancel = cancellation.NewToken()
	}

	it := &item{job: j, onProgress: onProgress, future: newFuture(j.ID)}
	for _, opt := range opts {
		opt(it)
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil, fmt.Errorf("submit %q: %w", j.ID, ErrQueueClosed)
	}

	for _, o := range q.observers {
		o.JobQueued(q.ctx, j)
	}

	q.pending = append(q.pending, it)
	q.mu.Unlock()

	q.wake()

	return it.future, nil
}

// Cancel requests cancellation of the job behind f.
// A queued job is removed and its future resolves with job.ErrJobCancelled without running.
// A running job is cancelled cooperatively. It returns false if the job already finished.
func (q *Queue) Cancel(f *Future) bool {
	q.mu.Lock()

	if q.running != nil && q.running.future == f {
		j := q.running.job
		q.mu.Unlock()
		j.Cancel.Cancel()

		return true
	}

	idx := slices.IndexFunc(q.pending, func(it *item) bool { return it.future == f })
	if idx < 0 {
		q.mu.Unlock()
		return false
	}

	it := q.pending[idx]
	q.pending = slices.Delete(q.pending, idx, idx+1)
	q.mu.Unlock()

	it.job.Cancel.Cancel()

	err := fmt.Errorf("job %q: %w", it.job.ID, job.ErrJobCancelled)
	it.future.resolve(job.Result{}, err)

	for _, o := range q.observers {
		o.JobFinished(q.ctx, it.job, job.Result{}, err)
	}

	return true
}

// Len returns the number of jobs waiting to run.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.pending)
}

// Shutdown stops accepting jobs. Jobs already queued still run.
// With wait it blocks until the worker has drained the queue and exited.
// It is safe to call more than once.
func (q *Queue) Shutdown(wait bool) {
	q.mu.Lock()
	alreadyClosed := q.closed
	q.closed = true
	q.mu.Unlock()

	if !alreadyClosed {
		ctxlog.Event(q.ctx, q.logger, slog.LevelDebug, "queue_shutdown", "Job queue shutting down")
		q.wake()
	}

	if wait {
		<-q.done
	}
}

func (q *Queue) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// next pops the head of the queue. ok is false once the queue is closed and empty.
func (q *Queue) next() (it *item, ok bool) {
	for {
		q.mu.Lock()
		if len(q.pending) > 0 {
			it = q.pending[0]
			q.pending = q.pending[1:]
			q.running = it
			q.mu.Unlock()

			return it, true
		}

		closed := q.closed
		q.mu.Unlock()

		if closed {
			return nil, false
		}

		select {
		case <-q.notify:
		case <-time.After(pollInterval):
		}
	}
}

func (q *Queue) worker() {
	defer close(q.done)

	for {
		it, ok := q.next()
		if !ok {
			return
		}

		q.run(it)

		q.mu.Lock()
		q.running = nil
		q.mu.Unlock()
	}
}

func (q *Queue) run(it *item) {
	for _, o := range q.observers {
		o.JobStarted(q.ctx, it.job)
	}

	if it.onStart != nil {
		it.onStart()
	}

	res, err := q.runner.Run(q.ctx, it.job, it.onProgress)

	if it.onFinish != nil {
		res, err = it.onFinish(q.ctx, res, err)
	}

	it.future.resolve(res, err)

	for _, o := range q.observers {
		o.JobFinished(q.ctx, it.job, res, err)
	}
}
