// Package queue serializes mutating actions against the site.
//
// The browser session is one shared surface, so jobs run strictly one at a
// time in FIFO order. Jobs are fire-and-forget: callers get a job id back
// immediately and the outcome is only logged.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Louieza23/Letterboxio/pkg/logging"
	"github.com/Louieza23/Letterboxio/pkg/types"
)

// ErrClosed is returned by Enqueue after Close.
var ErrClosed = errors.New("queue closed")

// Job is one queued action.
type Job struct {
	// ID is assigned by Enqueue
	ID string

	// Kind and Target describe the job for logs
	Kind   types.ActionKind
	Target string

	// Execute performs the action. It is never retried.
	Execute func(ctx context.Context) error
}

// Queue runs jobs one at a time on a single drain goroutine.
type Queue struct {
	mu       sync.Mutex
	pending  []*Job
	draining bool
	closed   bool
	idle     chan struct{} // closed whenever nothing is pending or running

	ctx    context.Context
	logger *logging.Logger

	processed int
	failed    int
}

// New creates an empty queue. Jobs run with a context derived from
// context.Background; a dequeued job always runs to completion.
func New(logger *logging.Logger) *Queue {
	if logger == nil {
		logger = logging.Discard()
	}
	idle := make(chan struct{})
	close(idle)
	return &Queue{
		idle:   idle,
		ctx:    context.Background(),
		logger: logger,
	}
}

// Enqueue appends job and starts the drain loop if it is not running.
// It returns the assigned job id.
func (q *Queue) Enqueue(job Job) (string, error) {
	if job.Execute == nil {
		return "", fmt.Errorf("job %s %s has no Execute func", job.Kind, job.Target)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return "", ErrClosed
	}

	job.ID = uuid.New().String()
	q.pending = append(q.pending, &job)
	q.logger.Debugf("enqueued %s %s (%s), %d pending", job.Kind, job.Target, job.ID, len(q.pending))

	if !q.draining {
		q.draining = true
		q.idle = make(chan struct{})
		go q.drain()
	}
	return job.ID, nil
}

// drain loops until the queue is empty. It never recurses.
func (q *Queue) drain() {
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.draining = false
			close(q.idle)
			q.mu.Unlock()
			return
		}
		job := q.pending[0]
		q.pending[0] = nil
		q.pending = q.pending[1:]
		q.mu.Unlock()

		err := q.run(job)

		q.mu.Lock()
		q.processed++
		if err != nil {
			q.failed++
		}
		q.mu.Unlock()
	}
}

// run executes one job, turning a panic into an error so later jobs still run.
func (q *Queue) run(job *Job) (err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		elapsed := time.Since(start).Round(time.Millisecond)
		if err != nil {
			q.logger.Errorf("job %s %s (%s) failed after %s: %v", job.Kind, job.Target, job.ID, elapsed, err)
			return
		}
		q.logger.Infof("job %s %s (%s) completed in %s", job.Kind, job.Target, job.ID, elapsed)
	}()

	return job.Execute(q.ctx)
}

// Wait blocks until no job is pending or running, or ctx is done.
func (q *Queue) Wait(ctx context.Context) error {
	q.mu.Lock()
	idle := q.idle
	q.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting jobs and waits for the pending ones to finish.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	q.closed = true
	n := len(q.pending)
	q.mu.Unlock()

	if n > 0 {
		q.logger.Infof("draining %d pending jobs", n)
	}
	return q.Wait(ctx)
}

// Len returns the number of jobs waiting to run, excluding the running one.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Stats returns how many jobs have finished and how many of those failed.
func (q *Queue) Stats() (processed, failed int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.processed, q.failed
}
