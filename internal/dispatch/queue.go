// Package dispatch provides serial execution queues.
//
// A Queue runs submitted jobs one at a time, in submission order, on a
// single goroutine. The application uses one Queue as its "main" context
// (the only writer of UI-visible state) and another for camera session
// preparation.
package dispatch

import (
	"sync"

	"github.com/cjeanneret/ClassifyEverything/internal/debug"
)

// Queue is a serial FIFO executor. Submissions never block.
type Queue struct {
	label string

	mu     sync.Mutex
	cond   *sync.Cond
	jobs   []func()
	closed bool
	done   chan struct{}
}

// NewQueue starts a queue with the given label.
func NewQueue(label string) *Queue {
	q := &Queue{
		label: label,
		done:  make(chan struct{}),
	}
	q.cond = sync.NewCond(&q.mu)
	go q.run()
	return q
}

// Label returns the queue label.
func (q *Queue) Label() string {
	return q.label
}

// Async schedules fn and returns immediately.
// Jobs submitted after Close are dropped.
func (q *Queue) Async(fn func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		debug.Trace("queue %s: dropping job submitted after close", q.label)
		return
	}
	q.jobs = append(q.jobs, fn)
	q.cond.Signal()
}

// Sync schedules fn and waits for it to finish.
// It must not be called from a job running on the same queue.
// Returns false if the queue was already closed and fn did not run.
func (q *Queue) Sync(fn func()) bool {
	ran := make(chan struct{})
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.jobs = append(q.jobs, func() {
		defer close(ran)
		fn()
	})
	q.cond.Signal()
	q.mu.Unlock()
	<-ran
	return true
}

// Close stops accepting jobs, drains those already queued and waits for the
// worker goroutine to exit.
func (q *Queue) Close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		q.cond.Signal()
	}
	q.mu.Unlock()
	<-q.done
}

func (q *Queue) run() {
	defer close(q.done)
	for {
		q.mu.Lock()
		for len(q.jobs) == 0 && !q.closed {
			q.cond.Wait()
		}
		if len(q.jobs) == 0 && q.closed {
			q.mu.Unlock()
			return
		}
		job := q.jobs[0]
		q.jobs[0] = nil
		q.jobs = q.jobs[1:]
		q.mu.Unlock()

		job()
	}
}
