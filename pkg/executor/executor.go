// Package executor provides the single-consumer task loop that owns all
// router state. Endpoint reader goroutines, signal handlers and control
// surfaces never touch that state directly; they post closures here and
// the loop runs them one at a time.
package executor

import (
	"context"
	"sync"
)

const defaultQueueDepth = 1024

// Executor is a cooperative single-threaded task loop.
type Executor struct {
	tasks chan func()

	mu      sync.Mutex
	stopped bool
}

// New creates an executor with the default queue depth.
func New() *Executor {
	return &Executor{tasks: make(chan func(), defaultQueueDepth)}
}

// Post enqueues fn for execution on the loop. It is safe to call from any
// goroutine. Posting after Run has returned is a no-op.
func (e *Executor) Post(fn func()) {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()
	// Blocks when the queue is full. Producers are sparse control
	// paths, never the hot datapath.
	e.tasks <- fn
}

// TryPost enqueues fn without blocking and reports whether it was queued.
func (e *Executor) TryPost(fn func()) bool {
	select {
	case e.tasks <- fn:
		return true
	default:
		return false
	}
}

// Run consumes tasks until ctx is cancelled. It must be called from
// exactly one goroutine; that goroutine becomes the router thread.
func (e *Executor) Run(ctx context.Context) {
	defer func() {
		e.mu.Lock()
		e.stopped = true
		e.mu.Unlock()
	}()
	for {
		select {
		case <-ctx.Done():
			e.drain()
			return
		case fn := <-e.tasks:
			fn()
		}
	}
}

// drain runs whatever was already queued so posted shutdown work is not
// silently lost.
func (e *Executor) drain() {
	for {
		select {
		case fn := <-e.tasks:
			fn()
		default:
			return
		}
	}
}

// RunPending executes queued tasks until the queue is momentarily empty.
// It exists for tests that drive the loop from the test goroutine.
func (e *Executor) RunPending() int {
	n := 0
	for {
		select {
		case fn := <-e.tasks:
			fn()
			n++
		default:
			return n
		}
	}
}
