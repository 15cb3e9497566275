// Copyright (c) 2026 The rpcweb developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package workpool

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
)

// Job is a unit of work run by the pool.  The provided context identifies the
// worker running the job and must be passed to Shutdown when a job shuts the
// pool down.  It is never canceled by the pool.
type Job func(ctx context.Context)

// workerKey is the context key under which a worker stores its id.
type workerKey struct{}

// message is a queued item.  A nil job instructs the receiving worker to
// exit.
type message struct {
	job Job
}

// Pool runs jobs on a fixed set of long-lived goroutines pulling from a shared
// FIFO queue.  The queue is unbounded; callers are expected to limit
// submissions themselves.
type Pool struct {
	mtx    sync.Mutex
	cond   *sync.Cond
	queue  []message
	closed bool

	// done holds one channel per worker which is closed when that worker
	// exits.
	done []chan struct{}

	shutdownOnce sync.Once
}

// New returns a pool running the provided number of workers.  A size less
// than one is treated as one.
func New(size int) *Pool {
	if size < 1 {
		size = 1
	}
	p := &Pool{done: make([]chan struct{}, size)}
	p.cond = sync.NewCond(&p.mtx)
	for i := 0; i < size; i++ {
		p.done[i] = make(chan struct{})
		go p.worker(i)
	}
	log.Debugf("Started worker pool with %d workers", size)
	return p
}

// Size returns the number of workers in the pool.
func (p *Pool) Size() int {
	return len(p.done)
}

// Pending returns the number of queued messages not yet picked up by a
// worker.
func (p *Pool) Pending() int {
	p.mtx.Lock()
	n := len(p.queue)
	p.mtx.Unlock()
	return n
}

// Execute queues job to be run by the next free worker.  It never blocks.  An
// error with kind ErrPoolClosed is returned once Shutdown has been called.
func (p *Pool) Execute(job Job) error {
	if job == nil {
		return makeError(ErrNilJob, "cannot execute a nil job")
	}

	p.mtx.Lock()
	if p.closed {
		p.mtx.Unlock()
		return makeError(ErrPoolClosed, "worker pool is shut down")
	}
	p.queue = append(p.queue, message{job: job})
	p.mtx.Unlock()
	p.cond.Signal()
	return nil
}

// next blocks until a message is available and removes it from the queue.
func (p *Pool) next() message {
	p.mtx.Lock()
	for len(p.queue) == 0 {
		p.cond.Wait()
	}
	msg := p.queue[0]
	p.queue[0] = message{}
	p.queue = p.queue[1:]
	p.mtx.Unlock()
	return msg
}

// worker runs queued jobs until it receives an exit message.
//
// This must be run as a goroutine.
func (p *Pool) worker(id int) {
	defer close(p.done[id])

	ctx := context.WithValue(context.Background(), workerKey{}, id)
	for {
		msg := p.next()
		if msg.job == nil {
			log.Tracef("Worker %d exiting", id)
			return
		}
		p.run(ctx, id, msg.job)
	}
}

// run invokes job and keeps the worker alive if the job panics.
func (p *Pool) run(ctx context.Context, id int, job Job) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("Worker %d: job panicked: %v\n%s", id, r, debug.Stack())
		}
	}()
	job(ctx)
}

// Shutdown stops accepting new jobs, lets every job queued before the call
// finish, and waits for the workers to exit.  When called from inside a job
// with that job's context, the calling worker is not waited for since it
// cannot exit until the job returns.  It is safe to call more than once.
//
// Waiting stops early when ctx is done, in which case ctx.Err() is returned
// and the remaining workers exit on their own once their jobs return.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.shutdownOnce.Do(func() {
		p.mtx.Lock()
		p.closed = true
		for range p.done {
			p.queue = append(p.queue, message{})
		}
		p.mtx.Unlock()
		p.cond.Broadcast()
		log.Debugf("Worker pool shutting down")
	})

	self := -1
	if id, ok := ctx.Value(workerKey{}).(int); ok {
		self = id
	}
	for id, done := range p.done {
		if id == self {
			continue
		}
		select {
		case <-done:
		case <-ctx.Done():
			log.Warnf("Worker pool shutdown abandoned with jobs still "+
				"running: %v", ctx.Err())
			return ctx.Err()
		}
	}
	return nil
}

// String returns a short description of the pool.
func (p *Pool) String() string {
	return fmt.Sprintf("workpool(%d workers, %d pending)", p.Size(), p.Pending())
}
