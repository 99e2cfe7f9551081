package repository

import (
	"context"
	"sync"
)

type job struct {
	ctx  context.Context
	fn   func(context.Context) error
	done chan error
}

// executor runs database writes on a fixed pool of workers. Callers block in
// Do until their write finishes. Once Close starts, new writes are rejected
// with ErrExecutorClosed while queued ones still run.
type executor struct {
	jobs   chan job
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

func newExecutor(workers int) *executor {
	if workers < 1 {
		workers = 1
	}
	e := &executor{
		jobs: make(chan job, workers*4),
	}
	e.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go e.work()
	}
	return e
}

func (e *executor) work() {
	defer e.wg.Done()
	for j := range e.jobs {
		j.done <- j.fn(j.ctx)
	}
}

// Do submits fn and waits for its result or for ctx to end.
func (e *executor) Do(ctx context.Context, fn func(context.Context) error) error {
	done := make(chan error, 1)

	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return ErrExecutorClosed
	}
	select {
	case e.jobs <- job{ctx: ctx, fn: fn, done: done}:
		e.mu.RUnlock()
	case <-ctx.Done():
		e.mu.RUnlock()
		return ctx.Err()
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting writes and waits for queued ones to finish.
func (e *executor) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	close(e.jobs)
	e.mu.Unlock()

	e.wg.Wait()
}
