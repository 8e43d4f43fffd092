// Copyright (c) Microsoft. All rights reserved.

package agentserver

import (
	"context"
	"runtime"
	"runtime/debug"

	"golang.org/x/sync/semaphore"
)

// maxDefaultWorkers caps the default pool size.
const maxDefaultWorkers = 32

// DefaultWorkerPoolSize returns min(32, NumCPU+4).
func DefaultWorkerPoolSize() int {
	return min(maxDefaultWorkers, runtime.NumCPU()+4)
}

// WorkerPool runs synchronous user code on a bounded set of goroutines so a
// slow handler cannot occupy an unbounded number of threads.
type WorkerPool struct {
	sem  *semaphore.Weighted
	size int
}

// NewWorkerPool creates a pool with size slots. A size below one uses
// [DefaultWorkerPoolSize].
func NewWorkerPool(size int) *WorkerPool {
	if size < 1 {
		size = DefaultWorkerPoolSize()
	}
	return &WorkerPool{sem: semaphore.NewWeighted(int64(size)), size: size}
}

// Size returns the number of slots.
func (p *WorkerPool) Size() int { return p.size }

// Do runs fn on a pool goroutine and waits for it. If ctx ends first, Do
// returns ctx.Err() and fn keeps its slot until it finishes. A panic in fn is
// returned as a [*PanicError].
func (p *WorkerPool) Do(ctx context.Context, fn func()) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() {
		defer p.sem.Release(1)
		done <- runGuarded(fn)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func runGuarded(fn func()) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = &PanicError{Value: v, Stack: debug.Stack()}
		}
	}()
	fn()
	return nil
}

// call runs fn on the pool and returns its results.
func call[T any](ctx context.Context, p *WorkerPool, fn func() (T, error)) (T, error) {
	var (
		val T
		err error
	)
	if perr := p.Do(ctx, func() { val, err = fn() }); perr != nil {
		var zero T
		return zero, perr
	}
	return val, err
}
