// Copyright (c) Microsoft. All rights reserved.

package agentserver

import (
	"context"
	"fmt"
	"iter"
	"runtime/debug"
	"sync"
)

// Func is a plain synchronous invoke function. It runs on the worker pool.
type Func func(req *Request) (*Result, error)

// ContextFunc is an asynchronous invoke function. It runs on the request
// goroutine and may return either a result or a stream.
type ContextFunc func(ctx context.Context, req *Request) (Output, error)

// GeneratorFunc is a synchronous generator. Each step of the sequence is
// pulled on the worker pool; a non-nil error ends the stream with that error.
type GeneratorFunc func(req *Request) iter.Seq2[Event, error]

// ProducerFunc is an asynchronous generator: it sends events on ch until it
// returns. Use [Emit] to send so cancellation is honoured.
type ProducerFunc func(ctx context.Context, req *Request, ch chan<- Event) error

// Kind classifies an invoke function by calling convention.
type Kind int

const (
	KindNone Kind = iota
	KindSync
	KindAsync
	KindSyncGenerator
	KindAsyncGenerator
)

func (k Kind) String() string {
	switch k {
	case KindSync:
		return "sync"
	case KindAsync:
		return "async"
	case KindSyncGenerator:
		return "sync generator"
	case KindAsyncGenerator:
		return "async generator"
	}
	return "none"
}

// Shape is what an invocation produced.
type Shape int

const (
	ShapeResult Shape = iota
	ShapeStream
)

func (s Shape) String() string {
	if s == ShapeStream {
		return "stream"
	}
	return "result"
}

// Output is the normalized outcome of an invocation: exactly one of a result
// or an event stream.
type Output struct {
	result *Result
	stream *EventStream
}

// ResultOutput wraps a complete result.
func ResultOutput(r *Result) Output { return Output{result: r} }

// StreamOutput wraps an event stream.
func StreamOutput(s *EventStream) Output { return Output{stream: s} }

// Shape reports which variant the output holds.
func (o Output) Shape() Shape {
	if o.stream != nil {
		return ShapeStream
	}
	return ShapeResult
}

// Result returns the result, or nil for a stream output.
func (o Output) Result() *Result { return o.result }

// Stream returns the stream, or nil for a result output.
func (o Output) Stream() *EventStream { return o.stream }

// Close releases the stream, if any.
func (o Output) Close() error {
	if o.stream != nil {
		return o.stream.Close()
	}
	return nil
}

// Invoker presents one calling convention over the four function kinds. The
// kind is decided once, in [NewInvoker].
type Invoker struct {
	kind      Kind
	sync      Func
	async     ContextFunc
	generator GeneratorFunc
	producer  ProducerFunc
	pool      *WorkerPool
}

// NewInvoker classifies fn. A nil fn yields an Invoker whose Invoke always
// fails with [ErrNoInvokeFunc]; pool may be nil to use a default pool.
func NewInvoker(fn any, pool *WorkerPool) (*Invoker, error) {
	if pool == nil {
		pool = NewWorkerPool(0)
	}
	inv := &Invoker{pool: pool}

	switch f := fn.(type) {
	case nil:
		inv.kind = KindNone
	case Func:
		inv.kind, inv.sync = KindSync, f
	case func(*Request) (*Result, error):
		inv.kind, inv.sync = KindSync, f
	case ContextFunc:
		inv.kind, inv.async = KindAsync, f
	case func(context.Context, *Request) (Output, error):
		inv.kind, inv.async = KindAsync, f
	case GeneratorFunc:
		inv.kind, inv.generator = KindSyncGenerator, f
	case func(*Request) iter.Seq2[Event, error]:
		inv.kind, inv.generator = KindSyncGenerator, f
	case ProducerFunc:
		inv.kind, inv.producer = KindAsyncGenerator, f
	case func(context.Context, *Request, chan<- Event) error:
		inv.kind, inv.producer = KindAsyncGenerator, f
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedHandler, fn)
	}

	// A typed nil function is as good as no function.
	if inv.kind != KindNone && inv.sync == nil && inv.async == nil && inv.generator == nil && inv.producer == nil {
		inv.kind = KindNone
	}
	return inv, nil
}

// Kind returns the classified calling convention.
func (inv *Invoker) Kind() Kind { return inv.kind }

// Invoke calls the function exactly once. Errors raised by it are returned
// unchanged; panics become [*PanicError].
func (inv *Invoker) Invoke(ctx context.Context, req *Request) (Output, error) {
	switch inv.kind {
	case KindSync:
		res, err := call(ctx, inv.pool, func() (*Result, error) { return inv.sync(req) })
		if err != nil {
			return Output{}, err
		}
		return ResultOutput(res), nil

	case KindAsync:
		return inv.callAsync(ctx, req)

	case KindSyncGenerator:
		seq, err := call(ctx, inv.pool, func() (iter.Seq2[Event, error], error) { return inv.generator(req), nil })
		if err != nil {
			return Output{}, err
		}
		return StreamOutput(pullOnPool(ctx, inv.pool, seq)), nil

	case KindAsyncGenerator:
		return StreamOutput(NewEventStream(ctx, func(ctx context.Context, ch chan<- Event) error {
			return inv.producer(ctx, req, ch)
		})), nil
	}
	return Output{}, ErrNoInvokeFunc
}

func (inv *Invoker) callAsync(ctx context.Context, req *Request) (out Output, err error) {
	defer func() {
		if v := recover(); v != nil {
			out, err = Output{}, &PanicError{Value: v, Stack: debug.Stack()}
		}
	}()
	return inv.async(ctx, req)
}

// pullOnPool adapts a synchronous sequence to an EventStream. Every step is a
// separate pool job, so a blocking generator never holds the request
// goroutine.
func pullOnPool(ctx context.Context, pool *WorkerPool, seq iter.Seq2[Event, error]) *EventStream {
	return NewEventStream(ctx, func(ctx context.Context, ch chan<- Event) error {
		next, stop := iter.Pull2(seq)

		// next and stop must not run concurrently. If the stream is abandoned
		// while a pull is in flight, the pull calls stop once it returns.
		var (
			mu        sync.Mutex
			inFlight  bool
			abandoned bool
		)
		defer func() {
			mu.Lock()
			defer mu.Unlock()
			abandoned = true
			if !inFlight {
				stop()
			}
		}()

		type step struct {
			ev  Event
			err error
			ok  bool
		}
		for {
			var s step
			pull := func() {
				mu.Lock()
				if abandoned {
					mu.Unlock()
					return
				}
				inFlight = true
				mu.Unlock()

				defer func() {
					mu.Lock()
					defer mu.Unlock()
					inFlight = false
					if abandoned {
						stop()
					}
				}()
				s.ev, s.err, s.ok = next()
			}
			if err := pool.Do(ctx, pull); err != nil {
				return err
			}
			if !s.ok {
				return nil
			}
			if s.err != nil {
				return s.err
			}
			if err := Emit(ctx, ch, s.ev); err != nil {
				return err
			}
		}
	})
}
