// Copyright (c) Microsoft. All rights reserved.

package agentframework

import (
	"context"
	"sync"
)

// ResponseStream provides a pull-based iterator over streaming responses.
// A producer goroutine feeds it through a channel; errors from the producer
// surface once the values before them have been read.
//
// Callers must call Close when done, or use a context with cancellation.
type ResponseStream[T any] struct {
	ch        <-chan T
	errCh     <-chan error
	cancel    context.CancelFunc
	closeOnce sync.Once
	done      bool
	err       error
}

// NewResponseStream creates a ResponseStream by running producer in a goroutine.
// The channel is closed automatically when the producer returns.
func NewResponseStream[T any](ctx context.Context, producer func(ctx context.Context, ch chan<- T) error) *ResponseStream[T] {
	ctx, cancel := context.WithCancel(ctx)
	ch := make(chan T, 1)
	errCh := make(chan error, 1)

	go func() {
		defer close(errCh)
		defer close(ch)
		if err := producer(ctx, ch); err != nil {
			errCh <- err
		}
	}()

	return &ResponseStream[T]{
		ch:     ch,
		errCh:  errCh,
		cancel: cancel,
	}
}

// StreamOf returns a stream that yields the given values in order.
func StreamOf[T any](ctx context.Context, values ...T) *ResponseStream[T] {
	return NewResponseStream(ctx, func(ctx context.Context, ch chan<- T) error {
		for _, v := range values {
			select {
			case ch <- v:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})
}

// Next returns the next value from the stream.
// ok is false when the stream is exhausted. err is non-nil on failure and is
// returned again by every later call.
func (s *ResponseStream[T]) Next(ctx context.Context) (val T, ok bool, err error) {
	if s.done {
		return val, false, s.err
	}
	select {
	case <-ctx.Done():
		return val, false, ctx.Err()
	case v, open := <-s.ch:
		if open {
			return v, true, nil
		}
		s.done = true
		s.err = <-s.errCh
		return val, false, s.err
	}
}

// Collect drains the entire stream and returns all values.
func (s *ResponseStream[T]) Collect(ctx context.Context) ([]T, error) {
	var items []T
	for {
		val, ok, err := s.Next(ctx)
		if err != nil {
			return items, err
		}
		if !ok {
			return items, nil
		}
		items = append(items, val)
	}
}

// Close cancels the producer and waits for it to exit.
// Safe to call multiple times.
func (s *ResponseStream[T]) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		for range s.ch {
		}
		if !s.done {
			s.done = true
			s.err = <-s.errCh
		}
	})
	return nil
}

// MapStream transforms a ResponseStream[A] into a ResponseStream[B] using fn.
// The source is closed when the mapped stream finishes.
func MapStream[A, B any](ctx context.Context, src *ResponseStream[A], fn func(A) B) *ResponseStream[B] {
	return NewResponseStream(ctx, func(ctx context.Context, ch chan<- B) error {
		defer src.Close()
		for {
			val, ok, err := src.Next(ctx)
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			select {
			case ch <- fn(val):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	})
}
