// Copyright (c) Microsoft. All rights reserved.

package agentserver

import (
	"context"
	"runtime/debug"
	"sync"
)

// EventStream is a pull-based iterator over the events of one invocation.
// A producer goroutine hands events over an unbuffered channel, so at most
// one event is computed ahead of the consumer. The producer's returned error
// becomes the stream's terminal error.
//
// Callers must call Close when done, or cancel the context the stream was
// created with.
type EventStream struct {
	ch        <-chan Event
	errCh     <-chan error
	cancel    context.CancelFunc
	closeOnce sync.Once

	mu   sync.Mutex
	err  error
	done bool
}

// NewEventStream runs producer in a goroutine and returns a stream over the
// events it sends. The channel is closed when producer returns. A panic in
// producer is reported as a [*PanicError].
func NewEventStream(ctx context.Context, producer func(ctx context.Context, ch chan<- Event) error) *EventStream {
	ctx, cancel := context.WithCancel(ctx)
	ch := make(chan Event)
	errCh := make(chan error, 1)

	go func() {
		defer close(ch)
		if err := runProducer(ctx, ch, producer); err != nil {
			errCh <- err
		}
		close(errCh)
	}()

	return &EventStream{
		ch:     ch,
		errCh:  errCh,
		cancel: cancel,
	}
}

func runProducer(ctx context.Context, ch chan<- Event, producer func(ctx context.Context, ch chan<- Event) error) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = &PanicError{Value: v, Stack: debug.Stack()}
		}
	}()
	return producer(ctx, ch)
}

// EventsOf returns a stream that yields events in order and then ends.
func EventsOf(events ...Event) *EventStream {
	return NewEventStream(context.Background(), func(ctx context.Context, ch chan<- Event) error {
		for _, ev := range events {
			if err := Emit(ctx, ch, ev); err != nil {
				return err
			}
		}
		return nil
	})
}

// Emit sends ev on ch unless ctx is cancelled first. Producers should use it
// instead of a bare send so an abandoned stream releases them.
func Emit(ctx context.Context, ch chan<- Event, ev Event) error {
	select {
	case ch <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Next returns the next event. ok is false once the stream is exhausted; err
// is the producer's error, reported on every call after the failure.
func (s *EventStream) Next(ctx context.Context) (ev Event, ok bool, err error) {
	s.mu.Lock()
	if s.done {
		err = s.err
		s.mu.Unlock()
		return Event{}, false, err
	}
	s.mu.Unlock()

	select {
	case <-ctx.Done():
		return Event{}, false, ctx.Err()
	case v, open := <-s.ch:
		if open {
			return v, true, nil
		}
		// The producer fills errCh before closing ch.
		s.mu.Lock()
		defer s.mu.Unlock()
		if !s.done {
			s.err = <-s.errCh
			s.done = true
		}
		return Event{}, false, s.err
	}
}

// Collect drains the stream and returns every event read before the end or
// the first error.
func (s *EventStream) Collect(ctx context.Context) ([]Event, error) {
	var events []Event
	for {
		ev, ok, err := s.Next(ctx)
		if err != nil {
			return events, err
		}
		if !ok {
			return events, nil
		}
		events = append(events, ev)
	}
}

// Close cancels the producer and waits for it to release the channel.
// Safe to call multiple times.
func (s *EventStream) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		for range s.ch {
		}
	})
	return nil
}
