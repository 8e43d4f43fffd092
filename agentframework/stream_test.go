// Copyright (c) Microsoft. All rights reserved.

package agentframework_test

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	af "github.com/Azure/azure-ai-agentserver-go/agentframework"
)

func TestResponseStream_Collect(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	stream := af.NewResponseStream(context.Background(), func(ctx context.Context, ch chan<- int) error {
		for i := 1; i <= 3; i++ {
			ch <- i
		}
		return nil
	})
	defer stream.Close()

	items, err := stream.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, items)
}

func TestResponseStream_ErrorIsSticky(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	boom := errors.New("boom")
	stream := af.NewResponseStream(context.Background(), func(ctx context.Context, ch chan<- string) error {
		ch <- "a"
		return boom
	})
	defer stream.Close()

	ctx := context.Background()
	v, ok, err := stream.Next(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "a", v)

	for range 2 {
		_, ok, err = stream.Next(ctx)
		assert.False(t, ok)
		assert.ErrorIs(t, err, boom)
	}
}

func TestResponseStream_CloseStopsProducer(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	stopped := make(chan struct{})
	stream := af.NewResponseStream(context.Background(), func(ctx context.Context, ch chan<- int) error {
		defer close(stopped)
		for i := 0; ; i++ {
			select {
			case ch <- i:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	})

	_, ok, err := stream.Next(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, stream.Close())
	require.NoError(t, stream.Close())
	<-stopped
}

func TestResponseStream_NextHonorsContext(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	release := make(chan struct{})
	stream := af.NewResponseStream(context.Background(), func(ctx context.Context, ch chan<- int) error {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	})
	defer stream.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, ok, err := stream.Next(ctx)
	assert.False(t, ok)
	assert.ErrorIs(t, err, context.Canceled)
	close(release)
}

func TestMapStream(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ctx := context.Background()
	mapped := af.MapStream(ctx, af.StreamOf(ctx, 1, 2, 3), strconv.Itoa)
	defer mapped.Close()

	items, err := mapped.Collect(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3"}, items)
}

func TestMapStream_PropagatesError(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ctx := context.Background()
	src := af.NewResponseStream(ctx, func(ctx context.Context, ch chan<- int) error {
		ch <- 1
		return af.ErrInvalidResponse
	})
	mapped := af.MapStream(ctx, src, func(i int) int { return i * 10 })
	defer mapped.Close()

	items, err := mapped.Collect(ctx)
	assert.Equal(t, []int{10}, items)
	assert.ErrorIs(t, err, af.ErrInvalidResponse)
}
