// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package dispatch_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/holomush/authlobby/internal/dispatch"
	"github.com/holomush/authlobby/pkg/errutil"
)

func startLoop(t *testing.T, opts ...dispatch.Option) *dispatch.Loop {
	t.Helper()
	l := dispatch.New(opts...)
	l.Start(context.Background())
	t.Cleanup(func() {
		l.Stop()
		l.Wait()
	})
	return l
}

func TestLoop_RoutesByPattern(t *testing.T) {
	defer goleak.VerifyNone(t)

	l := dispatch.New()
	var got []string
	require.NoError(t, l.Handle("viewer.*", func(_ context.Context, ev dispatch.Event) error {
		got = append(got, "viewer:"+ev.Type)
		return nil
	}))
	require.NoError(t, l.Handle("world.**", func(_ context.Context, ev dispatch.Event) error {
		got = append(got, "world:"+ev.Type)
		return nil
	}))
	l.Start(context.Background())

	ctx := context.Background()
	require.NoError(t, l.Submit(ctx, dispatch.NewEvent("viewer.entered", nil)))
	require.NoError(t, l.Submit(ctx, dispatch.NewEvent("world.block.break", nil)))

	err := l.Submit(ctx, dispatch.NewEvent("viewer.password.mismatch", nil))
	errutil.AssertErrorCode(t, err, "DISPATCH_NO_HANDLER")

	l.Stop()
	l.Wait()
	assert.Equal(t, []string{"viewer:viewer.entered", "world:world.block.break"}, got)
}

func TestLoop_RunsEveryMatchingHandlerInOrder(t *testing.T) {
	l := dispatch.New()
	var order []int
	for i := 1; i <= 3; i++ {
		require.NoError(t, l.Handle("world.*", func(context.Context, dispatch.Event) error {
			order = append(order, i)
			return nil
		}))
	}
	l.Start(context.Background())
	defer func() { l.Stop(); l.Wait() }()

	require.NoError(t, l.Submit(context.Background(), dispatch.NewEvent("world.weather_change", nil)))
	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestLoop_JoinsHandlerErrors(t *testing.T) {
	l := dispatch.New()
	errA := errors.New("a")
	errB := errors.New("b")
	require.NoError(t, l.Handle("x.*", func(context.Context, dispatch.Event) error { return errA }))
	require.NoError(t, l.Handle("x.*", func(context.Context, dispatch.Event) error { return errB }))
	l.Start(context.Background())
	defer func() { l.Stop(); l.Wait() }()

	err := l.Submit(context.Background(), dispatch.NewEvent("x.y", nil))
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
}

func TestLoop_SerializesConcurrentSubmitters(t *testing.T) {
	defer goleak.VerifyNone(t)

	l := dispatch.New()
	l.Start(context.Background())
	defer func() { l.Stop(); l.Wait() }()
	var inFlight, maxInFlight atomic.Int32
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := l.Do(context.Background(), func(context.Context) error {
				n := inFlight.Add(1)
				if n > maxInFlight.Load() {
					maxInFlight.Store(n)
				}
				counter++ // only the loop goroutine writes
				inFlight.Add(-1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
	assert.Equal(t, int32(1), maxInFlight.Load())
}

func TestLoop_StoppedRejectsWork(t *testing.T) {
	defer goleak.VerifyNone(t)

	l := dispatch.New()
	l.Start(context.Background())
	l.Stop()
	l.Wait()

	err := l.Do(context.Background(), func(context.Context) error { return nil })
	assert.ErrorIs(t, err, dispatch.ErrStopped)
}

func TestLoop_ContextCancelStopsLoop(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	l := dispatch.New()
	l.Start(ctx)
	cancel()
	l.Wait()

	err := l.Do(context.Background(), func(context.Context) error { return nil })
	assert.ErrorIs(t, err, dispatch.ErrStopped)
}

func TestLoop_DoHonoursCallerContext(t *testing.T) {
	l := startLoop(t)
	release := make(chan struct{})
	started := make(chan struct{})

	go func() {
		_ = l.Do(context.Background(), func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := l.Do(ctx, func(context.Context) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	close(release)
}

func TestLoop_HandleValidation(t *testing.T) {
	l := dispatch.New()

	errutil.AssertErrorCode(t, l.Handle("", func(context.Context, dispatch.Event) error { return nil }), "DISPATCH_PATTERN_INVALID")
	errutil.AssertErrorCode(t, l.Handle("viewer.*", nil), "DISPATCH_PATTERN_INVALID")
	errutil.AssertErrorCode(t, l.Handle("viewer.[", func(context.Context, dispatch.Event) error { return nil }), "DISPATCH_PATTERN_INVALID")
}

func TestNewEvent(t *testing.T) {
	a := dispatch.NewEvent("viewer.entered", "payload")
	b := dispatch.NewEvent("viewer.entered", "payload")
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, "payload", a.Payload)
}
