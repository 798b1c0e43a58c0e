// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package dispatch runs lobby work on a single goroutine.
//
// The presenter, the guard and the host adapter are not safe for concurrent
// use. Everything that touches them goes through a Loop, which executes
// submitted work one item at a time in submission order.
//
// Handlers are routed with gobwas/glob using '.' as the segment separator:
//   - "viewer.*" matches "viewer.entered" but not "viewer.password.mismatch"
//   - "world.**" matches every event under "world."
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gobwas/glob"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// ErrStopped is returned when work is submitted to a stopped loop.
var ErrStopped = errors.New("dispatch loop stopped")

// Event is a unit of routed work.
type Event struct {
	ID      ulid.ULID
	Type    string
	Payload any
}

// NewEvent creates an Event with a fresh ULID.
func NewEvent(eventType string, payload any) Event {
	return Event{ID: ulid.Make(), Type: eventType, Payload: payload}
}

// Handler processes one event on the loop goroutine.
type Handler func(ctx context.Context, ev Event) error

type route struct {
	pattern string
	glob    glob.Glob
	handler Handler
}

type job struct {
	ctx  context.Context
	fn   func(context.Context) error
	done chan error
}

// Loop serializes work onto one goroutine.
type Loop struct {
	mu      sync.RWMutex
	routes  []route
	jobs    chan job
	quit    chan struct{}
	exited  chan struct{}
	stopped sync.Once
	started atomic.Bool
	wg      sync.WaitGroup
	slow    time.Duration
	logger  *slog.Logger
}

// Option configures a Loop.
type Option func(*Loop)

// WithQueueSize sets how many submissions may wait for the loop. Default 64.
func WithQueueSize(n int) Option {
	return func(l *Loop) {
		if n > 0 {
			l.jobs = make(chan job, n)
		}
	}
}

// WithSlowThreshold logs work that holds the loop longer than d. Default 50ms.
func WithSlowThreshold(d time.Duration) Option {
	return func(l *Loop) {
		l.slow = d
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// New creates a Loop. Call Start before submitting work.
func New(opts ...Option) *Loop {
	l := &Loop{
		jobs:   make(chan job, 64),
		quit:   make(chan struct{}),
		exited: make(chan struct{}),
		slow:   50 * time.Millisecond,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Handle registers handler for event types matching pattern. Every matching
// handler runs, in registration order.
func (l *Loop) Handle(pattern string, handler Handler) error {
	if pattern == "" {
		return oops.Code("DISPATCH_PATTERN_INVALID").Errorf("empty pattern")
	}
	if handler == nil {
		return oops.Code("DISPATCH_PATTERN_INVALID").With("pattern", pattern).Errorf("nil handler")
	}
	g, err := glob.Compile(pattern, '.')
	if err != nil {
		return oops.Code("DISPATCH_PATTERN_INVALID").With("pattern", pattern).Wrap(err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.routes = append(l.routes, route{pattern: pattern, glob: g, handler: handler})
	return nil
}

// Start runs the loop until ctx is cancelled or Stop is called.
// Only the first call has any effect.
func (l *Loop) Start(ctx context.Context) {
	if !l.started.CompareAndSwap(false, true) {
		return
	}
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		defer close(l.exited)
		for {
			select {
			case <-ctx.Done():
				l.Stop()
				l.drain()
				return
			case <-l.quit:
				l.drain()
				return
			case j := <-l.jobs:
				l.run(j)
			}
		}
	}()
}

// Stop stops accepting work. Work still queued is rejected with ErrStopped.
// Use Wait to block until the loop goroutine has exited.
func (l *Loop) Stop() {
	l.stopped.Do(func() { close(l.quit) })
}

// Wait blocks until the loop goroutine has exited.
func (l *Loop) Wait() {
	l.wg.Wait()
}

func (l *Loop) drain() {
	for {
		select {
		case j := <-l.jobs:
			j.done <- ErrStopped
		default:
			return
		}
	}
}

func (l *Loop) run(j job) {
	if err := j.ctx.Err(); err != nil {
		j.done <- err
		return
	}
	start := time.Now()
	err := j.fn(j.ctx)
	if elapsed := time.Since(start); l.slow > 0 && elapsed > l.slow {
		l.logger.Warn("lobby loop blocked by slow work", "elapsed", elapsed.String())
	}
	j.done <- err
}

// Do runs fn on the loop goroutine and returns its error. It blocks until fn
// has finished, ctx is done, or the loop stops.
func (l *Loop) Do(ctx context.Context, fn func(context.Context) error) error {
	j := job{ctx: ctx, fn: fn, done: make(chan error, 1)}
	select {
	case <-l.quit:
		return ErrStopped
	default:
	}
	select {
	case l.jobs <- j:
	case <-ctx.Done():
		return ctx.Err()
	case <-l.quit:
		return ErrStopped
	}
	select {
	case err := <-j.done:
		return err
	case <-ctx.Done():
		// fn may still run; it observes the same ctx.
		return ctx.Err()
	case <-l.exited:
		select {
		case err := <-j.done:
			return err
		default:
			return ErrStopped
		}
	}
}

// Submit routes ev to every matching handler on the loop goroutine.
// Returns DISPATCH_NO_HANDLER if nothing matches.
func (l *Loop) Submit(ctx context.Context, ev Event) error {
	handlers := l.match(ev.Type)
	if len(handlers) == 0 {
		return oops.Code("DISPATCH_NO_HANDLER").
			With("event_type", ev.Type).
			With("event_id", ev.ID.String()).
			Errorf("no handler for event type %q", ev.Type)
	}
	return l.Do(ctx, func(ctx context.Context) error {
		var errs []error
		for _, h := range handlers {
			if err := h(ctx, ev); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}

func (l *Loop) match(eventType string) []Handler {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []Handler
	for _, r := range l.routes {
		if r.glob.Match(eventType) {
			out = append(out, r.handler)
		}
	}
	return out
}
