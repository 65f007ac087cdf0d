// Package scope implements AsyncScope, a structured-concurrency join point
// described by §4.5: spawn increments a pending count before scheduling
// work on an executor, and decrements it on completion; wait_idle/wait_fence
// observe the count reaching zero.
//
// The original design resumes a single blocked waiter via an atomic
// exchange to guarantee exactly-once resumption, because a C++ coroutine
// handle can only be resumed once. A closed Go channel has no such
// restriction — every goroutine selecting on it wakes up, all reads still
// non-blocking — so WaitIdle here supports any number of concurrent
// waiters for free instead of needing the storedWaiter CAS dance.
package scope

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/joeycumines/substrate/executor"
)

// AsyncScope tracks outstanding spawned work against an Executor. The zero
// value is not usable; construct one with New.
type AsyncScope struct {
	pool    *executor.Executor
	pending atomic.Int64

	mu      sync.Mutex
	idleGen chan struct{} // closed when pending last reached zero; replaced on next non-zero transition
}

// New constructs an AsyncScope bound to pool.
func New(pool *executor.Executor) *AsyncScope {
	s := &AsyncScope{pool: pool}
	s.idleGen = make(chan struct{})
	close(s.idleGen) // starts idle: pending is already zero
	return s
}

// Spawn schedules fn on the scope's executor, tracking it against the
// pending count. fn's panics are recovered and swallowed, matching the
// "awaitable's failures are swallowed by design" contract — callers that
// need to observe failure should have fn report through their own channel
// or a task.Task.
func (s *AsyncScope) Spawn(ctx context.Context, fn func(context.Context)) executor.PostResult {
	if s.pending.Add(1) == 1 {
		s.markBusy()
	}
	res := s.pool.Post(ctx, func(ctx context.Context) {
		defer s.done()
		fn(ctx)
	})
	if res != executor.Success {
		s.done()
	}
	return res
}

func (s *AsyncScope) done() {
	if s.pending.Add(-1) == 0 {
		s.markIdle()
	}
}

func (s *AsyncScope) markBusy() {
	s.mu.Lock()
	select {
	case <-s.idleGen:
		s.idleGen = make(chan struct{})
	default:
	}
	s.mu.Unlock()
}

func (s *AsyncScope) markIdle() {
	s.mu.Lock()
	select {
	case <-s.idleGen:
	default:
		close(s.idleGen)
	}
	s.mu.Unlock()
}

// Pending reports the current outstanding spawn count.
func (s *AsyncScope) Pending() int64 { return s.pending.Load() }

// WaitIdle returns a channel that is closed once the pending count reaches
// zero. If already idle, the returned channel is already closed.
func (s *AsyncScope) WaitIdle() <-chan struct{} {
	s.mu.Lock()
	ch := s.idleGen
	s.mu.Unlock()
	return ch
}

// WaitFence blocks until the scope is idle or ctx is done, whichever
// happens first — the blocking equivalent of WaitIdle.
func (s *AsyncScope) WaitFence(ctx context.Context) error {
	select {
	case <-s.WaitIdle():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// BlockingAsyncScope is an AsyncScope that fences on Close, matching the
// original's destructor precondition that pending work has drained: in Go,
// where there is no destructor to enforce this automatically, Close is the
// explicit analogue and callers are expected to defer it.
type BlockingAsyncScope struct {
	*AsyncScope
}

// NewBlocking constructs a BlockingAsyncScope bound to pool.
func NewBlocking(pool *executor.Executor) *BlockingAsyncScope {
	return &BlockingAsyncScope{AsyncScope: New(pool)}
}

// Close blocks until the scope is idle. Unlike WaitFence it takes no
// context, since a defer'd Close is expected to run to completion
// unconditionally — mirroring a destructor.
func (b *BlockingAsyncScope) Close() {
	<-b.WaitIdle()
}
