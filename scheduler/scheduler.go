// Package scheduler extends executor with deadline-qualified posting: a
// timer goroutine holds a min-heap of pending work ordered by deadline
// (ties broken FIFO by sequence number) and forwards each item to the
// underlying pool once its deadline elapses, per §4.4.
package scheduler

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/joeycumines/substrate/executor"
)

// Scheduler wraps an *executor.Executor with a timer thread that defers
// posting until a caller-specified deadline.
type Scheduler struct {
	pool *executor.Executor

	mu      sync.Mutex
	cond    *sync.Cond
	items   timerHeap
	nextSeq uint64

	stopping bool
	stopped  chan struct{}

	// inFlight, if non-nil, bounds how many delivered-but-not-yet-run
	// handles the timer thread may have outstanding on the pool at once,
	// so a backlog of simultaneously reached deadlines doesn't dump an
	// unbounded burst onto the pool's global queue in one instant.
	inFlight *semaphore.Weighted
}

// Option configures a Scheduler at construction.
type Option func(*Scheduler)

// WithInFlightLimit bounds concurrently in-flight deadline deliveries. n <=
// 0 means unbounded (the default).
func WithInFlightLimit(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.inFlight = semaphore.NewWeighted(int64(n))
		}
	}
}

type timerItem struct {
	deadline time.Time
	seq      uint64
	handle   executor.Handle
	index    int
}

type timerHeap []*timerItem

func (h timerHeap) Len() int { return len(h) }
func (h timerHeap) Less(i, j int) bool {
	if h[i].deadline.Equal(h[j].deadline) {
		return h[i].seq < h[j].seq
	}
	return h[i].deadline.Before(h[j].deadline)
}
func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index, h[j].index = i, j
}
func (h *timerHeap) Push(x any) {
	it := x.(*timerItem)
	it.index = len(*h)
	*h = append(*h, it)
}
func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return it
}

// New wraps pool with a timer thread. The caller retains ownership of pool
// and is responsible for its own Stop call, separately from Scheduler.Stop.
func New(pool *executor.Executor, opts ...Option) *Scheduler {
	s := &Scheduler{pool: pool, stopped: make(chan struct{})}
	for _, o := range opts {
		o(s)
	}
	s.cond = sync.NewCond(&s.mu)
	go s.run()
	return s
}

// Post forwards handle to the underlying pool immediately once deadline
// elapses. A deadline at or before time.Now() is rejected with
// FailDeadlinePassed rather than silently running immediately, so callers
// can distinguish "ran late" from "never scheduled" per §4.4.
func (s *Scheduler) Post(ctx context.Context, deadline time.Time, h executor.Handle) executor.PostResult {
	if !deadline.After(time.Now()) {
		return executor.FailDeadlinePassed
	}

	s.mu.Lock()
	if s.stopping {
		s.mu.Unlock()
		return executor.FailStopped
	}
	s.nextSeq++
	heap.Push(&s.items, &timerItem{deadline: deadline, seq: s.nextSeq, handle: h})
	s.mu.Unlock()
	s.cond.Broadcast()
	return executor.Success
}

func (s *Scheduler) run() {
	defer close(s.stopped)
	for {
		s.mu.Lock()
		for {
			if s.stopping && s.items.Len() == 0 {
				s.mu.Unlock()
				return
			}
			if s.items.Len() == 0 {
				s.cond.Wait()
				continue
			}
			next := s.items[0]
			wait := time.Until(next.deadline)
			if wait <= 0 {
				break
			}
			if s.stopping {
				s.mu.Unlock()
				return
			}
			s.waitTimeout(wait)
		}
		item := heap.Pop(&s.items).(*timerItem)
		s.mu.Unlock()

		handle := item.handle
		if s.inFlight != nil {
			_ = s.inFlight.Acquire(context.Background(), 1)
			inner := handle
			handle = func(ctx context.Context) {
				defer s.inFlight.Release(1)
				inner(ctx)
			}
		}
		s.pool.Post(context.Background(), handle)
	}
}

// waitTimeout releases the lock, blocks for at most d (or until woken by
// Broadcast), then reacquires the lock. Uses a timer goroutine bridged
// through Broadcast rather than sync.Cond's unconditional Wait, since
// sync.Cond has no timed wait.
func (s *Scheduler) waitTimeout(d time.Duration) {
	timer := time.AfterFunc(d, s.cond.Broadcast)
	defer timer.Stop()
	s.cond.Wait()
}

// Stop stops the timer thread first (refusing new Post calls, dropping
// pending timers), then blocks until it has exited. It does not stop the
// wrapped pool; callers that own the pool stop it separately, layering the
// two per §4.4.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopping {
		s.mu.Unlock()
		<-s.stopped
		return
	}
	s.stopping = true
	s.items = nil
	s.mu.Unlock()
	s.cond.Broadcast()
	<-s.stopped
}

// Pending reports the number of handles currently waiting on their
// deadline, for tests/diagnostics.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items.Len()
}
