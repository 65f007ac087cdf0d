// Package asyncmutex implements the coroutine-aware mutex described by
// §4.6: a lock bit plus a LIFO stack of waiters, with direct handoff on
// unlock (the lock stays held across the handoff, it is simply reassigned
// to the woken waiter rather than released and re-acquired).
//
// The original encodes lock-bit and waiter-stack-head into a single
// machine word, since a waiter node lives inside the suspended coroutine's
// frame and the whole thing must be a lock-free CAS target. Go goroutines
// have no addressable "frame" to point into and no CAS-on-struct-field
// primitive; a *sync.Mutex-protected slice of waiter channels reproduces
// the same LIFO contended-waiter ordering and the same direct-handoff
// semantics (unlock hands the lock to the popped waiter without clearing
// the lock bit), without pretending Go exposes frame addresses.
package asyncmutex

import (
	"context"
	"sync"
)

// Mutex is a LIFO-fair (among contended waiters) coroutine-friendly mutex.
// The zero value is ready to use.
type Mutex struct {
	mu      sync.Mutex
	locked  bool
	waiters []chan struct{} // LIFO stack; last element is top
}

// TryLock attempts to acquire the lock without blocking, reporting whether
// it succeeded.
func (m *Mutex) TryLock() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locked {
		return false
	}
	m.locked = true
	return true
}

// Lock blocks until the mutex is acquired or ctx is done. On context
// cancellation while queued, the waiter removes itself from the stack; if
// it was already popped and handed the lock by a concurrent Unlock, Lock
// still returns the context error but the lock is released again via a
// synthetic Unlock, to avoid leaking a held lock nobody will release.
func (m *Mutex) Lock(ctx context.Context) error {
	m.mu.Lock()
	if !m.locked {
		m.locked = true
		m.mu.Unlock()
		return nil
	}
	ch := make(chan struct{})
	m.waiters = append(m.waiters, ch)
	m.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		m.mu.Lock()
		// find ch: it may have already been popped (and closed) by Unlock
		// racing this cancellation.
		pos := -1
		for i, w := range m.waiters {
			if w == ch {
				pos = i
				break
			}
		}
		if pos < 0 {
			m.mu.Unlock()
			// already handed the lock; select again to drain the handoff,
			// then release it so it doesn't leak.
			<-ch
			m.Unlock()
			return ctx.Err()
		}
		m.waiters = append(m.waiters[:pos], m.waiters[pos+1:]...)
		m.mu.Unlock()
		return ctx.Err()
	}
}

// Unlock releases the mutex. If waiters are queued, the lock is handed
// directly to the most recently queued one (LIFO) rather than being
// cleared; otherwise the lock bit is cleared.
func (m *Mutex) Unlock() {
	m.mu.Lock()
	n := len(m.waiters)
	if n == 0 {
		m.locked = false
		m.mu.Unlock()
		return
	}
	next := m.waiters[n-1]
	m.waiters = m.waiters[:n-1]
	m.mu.Unlock()
	close(next)
}

// Guard acquires m and returns a function that releases it, for use with
// defer: `unlock, err := asyncmutex.Guard(ctx, m)`, then on a nil err
// `defer unlock()`. On error the returned function is a no-op.
func Guard(ctx context.Context, m *Mutex) (unlock func(), err error) {
	if err := m.Lock(ctx); err != nil {
		return func() {}, err
	}
	return m.Unlock, nil
}
