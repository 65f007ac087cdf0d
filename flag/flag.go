// Package flag implements the two wait-flag variants from §4.7: SPSC
// (single producer, single consumer) and MPMC (multiple producers,
// multiple consumers).
//
// The original encodes "unset / set / waiting-consumer-handle-address" into
// one machine word so await can CAS itself in without a lock. Go has no
// addressable coroutine handle to stash there, so the same three states
// live in a mutex-guarded struct: set is the isSet bool, "a consumer is
// waiting" is the waiting bool plus an allocated channel a producer closes
// to resume it, and unset is neither. This reproduces the exact state
// machine without pretending to CAS a pointer Go cannot expose.
package flag

import "sync"

// SPSC is a single-producer, single-consumer flag. The zero value starts
// unset. A second concurrent Await is a misuse of the single-consumer
// contract and panics, matching the original's single suspended-consumer
// assumption.
type SPSC struct {
	mu      sync.Mutex
	isSet   bool
	waiting bool
	ch      chan struct{}
}

// Set marks the flag set, resuming the waiting consumer, if any.
func (f *SPSC) Set() {
	f.mu.Lock()
	f.isSet = true
	ch := f.ch
	f.ch = nil
	waiting := f.waiting
	f.waiting = false
	f.mu.Unlock()
	if waiting {
		close(ch)
	}
}

// Reset clears the flag (CAS 1->0 in the original; here just a guarded
// store, since Go has no outside observer of the intermediate state).
func (f *SPSC) Reset() {
	f.mu.Lock()
	f.isSet = false
	f.mu.Unlock()
}

// Await blocks until the flag is set. Calling Await again concurrently
// from a second goroutine before the first returns violates the SPSC
// contract and panics.
func (f *SPSC) Await() {
	f.mu.Lock()
	if f.isSet {
		f.mu.Unlock()
		return
	}
	if f.waiting {
		f.mu.Unlock()
		panic("flag: concurrent Await on an SPSC flag")
	}
	f.waiting = true
	ch := make(chan struct{})
	f.ch = ch
	f.mu.Unlock()
	<-ch
}

// IsSet reports the flag's current state, for diagnostics.
func (f *SPSC) IsSet() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.isSet
}

// MPMC is a multiple-producer, multiple-consumer flag: any number of
// setters and any number of waiters may operate concurrently.
type MPMC struct {
	mu      sync.Mutex
	isSet   bool
	waiters []chan struct{}
}

// Set marks the flag set and resumes every currently-waiting consumer.
// Consumers that call Await after this point observe isSet directly and
// proceed without suspending, until the next Reset.
func (f *MPMC) Set() {
	f.mu.Lock()
	f.isSet = true
	waiters := f.waiters
	f.waiters = nil
	f.mu.Unlock()
	for _, ch := range waiters {
		close(ch)
	}
}

// Reset clears the flag.
func (f *MPMC) Reset() {
	f.mu.Lock()
	f.isSet = false
	f.mu.Unlock()
}

// Await blocks until the flag is set.
func (f *MPMC) Await() {
	f.mu.Lock()
	if f.isSet {
		f.mu.Unlock()
		return
	}
	ch := make(chan struct{})
	f.waiters = append(f.waiters, ch)
	f.mu.Unlock()
	<-ch
}

// IsSet reports the flag's current state, for diagnostics.
func (f *MPMC) IsSet() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.isSet
}
