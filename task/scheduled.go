package task

import "sync/atomic"

// Scheduled is the shared, reference-counted variant of Task described by
// §3: owned by the executor for the duration of its scheduling, safe to
// hand back and forth between user code and the executor. The refcount
// exists because, unlike a plain Task (single owner), a Scheduled value may
// be observed by both the submitter and the worker that eventually runs it.
type Scheduled[T any] struct {
	*Task[T]
	refs atomic.Int32
}

// NewScheduled wraps a fresh Task with a refcount of 1, owned by the caller.
func NewScheduled[T any]() *Scheduled[T] {
	s := &Scheduled[T]{Task: New[T]()}
	s.refs.Store(1)
	return s
}

// Retain increments the refcount, returning the receiver for chaining. Call
// once per additional owner (e.g. the executor, while the handle sits in a
// queue).
func (s *Scheduled[T]) Retain() *Scheduled[T] {
	s.refs.Add(1)
	return s
}

// Release decrements the refcount, reporting whether this was the last
// reference. Callers that drop the last reference are responsible for any
// associated cleanup; in this Go rewrite that's typically a no-op, since the
// GC reclaims the Task once unreachable, but the accounting still matters
// for detecting "is the executor still holding this" races.
func (s *Scheduled[T]) Release() (last bool) {
	return s.refs.Add(-1) == 0
}

// RefCount reports the current reference count, for diagnostics/tests.
func (s *Scheduled[T]) RefCount() int32 {
	return s.refs.Load()
}
