// Package task implements the one-shot, owning future type described by
// §4.2: a Task transitions Empty -> Done (New) or Running -> Done (Go); the
// Suspended state is defined but no operation in this package enters it, so
// a Task with a waiter parked on Wait or a continuation registered via Then
// still reports Empty or Running. It captures exactly one unhandled failure, and
// supports exactly one registered continuation (the single-consumer
// contract from §3's data model).
//
// Go has no asymmetric coroutines; per the rewrite strategy in §9, a Task
// here is a channel-backed future: Go spawns the computation immediately,
// Wait blocks (honoring ctx) until it completes, and Then registers a
// continuation invoked exactly once, whichever of "already done" or
// "completes later" applies.
package task

import (
	"context"
	"sync"
	"sync/atomic"
)

// State mirrors §3's Task state machine.
type State int32

const (
	Empty State = iota
	Suspended
	Running
	Done
)

func (s State) String() string {
	switch s {
	case Empty:
		return "empty"
	case Suspended:
		return "suspended"
	case Running:
		return "running"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

// Task is an owning handle to a computation producing a T. The zero value is
// not usable; construct one with Go or New.
type Task[T any] struct {
	state atomic.Int32
	done  chan struct{}

	value T
	err   error

	mu   sync.Mutex
	cont func(T, error) // the single continuation slot; single-consumer contract
	set  bool
}

// New creates a Task not yet associated with a running computation. Resolve
// must be called exactly once to complete it, for a Task whose completion
// is driven externally.
func New[T any]() *Task[T] {
	t := &Task[T]{done: make(chan struct{})}
	t.state.Store(int32(Empty))
	return t
}

// Go spawns fn in a new goroutine and returns a Task tracking its
// completion. The Task's state is Running from construction.
func Go[T any](fn func() (T, error)) *Task[T] {
	t := New[T]()
	t.state.Store(int32(Running))
	go func() {
		v, err := fn()
		t.Resolve(v, err)
	}()
	return t
}

// State reports the Task's current lifecycle state.
func (t *Task[T]) State() State {
	return State(t.state.Load())
}

// Resolve completes the Task with (value, err). Calling Resolve more than
// once is a programming error (violates the one-shot contract) and panics.
func (t *Task[T]) Resolve(value T, err error) {
	if !t.state.CompareAndSwap(int32(Running), int32(Done)) &&
		!t.state.CompareAndSwap(int32(Empty), int32(Done)) &&
		!t.state.CompareAndSwap(int32(Suspended), int32(Done)) {
		panic("task: Resolve called on an already-done Task")
	}
	t.value, t.err = value, err
	close(t.done)

	t.mu.Lock()
	cont := t.cont
	t.mu.Unlock()
	if cont != nil {
		cont(value, err)
	}
}

// Done returns a channel closed when the Task completes, suitable for
// select statements.
func (t *Task[T]) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the Task completes or ctx is done, whichever first.
// await_resume's failure-propagation from §4.2 corresponds to the returned
// error: a non-nil err here is the Task's captured failure.
func (t *Task[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-t.done:
		return t.value, t.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Then registers the Task's single continuation, invoked with the Task's
// (value, err) exactly once: immediately (synchronously, in the calling
// goroutine) if the Task is already done, or from whichever goroutine calls
// Resolve, otherwise. Calling Then twice on the same Task is a programming
// error and panics, matching the "owns exactly one continuation slot"
// invariant.
func (t *Task[T]) Then(cont func(T, error)) {
	t.mu.Lock()
	if t.set {
		t.mu.Unlock()
		panic("task: Then called twice on the same Task")
	}
	t.set = true
	// done is closed only after Resolve has stored value and err, so they
	// are safe to read here; the Done state alone is set before that store.
	select {
	case <-t.done:
		t.mu.Unlock()
		cont(t.value, t.err)
		return
	default:
	}
	t.cont = cont
	t.mu.Unlock()
}

// WhenAll waits for every given task, returning their values in order, or
// the first error encountered (after all tasks have completed). Ported from
// the original implementation's combinator surface (see SPEC_FULL.md §3);
// nothing in spec.md's Non-goals excludes task combinators.
func WhenAll[T any](ctx context.Context, tasks ...*Task[T]) ([]T, error) {
	values := make([]T, len(tasks))
	var firstErr error
	for i, tk := range tasks {
		v, err := tk.Wait(ctx)
		values[i] = v
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return values, firstErr
}

// WhenAny waits for the first of the given tasks to complete, returning its
// index, value, and error.
func WhenAny[T any](ctx context.Context, tasks ...*Task[T]) (int, T, error) {
	cases := make(chan int, len(tasks))
	for i, tk := range tasks {
		i, tk := i, tk
		go func() {
			select {
			case <-tk.Done():
				select {
				case cases <- i:
				default:
				}
			case <-ctx.Done():
			}
		}()
	}
	select {
	case i := <-cases:
		v, err := tasks[i].Wait(ctx)
		return i, v, err
	case <-ctx.Done():
		var zero T
		return -1, zero, ctx.Err()
	}
}
