// Package generator implements the lazy, single-consumer sequence type
// described by §4.8: a Generator yields values through a single-slot
// buffer, advancing only when asked.
//
// The original is a coroutine that suspends after each yield; Go has no
// symmetric suspension, so this package represents a Generator as a pull
// function — func() (T, error, bool) — invoked synchronously on Advance
// rather than as a goroutine parked on a channel. A goroutine-backed
// version would leak its goroutine whenever a consumer stops iterating
// before exhaustion (there is no equivalent of destroying a suspended
// coroutine frame); a pull function has no such liveness hazard, and the
// combinators below (Range, Iota, Map, Filter, ...) compose cleanly as
// plain closures over an upstream pull function.
package generator

// Generator yields a lazy, single-pass sequence of T. The zero value is
// not usable; construct one with New or a combinator.
type Generator[T any] struct {
	pull func() (T, error, bool) // ok=false means exhausted

	primed bool
	value  T
	done   bool
}

// New wraps a pull function as a Generator. pull must return (_, _, false)
// exactly once exhaustion is reached, and must not be called again
// afterward (New itself enforces this by never calling pull again once it
// has returned false).
func New[T any](pull func() (T, error, bool)) *Generator[T] {
	return &Generator[T]{pull: pull}
}

// Advance is the `bool()` cast from §4.8: if a value is not already
// primed, it pulls the next one. It reports whether a value is now
// pending. A failure returned by the pull function is re-raised, via
// panic, at this observation point — the first (and only) place the
// generator's single consumer could see it.
func (g *Generator[T]) Advance() bool {
	if g.primed {
		return true
	}
	if g.done {
		return false
	}
	v, err, ok := g.pull()
	if err != nil {
		g.done = true
		panic(err)
	}
	if !ok {
		g.done = true
		return false
	}
	g.value = v
	g.primed = true
	return true
}

// Value returns the pending value, consuming it from the slot. It panics
// if the generator is exhausted or a value has not been primed by
// Advance.
func (g *Generator[T]) Value() T {
	if !g.primed {
		panic("generator: Value called without a primed value")
	}
	v := g.value
	var zero T
	g.value = zero
	g.primed = false
	return v
}

// Next advances and consumes in one step, returning (value, true) if one
// was available or (zero, false) at exhaustion.
func (g *Generator[T]) Next() (T, bool) {
	if !g.Advance() {
		var zero T
		return zero, false
	}
	return g.Value(), true
}

// Each drives the generator to exhaustion, calling fn with every value in
// order — the range-iteration form from §4.8.
func (g *Generator[T]) Each(fn func(T)) {
	for {
		v, ok := g.Next()
		if !ok {
			return
		}
		fn(v)
	}
}

// Collect drains the generator into a slice.
func (g *Generator[T]) Collect() []T {
	var out []T
	g.Each(func(v T) { out = append(out, v) })
	return out
}

// Range produces start, start+step, ... stopping strictly before end.
// Empty if step is zero; direction-aware (a negative step counts down,
// and is only productive if start > end).
func Range(start, end, step int) *Generator[int] {
	cur := start
	return New(func() (int, error, bool) {
		if step == 0 {
			return 0, nil, false
		}
		if step > 0 {
			if cur >= end {
				return 0, nil, false
			}
		} else if cur <= end {
			return 0, nil, false
		}
		v := cur
		cur += step
		return v, nil, true
	})
}

// Iota produces an infinite, monotonically increasing sequence starting at
// start.
func Iota(start int) *Generator[int] {
	cur := start
	return New(func() (int, error, bool) {
		v := cur
		cur++
		return v, nil, true
	})
}

// Drop skips the first n values of g.
func Drop[T any](g *Generator[T], n int) *Generator[T] {
	skipped := false
	return New(func() (T, error, bool) {
		if !skipped {
			skipped = true
			for i := 0; i < n; i++ {
				if _, ok := g.Next(); !ok {
					var zero T
					return zero, nil, false
				}
			}
		}
		v, ok := g.Next()
		return v, nil, ok
	})
}

// Take yields at most n values from g.
func Take[T any](g *Generator[T], n int) *Generator[T] {
	taken := 0
	return New(func() (T, error, bool) {
		if taken >= n {
			var zero T
			return zero, nil, false
		}
		v, ok := g.Next()
		if !ok {
			var zero T
			return zero, nil, false
		}
		taken++
		return v, nil, true
	})
}

// Filter yields only the values of g for which predicate returns true.
func Filter[T any](g *Generator[T], predicate func(T) bool) *Generator[T] {
	return New(func() (T, error, bool) {
		for {
			v, ok := g.Next()
			if !ok {
				var zero T
				return zero, nil, false
			}
			if predicate(v) {
				return v, nil, true
			}
		}
	})
}

// Map transforms each value of g via fn.
func Map[T, U any](g *Generator[T], fn func(T) U) *Generator[U] {
	return New(func() (U, error, bool) {
		v, ok := g.Next()
		if !ok {
			var zero U
			return zero, nil, false
		}
		return fn(v), nil, true
	})
}

// Pair is the element type produced by Enumerate and Zip.
type Pair[A, B any] struct {
	First  A
	Second B
}

// Enumerate pairs each value of g with a monotonically increasing index
// starting at start.
func Enumerate[T any](g *Generator[T], start int) *Generator[Pair[int, T]] {
	idx := start
	return New(func() (Pair[int, T], error, bool) {
		v, ok := g.Next()
		if !ok {
			return Pair[int, T]{}, nil, false
		}
		p := Pair[int, T]{First: idx, Second: v}
		idx++
		return p, nil, true
	})
}

// Zip pairs values from a and b, stopping as soon as either is exhausted.
func Zip[A, B any](a *Generator[A], b *Generator[B]) *Generator[Pair[A, B]] {
	return New(func() (Pair[A, B], error, bool) {
		av, aok := a.Next()
		if !aok {
			return Pair[A, B]{}, nil, false
		}
		bv, bok := b.Next()
		if !bok {
			return Pair[A, B]{}, nil, false
		}
		return Pair[A, B]{First: av, Second: bv}, nil, true
	})
}
