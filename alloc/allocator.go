package alloc

import "github.com/joeycumines/substrate/block"

type (
	// Allocator is the minimal capability every leaf and combinator in this
	// package implements: allocate, deallocate, and a static Info.
	Allocator interface {
		// Info returns this allocator's static capability descriptor.
		Info() Info
		// Allocate requests memory for the given Layout. Failure is
		// reported per Info: a null Block for a nothrow-fallible
		// allocator, or a panic through the allocation-failure hook for an
		// infallible one.
		Allocate(l block.Layout) block.Block
		// Deallocate returns a Block previously returned by Allocate back
		// to this allocator. Re-deallocating the same Block is undefined.
		Deallocate(b block.Block)
	}

	// Owner is an optional capability: an allocator that can answer whether
	// it (transitively) owns a given Block.
	Owner interface {
		Allocator
		// Owns reports whether b was (or could have been) allocated by this
		// allocator.
		Owns(b block.Block) bool
	}
)

// Owns reports whether a owns b, if a implements Owner; otherwise it
// conservatively returns false.
func Owns(a Allocator, b block.Block) bool {
	if o, ok := a.(Owner); ok {
		return o.Owns(b)
	}
	return false
}
