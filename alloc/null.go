package alloc

import (
	"github.com/joeycumines/substrate/block"
	"github.com/joeycumines/substrate/diag"
)

// NullReturning always "succeeds" with the null Block; Deallocate(Null) is a
// no-op, and deallocating anything else is a contract violation (there is
// nothing this allocator could have allocated).
type NullReturning struct{}

var _ Allocator = NullReturning{}

func (NullReturning) Info() Info {
	return Info{ThreadSafe: true, Fallible: true, NothrowFallible: true, ReturnsExactSize: false, Alignment: 1}
}

func (NullReturning) Allocate(block.Layout) block.Block { return block.Null }

func (NullReturning) Deallocate(b block.Block) {
	diag.Precondition(b.IsNull(), "b.IsNull()", "alloc: NullReturning.Deallocate called with a non-null block")
}

// NullFaulting faults (invokes the contract-violation hook) on every
// allocate; it models a leaf that treats "no memory available, ever" as a
// programming bug rather than an expected outcome.
type NullFaulting struct{}

var _ Allocator = NullFaulting{}

func (NullFaulting) Info() Info {
	return Info{ThreadSafe: true, Fallible: true, NothrowFallible: false, ReturnsExactSize: false, Alignment: 1}
}

func (NullFaulting) Allocate(l block.Layout) block.Block {
	diag.Violation("allocate", "alloc: NullFaulting never succeeds", diag.KindAssertion, nil)
	return block.Null
}

func (NullFaulting) Deallocate(b block.Block) {
	diag.Precondition(b.IsNull(), "b.IsNull()", "alloc: NullFaulting.Deallocate called with a non-null block")
}

// NullAborting invokes the registered allocation-failure hook on every
// allocate; the default hook prints a diagnostic and terminates the
// process, matching an infallible Allocator's documented failure surface.
type NullAborting struct{}

var _ Allocator = NullAborting{}

func (NullAborting) Info() Info {
	return Info{ThreadSafe: true, Fallible: false, NothrowFallible: false, ReturnsExactSize: false, Alignment: 1}
}

func (NullAborting) Allocate(l block.Layout) block.Block {
	diag.AllocationFailure(l.Size, diag.Here(1))
	return block.Null // unreachable: AllocationFailure never returns
}

func (NullAborting) Deallocate(b block.Block) {
	diag.Precondition(b.IsNull(), "b.IsNull()", "alloc: NullAborting.Deallocate called with a non-null block")
}
