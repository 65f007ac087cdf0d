package alloc

import (
	"unsafe"

	"github.com/joeycumines/substrate/block"
)

// MaxAlign is the alignment guaranteed by System: the strictest alignment
// any built-in Go scalar type requires on supported platforms.
const MaxAlign = 16

// System is the system-malloc leaf allocator: always thread-safe, fallible
// nothrow, exact-size, aligned to MaxAlign. It is backed by the Go runtime's
// own allocator (there is no portable way to call the platform's raw malloc
// without cgo, and this module stays cgo-free outside of capi); Deallocate
// is consequently a best-effort hint rather than an immediate free, with the
// actual reclaim deferred to the garbage collector once the Block becomes
// unreachable. Over-sized requests that would otherwise panic inside the Go
// allocator are converted into the null Block, per the NothrowFallible
// contract, rather than propagating a runtime panic.
type System struct{}

var _ Allocator = System{}
var _ Owner = System{}

func (System) Info() Info {
	return Info{
		ThreadSafe:       true,
		Fallible:         true,
		NothrowFallible:  true,
		ReturnsExactSize: true,
		Alignment:        MaxAlign,
	}
}

func (System) Allocate(l block.Layout) (b block.Block) {
	if !l.Valid() || l.Size == 0 {
		return block.Null
	}
	defer func() {
		if recover() != nil {
			b = block.Null
		}
	}()

	align := l.Align
	if align < MaxAlign {
		align = MaxAlign
	}
	buf := make([]byte, l.Size+align-1)
	base := uintptr(unsafe.Pointer(unsafe.SliceData(buf)))
	aligned := block.AlignUp(base, align)
	ptr := unsafe.Pointer(aligned)
	return block.Block{Ptr: ptr, Size: l.Size}
}

func (System) Deallocate(block.Block) {
	// Reclaim is deferred to the garbage collector; see type doc.
}

func (System) Owns(block.Block) bool {
	// Every live Go allocation is, transitively, owned by the runtime
	// allocator; there's no cheap way (or need) to distinguish "came from
	// System" from "came from elsewhere" at this leaf.
	return true
}
