package alloc

import (
	"unsafe"

	"github.com/joeycumines/substrate/block"
)

// Stack is a fixed-capacity bump allocator over a buffer NewStack allocates,
// with LIFO-only reclamation: Deallocate only shrinks the high-water mark
// when handed exactly the most recent allocation; any other Block is
// silently retained (a correct no-op, not an error) until DeallocateAll
// resets the whole arena. This is §4.1's "Stack allocator": useful on its
// own only under a caller-enforced LIFO discipline, or layered under a
// FreeList.
type Stack struct {
	buf   []byte
	align uintptr
	water uintptr
}

var _ Owner = (*Stack)(nil)

// NewStack creates a Stack over a freshly allocated buffer of the given
// capacity, aligned to align (which must be a power of two).
func NewStack(capacity int, align uintptr) *Stack {
	if align == 0 || align&(align-1) != 0 {
		panic("alloc: NewStack: align must be a power of two")
	}
	// over-allocate so the usable region can start at an aligned offset
	raw := make([]byte, capacity+int(align))
	base := uintptr(unsafe.Pointer(unsafe.SliceData(raw)))
	start := block.AlignUp(base, align) - base
	return &Stack{buf: raw[start : start+uintptr(capacity)], align: align}
}

func (s *Stack) Info() Info {
	return Info{ThreadSafe: false, Fallible: true, NothrowFallible: true, ReturnsExactSize: true, Alignment: s.align}
}

func (s *Stack) base() uintptr {
	if len(s.buf) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&s.buf[0]))
}

// Allocate bumps the water mark by align_up(l.Size). Fails (returns the null
// Block) if l.Align exceeds the arena's alignment, or if the arena is
// exhausted.
func (s *Stack) Allocate(l block.Layout) block.Block {
	if !l.Valid() || l.Align > s.align || l.Size == 0 {
		return block.Null
	}
	need := block.AlignUp(l.Size, s.align)
	if s.water+need > uintptr(len(s.buf)) {
		return block.Null
	}
	ptr := unsafe.Add(unsafe.Pointer(&s.buf[0]), s.water)
	s.water += need
	return block.Block{Ptr: ptr, Size: l.Size}
}

// Deallocate shrinks the water mark only if b is exactly the most recent
// allocation (checked by address); any other Block is retained.
func (s *Stack) Deallocate(b block.Block) {
	if b.IsNull() || len(s.buf) == 0 {
		return
	}
	need := block.AlignUp(b.Size, s.align)
	top := unsafe.Add(unsafe.Pointer(&s.buf[0]), s.water-need)
	if s.water >= need && b.Ptr == top {
		s.water -= need
	}
	// otherwise: not the topmost allocation, leaked until DeallocateAll
}

// DeallocateAll resets the water mark to zero. The caller must ensure no
// live references to previously allocated blocks remain.
func (s *Stack) DeallocateAll() {
	s.water = 0
}

// Owns reports whether b falls within [buffer, buffer+water).
func (s *Stack) Owns(b block.Block) bool {
	if len(s.buf) == 0 || b.Ptr == nil {
		return false
	}
	lo := s.base()
	p := uintptr(b.Ptr)
	return p >= lo && p < lo+s.water
}

// Capacity returns the arena's total size in bytes.
func (s *Stack) Capacity() int { return len(s.buf) }

// Used returns the current high-water mark.
func (s *Stack) Used() uintptr { return s.water }
