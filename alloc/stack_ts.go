package alloc

import (
	"sync/atomic"
	"unsafe"

	"github.com/joeycumines/substrate/block"
)

// ConcurrentStack is the thread-safe twin of Stack: the water mark is an
// atomic word, Allocate bumps it via a CAS loop bounding the new water, and
// Deallocate only retreats it via CAS when the block is (at the moment of
// the CAS) exactly topmost; otherwise the block leaks until DeallocateAll.
// Per §4.1, this makes a thread-safe stack allocator useful only behind a
// FreeList, or under external LIFO discipline.
type ConcurrentStack struct {
	buf   []byte
	align uintptr
	water atomic.Uintptr
}

var _ Owner = (*ConcurrentStack)(nil)

// NewConcurrentStack mirrors NewStack.
func NewConcurrentStack(capacity int, align uintptr) *ConcurrentStack {
	if align == 0 || align&(align-1) != 0 {
		panic("alloc: NewConcurrentStack: align must be a power of two")
	}
	raw := make([]byte, capacity+int(align))
	base := uintptr(unsafe.Pointer(unsafe.SliceData(raw)))
	start := block.AlignUp(base, align) - base
	return &ConcurrentStack{buf: raw[start : start+uintptr(capacity)], align: align}
}

func (s *ConcurrentStack) Info() Info {
	return Info{ThreadSafe: true, Fallible: true, NothrowFallible: true, ReturnsExactSize: true, Alignment: s.align}
}

func (s *ConcurrentStack) Allocate(l block.Layout) block.Block {
	if !l.Valid() || l.Align > s.align || l.Size == 0 || len(s.buf) == 0 {
		return block.Null
	}
	need := block.AlignUp(l.Size, s.align)
	for {
		water := s.water.Load()
		if water+need > uintptr(len(s.buf)) {
			return block.Null
		}
		if s.water.CompareAndSwap(water, water+need) {
			ptr := unsafe.Add(unsafe.Pointer(&s.buf[0]), water)
			return block.Block{Ptr: ptr, Size: l.Size}
		}
	}
}

func (s *ConcurrentStack) Deallocate(b block.Block) {
	if b.IsNull() || len(s.buf) == 0 {
		return
	}
	need := block.AlignUp(b.Size, s.align)
	for {
		water := s.water.Load()
		if water < need {
			return
		}
		top := unsafe.Add(unsafe.Pointer(&s.buf[0]), water-need)
		if b.Ptr != top {
			return // not topmost right now; leave it to leak
		}
		if s.water.CompareAndSwap(water, water-need) {
			return
		}
		// lost the race (another deallocate/allocate moved water); retry
	}
}

// DeallocateAll resets the water mark to zero.
func (s *ConcurrentStack) DeallocateAll() {
	s.water.Store(0)
}

func (s *ConcurrentStack) Owns(b block.Block) bool {
	if len(s.buf) == 0 || b.Ptr == nil {
		return false
	}
	lo := uintptr(unsafe.Pointer(&s.buf[0]))
	p := uintptr(b.Ptr)
	return p >= lo && p < lo+s.water.Load()
}

func (s *ConcurrentStack) Capacity() int      { return len(s.buf) }
func (s *ConcurrentStack) Used() uintptr      { return s.water.Load() }
