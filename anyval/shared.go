package anyval

import (
	"sync/atomic"

	"github.com/joeycumines/substrate/alloc"
	"github.com/joeycumines/substrate/block"
	"github.com/joeycumines/substrate/rtype"
)

// sharedControl is the control block a SharedAny/WeakAny pair share.
// Co-allocating [object][pad][control_block] in a single allocator chunk,
// as the original does, is a manual-memory-management optimization the Go
// heap already obsoletes — a *sharedControl referencing the Go value keeps
// it alive with no separate allocation dance required. What's preserved
// from §4.10 is the protocol: strong starts at 1 with an implicit weak
// held alongside it, and releaseShared/releaseWeak follow the same
// acq_rel fetch-sub transitions, including the cache-line separation
// between the two counters.
type sharedControl struct {
	typ       *rtype.Type
	value     any
	allocator alloc.Allocator
	blk       block.Block

	strong atomic.Int64
	// pad keeps weak on a different cache line than strong (offset
	// difference > 64 bytes), so a strong-reference producer and a
	// weak-reference producer don't false-share a cache line.
	pad  [64]byte
	weak atomic.Int64
}

func (c *sharedControl) releaseShared() {
	if c.strong.Add(-1) == 0 {
		rtype.DestroyAny(c.typ, c.value)
		c.releaseWeak()
	}
}

func (c *sharedControl) releaseWeak() {
	if c.weak.Add(-1) == 0 && c.allocator != nil {
		c.allocator.Deallocate(c.blk)
	}
}

// SharedAny is a strong, reference-counted handle to a type-erased value
// shared by potentially many owners.
type SharedAny struct {
	ctl *sharedControl
}

// NewSharedAny constructs a SharedAny around a zero-valued instance of t,
// requesting its backing allocation from a (alloc.System{} if nil).
// Strong count starts at 1, with an implicit weak reference held
// alongside it until the last strong reference releases.
func NewSharedAny(t *rtype.Type, a alloc.Allocator) (*SharedAny, CopyResult) {
	if a == nil {
		a = alloc.System{}
	}
	blk := a.Allocate(block.New(t.Size(), t.Align()))
	if blk.IsNull() && t.Size() != 0 {
		return nil, CopyFailMemory
	}
	ctl := &sharedControl{typ: t, value: rtype.ZeroValue(t), allocator: a, blk: blk}
	ctl.strong.Store(1)
	ctl.weak.Store(1)
	return &SharedAny{ctl: ctl}, CopySuccess
}

// Type reports the shared value's type.
func (s *SharedAny) Type() *rtype.Type { return s.ctl.typ }

// Value returns the shared value.
func (s *SharedAny) Value() any { return s.ctl.value }

// SetValue overwrites the shared value in place, visible to every strong
// reference sharing this control block.
func (s *SharedAny) SetValue(v any) { s.ctl.value = v }

// StrongCount reports the current strong reference count.
func (s *SharedAny) StrongCount() int64 { return s.ctl.strong.Load() }

// WeakCount reports the current weak reference count, including the
// implicit one held while any strong reference exists.
func (s *SharedAny) WeakCount() int64 { return s.ctl.weak.Load() }

// Clone returns a new strong reference sharing this SharedAny's control
// block.
func (s *SharedAny) Clone() *SharedAny {
	s.ctl.strong.Add(1)
	return &SharedAny{ctl: s.ctl}
}

// Release runs release_shared: decrements the strong count, and on the
// 1→0 transition destroys the shared value and releases the implicit weak
// reference. Using s after Release is a contract violation.
func (s *SharedAny) Release() {
	s.ctl.releaseShared()
	s.ctl = nil
}
