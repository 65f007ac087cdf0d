package anyval

import (
	"github.com/joeycumines/substrate/alloc"
	"github.com/joeycumines/substrate/block"
	"github.com/joeycumines/substrate/rtype"
)

// InlineWords is the inline buffer's capacity, 3 machine words (24 bytes
// on a 64-bit platform). An Any's value is stored inline iff its type is a
// builtin, pointer, or function type whose size fits within that extent
// (see Any for why array and named types never are).
const InlineWords = 3

// Any is a type-erased, single-owner value container with small-buffer
// optimization. The zero Any is empty.
//
// This port narrows "fits inline" to rtype.KindBuiltin/KindPointer/
// KindFunction values no larger than InlineWords machine words: those are
// the kinds whose runtime representation (see rtype.ZeroValue) is already
// a flat scalar, so they can live as raw bits in Any's buf array with no
// separate allocation. KindArray and KindNamed values go through the
// type's instance allocator instead, the same way the original falls back
// to a heap allocation for anything too large to sit inline: a block.Block
// is requested from the configured alloc.Allocator (reserving and later
// releasing the right number of bytes, exercising the same allocate/
// deallocate contract and failure surface the rest of this module uses),
// while the actual Go-level value backing that block lives in heap —
// the allocator's Block models the ownership and the failure mode, not a
// manually managed byte layout the Go GC would have no say over anyway.
type Any struct {
	typ       *rtype.Type
	inline    bool
	buf       [InlineWords]uint64
	heap      any
	heapBlk   block.Block
	allocator alloc.Allocator
}

// Type reports the Any's current type, or nil if empty.
func (a *Any) Type() *rtype.Type { return a.typ }

// IsEmpty reports whether the Any currently holds no value.
func (a *Any) IsEmpty() bool { return a.typ == nil }

// IsInline reports whether the Any's current value is stored in its
// inline buffer rather than referencing separately allocated storage.
func (a *Any) IsInline() bool { return a.inline }

func fitsInline(t *rtype.Type) bool {
	switch t.Kind() {
	case rtype.KindBuiltin, rtype.KindPointer, rtype.KindFunction:
		return t.Size() <= InlineWords*8
	default:
		return false
	}
}

// ConstructEmpty resets a to the empty state, per §4.10's construct_empty.
func ConstructEmpty(a *Any) {
	*a = Any{}
}

// Construct builds an Any holding a zero-valued instance of t, choosing
// the inline or heap representation per fitsInline. A nil allocator
// defaults to alloc.System{}.
func Construct(t *rtype.Type, a alloc.Allocator) (*Any, CopyResult) {
	if a == nil {
		a = alloc.System{}
	}
	if fitsInline(t) {
		out := constructInline(t, rtype.ZeroValue(t))
		return &out, CopySuccess
	}
	blk := a.Allocate(block.New(t.Size(), t.Align()))
	if blk.IsNull() && t.Size() != 0 {
		return nil, CopyFailMemory
	}
	return &Any{typ: t, inline: false, heap: rtype.ZeroValue(t), heapBlk: blk, allocator: a}, CopySuccess
}

// ConstructFromMove moves src's value into dst: if src is empty, dst
// becomes empty; if src is on heap, dst steals the allocation and the
// reference; if src is inline, dst gets a copy of the inline bits. src is
// always left empty.
func ConstructFromMove(dst, src *Any) {
	if src.typ == nil {
		*dst = Any{}
		return
	}
	if src.inline {
		*dst = Any{typ: src.typ, inline: true, buf: src.buf}
	} else {
		*dst = Any{typ: src.typ, inline: false, heap: src.heap, heapBlk: src.heapBlk, allocator: src.allocator}
	}
	*src = Any{}
}

// ConstructFromCopy copies src's value into dst, returning the typed
// outcome. A CopyResult other than CopySuccess leaves dst empty. An inline
// source is copied bit for bit with no allocation; the heap path requests a
// fresh block from src's allocator (or alloc.System{} if src has none).
func ConstructFromCopy(dst, src *Any) CopyResult {
	if src.typ == nil {
		*dst = Any{}
		return CopySuccess
	}
	if !src.typ.Copyable() {
		*dst = Any{}
		return CopyNotCopyable
	}

	if src.inline {
		*dst = Any{typ: src.typ, inline: true, buf: src.buf}
		return CopySuccess
	}

	a := src.allocator
	if a == nil {
		a = alloc.System{}
	}
	blk := a.Allocate(block.New(src.typ.Size(), src.typ.Align()))
	if blk.IsNull() && src.typ.Size() != 0 {
		*dst = Any{}
		return CopyFailMemory
	}

	value, ok := rtype.CopyAny(src.typ, src.heap)
	if !ok {
		a.Deallocate(blk)
		*dst = Any{}
		return CopyFailCopy
	}
	*dst = Any{typ: src.typ, inline: false, heap: value, heapBlk: blk, allocator: a}
	return CopySuccess
}

// Destroy runs t's destructor on a's current value, if any, releases the
// backing allocation if a is on heap, and resets a to empty.
func Destroy(a *Any) {
	if a.typ == nil {
		return
	}
	if !a.inline {
		rtype.DestroyAny(a.typ, a.heap)
		if a.allocator != nil {
			a.allocator.Deallocate(a.heapBlk)
		}
	}
	*a = Any{}
}

func constructInline(t *rtype.Type, v any) Any {
	var buf [InlineWords]uint64
	buf[0] = scalarBits(v)
	return Any{typ: t, inline: true, buf: buf}
}

func scalarBits(v any) uint64 {
	switch x := v.(type) {
	case uint8:
		return uint64(x)
	case uint16:
		return uint64(x)
	case uint32:
		return uint64(x)
	case uint64:
		return x
	case uintptr:
		return uint64(x)
	default:
		return 0
	}
}

func scalarValue(t *rtype.Type, bits uint64) any {
	switch t.Size() {
	case 1:
		return uint8(bits)
	case 2:
		return uint16(bits)
	case 4:
		return uint32(bits)
	default:
		return bits
	}
}

// Value returns the Any's current runtime-typed value, in the same
// representation rtype.ZeroValue/MoveAny/CopyAny use.
func (a *Any) Value() any {
	if a.typ == nil {
		return nil
	}
	if a.inline {
		return scalarValue(a.typ, a.buf[0])
	}
	return a.heap
}

// SetValue overwrites a's current value in place, preserving a's
// inline/heap placement (the caller is responsible for v being of a's
// current Type).
func (a *Any) SetValue(v any) {
	if a.typ == nil {
		return
	}
	if a.inline {
		a.buf[0] = scalarBits(v)
		return
	}
	a.heap = v
}
