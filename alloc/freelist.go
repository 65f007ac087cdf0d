package alloc

import (
	"sync"
	"unsafe"

	"golang.org/x/exp/constraints"

	"github.com/joeycumines/substrate/block"
	"github.com/joeycumines/substrate/diag"
)

// Fit selects how FreeList picks among multiple acceptable cached blocks.
type Fit uint8

const (
	// FirstFit stops scanning at the first acceptable candidate.
	FirstFit Fit = iota
	// BestFit scans the whole list and picks the smallest acceptable
	// candidate.
	BestFit
)

// flNode is the intrusive list node, written into the first bytes of every
// cached block — the node header doubles as the block's prefix.
type flNode struct {
	next *flNode
	size uintptr
}

var (
	nodeHeaderSize  = unsafe.Sizeof(flNode{})
	nodeHeaderAlign = unsafe.Alignof(flNode{})
)

// FreeList is a segregated, intrusively-linked cache of previously
// deallocated blocks, layered over any Allocator. See §4.1 for the full
// contract; in short: a deallocated block is cached (instead of forwarded)
// iff its size falls in [Min, Max] and the cache has not hit MaxLen, and an
// allocate request is served from the cache when an "acceptable" cached
// block exists, where acceptable is governed by TolerancePercent and Fit.
type FreeList struct {
	upstream         Allocator
	min, max         uintptr
	maxLen           int // 0 = unlimited
	tolerancePercent uint
	fit              Fit

	mu     sync.Mutex
	head   *flNode
	length int
}

var _ Owner = (*FreeList)(nil)

// Config configures a FreeList. MaxLen == 0 means unlimited length.
// TolerancePercent == 0 requires an exact size match.
type Config struct {
	Min, Max         uintptr
	MaxLen           int
	TolerancePercent uint
	Fit              Fit
}

// NewFreeList wraps upstream with a segregated free list cache per cfg. It
// panics (via a contract violation, per §4.1's invariants) if cfg.Min is
// smaller than the intrusive node header, or upstream's guaranteed
// alignment doesn't cover the header's alignment requirement.
func NewFreeList(upstream Allocator, cfg Config) *FreeList {
	diag.Precondition(cfg.Min >= nodeHeaderSize, "cfg.Min >= nodeHeaderSize",
		"alloc: FreeList: Min must be at least the intrusive node header size")
	diag.Precondition(upstream.Info().Alignment >= nodeHeaderAlign, "upstream.Info().Alignment >= nodeHeaderAlign",
		"alloc: FreeList: wrapped allocator's alignment must cover the node header's alignment")
	diag.Precondition(cfg.Min <= cfg.Max, "cfg.Min <= cfg.Max", "alloc: FreeList: Min must not exceed Max")
	return &FreeList{upstream: upstream, min: cfg.Min, max: cfg.Max, maxLen: cfg.MaxLen, tolerancePercent: cfg.TolerancePercent, fit: cfg.Fit}
}

func (f *FreeList) Info() Info {
	up := f.upstream.Info()
	return Info{
		ThreadSafe:       true, // internally synchronized regardless of upstream
		Fallible:         up.Fallible,
		NothrowFallible:  up.NothrowFallible,
		ReturnsExactSize: up.ReturnsExactSize,
		Alignment:        up.Alignment,
	}
}

func inRange[T constraints.Ordered](v, lo, hi T) bool {
	return v >= lo && v <= hi
}

// Allocate scans the cache under the configured Fit policy and tolerance;
// on a miss it forwards to the wrapped allocator.
func (f *FreeList) Allocate(l block.Layout) block.Block {
	if !l.Valid() || l.Size == 0 || !inRange(l.Size, f.min, f.max) {
		return f.upstream.Allocate(l)
	}

	f.mu.Lock()
	node, prev := f.find(l.Size)
	if node != nil {
		f.unlink(node, prev)
	}
	f.mu.Unlock()

	if node == nil {
		return f.upstream.Allocate(l)
	}
	return block.Block{Ptr: unsafe.Pointer(node), Size: l.Size}
}

// ceilTolerance returns the largest size acceptable under the configured
// tolerance, for a request of size want.
func (f *FreeList) ceilTolerance(want uintptr) uintptr {
	if f.tolerancePercent == 0 {
		return want
	}
	return want * uintptr(100+f.tolerancePercent) / 100
}

// find returns the accepted node (and its predecessor, nil if head) under
// the configured fit policy; caller must hold f.mu.
func (f *FreeList) find(want uintptr) (found, prevOfFound *flNode) {
	if f.tolerancePercent == 0 {
		var prev *flNode
		for n := f.head; n != nil; n = n.next {
			if n.size == want {
				return n, prev
			}
			prev = n
		}
		return nil, nil
	}

	max := f.ceilTolerance(want)
	var prev *flNode
	var bestPrev *flNode
	var best *flNode
	for n := f.head; n != nil; n = n.next {
		if n.size >= want && n.size <= max {
			switch f.fit {
			case FirstFit:
				return n, prev
			case BestFit:
				if best == nil || n.size < best.size {
					best, bestPrev = n, prev
				}
			}
		}
		prev = n
	}
	return best, bestPrev
}

func (f *FreeList) unlink(node, prev *flNode) {
	if prev == nil {
		f.head = node.next
	} else {
		prev.next = node.next
	}
	node.next = nil
	f.length--
}

// Deallocate caches b if it's within [Min, Max] and the cache has capacity;
// otherwise forwards it to the wrapped allocator.
func (f *FreeList) Deallocate(b block.Block) {
	if b.IsNull() {
		return
	}

	f.mu.Lock()
	if inRange(b.Size, f.min, f.max) && (f.maxLen == 0 || f.length < f.maxLen) {
		node := (*flNode)(b.Ptr)
		node.size = b.Size
		node.next = f.head
		f.head = node
		f.length++
		f.mu.Unlock()
		return
	}
	f.mu.Unlock()

	f.upstream.Deallocate(b)
}

// Owns forwards to the wrapped allocator, if it implements Owner; cached
// blocks still belong to it by that definition.
func (f *FreeList) Owns(b block.Block) bool {
	return Owns(f.upstream, b)
}

// Close returns every cached block to the wrapped allocator. The FreeList
// must not be used afterward.
func (f *FreeList) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for n := f.head; n != nil; {
		next := n.next
		f.upstream.Deallocate(block.Block{Ptr: unsafe.Pointer(n), Size: n.size})
		n = next
	}
	f.head = nil
	f.length = 0
}

// Len reports the number of blocks currently cached.
func (f *FreeList) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.length
}
