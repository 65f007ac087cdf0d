package rtype

import (
	"sync"
	"sync/atomic"

	"github.com/joeycumines/substrate/alloc"
	"github.com/joeycumines/substrate/diag"
)

type pointerKey struct {
	pointee *Type
	isConst bool
}

type arrayKey struct {
	elem  *Type
	count uint64
}

// Context owns a set of deduplicated Type descriptors and the allocator and
// PHF recipe new named types are built with, per §4.9.1. A Context is safe
// for concurrent use; all descriptor creation takes an internal lock.
type Context struct {
	allocator alloc.Allocator
	phfRecipe PHFRecipe

	mu        sync.Mutex
	builtins  [builtinCount]*Type
	pointers  map[pointerKey]*Type
	arrays    map[arrayKey]*Type
	functions map[string]*Type
	named     map[string]*Type
	opaque    map[uintptr]*Type

	namedLive atomic.Int64
	closed    atomic.Bool
}

type config struct {
	allocator alloc.Allocator
	phfRecipe PHFRecipe
}

// Option configures a Context at creation.
type Option func(*config)

// WithAllocator sets the allocator this Context holds. Defaults to
// alloc.System{}. Descriptor and member storage is ordinary Go heap memory
// and is not requested from this allocator.
func WithAllocator(a alloc.Allocator) Option {
	return func(c *config) { c.allocator = a }
}

// WithPHFRecipe sets the PHFRecipe used to build named types' member
// lookup structures. Defaults to DefaultPHFRecipe().
func WithPHFRecipe(r PHFRecipe) Option {
	return func(c *config) { c.phfRecipe = r }
}

// New creates a Context, populating its built-in type descriptors per
// §4.9.1. It fails (returning a nil *Context) only if an explicitly
// supplied allocator or PHFRecipe is nil.
func New(opts ...Option) (*Context, CreateResult) {
	cfg := config{allocator: alloc.System{}, phfRecipe: DefaultPHFRecipe()}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.allocator == nil {
		return nil, CreateInvalidAllocator
	}
	if cfg.phfRecipe == nil {
		return nil, CreateInvalidPHF
	}

	ctx := &Context{
		allocator: cfg.allocator,
		phfRecipe: cfg.phfRecipe,
		pointers:  make(map[pointerKey]*Type),
		arrays:    make(map[arrayKey]*Type),
		functions: make(map[string]*Type),
		named:     make(map[string]*Type),
		opaque:    make(map[uintptr]*Type),
	}
	for b := Builtin(0); b < builtinCount; b++ {
		ctx.builtins[b] = builtinDescriptor(b)
	}
	return ctx, CreateSuccess
}

// Builtin returns the shared descriptor for a built-in scalar type.
func (c *Context) Builtin(b Builtin) *Type {
	diag.Precondition(b >= 0 && b < builtinCount, "b >= 0 && b < builtinCount", "rtype: unknown builtin")
	return c.builtins[b]
}

// Close marks the Context closed. Go's garbage collector owns descriptor
// memory directly, so Close exists for symmetry with the original's
// destroy(ctx), not because anything would otherwise leak. No other method
// consults the mark: type creation and Stats behave the same after Close.
func (c *Context) Close() {
	c.closed.Store(true)
}

// Stats is a point-in-time snapshot of a Context's outstanding named types,
// the leak-detection counter called for by the supplemented Stats()
// behavior: a named type created via CreateNamed/CreateNamedComputed and
// never destroyed via Context.DestroyNamed shows up here.
type Stats struct {
	// NamedLive is the number of named types created and not yet
	// destroyed.
	NamedLive int64
	// PointerTypes, ArrayTypes, FunctionTypes, NamedTypes report the
	// current size of each deduplication table.
	PointerTypes  int
	ArrayTypes    int
	FunctionTypes int
	NamedTypes    int
	OpaqueTypes   int
}

// Stats reports the Context's current bookkeeping, primarily to detect
// named-type leaks (a NamedLive that never returns to zero across a test
// or request lifecycle indicates a missing DestroyNamed call).
func (c *Context) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		NamedLive:     c.namedLive.Load(),
		PointerTypes:  len(c.pointers),
		ArrayTypes:    len(c.arrays),
		FunctionTypes: len(c.functions),
		NamedTypes:    len(c.named),
		OpaqueTypes:   len(c.opaque),
	}
}

// DestroyNamed removes a named type from the Context's registry and
// decrements the live count Stats reports. It does not recursively destroy
// the type's members' descriptors (those are owned by the Context itself,
// not by the named type being removed); it is the runtime-typed values of
// that Named type whose lifetime DestroyAny governs.
func (c *Context) DestroyNamed(t *Type) {
	diag.Precondition(t != nil && t.kind == KindNamed, "t != nil && t.kind == KindNamed", "rtype: DestroyNamed requires a named Type")
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.named[t.name]; ok {
		delete(c.named, t.name)
		c.namedLive.Add(-1)
	}
}
