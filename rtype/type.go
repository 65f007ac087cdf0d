// Package rtype implements the runtime type / reflection engine described
// by §4.9: a Context owning deduplicated type descriptors (builtin,
// pointer, array, function, named), named-member lookup backed by a
// pluggable PHF, lifetime recursion (move/copy/destroy) for runtime-typed
// composites, and opaque type-id registration so independently compiled
// modules can converge on the same named type.
//
// The original expresses all of this as manually laid-out C structs behind
// a stable C ABI, with explicit allocator-driven construction/destruction.
// This port keeps the same vocabulary (Context, Type, member, PHF, lookup
// tiers) but lets the Go garbage collector own descriptor lifetimes —
// Context.Close exists for symmetry with the original's destroy(ctx), not
// because Go descriptors need manual freeing.
package rtype

// Kind discriminates a Type's representation.
type Kind int

const (
	KindBuiltin Kind = iota
	KindPointer
	KindArray
	KindFunction
	KindNamed
)

func (k Kind) String() string {
	switch k {
	case KindBuiltin:
		return "builtin"
	case KindPointer:
		return "pointer"
	case KindArray:
		return "array"
	case KindFunction:
		return "function"
	case KindNamed:
		return "named"
	default:
		return "unknown"
	}
}

// Builtin enumerates the built-in scalar types populated into every
// Context at creation, per §4.9.1 "populates the built-in type
// descriptors".
type Builtin int

const (
	BuiltinBool Builtin = iota
	BuiltinInt8
	BuiltinInt16
	BuiltinInt32
	BuiltinInt64
	BuiltinUint8
	BuiltinUint16
	BuiltinUint32
	BuiltinUint64
	BuiltinFloat32
	BuiltinFloat64
	builtinCount
)

// MoveFunc moves src into dst, leaving src in a moved-from (empty for
// trivially-destructible types) state.
type MoveFunc func(dst, src any)

// CopyFunc copies src into dst, reporting whether the copy succeeded.
type CopyFunc func(dst, src any) bool

// DestroyFunc runs a type's destructor on obj.
type DestroyFunc func(obj any)

// Type is a runtime type descriptor. Instances are owned and deduplicated
// by the Context that created them; do not compare Types across Contexts.
type Type struct {
	kind  Kind
	size  uintptr
	align uintptr

	triviallyMovable      bool
	triviallyCopyable     bool
	triviallyDestructible bool

	// Pointer
	pointee *Type
	isConst bool

	// Array
	elem  *Type
	count uint64

	// Function
	ret  *Type
	args []*Type

	// Named
	name    string
	members []Member
	phf     PHF
	byName  map[string]int // name -> index into members, for full-compare lookup
	move    MoveFunc
	copyFn  CopyFunc
	destroy DestroyFunc
}

// Kind reports t's representation.
func (t *Type) Kind() Kind { return t.kind }

// Size reports t's size in bytes.
func (t *Type) Size() uintptr { return t.size }

// Align reports t's required alignment.
func (t *Type) Align() uintptr { return t.align }

// TriviallyMovable reports whether moving a value of t is a bitwise copy.
func (t *Type) TriviallyMovable() bool { return t.triviallyMovable }

// TriviallyCopyable reports whether copying a value of t is a bitwise copy.
func (t *Type) TriviallyCopyable() bool { return t.triviallyCopyable }

// TriviallyDestructible reports whether destroying a value of t is a no-op.
func (t *Type) TriviallyDestructible() bool { return t.triviallyDestructible }

// Copyable reports whether t has any copy capability at all. Every
// builtin/pointer/function type does trivially; an array type does iff
// its element type does; a named type does iff it has a copy
// implementation — every named type created via CreateNamed or
// CreateNamedComputed gets one synthesized automatically, so this only
// matters if that hook was subsequently cleared.
func (t *Type) Copyable() bool {
	switch t.kind {
	case KindArray:
		return t.elem.Copyable()
	case KindNamed:
		return t.copyFn != nil
	default:
		return true
	}
}

// Pointee returns the pointed-to type for a KindPointer Type.
func (t *Type) Pointee() *Type { return t.pointee }

// IsConst reports whether a KindPointer Type points to a const pointee.
func (t *Type) IsConst() bool { return t.isConst }

// Elem returns the element type for a KindArray Type.
func (t *Type) Elem() *Type { return t.elem }

// Count returns the element count for a KindArray Type.
func (t *Type) Count() uint64 { return t.count }

// Return returns the return type for a KindFunction Type.
func (t *Type) Return() *Type { return t.ret }

// Args returns the argument types for a KindFunction Type.
func (t *Type) Args() []*Type { return t.args }

// Name returns the type name for a KindNamed Type.
func (t *Type) Name() string { return t.name }

// Members returns the member list for a KindNamed Type, in declaration
// order.
func (t *Type) Members() []Member { return t.members }

func builtinDescriptor(b Builtin) *Type {
	switch b {
	case BuiltinBool:
		return &Type{kind: KindBuiltin, size: 1, align: 1, triviallyMovable: true, triviallyCopyable: true, triviallyDestructible: true}
	case BuiltinInt8, BuiltinUint8:
		return &Type{kind: KindBuiltin, size: 1, align: 1, triviallyMovable: true, triviallyCopyable: true, triviallyDestructible: true}
	case BuiltinInt16, BuiltinUint16:
		return &Type{kind: KindBuiltin, size: 2, align: 2, triviallyMovable: true, triviallyCopyable: true, triviallyDestructible: true}
	case BuiltinInt32, BuiltinUint32, BuiltinFloat32:
		return &Type{kind: KindBuiltin, size: 4, align: 4, triviallyMovable: true, triviallyCopyable: true, triviallyDestructible: true}
	case BuiltinInt64, BuiltinUint64, BuiltinFloat64:
		return &Type{kind: KindBuiltin, size: 8, align: 8, triviallyMovable: true, triviallyCopyable: true, triviallyDestructible: true}
	default:
		panic("rtype: unknown builtin")
	}
}
