// Command capi is not a CLI: it is built with `go build -buildmode=c-archive`
// (or c-shared) to produce a subset of the stable C ABI surface that §6
// describes, over rtype only (no anyval entry points). main is required by
// package main's build rules and does nothing; every real entry point is a
// //export function below.
//
// Go values never cross the cgo boundary directly — every Context and Type
// is kept alive by this package's handle tables and referenced
// from C by an opaque uint64 handle, the standard safe idiom for passing
// Go-owned state through cgo (see the cgo wiki's pointer-passing rules:
// passing an actual Go pointer to C is constrained and fragile; an
// integer handle sidesteps that entirely).
package main

/*
#include <stdint.h>

typedef struct {
	uint64_t handle;
	int32_t  result;
} substrate_result;
*/
import "C"

import (
	"sync"
	"sync/atomic"

	"github.com/joeycumines/substrate/rtype"
)

var (
	nextHandle atomic.Uint64

	mu       sync.Mutex
	contexts = map[uint64]*rtype.Context{}
	types    = map[uint64]*rtype.Type{}
)

func newHandle() uint64 { return nextHandle.Add(1) }

func putContext(ctx *rtype.Context) uint64 {
	h := newHandle()
	mu.Lock()
	contexts[h] = ctx
	mu.Unlock()
	return h
}

func getContext(h uint64) (*rtype.Context, bool) {
	mu.Lock()
	defer mu.Unlock()
	ctx, ok := contexts[h]
	return ctx, ok
}

// putType returns t's handle, minting one on first sight, so each Type has
// exactly one handle and C callers can compare handles for type identity.
func putType(t *rtype.Type) uint64 {
	mu.Lock()
	defer mu.Unlock()
	for h, existing := range types {
		if existing == t {
			return h
		}
	}
	h := newHandle()
	types[h] = t
	return h
}

func getType(h uint64) (*rtype.Type, bool) {
	mu.Lock()
	defer mu.Unlock()
	t, ok := types[h]
	return t, ok
}

// substrate_context_create corresponds to §6's create(alloc_recipe?,
// phf_recipe?) -> ResultContext. This port always uses the default
// allocator and PHF recipe; a future alloc_recipe/phf_recipe parameter
// would route through rtype.WithAllocator/rtype.WithPHFRecipe once a
// C-ABI recipe shape (§6's "Allocator recipe (C-ABI)"/"PHF recipe
// (C-ABI)") is defined for the Go side to adapt.
//
//export substrate_context_create
func substrate_context_create() C.substrate_result {
	ctx, res := rtype.New()
	if res != rtype.CreateSuccess {
		return C.substrate_result{result: C.int32_t(res)}
	}
	return C.substrate_result{handle: C.uint64_t(putContext(ctx)), result: C.int32_t(rtype.CreateSuccess)}
}

//export substrate_context_destroy
func substrate_context_destroy(handle C.uint64_t) {
	mu.Lock()
	defer mu.Unlock()
	h := uint64(handle)
	if ctx, ok := contexts[h]; ok {
		ctx.Close()
		delete(contexts, h)
	}
}

//export substrate_type_create_builtin
func substrate_type_create_builtin(ctxHandle C.uint64_t, kind C.int32_t) C.substrate_result {
	ctx, ok := getContext(uint64(ctxHandle))
	if !ok {
		return C.substrate_result{result: C.int32_t(rtype.CreateInvalidAllocator)}
	}
	t := ctx.Builtin(rtype.Builtin(kind))
	return C.substrate_result{handle: C.uint64_t(putType(t)), result: C.int32_t(rtype.CreateSuccess)}
}

//export substrate_type_create_ptr
func substrate_type_create_ptr(ctxHandle, pointeeHandle C.uint64_t, isConst C.int32_t) C.substrate_result {
	ctx, ok := getContext(uint64(ctxHandle))
	pointee, pok := getType(uint64(pointeeHandle))
	if !ok || !pok {
		return C.substrate_result{result: C.int32_t(rtype.CreateInvalidMembers)}
	}
	t := ctx.Pointer(pointee, isConst != 0)
	return C.substrate_result{handle: C.uint64_t(putType(t)), result: C.int32_t(rtype.CreateSuccess)}
}

//export substrate_type_create_array
func substrate_type_create_array(ctxHandle, elemHandle C.uint64_t, count C.uint64_t) C.substrate_result {
	ctx, ok := getContext(uint64(ctxHandle))
	elem, eok := getType(uint64(elemHandle))
	if !ok || !eok {
		return C.substrate_result{result: C.int32_t(rtype.CreateInvalidMembers)}
	}
	t := ctx.Array(elem, uint64(count))
	return C.substrate_result{handle: C.uint64_t(putType(t)), result: C.int32_t(rtype.CreateSuccess)}
}

// substrate_type_lookup corresponds to §6's type_lookup(type, name,
// expected) -> ResultLookup; it returns the LookupResult discriminant
// only, since the caller already holds type handles and is expected to
// re-derive the member's offset/type via a follow-up call rather than
// have this function invent a C struct for an arbitrary member shape.
//
//export substrate_type_lookup
func substrate_type_lookup(typeHandle C.uint64_t, name *C.char) C.int32_t {
	t, ok := getType(uint64(typeHandle))
	if !ok {
		return C.int32_t(rtype.LookupExpectedNamed)
	}
	_, res := t.Lookup(C.GoString(name))
	return C.int32_t(res)
}

//export substrate_type_lookup_fast
func substrate_type_lookup_fast(typeHandle C.uint64_t, name *C.char) C.int32_t {
	t, ok := getType(uint64(typeHandle))
	if !ok {
		return C.int32_t(rtype.LookupExpectedNamed)
	}
	_, res := t.LookupFast(C.GoString(name))
	return C.int32_t(res)
}

//export substrate_type_size
func substrate_type_size(typeHandle C.uint64_t) C.uint64_t {
	t, ok := getType(uint64(typeHandle))
	if !ok {
		return 0
	}
	return C.uint64_t(t.Size())
}

//export substrate_register_set_type
func substrate_register_set_type(ctxHandle C.uint64_t, opaqueID C.uint64_t, typeHandle C.uint64_t) C.int32_t {
	ctx, ok := getContext(uint64(ctxHandle))
	t, tok := getType(uint64(typeHandle))
	if !ok || !tok {
		return C.int32_t(rtype.CreateInvalidMembers)
	}
	return C.int32_t(ctx.RegisterOpaque(rtype.OpaqueID(opaqueID), t))
}

//export substrate_register_get_type
func substrate_register_get_type(ctxHandle C.uint64_t, opaqueID C.uint64_t) C.substrate_result {
	ctx, ok := getContext(uint64(ctxHandle))
	if !ok {
		return C.substrate_result{result: C.int32_t(rtype.CreateInvalidAllocator)}
	}
	t, found := ctx.ResolveOpaque(rtype.OpaqueID(opaqueID))
	if !found {
		return C.substrate_result{result: C.int32_t(rtype.LookupNotFound)}
	}
	return C.substrate_result{handle: C.uint64_t(putType(t)), result: C.int32_t(rtype.CreateSuccess)}
}

func main() {}
