package rtype

import (
	"strconv"
	"strings"
	"unsafe"
)

const pointerSize = unsafe.Sizeof(uintptr(0))

// Pointer returns the deduplicated pointer-to-pointee type, constructing it
// on first request, per §4.9.2's pointer/array/function dedup tables.
func (c *Context) Pointer(pointee *Type, isConst bool) *Type {
	key := pointerKey{pointee: pointee, isConst: isConst}
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.pointers[key]; ok {
		return t
	}
	t := &Type{
		kind:                  KindPointer,
		size:                  pointerSize,
		align:                 pointerSize,
		triviallyMovable:      true,
		triviallyCopyable:     true,
		triviallyDestructible: true,
		pointee:               pointee,
		isConst:               isConst,
	}
	c.pointers[key] = t
	return t
}

// Array returns the deduplicated elem[count] array type, constructing it on
// first request. An array's size is elem.Size*count, aligned as elem is;
// an array's trivial bits are exactly its element's (destroying/moving/
// copying an array recurses into every element, so the array is trivial
// iff the element is).
func (c *Context) Array(elem *Type, count uint64) *Type {
	key := arrayKey{elem: elem, count: count}
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.arrays[key]; ok {
		return t
	}
	t := &Type{
		kind:                  KindArray,
		size:                  elem.size * uintptr(count),
		align:                 elem.align,
		triviallyMovable:      elem.triviallyMovable,
		triviallyCopyable:     elem.triviallyCopyable,
		triviallyDestructible: elem.triviallyDestructible,
		elem:                  elem,
		count:                 count,
	}
	c.arrays[key] = t
	return t
}

func functionKey(ret *Type, args []*Type) string {
	var b strings.Builder
	b.WriteString(strconv.FormatUint(uint64(uintptr(unsafe.Pointer(ret))), 16))
	for _, a := range args {
		b.WriteByte(',')
		b.WriteString(strconv.FormatUint(uint64(uintptr(unsafe.Pointer(a))), 16))
	}
	return b.String()
}

// Function returns the deduplicated function type for the given return and
// argument types. Function types are pointer-sized, trivially copyable
// descriptors (they describe a callable's signature, not a value with
// recursive lifetime); only function *pointer* values flow through
// DestroyAny/MoveAny/CopyAny, and those take the trivial fast path already.
func (c *Context) Function(ret *Type, args []*Type) *Type {
	key := functionKey(ret, args)
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.functions[key]; ok {
		return t
	}
	argsCopy := append([]*Type(nil), args...)
	t := &Type{
		kind:                  KindFunction,
		size:                  pointerSize,
		align:                 pointerSize,
		triviallyMovable:      true,
		triviallyCopyable:     true,
		triviallyDestructible: true,
		ret:                   ret,
		args:                  argsCopy,
	}
	c.functions[key] = t
	return t
}
