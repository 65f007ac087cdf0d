package main

/*
#include <stdint.h>
*/
import "C"

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joeycumines/substrate/rtype"
)

func TestContextCreateDestroy(t *testing.T) {
	res := substrate_context_create()
	require.EqualValues(t, rtype.CreateSuccess, res.result)
	require.NotZero(t, res.handle)

	substrate_context_destroy(res.handle)
	_, ok := getContext(uint64(res.handle))
	require.False(t, ok)
}

func TestTypeCreateBuiltinAndPointer(t *testing.T) {
	ctxRes := substrate_context_create()
	require.EqualValues(t, rtype.CreateSuccess, ctxRes.result)
	defer substrate_context_destroy(ctxRes.handle)

	i32Res := substrate_type_create_builtin(ctxRes.handle, C.int32_t(rtype.BuiltinInt32))
	require.EqualValues(t, rtype.CreateSuccess, i32Res.result)
	require.EqualValues(t, 4, substrate_type_size(i32Res.handle))

	ptrRes := substrate_type_create_ptr(ctxRes.handle, i32Res.handle, C.int32_t(0))
	require.EqualValues(t, rtype.CreateSuccess, ptrRes.result)
	require.NotEqual(t, i32Res.handle, ptrRes.handle)
}

func TestTypeLookupUnknownHandle(t *testing.T) {
	name := C.CString("x")
	res := substrate_type_lookup(C.uint64_t(999999), name)
	require.EqualValues(t, rtype.LookupExpectedNamed, res)
}

func TestRegisterOpaqueRoundTrip(t *testing.T) {
	ctxRes := substrate_context_create()
	defer substrate_context_destroy(ctxRes.handle)

	i32Res := substrate_type_create_builtin(ctxRes.handle, C.int32_t(rtype.BuiltinInt32))

	setRes := substrate_register_set_type(ctxRes.handle, C.uint64_t(7), i32Res.handle)
	require.EqualValues(t, rtype.CreateSuccess, setRes)

	getRes := substrate_register_get_type(ctxRes.handle, C.uint64_t(7))
	require.EqualValues(t, rtype.CreateSuccess, getRes.result)
	require.Equal(t, i32Res.handle, getRes.handle)
}
