package anyval

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joeycumines/substrate/alloc"
	"github.com/joeycumines/substrate/rtype"
)

func mustContext(t *testing.T) *rtype.Context {
	t.Helper()
	ctx, res := rtype.New()
	require.Equal(t, rtype.CreateSuccess, res)
	return ctx
}

func TestConstructScalarIsInline(t *testing.T) {
	ctx := mustContext(t)
	i32 := ctx.Builtin(rtype.BuiltinInt32)

	a, res := Construct(i32, nil)
	require.Equal(t, CopySuccess, res)
	require.True(t, a.IsInline())
	require.False(t, a.IsEmpty())
	require.Equal(t, uint32(0), a.Value())
}

func TestConstructNamedIsHeap(t *testing.T) {
	ctx := mustContext(t)
	i32 := ctx.Builtin(rtype.BuiltinInt32)
	point, _ := ctx.CreateNamed("Point", []rtype.Member{{Name: "X", Type: i32}, {Name: "Y", Type: i32, Offset: 4}})

	a, res := Construct(point, nil)
	require.Equal(t, CopySuccess, res)
	require.False(t, a.IsInline())
	inst, ok := a.Value().(*rtype.Instance)
	require.True(t, ok)
	require.Equal(t, uint32(0), inst.Fields["X"])
}

func TestConstructFailsOnExhaustedAllocator(t *testing.T) {
	ctx := mustContext(t)
	i32 := ctx.Builtin(rtype.BuiltinInt32)
	point, _ := ctx.CreateNamed("Point", []rtype.Member{{Name: "X", Type: i32}, {Name: "Y", Type: i32, Offset: 4}})

	_, res := Construct(point, alloc.NullReturning{})
	require.Equal(t, CopyFailMemory, res)
}

func TestConstructFromMoveInline(t *testing.T) {
	ctx := mustContext(t)
	i32 := ctx.Builtin(rtype.BuiltinInt32)

	src, _ := Construct(i32, nil)
	src.SetValue(uint32(42))

	var dst Any
	ConstructFromMove(&dst, src)
	require.True(t, src.IsEmpty())
	require.Equal(t, uint32(42), dst.Value())
}

func TestConstructFromMoveHeapStealsReference(t *testing.T) {
	ctx := mustContext(t)
	i32 := ctx.Builtin(rtype.BuiltinInt32)
	point, _ := ctx.CreateNamed("Point", []rtype.Member{{Name: "X", Type: i32}, {Name: "Y", Type: i32, Offset: 4}})

	src, _ := Construct(point, nil)
	srcInst := src.Value().(*rtype.Instance)
	srcInst.Fields["X"] = uint32(7)

	var dst Any
	ConstructFromMove(&dst, src)
	require.True(t, src.IsEmpty())
	dstInst := dst.Value().(*rtype.Instance)
	require.Same(t, srcInst, dstInst)
}

func TestConstructFromCopyInline(t *testing.T) {
	ctx := mustContext(t)
	i32 := ctx.Builtin(rtype.BuiltinInt32)

	src, _ := Construct(i32, nil)
	src.SetValue(uint32(9))

	var dst Any
	res := ConstructFromCopy(&dst, src)
	require.Equal(t, CopySuccess, res)
	require.Equal(t, uint32(9), dst.Value())
	require.False(t, src.IsEmpty())
}

func TestConstructFromCopyHeapIsIndependent(t *testing.T) {
	ctx := mustContext(t)
	i32 := ctx.Builtin(rtype.BuiltinInt32)
	point, _ := ctx.CreateNamed("Point", []rtype.Member{{Name: "X", Type: i32}, {Name: "Y", Type: i32, Offset: 4}})

	src, _ := Construct(point, nil)
	srcInst := src.Value().(*rtype.Instance)
	srcInst.Fields["X"] = uint32(1)

	var dst Any
	res := ConstructFromCopy(&dst, src)
	require.Equal(t, CopySuccess, res)

	dstInst := dst.Value().(*rtype.Instance)
	require.NotSame(t, srcInst, dstInst)
	dstInst.Fields["X"] = uint32(99)
	require.Equal(t, uint32(1), srcInst.Fields["X"])
}

func TestConstructFromCopyNotCopyable(t *testing.T) {
	ctx := mustContext(t)
	i32 := ctx.Builtin(rtype.BuiltinInt32)
	inner, _ := ctx.CreateNamed("Inner", []rtype.Member{{Name: "V", Type: i32}})
	rtype.ForceNotCopyable(inner)

	src, _ := Construct(inner, nil)
	var dst Any
	res := ConstructFromCopy(&dst, src)
	require.Equal(t, CopyNotCopyable, res)
	require.True(t, dst.IsEmpty())
}

func TestConstructFromCopyFailsOnMemberCopy(t *testing.T) {
	ctx := mustContext(t)
	i32 := ctx.Builtin(rtype.BuiltinInt32)
	inner, _ := ctx.CreateNamed("Inner", []rtype.Member{{Name: "V", Type: i32}})
	rtype.ForceCopyFails(inner)

	outer, _ := ctx.CreateNamedComputed("Outer", []rtype.MemberSpec{
		{Name: "First", Type: i32},
		{Name: "Second", Type: inner},
	}, rtype.AsDeclared)

	src, _ := Construct(outer, nil)
	srcInst := src.Value().(*rtype.Instance)
	srcInst.Fields["First"] = uint32(7)

	var dst Any
	res := ConstructFromCopy(&dst, src)
	require.Equal(t, CopyFailCopy, res)
	require.True(t, dst.IsEmpty())
}

func TestDestroyResetsAny(t *testing.T) {
	ctx := mustContext(t)
	i32 := ctx.Builtin(rtype.BuiltinInt32)
	a, _ := Construct(i32, nil)
	Destroy(a)
	require.True(t, a.IsEmpty())
}

func TestSharedAnyReleaseDestroysAtZero(t *testing.T) {
	ctx := mustContext(t)
	i32 := ctx.Builtin(rtype.BuiltinInt32)
	point, _ := ctx.CreateNamed("Point", []rtype.Member{{Name: "X", Type: i32}, {Name: "Y", Type: i32, Offset: 4}})

	s, res := NewSharedAny(point, nil)
	require.Equal(t, CopySuccess, res)
	require.EqualValues(t, 1, s.StrongCount())
	require.EqualValues(t, 1, s.WeakCount())

	clone := s.Clone()
	require.EqualValues(t, 2, s.StrongCount())

	clone.Release()
	require.EqualValues(t, 1, s.StrongCount())

	s.Release()
}

func TestWeakAnyTryLockFailsAfterLastStrongReleases(t *testing.T) {
	ctx := mustContext(t)
	i32 := ctx.Builtin(rtype.BuiltinInt32)

	s, _ := NewSharedAny(i32, nil)
	w := FromShared(s)

	locked, ok := w.TryLock()
	require.True(t, ok)
	require.EqualValues(t, 2, s.StrongCount())
	locked.Release()

	s.Release()
	_, ok = w.TryLock()
	require.False(t, ok)

	w.Release()
}

func TestWeakAnyTryLockConsume(t *testing.T) {
	ctx := mustContext(t)
	i32 := ctx.Builtin(rtype.BuiltinInt32)

	s, _ := NewSharedAny(i32, nil)
	w := FromShared(s)
	require.EqualValues(t, 2, s.WeakCount())

	locked, ok := w.TryLockConsume()
	require.True(t, ok)
	require.EqualValues(t, 1, s.WeakCount())

	locked.Release()
	s.Release()
}
