package rtype

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

// typeComparer treats *Type as opaque and compares by identity: Types are
// interned (pointer/array/function dedup, named registry), so two Types
// describing the same thing are the same pointer.
var typeComparer = cmp.Comparer(func(a, b *Type) bool { return a == b })

func mustContext(t *testing.T) *Context {
	t.Helper()
	ctx, res := New()
	require.Equal(t, CreateSuccess, res)
	require.NotNil(t, ctx)
	return ctx
}

func TestNewRejectsNilAllocatorOrPHF(t *testing.T) {
	_, res := New(WithAllocator(nil))
	require.Equal(t, CreateInvalidAllocator, res)

	_, res = New(WithPHFRecipe(nil))
	require.Equal(t, CreateInvalidPHF, res)
}

func TestBuiltinDescriptors(t *testing.T) {
	ctx := mustContext(t)
	i32 := ctx.Builtin(BuiltinInt32)
	require.Equal(t, KindBuiltin, i32.Kind())
	require.EqualValues(t, 4, i32.Size())
	require.True(t, i32.TriviallyCopyable())
}

func TestPointerDedup(t *testing.T) {
	ctx := mustContext(t)
	i32 := ctx.Builtin(BuiltinInt32)
	p1 := ctx.Pointer(i32, false)
	p2 := ctx.Pointer(i32, false)
	require.Same(t, p1, p2)

	pConst := ctx.Pointer(i32, true)
	require.NotSame(t, p1, pConst)
}

func TestArraySizeAndTrivialBits(t *testing.T) {
	ctx := mustContext(t)
	i32 := ctx.Builtin(BuiltinInt32)
	arr := ctx.Array(i32, 4)
	require.EqualValues(t, 16, arr.Size())
	require.True(t, arr.TriviallyDestructible())

	arr2 := ctx.Array(i32, 4)
	require.Same(t, arr, arr2)
}

func TestFunctionDedup(t *testing.T) {
	ctx := mustContext(t)
	i32 := ctx.Builtin(BuiltinInt32)
	f1 := ctx.Function(i32, []*Type{i32, i32})
	f2 := ctx.Function(i32, []*Type{i32, i32})
	require.Same(t, f1, f2)

	f3 := ctx.Function(i32, []*Type{i32})
	require.NotSame(t, f1, f3)
}

func TestCreateNamedRejectsDuplicateName(t *testing.T) {
	ctx := mustContext(t)
	i32 := ctx.Builtin(BuiltinInt32)
	_, res := ctx.CreateNamed("Point", []Member{{Name: "X", Type: i32, Offset: 0}, {Name: "Y", Type: i32, Offset: 4}})
	require.Equal(t, CreateSuccess, res)

	_, res = ctx.CreateNamed("Point", []Member{{Name: "Z", Type: i32, Offset: 0}})
	require.Equal(t, CreateNameExists, res)
}

func TestCreateNamedRejectsDuplicateMember(t *testing.T) {
	ctx := mustContext(t)
	i32 := ctx.Builtin(BuiltinInt32)
	_, res := ctx.CreateNamed("Bad", []Member{{Name: "X", Type: i32}, {Name: "X", Type: i32, Offset: 4}})
	require.Equal(t, CreateInvalidMembers, res)
}

func TestCreateNamedComputedAsDeclared(t *testing.T) {
	ctx := mustContext(t)
	i8 := ctx.Builtin(BuiltinInt8)
	i32 := ctx.Builtin(BuiltinInt32)
	// int8 then int32: AsDeclared pads 3 bytes between them.
	named, res := ctx.CreateNamedComputed("Padded", []MemberSpec{
		{Name: "A", Type: i8},
		{Name: "B", Type: i32},
	}, AsDeclared)
	require.Equal(t, CreateSuccess, res)
	a, _ := named.Lookup("A")
	b, _ := named.Lookup("B")
	require.EqualValues(t, 0, a.Offset)
	require.EqualValues(t, 4, b.Offset)
	require.EqualValues(t, 8, named.Size())
}

func TestCreateNamedComputedOptimizeSizeFast(t *testing.T) {
	ctx := mustContext(t)
	i8 := ctx.Builtin(BuiltinInt8)
	i32 := ctx.Builtin(BuiltinInt32)
	// Declared A(int8), B(int32), C(int8): OptimizeSizeFast reorders to
	// B, A, C (offsets 0, 4, 5), giving size 8 instead of AsDeclared's 12.
	named, res := ctx.CreateNamedComputed("Packed", []MemberSpec{
		{Name: "A", Type: i8},
		{Name: "B", Type: i32},
		{Name: "C", Type: i8},
	}, OptimizeSizeFast)
	require.Equal(t, CreateSuccess, res)
	require.LessOrEqual(t, named.Size(), uintptr(8))

	a, _ := named.Lookup("A")
	b, _ := named.Lookup("B")
	c, _ := named.Lookup("C")
	require.EqualValues(t, 0, b.Offset)
	require.Greater(t, a.Offset, b.Offset)
	require.Greater(t, c.Offset, b.Offset)

	// Reflect still walks in declaration order regardless of layout.
	it := named.Reflect()
	first, ok := it.Next()
	require.True(t, ok)
	require.Equal(t, "A", first.Name)
}

func TestLookupFastAllowsFalsePositive(t *testing.T) {
	ctx := mustContext(t)
	i32 := ctx.Builtin(BuiltinInt32)
	named, _ := ctx.CreateNamed("Point", []Member{{Name: "X", Type: i32}, {Name: "Y", Type: i32, Offset: 4}})

	m, res := named.LookupFast("X")
	require.Equal(t, LookupSuccess, res)
	require.Equal(t, "X", m.Name)

	// An unknown key still resolves to some in-range member, never an error.
	_, res = named.LookupFast("nonexistent")
	require.Equal(t, LookupSuccess, res)
}

func TestLookupRejectsUnknownMember(t *testing.T) {
	ctx := mustContext(t)
	i32 := ctx.Builtin(BuiltinInt32)
	named, _ := ctx.CreateNamed("Point", []Member{{Name: "X", Type: i32}})

	_, res := named.Lookup("nonexistent")
	require.Equal(t, LookupNotFound, res)

	_, res = i32.Lookup("X")
	require.Equal(t, LookupExpectedNamed, res)
}

func TestPrepareMemberAndResolve(t *testing.T) {
	ctx := mustContext(t)
	i32 := ctx.Builtin(BuiltinInt32)
	named, _ := ctx.CreateNamed("Point", []Member{{Name: "X", Type: i32}, {Name: "Y", Type: i32, Offset: 4}})

	prepared, res := named.PrepareMember("Y")
	require.Equal(t, LookupSuccess, res)

	inst := NewInstance(named)
	inst.Fields["Y"] = uint32(42)
	require.Equal(t, uint32(42), ResolvePrepared(inst, prepared))
}

func TestLifetimeTrivialNamedIsNoOp(t *testing.T) {
	ctx := mustContext(t)
	i32 := ctx.Builtin(BuiltinInt32)
	named, _ := ctx.CreateNamed("Point", []Member{{Name: "X", Type: i32}, {Name: "Y", Type: i32, Offset: 4}})
	require.True(t, named.TriviallyDestructible())

	src := NewInstance(named)
	src.Fields["X"] = uint32(1)
	src.Fields["Y"] = uint32(2)

	cp, ok := CopyAny(named, src)
	require.True(t, ok)
	inst := cp.(*Instance)
	require.Equal(t, uint32(1), inst.Fields["X"])

	DestroyAny(named, src) // no-op, must not panic
}

// newFailingCopyType builds a two-field named type, First then Second, where
// Second is itself a named type whose copy always fails (via ForceCopyFails,
// not ForceNotCopyable: the point is a copy that is attempted and fails at
// runtime, not one with no copy capability at all), so CopyAny's mid-member
// rollback can be exercised deterministically: First's trivial copy must be
// undone when Second's copy fails.
func newFailingCopyType(ctx *Context) *Type {
	i32 := ctx.Builtin(BuiltinInt32)
	inner, _ := ctx.CreateNamed("Inner", []Member{{Name: "V", Type: i32}})
	ForceCopyFails(inner)

	outer, _ := ctx.CreateNamed("Outer", []Member{
		{Name: "First", Type: i32, Offset: 0},
		{Name: "Second", Type: inner, Offset: 4},
	})
	outer.triviallyCopyable = false
	outer.copyFn = func(dst, src any) bool { return copyInstance(outer, dst, src) }
	return outer
}

func TestCopyAnyRollsBackOnFailure(t *testing.T) {
	ctx := mustContext(t)
	outer := newFailingCopyType(ctx)

	src := NewInstance(outer)
	src.Fields["First"] = uint32(7)

	_, ok := CopyAny(outer, src)
	require.False(t, ok)
}

func TestCopyAnyNamedNilCopyFnFailsWithoutPanic(t *testing.T) {
	ctx := mustContext(t)
	i32 := ctx.Builtin(BuiltinInt32)
	named, _ := ctx.CreateNamed("Resource", []Member{{Name: "V", Type: i32}})
	ForceNotCopyable(named)

	_, ok := CopyAny(named, NewInstance(named))
	require.False(t, ok)
}

func TestOpaqueRegistration(t *testing.T) {
	ctx := mustContext(t)
	i32 := ctx.Builtin(BuiltinInt32)
	named, _ := ctx.CreateNamed("Point", []Member{{Name: "X", Type: i32}})

	require.Equal(t, CreateSuccess, ctx.RegisterOpaque(42, named))
	require.Equal(t, CreateSuccess, ctx.RegisterOpaque(42, named)) // idempotent

	resolved, ok := ctx.ResolveOpaque(42)
	require.True(t, ok)
	require.Same(t, named, resolved)

	other, _ := ctx.CreateNamed("Other", []Member{{Name: "Y", Type: i32}})
	require.Equal(t, CreateNameExists, ctx.RegisterOpaque(42, other))
}

func TestStatsTracksNamedLifecycle(t *testing.T) {
	ctx := mustContext(t)
	i32 := ctx.Builtin(BuiltinInt32)
	named, _ := ctx.CreateNamed("Point", []Member{{Name: "X", Type: i32}})
	require.EqualValues(t, 1, ctx.Stats().NamedLive)

	ctx.DestroyNamed(named)
	require.EqualValues(t, 0, ctx.Stats().NamedLive)
}

func TestReflectName(t *testing.T) {
	ctx := mustContext(t)
	i32 := ctx.Builtin(BuiltinInt32)
	named, _ := ctx.CreateNamed("Point", []Member{{Name: "X", Type: i32}})

	found, ok := ctx.ReflectName("Point")
	require.True(t, ok)
	require.Same(t, named, found)

	_, ok = ctx.ReflectName("Nonexistent")
	require.False(t, ok)
}

func TestZeroValueStructuralEquality(t *testing.T) {
	ctx := mustContext(t)
	i32 := ctx.Builtin(BuiltinInt32)
	point, _ := ctx.CreateNamed("Point", []Member{
		{Name: "X", Type: i32},
		{Name: "Y", Type: i32, Offset: 4},
	})

	a := ZeroValue(point)
	b := ZeroValue(point)
	if diff := cmp.Diff(a, b, typeComparer); diff != "" {
		t.Fatalf("two independent ZeroValue calls for the same Type diverged (-a +b):\n%s", diff)
	}

	bInst := b.(*Instance)
	bInst.Fields["X"] = uint32(7)
	if diff := cmp.Diff(a, b, typeComparer); diff == "" {
		t.Fatal("expected a diff after mutating b's field, got none")
	}
}

func TestDefaultPHFRecipeErrorPathUnused(t *testing.T) {
	// DefaultPHFRecipe never errors; this just documents the contract so a
	// future alternate recipe's error path has a reference point.
	recipe := DefaultPHFRecipe()
	phf, err := recipe.Construct([]string{"a", "b", "c"})
	require.NoError(t, err)
	require.EqualValues(t, 0, phf.Lookup("a"))
	require.EqualValues(t, 1, phf.Lookup("b"))
	require.EqualValues(t, 2, phf.Lookup("c"))
}
