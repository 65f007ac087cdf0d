package diag

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllocationFailureHookSwap(t *testing.T) {
	orig := OsExit
	defer func() { OsExit = orig; SetAllocationFailureHook(defaultAllocationFailureHook) }()

	var exited atomic.Bool
	OsExit = func(int) { exited.Store(true) }

	var gotSize uintptr
	SetAllocationFailureHook(func(size uintptr, where SourceLocation) {
		gotSize = size
		OsExit(1)
	})

	// the stub hook returns, so AllocationFailure's never-returns guard fires
	require.PanicsWithValue(t, "diag: allocation-failure hook returned", func() {
		AllocationFailure(1024, Here(0))
	})
	require.True(t, exited.Load())
	require.EqualValues(t, 1024, gotSize)
}

func TestViolationHookSwap(t *testing.T) {
	orig := OsExit
	defer func() { OsExit = orig; SetViolationHook(defaultViolationHook) }()

	var exited atomic.Bool
	var gotKind ViolationKind
	OsExit = func(int) { exited.Store(true) }
	SetViolationHook(func(expression, explanation string, kind ViolationKind, where *SourceLocation) {
		gotKind = kind
		OsExit(1)
	})

	// the stub hook returns, so Violation's never-returns guard fires
	require.PanicsWithValue(t, "diag: violation hook returned", func() {
		Precondition(false, "x != nil", "x must not be nil")
	})
	require.True(t, exited.Load())
	require.Equal(t, KindPrecondition, gotKind)
}

func TestPreconditionPassesWhenTrue(t *testing.T) {
	orig := OsExit
	defer func() { OsExit = orig }()
	OsExit = func(int) { t.Fatal("should not exit") }
	Precondition(true, "1 == 1", "trivially true")
}

func TestSetNilHookPanics(t *testing.T) {
	require.Panics(t, func() { SetAllocationFailureHook(nil) })
	require.Panics(t, func() { SetViolationHook(nil) })
}
