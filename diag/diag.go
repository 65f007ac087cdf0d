// Package diag hosts the two process-wide hooks described by the external
// interfaces section of the spec this module implements: the
// allocation-failure hook and the contract-violation hook. Both are
// atomically swappable and default to terminating the process, after
// writing a diagnostic line through a structured logger (see SetLogger), or
// to stderr when none is installed.
//
// This is the only package in the repo allowed to call OsExit; every other
// package signals failure via a typed result or by invoking a hook obtained
// from here.
package diag

import (
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/KimMachineGun/automemlimit/memlimit"
	"github.com/joeycumines/logiface"
)

// OsExit mirrors logiface.OsExit: overridable for tests that need to observe
// a "would have terminated" condition without killing the test binary.
var OsExit = os.Exit

var memlimitOnce sync.Once

// Init makes the process's GOMEMLIMIT cgroup-aware, via automemlimit, the
// same dependency the teacher monorepo's root go.mod carries for this exact
// purpose. It is idempotent and safe to call from cmd/substratectl's main;
// library packages never call it implicitly as a side effect of import.
func Init() {
	memlimitOnce.Do(func() {
		_, _ = memlimit.SetGoMemLimitWithOptions(
			memlimit.WithRatio(0.9),
			memlimit.WithProvider(memlimit.FromCgroupHybrid),
		)
	})
}

// effectiveMemLimit reports the current GOMEMLIMIT without altering it.
func effectiveMemLimit() int64 {
	return debug.SetMemoryLimit(-1)
}

// SourceLocation identifies where a contract or allocation failure occurred.
type SourceLocation struct {
	File string
	Line int
	Func string
}

func (s SourceLocation) String() string {
	if s.File == "" {
		return "<unknown>"
	}
	return fmt.Sprintf("%s:%d (%s)", s.File, s.Line, s.Func)
}

// Here captures the caller's source location, skip frames above the direct
// caller of Here.
func Here(skip int) SourceLocation {
	pc, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return SourceLocation{}
	}
	fn := runtime.FuncForPC(pc)
	name := "<unknown>"
	if fn != nil {
		name = fn.Name()
	}
	return SourceLocation{File: file, Line: line, Func: name}
}

// ViolationKind distinguishes the three contract-violation flavors.
type ViolationKind uint8

const (
	KindPrecondition ViolationKind = iota
	KindPostcondition
	KindAssertion
)

func (k ViolationKind) String() string {
	switch k {
	case KindPrecondition:
		return "precondition"
	case KindPostcondition:
		return "postcondition"
	case KindAssertion:
		return "assertion"
	default:
		return "violation"
	}
}

// AllocationFailureHook is invoked by an infallible allocator when it cannot
// satisfy a request. Implementations must never return.
type AllocationFailureHook func(size uintptr, where SourceLocation)

// ViolationHook is invoked when a precondition, postcondition, or assertion
// fails. Implementations must never return.
type ViolationHook func(expression, explanation string, kind ViolationKind, where *SourceLocation)

var (
	logger atomic.Pointer[logiface.Logger[logiface.Event]]

	allocHook atomic.Pointer[AllocationFailureHook]
	violHook  atomic.Pointer[ViolationHook]
)

func init() {
	var h AllocationFailureHook = defaultAllocationFailureHook
	allocHook.Store(&h)
	var v ViolationHook = defaultViolationHook
	violHook.Store(&v)
}

// SetLogger installs the structured logger used by the default hooks (and
// available to the rest of the module via Log). With a nil logger the
// default hooks write their diagnostic line to stderr instead; they still
// terminate.
func SetLogger(l *logiface.Logger[logiface.Event]) {
	logger.Store(l)
}

// Log returns the currently installed logger, or nil if none was set.
func Log() *logiface.Logger[logiface.Event] {
	return logger.Load()
}

// SetAllocationFailureHook atomically swaps the allocation-failure hook.
func SetAllocationFailureHook(h AllocationFailureHook) {
	if h == nil {
		panic("diag: nil allocation-failure hook")
	}
	allocHook.Store(&h)
}

// AllocationFailure invokes the current allocation-failure hook. Never
// returns.
func AllocationFailure(size uintptr, where SourceLocation) {
	(*allocHook.Load())(size, where)
	panic("diag: allocation-failure hook returned") // unreachable by contract
}

// SetViolationHook atomically swaps the contract-violation hook.
func SetViolationHook(h ViolationHook) {
	if h == nil {
		panic("diag: nil violation hook")
	}
	violHook.Store(&h)
}

// Violation invokes the current contract-violation hook. Never returns.
func Violation(expression, explanation string, kind ViolationKind, where *SourceLocation) {
	(*violHook.Load())(expression, explanation, kind, where)
	panic("diag: violation hook returned") // unreachable by contract
}

// Precondition checks cond and, if false, reports a precondition violation
// naming expression, attributing it to the caller's source location.
func Precondition(cond bool, expression, explanation string) {
	if cond {
		return
	}
	where := Here(1)
	Violation(expression, explanation, KindPrecondition, &where)
}

// Assert checks cond and, if false, reports an assertion failure.
func Assert(cond bool, expression, explanation string) {
	if cond {
		return
	}
	where := Here(1)
	Violation(expression, explanation, KindAssertion, &where)
}

func defaultAllocationFailureHook(size uintptr, where SourceLocation) {
	limit := effectiveMemLimit()
	if l := Log(); l != nil {
		l.Emerg().
			Uint64(`requested_bytes`, uint64(size)).
			Int64(`go_memlimit_bytes`, limit).
			Str(`where`, where.String()).
			Log("allocation failure")
	} else {
		fmt.Fprintf(os.Stderr, "fatal: allocation of %d bytes failed at %s (GOMEMLIMIT=%d)\n", size, where, limit)
	}
	OsExit(1)
}

func defaultViolationHook(expression, explanation string, kind ViolationKind, where *SourceLocation) {
	loc := "<unknown>"
	if where != nil {
		loc = where.String()
	}
	if l := Log(); l != nil {
		l.Emerg().
			Str(`kind`, kind.String()).
			Str(`expression`, expression).
			Str(`explanation`, explanation).
			Str(`where`, loc).
			Log("contract violation")
	} else {
		fmt.Fprintf(os.Stderr, "fatal: %s violated: %s (%s) at %s\n", kind, expression, explanation, loc)
	}
	OsExit(1)
}
