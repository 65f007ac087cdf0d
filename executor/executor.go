// Package executor implements the work-stealing thread-pool executor
// described by §4.3: a fixed-size vector of workers, each with its own
// queue, a global queue for submissions from outside any worker, and a
// monotonic work-epoch word used to put idle workers to sleep and wake them
// on publish.
//
// Go's scheduler already multiplexes goroutines over OS threads, so
// "worker" here is a goroutine pinned (for the pool's lifetime) to one
// deque; GOMAXPROCS many of them give the same parallelism envelope the
// original design assumes, and New calls maxprocs.Set before reading
// GOMAXPROCS so that count stays honest under a container CPU quota.
package executor

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"go.uber.org/automaxprocs/maxprocs"

	"github.com/joeycumines/logiface"
	"golang.org/x/sync/semaphore"
)

// Handle is a unit of scheduled work — the Go analogue of a resumable
// coroutine handle. It must not block indefinitely; suspension points
// (scheduling another Handle, awaiting a Task/Flag/Mutex) return control to
// the worker instead. The ctx passed in identifies the worker currently
// running it, so a Handle that reposts itself (or spawns more work) via
// Post/Schedule using this same ctx takes the fast, own-queue path instead
// of falling back to the global queue.
type Handle func(ctx context.Context)

// PostResult is the typed outcome of Post, per §7's error-handling table.
type PostResult int

const (
	Success PostResult = iota
	FailStopped
	FailMemory
	FailDeadlinePassed
	FailNotImplemented
)

func (r PostResult) String() string {
	switch r {
	case Success:
		return "success"
	case FailStopped:
		return "fail_stopped"
	case FailMemory:
		return "fail_memory"
	case FailDeadlinePassed:
		return "fail_deadline_passed"
	case FailNotImplemented:
		return "fail_not_implemented"
	default:
		return "unknown"
	}
}

// stop phase constants: 0 -> request, 1 -> drain, 2 -> joined.
const (
	stopNone = iota
	stopRequested
	stopJoined
)

// Executor is a fixed-size work-stealing pool. The zero value is not
// usable; construct one with New.
type Executor struct {
	workers []*worker
	global  globalQueue

	epoch    atomic.Uint64
	stopping atomic.Int32

	wakeMu sync.Mutex
	wakeCv *sync.Cond

	wg  sync.WaitGroup
	log *logiface.Logger[logiface.Event]

	// globalSem, if non-nil, bounds the global queue's depth: Post onto the
	// global queue must acquire a permit, released once the worker that
	// eventually pops it finishes running it. Worker-owned fast-path posts
	// are never bounded by this (they never touch the global queue).
	globalSem *semaphore.Weighted
}

type worker struct {
	id int
	q  deque
	ex *Executor
}

// Option configures an Executor at construction.
type Option func(*config)

type config struct {
	workers          int
	log              *logiface.Logger[logiface.Event]
	globalQueueLimit int64
}

// WithWorkers overrides the worker count; n <= 0 falls back to
// runtime.GOMAXPROCS(0) (which New arranges to be container-CPU-quota
// aware).
func WithWorkers(n int) Option { return func(c *config) { c.workers = n } }

// WithLogger installs a structured logger for diagnostics: a failed
// automaxprocs adjustment, panics recovered from handles, and work dropped
// by Stop. A nil logger disables logging.
func WithLogger(l *logiface.Logger[logiface.Event]) Option { return func(c *config) { c.log = l } }

// WithGlobalQueueCapacity bounds the number of handles allowed to sit on
// the global queue (submissions from outside any worker) at once. Posts
// that would exceed it fail with FailMemory instead of growing the queue
// unboundedly. n <= 0 means unbounded (the default).
func WithGlobalQueueCapacity(n int) Option {
	return func(c *config) { c.globalQueueLimit = int64(n) }
}

// New constructs and starts an Executor.
func New(opts ...Option) *Executor {
	var c config
	for _, o := range opts {
		o(&c)
	}
	n := c.workers
	if n <= 0 {
		if _, err := maxprocs.Set(); err != nil && c.log != nil {
			c.log.Warning().Err(err).Log("automaxprocs: failed to adjust GOMAXPROCS")
		}
		n = runtime.GOMAXPROCS(0)
	}
	if n < 1 {
		n = 1
	}

	e := &Executor{log: c.log}
	if c.globalQueueLimit > 0 {
		e.globalSem = semaphore.NewWeighted(c.globalQueueLimit)
	}
	e.wakeCv = sync.NewCond(&e.wakeMu)
	e.workers = make([]*worker, n)
	for i := range e.workers {
		e.workers[i] = &worker{id: i, ex: e}
	}

	e.wg.Add(n)
	for _, w := range e.workers {
		go e.run(w)
	}
	return e
}

// NumWorkers reports the pool's worker count.
func (e *Executor) NumWorkers() int { return len(e.workers) }

type workerCtxKey struct{}

func withWorker(ctx context.Context, w *worker) context.Context {
	return context.WithValue(ctx, workerCtxKey{}, w)
}

func fromContext(ctx context.Context, e *Executor) (*worker, bool) {
	if ctx == nil {
		return nil, false
	}
	w, ok := ctx.Value(workerCtxKey{}).(*worker)
	if !ok || w.ex != e {
		return nil, false
	}
	return w, true
}

// Post submits h for execution. If ctx identifies a worker goroutine of
// this Executor (i.e. h is being posted from code the pool is currently
// running), h is enqueued on that worker's own queue (the fast path from
// §4.3); otherwise it goes on the global queue, subject to
// WithGlobalQueueCapacity's bound.
func (e *Executor) Post(ctx context.Context, h Handle) PostResult {
	if e.stopping.Load() != stopNone {
		return FailStopped
	}
	if w, ok := fromContext(ctx, e); ok {
		w.q.pushOwn(h)
	} else {
		if e.globalSem != nil {
			if !e.globalSem.TryAcquire(1) {
				return FailMemory
			}
			h = e.releasingHandle(h)
		}
		e.global.push(h)
	}
	e.wakeMu.Lock()
	e.epoch.Add(1)
	e.wakeCv.Broadcast()
	e.wakeMu.Unlock()
	return Success
}

// releasingHandle wraps h to release one globalSem permit once h has run,
// whether or not it panicked.
func (e *Executor) releasingHandle(h Handle) Handle {
	return func(ctx context.Context) {
		defer e.globalSem.Release(1)
		h(ctx)
	}
}

// PostDeadline is the base executor's answer to a deadline-qualified post:
// always FailNotImplemented, per §4.3. The scheduler package supplies a
// real scheduled-post implementation.
func (e *Executor) PostDeadline(context.Context, Handle) PostResult {
	return FailNotImplemented
}

// Schedule posts cont, the caller's continuation, and returns Post's
// result — the §4.3 schedule()/yield() suspension point. Since Go lacks
// first-class coroutine suspension, a running Handle expresses "the rest of
// my work" as cont and then returns, yielding control back to the worker;
// called with that Handle's ctx, cont takes the own-queue fast path.
func (e *Executor) Schedule(ctx context.Context, cont Handle) PostResult {
	return e.Post(ctx, cont)
}

// Yield is an alias for Schedule, per §4.3.
func (e *Executor) Yield(ctx context.Context, cont Handle) PostResult {
	return e.Schedule(ctx, cont)
}

func (e *Executor) run(w *worker) {
	defer e.wg.Done()
	ctx := withWorker(context.Background(), w)

	for {
		if e.stopping.Load() == stopJoined {
			return
		}

		// Snapshot the epoch before scanning: sleep only parks if it is
		// still unchanged by the time wakeMu is held, so a Post landing
		// anywhere between this line and sleep's lock acquisition is never
		// missed.
		epoch := e.epoch.Load()

		if h := w.q.popOwn(); h != nil {
			e.exec(ctx, w, h)
			continue
		}
		if h := e.global.pop(); h != nil {
			e.exec(ctx, w, h)
			continue
		}
		if h := e.steal(w); h != nil {
			e.exec(ctx, w, h)
			continue
		}

		if e.stopping.Load() == stopJoined {
			return
		}
		e.sleep(epoch)
	}
}

// exec runs h with ctx, recovering and logging any panic so one bad Handle
// never takes down a worker goroutine.
func (e *Executor) exec(ctx context.Context, w *worker, h Handle) {
	defer func() {
		if r := recover(); r != nil && e.log != nil {
			e.log.Err().Int(`worker`, w.id).Log("panic recovered in executor handle")
		}
	}()
	h(ctx)
}

// steal makes one pass over every other worker, in rotation starting just
// after w, taking the first available handle.
func (e *Executor) steal(w *worker) Handle {
	n := len(e.workers)
	for i := 1; i < n; i++ {
		victim := e.workers[(w.id+i)%n]
		if h := victim.q.steal(); h != nil {
			return h
		}
	}
	return nil
}

// sleep parks the worker until either the pool stops or the work epoch
// moves past snapshot (the value observed before the caller's queue scan).
// Post and Stop both bump the epoch and Broadcast while holding wakeMu, so
// checking epoch against snapshot under the same lock is race-free: if a
// post already landed and bumped the epoch since snapshot was taken, that
// is caught here instead of being missed while nothing was parked yet.
func (e *Executor) sleep(snapshot uint64) {
	e.wakeMu.Lock()
	if e.stopping.Load() == stopNone && e.epoch.Load() == snapshot {
		e.wakeCv.Wait()
	}
	e.wakeMu.Unlock()
}

// OnWorker reports whether ctx identifies one of this Executor's own
// worker goroutines (i.e. it was handed to a currently-running Handle).
func (e *Executor) OnWorker(ctx context.Context) bool {
	_, ok := fromContext(ctx, e)
	return ok
}

// Stop requests the pool stop, idempotently, dropping any pending work
// (global and per-worker queues are not drained), then blocks until every
// worker goroutine has exited. It must never be called from a goroutine
// the pool itself is running (that would deadlock waiting on itself); ctx,
// if it identifies one of this Executor's workers, triggers a precondition
// panic rather than a hang.
func (e *Executor) Stop(ctx context.Context) {
	if _, onWorker := fromContext(ctx, e); onWorker {
		panic("executor: Stop must not be called from a worker goroutine of the same Executor")
	}

	if !e.stopping.CompareAndSwap(stopNone, stopRequested) {
		e.wg.Wait() // another caller already requested/joined; just wait
		return
	}

	e.stopping.Store(stopJoined)
	e.wakeMu.Lock()
	e.epoch.Add(1)
	e.wakeCv.Broadcast()
	e.wakeMu.Unlock()

	e.wg.Wait()

	dropped := e.global.drop()
	for _, w := range e.workers {
		dropped += w.q.len()
		w.q.s = nil
	}
	if e.log != nil && dropped > 0 {
		e.log.Notice().Int(`dropped`, dropped).Log("executor stopped with pending work dropped")
	}
}

// Epoch returns the current work-epoch value, for tests/diagnostics.
func (e *Executor) Epoch() uint64 { return e.epoch.Load() }
