package anyval

// WeakAny is a non-owning, reference-counted handle to a SharedAny's
// control block: it keeps the control block (not the value) alive, and
// can attempt to upgrade to a strong reference via TryLock.
type WeakAny struct {
	ctl *sharedControl
}

// FromShared returns a new weak reference to s's control block, per
// §4.10's from_sany.
func FromShared(s *SharedAny) *WeakAny {
	s.ctl.weak.Add(1)
	return &WeakAny{ctl: s.ctl}
}

// TryLock attempts to upgrade w to a strong reference, via a CAS loop
// that only increments strong while it's still positive (so a weak
// reference can never resurrect an already-destroyed value), per
// §4.10's try_lock.
func (w *WeakAny) TryLock() (*SharedAny, bool) {
	for {
		cur := w.ctl.strong.Load()
		if cur <= 0 {
			return nil, false
		}
		if w.ctl.strong.CompareAndSwap(cur, cur+1) {
			return &SharedAny{ctl: w.ctl}, true
		}
	}
}

// TryLockConsume is TryLock, but on success also releases w's own weak
// reference — the successful upgrade consumes it, per try_lock_consume.
// w must not be used again after a successful call.
func (w *WeakAny) TryLockConsume() (*SharedAny, bool) {
	s, ok := w.TryLock()
	if ok {
		w.ctl.releaseWeak()
		w.ctl = nil
	}
	return s, ok
}

// Release drops this weak reference.
func (w *WeakAny) Release() {
	if w.ctl != nil {
		w.ctl.releaseWeak()
		w.ctl = nil
	}
}
