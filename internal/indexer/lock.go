package indexer

import "sync/atomic"

// IndexLock provides non-blocking lock semantics using atomic
// operations. Holding it marks an indexing run as active.
type IndexLock struct {
	state atomic.Int32 // 0 = unlocked, 1 = locked
}

// TryAcquire attempts to acquire the lock without blocking. Returns
// true if the lock was successfully acquired.
func (l *IndexLock) TryAcquire() bool {
	return l.state.CompareAndSwap(0, 1)
}

// Release releases the lock. Must only be called by the goroutine that
// successfully acquired it.
func (l *IndexLock) Release() {
	l.state.Store(0)
}

// Locked reports whether the lock is currently held.
func (l *IndexLock) Locked() bool {
	return l.state.Load() == 1
}
