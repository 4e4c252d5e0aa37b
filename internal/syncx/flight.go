// Package syncx provides extended synchronization primitives
package syncx

import "sync/atomic"

// Flight is a single-flight guard: at most one holder at a time, extra
// acquisitions are rejected rather than queued. Acquisition never blocks.
type Flight struct {
	busy atomic.Bool
}

// TryAcquire attempts to take the guard without blocking.
// Returns true if acquired; the caller must Release exactly once.
func (f *Flight) TryAcquire() bool {
	return f.busy.CompareAndSwap(false, true)
}

// Release frees the guard for the next TryAcquire.
func (f *Flight) Release() {
	f.busy.Store(false)
}

// Busy reports whether the guard is currently held.
func (f *Flight) Busy() bool {
	return f.busy.Load()
}
