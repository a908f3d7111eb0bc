package indexer

import "sync/atomic"

// IndexLock is a non-blocking flag marking a rebuild as running. Unlike the
// writer mutex it never waits: a caller that loses the race is told so.
type IndexLock struct {
	state atomic.Int32 // 0 = idle, 1 = held
}

// TryAcquire takes the lock if it is free and reports whether it did.
func (l *IndexLock) TryAcquire() bool {
	return l.state.CompareAndSwap(0, 1)
}

// Release frees the lock. Only the holder may call it.
func (l *IndexLock) Release() {
	l.state.Store(0)
}

// Held reports whether the lock is currently taken.
func (l *IndexLock) Held() bool {
	return l.state.Load() == 1
}
