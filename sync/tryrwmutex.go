package sync

import (
	"sync"
	"time"
)

// TryRWMutex is a reader/writer mutex built on top of TryMutex: the first
// reader to arrive acquires the underlying write lock on behalf of all
// readers, and the last reader to leave releases it. This gives the type
// TryLock/TryLockTimed semantics on the write side for free, which plain
// sync.RWMutex does not offer. No package outside sync uses it.
type TryRWMutex struct {
	writeLock TryMutex

	readersMu sync.Mutex
	readers   int
}

// Lock blocks until the write lock is available.
func (trw *TryRWMutex) Lock() {
	trw.writeLock.Lock()
}

// Unlock releases the write lock.
func (trw *TryRWMutex) Unlock() {
	trw.writeLock.Unlock()
}

// TryLock attempts to acquire the write lock without blocking.
func (trw *TryRWMutex) TryLock() bool {
	return trw.writeLock.TryLock()
}

// TryLockTimed attempts to acquire the write lock, giving up after
// timeout has elapsed.
func (trw *TryRWMutex) TryLockTimed(timeout time.Duration) bool {
	return trw.writeLock.TryLockTimed(timeout)
}

// RLock blocks until a read lock is available.
func (trw *TryRWMutex) RLock() {
	trw.readersMu.Lock()
	defer trw.readersMu.Unlock()
	if trw.readers == 0 {
		trw.writeLock.Lock()
	}
	trw.readers++
}

// TryRLock attempts to acquire a read lock without blocking.
func (trw *TryRWMutex) TryRLock() bool {
	trw.readersMu.Lock()
	defer trw.readersMu.Unlock()
	if trw.readers == 0 {
		if !trw.writeLock.TryLock() {
			return false
		}
	}
	trw.readers++
	return true
}

// RUnlock releases a read lock, releasing the underlying write lock once
// the last reader has left.
func (trw *TryRWMutex) RUnlock() {
	trw.readersMu.Lock()
	defer trw.readersMu.Unlock()
	trw.readers--
	if trw.readers == 0 {
		trw.writeLock.Unlock()
	}
}
