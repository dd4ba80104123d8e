package sync

import (
	"sync"
	"time"
)

// TryMutex is a mutex that additionally supports non-blocking and timed
// acquisition, implemented as a single-slot token channel: a token present
// in the channel means the mutex is unlocked. The world lock guards its
// ticket queue with one, using only Lock and Unlock.
type TryMutex struct {
	token chan struct{}
	once  sync.Once
}

func (tm *TryMutex) init() {
	tm.once.Do(func() {
		tm.token = make(chan struct{}, 1)
		tm.token <- struct{}{}
	})
}

// Lock blocks until the mutex is available.
func (tm *TryMutex) Lock() {
	tm.init()
	<-tm.token
}

// Unlock releases the mutex. It panics if the mutex is not locked.
func (tm *TryMutex) Unlock() {
	tm.init()
	select {
	case tm.token <- struct{}{}:
	default:
		panic("sync: unlock of unlocked TryMutex")
	}
}

// TryLock attempts to acquire the mutex without blocking, reporting
// whether it succeeded.
func (tm *TryMutex) TryLock() bool {
	tm.init()
	select {
	case <-tm.token:
		return true
	default:
		return false
	}
}

// TryLockTimed attempts to acquire the mutex, giving up after timeout has
// elapsed.
func (tm *TryMutex) TryLockTimed(timeout time.Duration) bool {
	tm.init()
	select {
	case <-tm.token:
		return true
	case <-time.After(timeout):
		return false
	}
}
