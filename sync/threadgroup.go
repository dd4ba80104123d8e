// Package sync extends the standard library's sync primitives with the
// coordination types used throughout the server: ThreadGroup (bounded
// goroutine lifetimes tied to a shutdown signal) and TryMutex/TryRWMutex
// (mutexes that also support non-blocking and timed acquisition; the
// world lock guards its arrival-ordered queue with a TryMutex).
package sync

import (
	"errors"
	"sync"
)

// ErrStopped is returned by Add and Stop when the ThreadGroup has already
// been stopped.
var ErrStopped = errors.New("thread group already stopped")

// ThreadGroup is a one-shot WaitGroup with a shutdown signal. A module
// calls Add before launching a goroutine and Done when it exits; Stop
// closes the shutdown channel, runs any OnStop callbacks (which typically
// unblock the goroutines waiting on StopChan), waits for every
// outstanding Add to be matched by a Done, and finally runs any
// AfterStop callbacks against resources that must outlive the
// goroutines themselves (e.g. a log file).
type ThreadGroup struct {
	stopChan chan struct{}
	once     sync.Once

	mu           sync.Mutex
	stopped      bool
	onStopFns    []func()
	afterStopFns []func()

	wg sync.WaitGroup
}

func (tg *ThreadGroup) init() {
	tg.once.Do(func() {
		tg.stopChan = make(chan struct{})
	})
}

// StopChan returns a channel that is closed when Stop is called. Goroutines
// launched under the group should select on it alongside their own work.
func (tg *ThreadGroup) StopChan() chan struct{} {
	tg.init()
	return tg.stopChan
}

// isStopped reports whether Stop has been called.
func (tg *ThreadGroup) isStopped() bool {
	tg.init()
	select {
	case <-tg.stopChan:
		return true
	default:
		return false
	}
}

// Add increments the group's goroutine counter. It returns ErrStopped if
// the group has already been stopped, in which case the caller must not
// launch its goroutine.
func (tg *ThreadGroup) Add() error {
	tg.mu.Lock()
	defer tg.mu.Unlock()
	tg.init()
	if tg.stopped {
		return ErrStopped
	}
	tg.wg.Add(1)
	return nil
}

// Done decrements the group's goroutine counter. It must be called
// exactly once for every successful Add, typically via defer.
func (tg *ThreadGroup) Done() {
	tg.wg.Done()
}

// Flush blocks until every goroutine added so far has called Done,
// without stopping the group — further Add calls remain legal once
// Flush returns.
func (tg *ThreadGroup) Flush() error {
	tg.wg.Wait()
	return nil
}

// OnStop queues fn to run when Stop is called, before Stop waits for
// outstanding goroutines to finish. Functions are run in the reverse of
// their registration order, mirroring how resources are usually acquired
// and should be released. If the group is already stopped, fn runs
// immediately.
func (tg *ThreadGroup) OnStop(fn func()) {
	tg.mu.Lock()
	tg.init()
	stopped := tg.stopped
	if !stopped {
		tg.onStopFns = append(tg.onStopFns, fn)
	}
	tg.mu.Unlock()
	if stopped {
		fn()
	}
}

// AfterStop queues fn to run after Stop has waited for every outstanding
// goroutine to finish, in the reverse of registration order. If the
// group is already stopped, fn runs immediately.
func (tg *ThreadGroup) AfterStop(fn func()) {
	tg.mu.Lock()
	tg.init()
	stopped := tg.stopped
	if !stopped {
		tg.afterStopFns = append(tg.afterStopFns, fn)
	}
	tg.mu.Unlock()
	if stopped {
		fn()
	}
}

// Stop closes the shutdown channel, runs the OnStop callbacks, waits for
// every Add to be matched by a Done, then runs the AfterStop callbacks.
// It returns ErrStopped if called more than once.
func (tg *ThreadGroup) Stop() error {
	tg.mu.Lock()
	tg.init()
	if tg.stopped {
		tg.mu.Unlock()
		return ErrStopped
	}
	close(tg.stopChan)
	tg.stopped = true
	onStopFns := tg.onStopFns
	afterStopFns := tg.afterStopFns
	tg.mu.Unlock()

	for i := len(onStopFns) - 1; i >= 0; i-- {
		onStopFns[i]()
	}
	tg.wg.Wait()
	for i := len(afterStopFns) - 1; i >= 0; i-- {
		afterStopFns[i]()
	}
	return nil
}
