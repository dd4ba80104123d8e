package lock

import (
	"testing"
	"time"
)

func TestLockUnlock(t *testing.T) {
	l := New(time.Second)
	counter := l.Lock("test")
	l.Unlock("test", counter)

	counter = l.RLock("test")
	l.RUnlock("test", counter)
}

func TestLockExcludesConcurrentWriters(t *testing.T) {
	l := New(time.Second)
	counter := l.Lock("writer-1")

	done := make(chan struct{})
	go func() {
		c := l.Lock("writer-2")
		l.Unlock("writer-2", c)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("second writer should not have acquired the lock yet")
	case <-time.After(50 * time.Millisecond):
	}

	l.Unlock("writer-1", counter)
	<-done
}

func TestLockExpiresAfterMaxLockTime(t *testing.T) {
	l := New(10 * time.Millisecond)
	l.Lock("stuck")

	c2 := l.Lock("unblocks-after-timeout")
	l.Unlock("unblocks-after-timeout", c2)
}
