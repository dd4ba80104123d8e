package world

import (
	"github.com/nebulouslabs/blockserver/pool"
	siasync "github.com/nebulouslabs/blockserver/sync"
	"github.com/nebulouslabs/blockserver/types"
)

// Scope is the granularity a WorldLock request is made at.
type Scope int

const (
	// ScopeWorld conflicts with every other request.
	ScopeWorld Scope = iota
	// ScopeColumn conflicts with requests naming the same column or any
	// block within it.
	ScopeColumn
	// ScopeBlock conflicts with requests naming the same block or the
	// column containing it.
	ScopeBlock
)

// Footprint names what a WorldLock request touches.
type Footprint struct {
	Scope  Scope
	Column types.ColumnID
	Block  types.BlockID
}

func (f Footprint) columnID() types.ColumnID {
	if f.Scope == ScopeBlock {
		return f.Block.ColumnID()
	}
	return f.Column
}

// conflicts reports whether f and g's footprints overlap, per the
// contention rule: world vs. anything, column vs. itself or any block
// inside it, block vs. itself or the column containing it.
func (f Footprint) conflicts(g Footprint) bool {
	if f.Scope == ScopeWorld || g.Scope == ScopeWorld {
		return true
	}
	if f.columnID() != g.columnID() {
		return false
	}
	if f.Scope == ScopeColumn || g.Scope == ScopeColumn {
		return true
	}
	return f.Block == g.Block
}

type ticket struct {
	footprint Footprint
	granted   chan struct{}
}

// WorldLock is a fair, footprint-based lock over {world, columns,
// blocks}. Contending requests are granted strictly in arrival order;
// non-contending requests proceed concurrently but never jump ahead of
// an earlier request that is still blocked. The queue itself is guarded
// by the teacher's TryMutex rather than a plain sync.Mutex, since every
// other concurrency primitive in this module is built on the same
// kept-from-the-teacher sync package.
type WorldLock struct {
	mu      siasync.TryMutex
	holders []Footprint
	queue   []*ticket
}

// NewWorldLock returns an empty WorldLock.
func NewWorldLock() *WorldLock {
	return &WorldLock{}
}

// Handle is returned by Acquire/AcquireAsync and released by Release.
type Handle struct {
	wl        *WorldLock
	footprint Footprint
}

// Acquire blocks until fp can be granted and returns a Handle to release
// it.
func (wl *WorldLock) Acquire(fp Footprint) *Handle {
	t := &ticket{footprint: fp, granted: make(chan struct{})}

	wl.mu.Lock()
	wl.queue = append(wl.queue, t)
	wl.tryGrantLocked()
	wl.mu.Unlock()

	<-t.granted
	return &Handle{wl: wl, footprint: fp}
}

// AcquireAsync enqueues fp and invokes cb on the pool once it is
// granted, without blocking the calling goroutine.
func (wl *WorldLock) AcquireAsync(fp Footprint, p *pool.Pool, cb func(*Handle)) {
	t := &ticket{footprint: fp, granted: make(chan struct{})}

	wl.mu.Lock()
	wl.queue = append(wl.queue, t)
	wl.tryGrantLocked()
	wl.mu.Unlock()

	go func() {
		<-t.granted
		p.Spawn(func() error {
			cb(&Handle{wl: wl, footprint: fp})
			return nil
		})
	}()
}

// Release relinquishes h's footprint and grants any queued requests that
// become eligible as a result.
func (h *Handle) Release() {
	h.wl.mu.Lock()
	for i, f := range h.wl.holders {
		if f == h.footprint {
			h.wl.holders = append(h.wl.holders[:i], h.wl.holders[i+1:]...)
			break
		}
	}
	h.wl.tryGrantLocked()
	h.wl.mu.Unlock()
}

// tryGrantLocked grants queued tickets from the front as long as they
// don't conflict with anything currently held. It stops at the first
// conflicting ticket, preserving strict FIFO: a non-contending request
// further back in the queue never jumps ahead of one that is blocked.
func (wl *WorldLock) tryGrantLocked() {
	for len(wl.queue) > 0 {
		head := wl.queue[0]
		if conflictsWithAny(head.footprint, wl.holders) {
			return
		}
		wl.holders = append(wl.holders, head.footprint)
		close(head.granted)
		wl.queue = wl.queue[1:]
	}
}

func conflictsWithAny(fp Footprint, holders []Footprint) bool {
	for _, h := range holders {
		if fp.conflicts(h) {
			return true
		}
	}
	return false
}
