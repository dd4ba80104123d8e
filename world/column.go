// Package world implements the column store: the per-column life cycle
// (Loading -> Generating/Generated -> Populating -> Populated, plus
// Saving/Unloaded), interest-counted references, the fair footprint-based
// world lock, and the periodic maintenance sweep that saves dirty columns
// and evicts idle ones.
package world

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nebulouslabs/blockserver/lock"
	"github.com/nebulouslabs/blockserver/types"
)

const columnLockTimeout = 30 * time.Second

// columnOrder ranks each steady FSM state so WaitUntil can tell whether a
// column has reached or passed a target.
var columnOrder = map[types.ColumnState]int{
	types.ColumnLoading:    0,
	types.ColumnGenerating: 1,
	types.ColumnGenerated:  2,
	types.ColumnPopulating: 3,
	types.ColumnPopulated:  4,
}

func reached(cur, target types.ColumnState) bool {
	if cur == types.ColumnUnloaded {
		return true
	}
	if cur == types.ColumnSaving {
		return false
	}
	return columnOrder[cur] >= columnOrder[target]
}

// Column is a world column's live, concurrency-safe handle: its FSM
// state, interest refcount, subscriber set, and the actual block/biome
// data behind a deadlock-diagnosing lock descended from the teacher's
// fixed-size-blob sector lock.
type Column struct {
	id types.ColumnID

	fsmMu    sync.Mutex
	fsmCond  *sync.Cond
	state    types.ColumnState
	driving  bool
	dirty    bool
	interest int

	subsMu      sync.Mutex
	subscribers map[uuid.UUID]struct{}

	popMu        sync.Mutex
	populatingBy map[int64]struct{}

	dataLock *lock.Lock
	data     types.ColumnData
}

func newColumn(id types.ColumnID) *Column {
	c := &Column{
		id:           id,
		state:        types.ColumnLoading,
		subscribers:  make(map[uuid.UUID]struct{}),
		populatingBy: make(map[int64]struct{}),
		dataLock:     lock.New(columnLockTimeout),
	}
	c.fsmCond = sync.NewCond(&c.fsmMu)
	return c
}

// ID returns the column's coordinates and dimension.
func (c *Column) ID() types.ColumnID { return c.id }

// State returns the column's current FSM state.
func (c *Column) State() types.ColumnState {
	c.fsmMu.Lock()
	defer c.fsmMu.Unlock()
	return c.state
}

// WaitUntil blocks until the column reaches target or a terminal state.
// If nobody else is currently driving the column's FSM forward, it
// instead returns drive=true immediately: the caller must push the FSM
// itself (World.process) and call WaitUntil again.
func (c *Column) WaitUntil(target types.ColumnState) (drive bool) {
	c.fsmMu.Lock()
	defer c.fsmMu.Unlock()
	for {
		if reached(c.state, target) {
			return false
		}
		if !c.driving {
			c.driving = true
			return true
		}
		c.fsmCond.Wait()
	}
}

// finishDriving releases driving status and wakes every waiter so each
// can re-check whether its target has now been reached.
func (c *Column) finishDriving() {
	c.fsmMu.Lock()
	c.driving = false
	c.fsmCond.Broadcast()
	c.fsmMu.Unlock()
}

// setState advances the column's FSM state and wakes every waiter.
func (c *Column) setState(s types.ColumnState) {
	c.fsmMu.Lock()
	c.state = s
	c.fsmCond.Broadcast()
	c.fsmMu.Unlock()
}

// AddInterest increments the column's reference count. Every AddInterest
// must be matched by a RemoveInterest.
func (c *Column) AddInterest() {
	c.fsmMu.Lock()
	c.interest++
	c.fsmMu.Unlock()
}

// RemoveInterest decrements the column's reference count.
func (c *Column) RemoveInterest() {
	c.fsmMu.Lock()
	c.interest--
	c.fsmMu.Unlock()
}

// Idle reports whether the column has no outstanding interest and no
// unsaved changes — the condition maintenance uses to decide eviction.
func (c *Column) Idle() bool {
	c.fsmMu.Lock()
	defer c.fsmMu.Unlock()
	return c.interest == 0 && !c.dirty
}

func (c *Column) markDirty() {
	c.fsmMu.Lock()
	c.dirty = true
	c.fsmMu.Unlock()
}

func (c *Column) isDirty() bool {
	c.fsmMu.Lock()
	defer c.fsmMu.Unlock()
	return c.dirty
}

// snapshotAndClean copies the column's data and clears its dirty flag
// under the data lock, matching the maintenance sweep's "copy under
// lock, persist outside it" sequencing.
func (c *Column) snapshotAndClean() types.ColumnData {
	ctr := c.dataLock.Lock("world.Column.snapshotAndClean")
	snap := c.data
	c.dataLock.Unlock("world.Column.snapshotAndClean", ctr)
	c.fsmMu.Lock()
	c.dirty = false
	c.fsmMu.Unlock()
	return snap
}

func (c *Column) populatedFlag() bool {
	return c.State() == types.ColumnPopulated
}

func (c *Column) beginPopulating(sessionID int64) {
	c.popMu.Lock()
	c.populatingBy[sessionID] = struct{}{}
	c.popMu.Unlock()
}

func (c *Column) endPopulating(sessionID int64) {
	c.popMu.Lock()
	delete(c.populatingBy, sessionID)
	c.popMu.Unlock()
}

// populating reports whether sessionID is currently populating this
// column — the basis for the Generated-only neighbor-read exception.
func (c *Column) populating(sessionID int64) bool {
	c.popMu.Lock()
	defer c.popMu.Unlock()
	_, ok := c.populatingBy[sessionID]
	return ok
}

// AddSubscriber registers client id for async block-change notification.
func (c *Column) AddSubscriber(id uuid.UUID) {
	c.subsMu.Lock()
	c.subscribers[id] = struct{}{}
	c.subsMu.Unlock()
}

// RemoveSubscriber drops client id from the subscriber set. graceful is
// informational only at this layer — the caller is responsible for
// sending an unload-column packet before calling this when graceful is
// true; a forced removal sends nothing.
func (c *Column) RemoveSubscriber(id uuid.UUID, graceful bool) {
	c.subsMu.Lock()
	delete(c.subscribers, id)
	c.subsMu.Unlock()
}

// Subscribers returns a snapshot of the current subscriber set.
func (c *Column) Subscribers() []uuid.UUID {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	out := make([]uuid.UUID, 0, len(c.subscribers))
	for id := range c.subscribers {
		out = append(out, id)
	}
	return out
}

// Block reads the block at local coordinates. Valid once the caller has
// confirmed the column has reached at least Generated.
func (c *Column) Block(x, y, z int) types.Block {
	ctr := c.dataLock.RLock("world.Column.Block")
	defer c.dataLock.RUnlock("world.Column.Block", ctr)
	return c.data.Block(x, y, z)
}

// SetBlock writes the block at local coordinates and marks the column
// dirty. The caller must already hold the WorldLock footprint covering
// this block.
func (c *Column) SetBlock(x, y, z int, b types.Block) {
	ctr := c.dataLock.Lock("world.Column.SetBlock")
	c.data.SetBlock(x, y, z, b)
	c.dataLock.Unlock("world.Column.SetBlock", ctr)
	c.markDirty()
}

// Biome reads the biome at local (x, z).
func (c *Column) Biome(x, z int) byte {
	ctr := c.dataLock.RLock("world.Column.Biome")
	defer c.dataLock.RUnlock("world.Column.Biome", ctr)
	return c.data.Biome(x, z)
}

// SetBiome writes the biome at local (x, z) and marks the column dirty.
func (c *Column) SetBiome(x, z int, biome byte) {
	ctr := c.dataLock.Lock("world.Column.SetBiome")
	c.data.SetBiome(x, z, biome)
	c.dataLock.Unlock("world.Column.SetBiome", ctr)
	c.markDirty()
}
