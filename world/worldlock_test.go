package world

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nebulouslabs/blockserver/types"
)

func TestWorldLockAllowsNonConflictingFootprintsConcurrently(t *testing.T) {
	wl := NewWorldLock()
	a := wl.Acquire(Footprint{Scope: ScopeBlock, Block: types.BlockID{X: 0, Y: 0, Z: 0}})
	done := make(chan struct{})
	go func() {
		b := wl.Acquire(Footprint{Scope: ScopeBlock, Block: types.BlockID{X: 1, Y: 0, Z: 0}})
		b.Release()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("non-conflicting acquire blocked on an unrelated footprint")
	}
	a.Release()
}

func TestWorldLockBlocksConflictingFootprint(t *testing.T) {
	wl := NewWorldLock()
	block := types.BlockID{X: 2, Y: 0, Z: 2}
	a := wl.Acquire(Footprint{Scope: ScopeBlock, Block: block})

	acquired := make(chan struct{})
	go func() {
		b := wl.Acquire(Footprint{Scope: ScopeBlock, Block: block})
		close(acquired)
		b.Release()
	}()

	select {
	case <-acquired:
		t.Fatal("conflicting footprint acquired while holder was still active")
	case <-time.After(50 * time.Millisecond):
	}

	a.Release()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("conflicting footprint never granted after release")
	}
}

func TestWorldLockGrantsStrictFIFOOverNonConflicting(t *testing.T) {
	wl := NewWorldLock()
	col := types.ColumnID{X: 0, Z: 0}
	blockInCol := types.BlockID{X: 3, Y: 0, Z: 3}

	holder := wl.Acquire(Footprint{Scope: ScopeColumn, Column: col})

	var order []int
	var mu sync.Mutex
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		h := wl.Acquire(Footprint{Scope: ScopeBlock, Block: blockInCol})
		mu.Lock()
		order = append(order, 1)
		mu.Unlock()
		h.Release()
	}()
	time.Sleep(20 * time.Millisecond)

	wg.Add(1)
	go func() {
		defer wg.Done()
		h := wl.Acquire(Footprint{Scope: ScopeWorld})
		mu.Lock()
		order = append(order, 2)
		mu.Unlock()
		h.Release()
	}()
	time.Sleep(20 * time.Millisecond)

	holder.Release()
	wg.Wait()

	require.Equal(t, []int{1, 2}, order)
}

func TestFootprintConflicts(t *testing.T) {
	col := types.ColumnID{X: 5, Z: 5}
	blk := types.BlockID{X: 5*16 + 1, Y: 0, Z: 5 * 16}

	world := Footprint{Scope: ScopeWorld}
	require.True(t, world.conflicts(Footprint{Scope: ScopeBlock, Block: blk}))

	colFP := Footprint{Scope: ScopeColumn, Column: col}
	require.True(t, colFP.conflicts(Footprint{Scope: ScopeBlock, Block: blk}))

	other := Footprint{Scope: ScopeBlock, Block: types.BlockID{X: 100, Y: 0, Z: 100}}
	require.False(t, colFP.conflicts(other))
}
