package world

import "github.com/nebulouslabs/blockserver/types"

// WorldHandle is what a populator uses to read and write neighboring
// columns. It carries the populate session ID so recursive access during
// population only waits for its targets to reach Generated, never
// Populated — the documented exception that avoids infinite recursion
// when neighboring populators would otherwise wait on each other.
type WorldHandle struct {
	world     *World
	sessionID int64
}

// Block implements generate.WorldHandle.
func (h *WorldHandle) Block(id types.BlockID) types.Block {
	b, err := h.world.getBlock(id, h.sessionID)
	if err != nil {
		return types.Air
	}
	return b
}

// SetBlock implements generate.WorldHandle.
func (h *WorldHandle) SetBlock(id types.BlockID, b types.Block) {
	h.world.setBlock(id, b, h.sessionID)
}
