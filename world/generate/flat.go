package generate

import "github.com/nebulouslabs/blockserver/types"

// FlatLayer is one horizontal slab of a FlatGenerator's stack, measured
// in blocks starting immediately above the previous layer.
type FlatLayer struct {
	Height  int
	BlockID uint16
}

// FlatGenerator is the reference terrain generator: a fixed stack of
// horizontal layers repeated across every column, topped with air, and a
// single biome everywhere. It exists so the registry is exercised
// without requiring a real terrain algorithm.
type FlatGenerator struct {
	Layers []FlatLayer
	Biome  byte
}

// Block implements Generator.
func (g FlatGenerator) Block(id types.BlockID) types.Block {
	if id.Y < 0 {
		return types.Air
	}
	y := int(id.Y)
	base := 0
	for _, l := range g.Layers {
		if y < base+l.Height {
			return types.NewBlock(l.BlockID, 0, 0, 15)
		}
		base += l.Height
	}
	return types.Air
}

// Biome implements Generator.
func (g FlatGenerator) Biome(x, z int32, dimension int8) byte {
	return g.Biome
}
