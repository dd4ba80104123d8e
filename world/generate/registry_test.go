package generate

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nebulouslabs/blockserver/types"
)

type constGenerator struct{ block types.Block }

func (g constGenerator) Block(types.BlockID) types.Block     { return g.block }
func (g constGenerator) Biome(int32, int32, int8) byte { return 0 }

func TestGeneratorFallsBackToDefault(t *testing.T) {
	r := NewRegistry()
	r.RegisterDefaultGenerator(0, constGenerator{block: types.NewBlock(1, 0, 0, 0)})

	g, err := r.Generator("flat", 0)
	require.NoError(t, err)
	require.Equal(t, uint16(1), g.Block(types.BlockID{}).TypeID())
}

func TestGeneratorSpecificOverridesDefault(t *testing.T) {
	r := NewRegistry()
	r.RegisterDefaultGenerator(0, constGenerator{block: types.NewBlock(1, 0, 0, 0)})
	r.RegisterGenerator("flat", 0, constGenerator{block: types.NewBlock(2, 0, 0, 0)})

	g, err := r.Generator("flat", 0)
	require.NoError(t, err)
	require.Equal(t, uint16(2), g.Block(types.BlockID{}).TypeID())
}

func TestGeneratorMissReturnsErrNoGenerator(t *testing.T) {
	r := NewRegistry()
	_, err := r.Generator("flat", 5)
	require.Error(t, err)
}

type priorityPopulator struct {
	name     string
	priority int
	order    *[]string
}

func (p priorityPopulator) Priority() int { return p.priority }
func (p priorityPopulator) Populate(ev PopulateEvent) {
	*p.order = append(*p.order, p.name)
}

func TestPopulatorsRunInPriorityOrder(t *testing.T) {
	r := NewRegistry()
	var order []string
	r.RegisterPopulator(0, priorityPopulator{name: "c", priority: 30, order: &order})
	r.RegisterPopulator(0, priorityPopulator{name: "a", priority: 10, order: &order})
	r.RegisterPopulator(0, priorityPopulator{name: "b", priority: 20, order: &order})

	for _, p := range r.Populators(0) {
		p.Populate(PopulateEvent{})
	}
	require.Equal(t, []string{"a", "b", "c"}, order)
}

func TestFlatGeneratorLayersStack(t *testing.T) {
	g := FlatGenerator{
		Layers: []FlatLayer{{Height: 1, BlockID: 7}, {Height: 3, BlockID: 3}, {Height: 1, BlockID: 2}},
		Biome:  1,
	}
	require.Equal(t, uint16(7), g.Block(types.BlockID{Y: 0}).TypeID())
	require.Equal(t, uint16(3), g.Block(types.BlockID{Y: 1}).TypeID())
	require.Equal(t, uint16(3), g.Block(types.BlockID{Y: 3}).TypeID())
	require.Equal(t, uint16(2), g.Block(types.BlockID{Y: 4}).TypeID())
	require.Equal(t, uint16(0), g.Block(types.BlockID{Y: 5}).TypeID())
	require.Equal(t, byte(1), g.Biome(0, 0, 0))
}
