// Package generate implements the generator/populator registry: terrain
// generators and structure populators keyed by world type and dimension,
// looked up when a column's life cycle drives it from Loading through
// Generated to Populated.
package generate

import (
	"sort"
	"sync"

	"github.com/NebulousLabs/errors"

	"github.com/nebulouslabs/blockserver/protoerr"
	"github.com/nebulouslabs/blockserver/types"
)

// ErrNoGenerator is returned when no generator is registered for a
// (world type, dimension) pair and no dimension-default exists either.
var ErrNoGenerator = errors.Extend(errors.New("no generator registered for dimension"), protoerr.ErrNotFound)

// Generator produces terrain for one dimension: a block for every
// position a column touches it generates, and a biome for every (x, z)
// column position.
type Generator interface {
	Block(id types.BlockID) types.Block
	Biome(x, z int32, dimension int8) byte
}

// WorldHandle is the narrow interface populators use to read and write
// neighboring columns. It is defined here, not in world, so this package
// never imports world (world imports generate for the registry).
type WorldHandle interface {
	Block(id types.BlockID) types.Block
	SetBlock(id types.BlockID, b types.Block)
}

// PopulateEvent carries one populate invocation's target column and a
// handle for touching it and its neighbors.
type PopulateEvent struct {
	Column types.ColumnID
	Handle WorldHandle
}

// Populator decorates a generated column with structures that may span
// neighboring columns. Lower Priority values run first.
type Populator interface {
	Priority() int
	Populate(ev PopulateEvent)
}

type dimKey struct {
	worldType string
	dimension int8
}

// Registry maps (world type, dimension) to a Generator, falling back to
// a dimension-only default, and keeps each dimension's populators in
// stable priority order.
type Registry struct {
	mu         sync.RWMutex
	generators map[dimKey]Generator
	defaults   map[int8]Generator
	populators map[int8][]Populator
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		generators: make(map[dimKey]Generator),
		defaults:   make(map[int8]Generator),
		populators: make(map[int8][]Populator),
	}
}

// RegisterGenerator installs g for the exact (worldType, dimension) pair.
func (r *Registry) RegisterGenerator(worldType string, dimension int8, g Generator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generators[dimKey{worldType, dimension}] = g
}

// RegisterDefaultGenerator installs g as dimension's fallback generator,
// used when no world-type-specific generator is registered for it.
func (r *Registry) RegisterDefaultGenerator(dimension int8, g Generator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaults[dimension] = g
}

// Generator looks up the generator for (worldType, dimension), falling
// back to dimension's default, and returns ErrNoGenerator on a total
// miss.
func (r *Registry) Generator(worldType string, dimension int8) (Generator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if g, ok := r.generators[dimKey{worldType, dimension}]; ok {
		return g, nil
	}
	if g, ok := r.defaults[dimension]; ok {
		return g, nil
	}
	return nil, ErrNoGenerator
}

// RegisterPopulator appends p to dimension's populator list and
// re-sorts it stably by priority.
func (r *Registry) RegisterPopulator(dimension int8, p Populator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := append(r.populators[dimension], p)
	sort.SliceStable(list, func(i, j int) bool { return list[i].Priority() < list[j].Priority() })
	r.populators[dimension] = list
}

// Populators returns a snapshot of dimension's populators in priority
// order.
func (r *Registry) Populators(dimension int8) []Populator {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Populator, len(r.populators[dimension]))
	copy(out, r.populators[dimension])
	return out
}
