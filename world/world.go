package world

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nebulouslabs/blockserver/build"
	"github.com/nebulouslabs/blockserver/encoding"
	"github.com/nebulouslabs/blockserver/pool"
	siasync "github.com/nebulouslabs/blockserver/sync"
	"github.com/nebulouslabs/blockserver/types"
	"github.com/nebulouslabs/blockserver/world/generate"
)

// defaultMaintenanceInterval matches the column store's documented
// default save/evict sweep cadence; it shrinks under Dev/Testing builds
// so a maintenance sweep test doesn't have to wait 5 real minutes.
var defaultMaintenanceInterval = build.Select(build.Var{
	Standard: 5 * time.Minute,
	Dev:      30 * time.Second,
	Testing:  50 * time.Millisecond,
}).(time.Duration)

// BlockChangeFunc is invoked after a successful SetBlock, with a
// snapshot of the column's subscribers at the time of the write, so the
// caller can propagate the change to connected clients.
type BlockChangeFunc func(col types.ColumnID, id types.BlockID, b types.Block, subscribers []uuid.UUID)

// Config bundles a World's fixed configuration.
type Config struct {
	WorldType           string
	Seed                int64
	Data                DataProvider
	Registry            *generate.Registry
	Pool                *pool.Pool
	MaintenanceInterval time.Duration
	OnBlockChange       BlockChangeFunc
}

// World owns the live column map, the world lock, and the background
// maintenance sweep that saves dirty columns and evicts idle ones.
type World struct {
	cfg  Config
	lock *WorldLock

	mu      sync.RWMutex
	columns map[types.ColumnID]*Column

	sessionMu   sync.Mutex
	nextSession int64

	tg siasync.ThreadGroup
}

// worldSeedKey is the DataProvider key the world seed is persisted
// under, so a restart with the same backing store reuses the seed a
// prior run resolved instead of generating a fresh one.
const worldSeedKey = "world_seed"

// New creates a World and starts its background maintenance sweep. If cfg.Data already holds a persisted seed, it
// overrides cfg.Seed; otherwise cfg.Seed is persisted for next time.
func New(cfg Config) *World {
	if cfg.MaintenanceInterval <= 0 {
		cfg.MaintenanceInterval = defaultMaintenanceInterval
	}
	if cfg.Data != nil {
		if blob, ok, err := cfg.Data.GetBinary(worldSeedKey); err == nil && ok && len(blob) == 8 {
			cfg.Seed = encoding.DecInt64(blob)
		} else {
			if err := cfg.Data.SaveBinary(worldSeedKey, encoding.EncInt64(cfg.Seed)); err != nil {
				build.Severe("saving world seed to backing store", err)
			}
		}
	}
	w := &World{
		cfg:     cfg,
		lock:    NewWorldLock(),
		columns: make(map[types.ColumnID]*Column),
	}
	if err := w.tg.Add(); err == nil {
		go w.maintenanceLoop()
	}
	return w
}

// Close stops the maintenance loop, running one final save pass before
// it returns.
func (w *World) Close() error {
	return w.tg.Stop()
}

// GetColumn returns the column for id, creating it in state Loading on
// first reference, and increments its interest count. The caller must
// call RemoveInterest when done with it.
func (w *World) GetColumn(id types.ColumnID) *Column {
	w.mu.Lock()
	c, ok := w.columns[id]
	if !ok {
		c = newColumn(id)
		w.columns[id] = c
	}
	w.mu.Unlock()
	c.AddInterest()
	return c
}

// ObserveColumn registers client as a subscriber of the column at id —
// so a later SetBlock call propagates to it — and blocks until the
// column reaches Populated. The caller must eventually call
// StopObservingColumn with the same id to release the interest this
// acquires.
func (w *World) ObserveColumn(id types.ColumnID, client uuid.UUID) error {
	col := w.GetColumn(id)
	col.AddSubscriber(client)
	return w.awaitState(col, types.ColumnPopulated)
}

// StopObservingColumn drops client from id's subscriber set and releases
// the interest ObserveColumn acquired. graceful is passed through to
// Column.RemoveSubscriber; no unload notice is sent either way.
func (w *World) StopObservingColumn(id types.ColumnID, client uuid.UUID, graceful bool) {
	w.mu.RLock()
	col, ok := w.columns[id]
	w.mu.RUnlock()
	if !ok {
		return
	}
	col.RemoveSubscriber(client, graceful)
	col.RemoveInterest()
}

func (w *World) newSessionID() int64 {
	w.sessionMu.Lock()
	defer w.sessionMu.Unlock()
	w.nextSession++
	return w.nextSession
}

// awaitState blocks until col reaches target, driving its FSM forward
// itself if nobody else currently is.
func (w *World) awaitState(col *Column, target types.ColumnState) error {
	for {
		drive := col.WaitUntil(target)
		if !drive {
			return nil
		}
		err := w.process(col, target)
		col.finishDriving()
		if err != nil {
			return err
		}
	}
}

// process pushes col's FSM forward until it reaches at least target. It
// is only ever called by the single goroutine currently responsible for
// driving col (see Column.WaitUntil).
func (w *World) process(col *Column, target types.ColumnState) error {
	for {
		cur := col.State()
		if reached(cur, target) {
			return nil
		}
		switch cur {
		case types.ColumnLoading:
			if err := w.stepLoad(col); err != nil {
				return err
			}
		case types.ColumnGenerated:
			if columnOrder[target] <= columnOrder[types.ColumnGenerated] {
				return nil
			}
			if err := w.stepPopulate(col, w.newSessionID()); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

func (w *World) stepLoad(col *Column) error {
	if w.cfg.Data != nil {
		blob, ok, err := w.cfg.Data.GetBinary(columnKey(col.id))
		if err == nil && ok {
			if data, populated, valid := decodeColumn(blob); valid {
				ctr := col.dataLock.Lock("world.World.stepLoad")
				col.data = data
				col.dataLock.Unlock("world.World.stepLoad", ctr)
				if populated {
					col.setState(types.ColumnPopulated)
				} else {
					col.setState(types.ColumnGenerated)
				}
				return nil
			}
		}
	}
	return w.stepGenerate(col)
}

func (w *World) stepGenerate(col *Column) error {
	col.setState(types.ColumnGenerating)

	gen, err := w.cfg.Registry.Generator(w.cfg.WorldType, col.id.Dimension)
	if err != nil {
		return err
	}

	ctr := col.dataLock.Lock("world.World.stepGenerate")
	for x := 0; x < types.ColumnWidth; x++ {
		for z := 0; z < types.ColumnDepth; z++ {
			worldX := col.id.X*types.ColumnWidth + int32(x)
			worldZ := col.id.Z*types.ColumnDepth + int32(z)
			for y := 0; y < types.ColumnHeight; y++ {
				id := types.BlockID{X: worldX, Y: int32(y), Z: worldZ, Dimension: col.id.Dimension}
				col.data.SetBlock(x, y, z, gen.Block(id))
			}
			col.data.SetBiome(x, z, gen.Biome(worldX, worldZ, col.id.Dimension))
		}
	}
	col.dataLock.Unlock("world.World.stepGenerate", ctr)

	col.setState(types.ColumnGenerated)
	return nil
}

func (w *World) stepPopulate(col *Column, sessionID int64) error {
	col.setState(types.ColumnPopulating)
	col.beginPopulating(sessionID)
	defer col.endPopulating(sessionID)

	handle := &WorldHandle{world: w, sessionID: sessionID}
	for _, p := range w.cfg.Registry.Populators(col.id.Dimension) {
		p.Populate(generate.PopulateEvent{Column: col.id, Handle: handle})
	}

	col.setState(types.ColumnPopulated)
	return nil
}

// GetBlock reads a single block, waiting for its column to reach
// Populated.
func (w *World) GetBlock(id types.BlockID) (types.Block, error) {
	return w.getBlock(id, 0)
}

func (w *World) getBlock(id types.BlockID, sessionID int64) (types.Block, error) {
	col := w.GetColumn(id.ColumnID())
	defer col.RemoveInterest()

	target := types.ColumnPopulated
	if sessionID != 0 && col.populating(sessionID) {
		target = types.ColumnGenerated
	}
	if err := w.awaitState(col, target); err != nil {
		return 0, err
	}
	return col.Block(id.LocalX(), id.LocalY(), id.LocalZ()), nil
}

// SetBlock writes a single block, waits for its column to reach
// Generated, then performs the write under the world lock at block
// scope and hands the change to OnBlockChange for asynchronous
// propagation to subscribed clients.
func (w *World) SetBlock(id types.BlockID, b types.Block) error {
	return w.setBlock(id, b, 0)
}

func (w *World) setBlock(id types.BlockID, b types.Block, sessionID int64) error {
	col := w.GetColumn(id.ColumnID())
	defer col.RemoveInterest()

	if err := w.awaitState(col, types.ColumnGenerated); err != nil {
		return err
	}

	h := w.lock.Acquire(Footprint{Scope: ScopeBlock, Block: id})
	col.SetBlock(id.LocalX(), id.LocalY(), id.LocalZ(), b)
	h.Release()

	w.notifyBlockChange(col, id, b)
	return nil
}

func (w *World) notifyBlockChange(col *Column, id types.BlockID, b types.Block) {
	if w.cfg.OnBlockChange == nil {
		return
	}
	subs := col.Subscribers()
	fn := func() error {
		w.cfg.OnBlockChange(col.id, id, b, subs)
		return nil
	}
	if w.cfg.Pool != nil {
		w.cfg.Pool.Spawn(fn)
	} else {
		go fn()
	}
}

func (w *World) maintenanceLoop() {
	defer w.tg.Done()
	ticker := time.NewTicker(w.cfg.MaintenanceInterval)
	defer ticker.Stop()
	for {
		select {
		case <-w.tg.StopChan():
			w.runMaintenance()
			return
		case <-ticker.C:
			w.runMaintenance()
		}
	}
}

// runMaintenance saves every dirty column and evicts every idle one. It
// copies each column's data under the column's own lock, then
// compresses and persists outside it, so saving never blocks readers or
// writers any longer than the copy itself takes.
func (w *World) runMaintenance() {
	w.mu.RLock()
	cols := make([]*Column, 0, len(w.columns))
	for _, c := range w.columns {
		cols = append(cols, c)
	}
	w.mu.RUnlock()

	var evictable []types.ColumnID
	for _, c := range cols {
		if c.isDirty() {
			snap := c.snapshotAndClean()
			if w.cfg.Data != nil {
				blob, err := encodeColumn(&snap, c.populatedFlag())
				if err != nil {
					build.Critical("encoding column for save", c.id, err)
				} else if err := w.cfg.Data.SaveBinary(columnKey(c.id), blob); err != nil {
					build.Severe("saving column to backing store", c.id, err)
				}
			}
		}
		if c.Idle() {
			evictable = append(evictable, c.id)
		}
	}
	if len(evictable) == 0 {
		return
	}

	w.mu.Lock()
	for _, id := range evictable {
		if c, ok := w.columns[id]; ok && c.Idle() {
			c.setState(types.ColumnUnloaded)
			delete(w.columns, id)
		}
	}
	w.mu.Unlock()
}
