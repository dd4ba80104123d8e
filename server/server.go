// Package server ties the connection handler, protocol router, world,
// and worker pool together into one process: it installs modules in
// ascending priority order, accepts connections and hands each one to a
// new session, and tears everything down in reverse on shutdown.
package server

import (
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/nebulouslabs/blockserver/build"
	"github.com/nebulouslabs/blockserver/crypto"
	"github.com/nebulouslabs/blockserver/netio"
	"github.com/nebulouslabs/blockserver/persist"
	"github.com/nebulouslabs/blockserver/pool"
	"github.com/nebulouslabs/blockserver/protocol"
	"github.com/nebulouslabs/blockserver/session"
	"github.com/nebulouslabs/blockserver/types"
	"github.com/nebulouslabs/blockserver/world"
	"github.com/nebulouslabs/blockserver/world/generate"
)

// PanicHookFunc is invoked with the recovered value before the server
// aborts on an irrecoverable invariant break (e.g. a column FSM
// regression surfaced through build.Critical). A nil hook is a no-op.
type PanicHookFunc func(recovered interface{})

// Config bundles everything needed to build a Server.
type Config struct {
	Settings  persist.Settings
	Data      persist.DataProvider
	Registry  *generate.Registry
	Log       *persist.Logger
	Deps      Dependencies
	PanicHook PanicHookFunc
}

// Server owns the pool, the connection handler, the world, the data
// provider, and the registry of installed modules, per spec.md's "single
// server object" description.
type Server struct {
	cfg     Config
	pool    *pool.Pool
	handler *netio.Handler
	world   *world.World
	router  *protocol.Router
	events  *Events
	keyPair *crypto.KeyPair
	log     *logrus.Entry

	mu       sync.Mutex
	modules  []Module
	closers  []moduleCloser
	sessions map[uuid.UUID]*session.Session
}

// spawnColumn is the single column every session observes for block-change
// propagation, standing in for the view-distance-driven subscription set
// a full client-movement implementation would maintain (Non-goal).
var spawnColumn = types.ColumnID{X: 0, Z: 0, Dimension: 0}

// New constructs a Server from cfg. It does not accept connections until
// Start is called.
func New(cfg Config) (*Server, error) {
	if cfg.Data == nil {
		cfg.Data = persist.NewMemoryDataProvider(nil)
	}
	if cfg.Registry == nil {
		cfg.Registry = generate.NewRegistry()
	}
	if cfg.Deps == nil {
		cfg.Deps = ProductionDependencies{}
	}
	var log *logrus.Entry
	if cfg.Log != nil {
		log = cfg.Log.Entry
	} else {
		log = logrus.NewEntry(logrus.New())
	}

	kp, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, err
	}

	numWorkers := cfg.Settings.NumThreads
	p := pool.New(numWorkers)

	srv := &Server{
		cfg:      cfg,
		pool:     p,
		handler:  netio.NewHandler(log),
		router:   protocol.NewRouter(protocol.Ignore),
		events:   NewEvents(),
		keyPair:  kp,
		log:      log,
		sessions: make(map[uuid.UUID]*session.Session),
	}

	wcfg := world.Config{
		WorldType:           cfg.Settings.WorldType,
		Seed:                cfg.Settings.Seed,
		Data:                cfg.Data,
		Registry:            cfg.Registry,
		Pool:                p,
		MaintenanceInterval: cfg.Settings.MaintenanceInterval,
		OnBlockChange:       srv.onBlockChange,
	}
	srv.world = world.New(wcfg)

	return srv, nil
}

// Register adds m to the set of modules installed by Start. It must be
// called before Start.
func (srv *Server) Register(m Module) {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	srv.modules = append(srv.modules, m)
}

// context builds the install-time context modules receive.
func (srv *Server) context() *Context {
	return &Context{
		Pool:     srv.pool,
		Handler:  srv.handler,
		World:    srv.world,
		Data:     srv.cfg.Data,
		Router:   srv.router,
		Events:   srv.events,
		Deps:     srv.cfg.Deps,
		Settings: srv.cfg.Settings,
		Log:      srv.log,
		KeyPair:  srv.keyPair,
		srv:      srv,
	}
}

// Start installs every registered module in ascending priority order,
// wires the connection handler's accept hook to create a Session per
// client, and binds a listener for each configured address.
func (srv *Server) Start() error {
	srv.mu.Lock()
	mods := make([]Module, len(srv.modules))
	copy(mods, srv.modules)
	srv.mu.Unlock()

	sort.SliceStable(mods, func(i, j int) bool { return mods[i].Priority() < mods[j].Priority() })

	ctx := srv.context()
	for _, m := range mods {
		srv.log.WithField("module", m.Name()).Info("installing module")
		if err := m.Install(ctx); err != nil {
			return build.ExtendErr("installing module "+m.Name(), err)
		}
	}

	srv.handler.OnConnect(srv.onConnect)
	srv.handler.OnDisconnect(srv.onDisconnect)

	for _, addr := range srv.cfg.Settings.Binds {
		if _, err := srv.handler.Listen("tcp", addr); err != nil {
			return err
		}
	}
	return nil
}

// onConnect creates a Session for a newly accepted client. session.New
// self-wires the client's read callback, so no further plumbing is
// needed here.
func (srv *Server) onConnect(c *netio.Client) {
	sess := session.New(c, session.Config{
		KeyPair:              srv.keyPair,
		Pool:                 srv.pool,
		Router:               srv.router,
		Status:               serverStatus{srv: srv},
		CompressionThreshold: -1,
		Log:                  srv.log,
		OnLogin:              srv.onLogin,
	})
	srv.mu.Lock()
	srv.sessions[c.ID()] = sess
	srv.mu.Unlock()
}

// onLogin publishes a PlayerJoin event once a session reaches Play, and
// subscribes it to spawnColumn so it receives block-change propagation.
func (srv *Server) onLogin(sess *session.Session) {
	srv.events.PlayerJoin.Publish(PlayerEvent{Username: sess.Username()})
	if err := srv.world.ObserveColumn(spawnColumn, sess.ClientID()); err != nil {
		srv.log.WithError(err).Warn("observe spawn column")
	}
}

// onDisconnect drops the bookkeeping entry for c, releases its column
// subscription, and, if it had logged in, publishes a PlayerLeave event.
func (srv *Server) onDisconnect(c *netio.Client, reason error) {
	srv.mu.Lock()
	sess, ok := srv.sessions[c.ID()]
	delete(srv.sessions, c.ID())
	srv.mu.Unlock()

	srv.world.StopObservingColumn(spawnColumn, c.ID(), false)

	if ok && sess.Username() != "" {
		srv.events.PlayerLeave.Publish(PlayerEvent{Username: sess.Username()})
	}
}

// onBlockChange is world.BlockChangeFunc: it sends a protocol.BlockChange
// packet to every session subscribed to the mutated column, and
// republishes the mutation as a BlockChangeEvent for any other listener
// (logging, a future admin module).
func (srv *Server) onBlockChange(col types.ColumnID, id types.BlockID, b types.Block, subscribers []uuid.UUID) {
	srv.events.BlockChange.Publish(BlockChangeEvent{
		ColumnX:   col.X,
		ColumnZ:   col.Z,
		Dimension: col.Dimension,
		X:         id.X,
		Y:         id.Y,
		Z:         id.Z,
		TypeID:    b.TypeID(),
		Metadata:  b.Metadata(),
	})

	pkt := &protocol.BlockChange{
		X:       id.X,
		Y:       id.Y,
		Z:       id.Z,
		BlockID: int32(b.TypeID())<<4 | int32(b.Metadata()),
	}

	srv.mu.Lock()
	defer srv.mu.Unlock()
	for _, client := range subscribers {
		if sess, ok := srv.sessions[client]; ok {
			sess.SendPacket(pkt)
		}
	}
}

// Shutdown fires the shutdown event, closes installed modules in reverse
// order, flushes a final world save, tears down the connection handler,
// and finally stops the pool, which cancels still-queued tasks, waits for
// running ones and joins its workers. Queued pool tasks are therefore not
// cancelled before the event, the save or the handler teardown; they can
// still run during those steps. Each step runs even if an earlier one
// fails, with every error joined in the return value.
func (srv *Server) Shutdown() error {
	srv.events.Shutdown.Publish(struct{}{})

	var errs []error

	srv.mu.Lock()
	closers := make([]moduleCloser, len(srv.closers))
	copy(closers, srv.closers)
	srv.mu.Unlock()

	for i := len(closers) - 1; i >= 0; i-- {
		c := closers[i]
		srv.log.WithField("module", c.name).Info("closing module")
		if err := c.fn(); err != nil {
			errs = append(errs, err)
		}
	}

	if err := srv.world.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := srv.handler.Stop(); err != nil {
		errs = append(errs, err)
	}
	if err := srv.pool.Stop(); err != nil {
		errs = append(errs, err)
	}

	return build.JoinErrors(errs, "; ")
}

// Recover should be deferred at the top of any goroutine the server
// spawns outside the pool (the pool already recovers worker panics into
// a Handle). It invokes the configured panic hook, then re-panics so the
// process aborts, matching spec.md's "invoke a supplied panic hook, then
// abort" requirement for irrecoverable invariant breaks.
func (srv *Server) Recover() {
	if r := recover(); r != nil {
		build.Critical("server panic", r)
		if srv.cfg.PanicHook != nil {
			srv.cfg.PanicHook(r)
		}
		panic(r)
	}
}

// World returns the server's World, for callers (e.g. cmd/serverd's
// flags or an admin module) that need direct access.
func (srv *Server) World() *world.World { return srv.world }

// Router returns the server's packet router, so modules registered
// before Start can be introspected in tests.
func (srv *Server) Router() *protocol.Router { return srv.router }

// Events returns the server's event bus bundle.
func (srv *Server) Events() *Events { return srv.events }
