package server

import (
	"github.com/sirupsen/logrus"

	"github.com/nebulouslabs/blockserver/crypto"
	"github.com/nebulouslabs/blockserver/netio"
	"github.com/nebulouslabs/blockserver/persist"
	"github.com/nebulouslabs/blockserver/pool"
	"github.com/nebulouslabs/blockserver/protocol"
	"github.com/nebulouslabs/blockserver/world"
)

// Context is everything a Module's Install call needs, passed explicitly
// rather than fetched through package-level singleton accessors.
type Context struct {
	Pool    *pool.Pool
	Handler *netio.Handler
	World   *world.World
	Data    persist.DataProvider
	Router  *protocol.Router
	Events  *Events
	Deps    Dependencies

	Settings persist.Settings
	Log      *logrus.Entry
	KeyPair  *crypto.KeyPair

	srv *Server
}

// RegisterCloser records fn to be called during shutdown, in the reverse
// order modules were installed. name identifies the closer in logs.
func (ctx *Context) RegisterCloser(name string, fn func() error) {
	ctx.srv.mu.Lock()
	defer ctx.srv.mu.Unlock()
	ctx.srv.closers = append(ctx.srv.closers, moduleCloser{name: name, fn: fn})
}
