package protocol

import (
	"sync"

	"github.com/NebulousLabs/errors"
	"github.com/nebulouslabs/blockserver/protoerr"
)

const maxPacketID = 256

// ReceiveEvent carries one decoded inbound packet to its handler. Client
// is left as an opaque interface{} — concretely a *session.Session — so
// this package never imports session, avoiding an import cycle (session
// imports protocol for the Router and packet types).
type ReceiveEvent struct {
	Client  interface{}
	State   State
	ID      int32
	Payload []byte
}

// Handler processes one ReceiveEvent. It runs on the worker pool, so it
// may block, but must not retain Payload beyond the call (the caller may
// reuse the backing buffer).
type Handler func(*ReceiveEvent) error

// UnhandledPolicy controls Router.Dispatch's behavior when no handler is
// registered for a (state, id) pair.
type UnhandledPolicy int

const (
	// Ignore silently drops packets with no registered handler.
	Ignore UnhandledPolicy = iota
	// Fatal returns protoerr.ErrProtocol for packets with no registered
	// handler, which the caller should treat as grounds to disconnect.
	Fatal
)

// Router is the (ProtocolState, packet ID) -> Handler dispatch table,
// generalizing the teacher's string-keyed RPC handler map
// (modules/gateway/tcpserver.go's handlerMap/RegisterRPC) to a 2-D array
// indexed by state and ID. Routers are mutated during module install and
// read concurrently thereafter; the mutex exists for the install phase
// only — Dispatch itself never blocks on it for long.
type Router struct {
	mu       sync.RWMutex
	handlers [numStates][maxPacketID]Handler
	policy   UnhandledPolicy
}

// NewRouter returns an empty Router with the given unhandled-packet
// policy.
func NewRouter(policy UnhandledPolicy) *Router {
	return &Router{policy: policy}
}

// Register installs h as the handler for (state, id). It panics if id is
// out of [0,255] — a programmer error, not a runtime condition.
func (r *Router) Register(state State, id int32, h Handler) {
	if id < 0 || int(id) >= maxPacketID {
		panic("protocol: packet id out of range")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[state][id] = h
}

// Lookup returns the handler registered for (state, id), if any.
func (r *Router) Lookup(state State, id int32) (Handler, bool) {
	if id < 0 || int(id) >= maxPacketID || int(state) >= numStates || state < 0 {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	h := r.handlers[state][id]
	return h, h != nil
}

// Dispatch looks up and invokes the handler for ev.State/ev.ID. With
// policy Ignore, an unhandled packet returns nil; with policy Fatal, it
// returns a protoerr.ErrProtocol-wrapped error the caller should treat as
// grounds to disconnect the client.
func (r *Router) Dispatch(ev *ReceiveEvent) error {
	h, ok := r.Lookup(ev.State, ev.ID)
	if !ok {
		if r.policy == Fatal {
			return errors.Extend(errors.New("no handler registered"), protoerr.ErrProtocol)
		}
		return nil
	}
	return h(ev)
}
