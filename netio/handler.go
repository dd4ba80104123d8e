// Package netio implements the connection handler: it owns listening
// sockets, accepts connections into Client values, and dispatches reads
// and writes without blocking the accept loop on any one peer. Protocol
// framing, encryption, and state belong to the layer above.
package netio

import (
	"net"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	siasync "github.com/nebulouslabs/blockserver/sync"
)

// OnAcceptFunc is consulted right after a raw connection is accepted; if
// it returns false the connection is closed with no Client ever created.
type OnAcceptFunc func(remote net.Addr) bool

// OnConnectFunc runs once a Client has been created for a connection
// that passed OnAccept.
type OnConnectFunc func(c *Client)

// OnDisconnectFunc runs once a Client's connection has been torn down,
// regardless of whether the cause was a read/write error, a protocol
// decision, or a Handler shutdown.
type OnDisconnectFunc func(c *Client, reason error)

// Stats is a snapshot of a Handler's lifetime and current counters.
type Stats struct {
	Accepted         uint64
	Disconnected     uint64
	BytesSent        uint64
	BytesReceived    uint64
	ListeningSockets int
	ConnectedSockets int
}

// Handler accepts connections on one or more listeners and manages the
// resulting Clients. It is safe for concurrent use.
type Handler struct {
	tg siasync.ThreadGroup

	log *logrus.Entry

	mu        sync.Mutex
	listeners []net.Listener
	clients   map[uuid.UUID]*Client

	onAccept     OnAcceptFunc
	onConnect    OnConnectFunc
	onDisconnect OnDisconnectFunc

	accepted         uint64
	disconnected     uint64
	bytesSent        uint64
	bytesReceived    uint64
	listeningSockets int32
}

// NewHandler creates a Handler with no listeners yet bound. log may be
// nil, in which case the Handler logs nothing.
func NewHandler(log *logrus.Entry) *Handler {
	if log == nil {
		log = logrus.NewEntry(logrus.New())
		log.Logger.SetOutput(discard{})
	}
	return &Handler{
		log:     log,
		clients: make(map[uuid.UUID]*Client),
	}
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

// OnAccept registers the connection-admission hook.
func (h *Handler) OnAccept(fn OnAcceptFunc) { h.onAccept = fn }

// OnConnect registers the post-admission hook.
func (h *Handler) OnConnect(fn OnConnectFunc) { h.onConnect = fn }

// OnDisconnect registers the teardown hook.
func (h *Handler) OnDisconnect(fn OnDisconnectFunc) { h.onDisconnect = fn }

// Listen binds a new listening socket and starts accepting connections
// on it in the background.
func (h *Handler) Listen(network, addr string) (net.Addr, error) {
	l, err := net.Listen(network, addr)
	if err != nil {
		return nil, err
	}
	if err := h.tg.Add(); err != nil {
		l.Close()
		return nil, err
	}

	h.mu.Lock()
	h.listeners = append(h.listeners, l)
	h.mu.Unlock()
	atomic.AddInt32(&h.listeningSockets, 1)

	h.tg.OnStop(func() { l.Close() })
	go h.acceptLoop(l)
	return l.Addr(), nil
}

// Stop closes every listener, disconnects every Client, and waits for
// the accept and read goroutines to finish. A Client's send goroutine is
// not waited for.
func (h *Handler) Stop() error {
	disconnectAll := func() {
		h.mu.Lock()
		clients := make([]*Client, 0, len(h.clients))
		for _, c := range h.clients {
			clients = append(clients, c)
		}
		h.mu.Unlock()
		for _, c := range clients {
			c.Disconnect(siasync.ErrStopped)
		}
	}
	h.tg.OnStop(disconnectAll)
	err := h.tg.Stop()
	disconnectAll()
	return err
}

// Stats returns a snapshot of the handler's counters.
func (h *Handler) Stats() Stats {
	h.mu.Lock()
	connected := len(h.clients)
	h.mu.Unlock()
	return Stats{
		Accepted:         atomic.LoadUint64(&h.accepted),
		Disconnected:     atomic.LoadUint64(&h.disconnected),
		BytesSent:        atomic.LoadUint64(&h.bytesSent),
		BytesReceived:    atomic.LoadUint64(&h.bytesReceived),
		ListeningSockets: int(atomic.LoadInt32(&h.listeningSockets)),
		ConnectedSockets: connected,
	}
}

func (h *Handler) acceptLoop(l net.Listener) {
	defer h.tg.Done()
	for {
		nc, err := l.Accept()
		if err != nil {
			return
		}

		if h.onAccept != nil && !h.onAccept(nc.RemoteAddr()) {
			nc.Close()
			continue
		}

		c := newClient(nc, h)
		h.mu.Lock()
		h.clients[c.id] = c
		h.mu.Unlock()
		atomic.AddUint64(&h.accepted, 1)
		h.log.WithField("remote", c.remote).Debug("accepted connection")

		if h.tg.Add() != nil {
			nc.Close()
			continue
		}
		go func() {
			defer h.tg.Done()
			c.readLoop()
		}()

		if h.onConnect != nil {
			h.onConnect(c)
		}
	}
}

func (h *Handler) removeClient(c *Client, reason error) {
	h.mu.Lock()
	_, ok := h.clients[c.id]
	delete(h.clients, c.id)
	h.mu.Unlock()
	if !ok {
		return
	}

	atomic.AddUint64(&h.disconnected, 1)
	h.log.WithFields(logrus.Fields{"remote": c.remote, "reason": reason}).Debug("disconnected")
	if h.onDisconnect != nil {
		h.onDisconnect(c, reason)
	}
}

func (h *Handler) addBytesSent(n uint64)     { atomic.AddUint64(&h.bytesSent, n) }
func (h *Handler) addBytesReceived(n uint64) { atomic.AddUint64(&h.bytesReceived, n) }
