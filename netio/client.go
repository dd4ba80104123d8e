package netio

import (
	"net"
	"sync"
	"sync/atomic"

	"github.com/NebulousLabs/errors"
	"github.com/google/uuid"
	"github.com/nebulouslabs/blockserver/protoerr"
)

// ErrDisconnecting is returned by Send once a Client has begun
// disconnecting; the payload is never written.
var ErrDisconnecting = errors.Extend(errors.New("client is disconnecting"), protoerr.ErrIO)

const readBufferSize = 4096

// Client is one accepted connection. It owns the connection's read loop,
// a FIFO write queue serialized through a single send goroutine, and the
// byte counters that feed the handler's aggregate statistics.
//
// Client carries no protocol knowledge of its own; SetOnRead attaches the
// callback (owned by the session layer) that turns received bytes into
// packets.
type Client struct {
	id      uuid.UUID
	conn    *deadlineConn
	remote  net.Addr
	handler *Handler

	onReadMu sync.RWMutex
	onRead   func([]byte)

	mu            sync.Mutex
	sendQueue     []*SendHandle
	sendActive    bool
	disconnecting bool
	disconnectErr error

	bytesSent     uint64
	bytesReceived uint64
}

func newClient(nc net.Conn, h *Handler) *Client {
	return &Client{
		id:      uuid.New(),
		conn:    newDeadlineConn(nc),
		remote:  nc.RemoteAddr(),
		handler: h,
	}
}

// ID returns the client's unique identifier.
func (c *Client) ID() uuid.UUID { return c.id }

// RemoteAddr returns the connection's remote endpoint.
func (c *Client) RemoteAddr() net.Addr { return c.remote }

// BytesSent returns the total bytes written to the connection so far.
func (c *Client) BytesSent() uint64 { return atomic.LoadUint64(&c.bytesSent) }

// BytesReceived returns the total bytes read from the connection so far.
func (c *Client) BytesReceived() uint64 { return atomic.LoadUint64(&c.bytesReceived) }

// SetOnRead attaches the callback invoked with each chunk of bytes read
// from the connection. It may be replaced at any time, including from
// within the callback itself.
func (c *Client) SetOnRead(fn func([]byte)) {
	c.onReadMu.Lock()
	c.onRead = fn
	c.onReadMu.Unlock()
}

// Send queues payload for delivery and returns a SendHandle tracking it.
// Sends to the same Client are delivered in the order Send was called.
func (c *Client) Send(payload []byte) *SendHandle {
	h := newSendHandle(payload)

	c.mu.Lock()
	if c.disconnecting {
		c.mu.Unlock()
		h.fail(ErrDisconnecting)
		return h
	}
	c.sendQueue = append(c.sendQueue, h)
	needStart := !c.sendActive
	if needStart {
		c.sendActive = true
	}
	c.mu.Unlock()

	if needStart {
		go c.sendLoop()
	}
	return h
}

// Disconnect tears down the connection, failing any queued sends and
// firing the handler's OnDisconnect hook exactly once.
func (c *Client) Disconnect(reason error) {
	c.disconnect(reason)
}

func (c *Client) readLoop() {
	buf := make([]byte, readBufferSize)
	for {
		n, err := c.conn.Read(buf)
		if n > 0 {
			atomic.AddUint64(&c.bytesReceived, uint64(n))
			c.handler.addBytesReceived(uint64(n))

			c.onReadMu.RLock()
			onRead := c.onRead
			c.onReadMu.RUnlock()
			if onRead != nil {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				onRead(chunk)
			}
		}
		if err != nil {
			c.disconnect(err)
			return
		}
	}
}

func (c *Client) sendLoop() {
	for {
		c.mu.Lock()
		if len(c.sendQueue) == 0 {
			c.sendActive = false
			c.mu.Unlock()
			return
		}
		h := c.sendQueue[0]
		c.sendQueue = c.sendQueue[1:]
		c.mu.Unlock()

		h.setInProgress()
		n, err := c.conn.Write(h.payload)
		if n > 0 {
			atomic.AddUint64(&c.bytesSent, uint64(n))
			c.handler.addBytesSent(uint64(n))
		}
		if err != nil {
			h.fail(err)
			c.failRemaining(err)
			c.disconnect(err)
			return
		}
		h.succeed()
	}
}

func (c *Client) failRemaining(err error) {
	c.mu.Lock()
	pending := c.sendQueue
	c.sendQueue = nil
	c.sendActive = false
	c.mu.Unlock()

	for _, h := range pending {
		h.fail(err)
	}
}

func (c *Client) disconnect(reason error) {
	c.mu.Lock()
	if c.disconnecting {
		c.mu.Unlock()
		return
	}
	c.disconnecting = true
	c.disconnectErr = reason
	pending := c.sendQueue
	c.sendQueue = nil
	c.mu.Unlock()

	for _, h := range pending {
		h.fail(ErrDisconnecting)
	}

	c.conn.Close()
	c.handler.removeClient(c, reason)
}
