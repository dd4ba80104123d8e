package netio

import (
	"net"
	"time"

	"github.com/NebulousLabs/errors"
	"github.com/nebulouslabs/blockserver/protoerr"
)

// idleTimeout is how long a connection may go without a successful read
// or write before it is considered stalled.
const idleTimeout = 60 * time.Second

// ErrTimeout is returned from Read/Write when the connection's rolling
// deadline has expired.
var ErrTimeout = errors.Extend(errors.New("connection timed out"), protoerr.ErrIO)

// deadlineConn wraps a net.Conn so every successful read or write resets
// a rolling idle deadline, grounded directly on the teacher's gateway
// conn wrapper.
type deadlineConn struct {
	nc net.Conn
}

func newDeadlineConn(nc net.Conn) *deadlineConn {
	nc.SetDeadline(time.Now().Add(idleTimeout))
	return &deadlineConn{nc: nc}
}

func (c *deadlineConn) Read(b []byte) (int, error) {
	n, err := c.nc.Read(b)
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		err = ErrTimeout
	}
	c.nc.SetDeadline(time.Now().Add(idleTimeout))
	return n, err
}

func (c *deadlineConn) Write(b []byte) (int, error) {
	n, err := c.nc.Write(b)
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		err = ErrTimeout
	}
	c.nc.SetDeadline(time.Now().Add(idleTimeout))
	return n, err
}

func (c *deadlineConn) Close() error {
	return c.nc.Close()
}
