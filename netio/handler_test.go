package netio

import (
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func dialLoopback(t *testing.T, addr net.Addr) net.Conn {
	t.Helper()
	nc, err := net.Dial(addr.Network(), addr.String())
	require.NoError(t, err)
	return nc
}

func TestHandlerAcceptsAndFiresOnConnect(t *testing.T) {
	h := NewHandler(nil)
	defer h.Stop()

	connected := make(chan *Client, 1)
	h.OnConnect(func(c *Client) { connected <- c })

	addr, err := h.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	nc := dialLoopback(t, addr)
	defer nc.Close()

	select {
	case c := <-connected:
		require.NotNil(t, c)
	case <-time.After(2 * time.Second):
		t.Fatal("OnConnect never fired")
	}

	stats := h.Stats()
	require.Equal(t, uint64(1), stats.Accepted)
	require.Equal(t, 1, stats.ConnectedSockets)
}

func TestOnAcceptRejectsConnection(t *testing.T) {
	h := NewHandler(nil)
	defer h.Stop()

	h.OnAccept(func(net.Addr) bool { return false })
	connected := make(chan *Client, 1)
	h.OnConnect(func(c *Client) { connected <- c })

	addr, err := h.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	nc := dialLoopback(t, addr)
	defer nc.Close()

	select {
	case <-connected:
		t.Fatal("OnConnect fired for a rejected connection")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestClientSendDeliversPayloadInOrder(t *testing.T) {
	h := NewHandler(nil)
	defer h.Stop()

	var server *Client
	var wg sync.WaitGroup
	wg.Add(1)
	h.OnConnect(func(c *Client) {
		server = c
		wg.Done()
	})

	addr, err := h.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	nc := dialLoopback(t, addr)
	defer nc.Close()
	wg.Wait()

	h1 := server.Send([]byte("first"))
	h2 := server.Send([]byte("second"))
	require.NoError(t, h1.Wait())
	require.NoError(t, h2.Wait())
	require.Equal(t, SendSucceeded, h1.State())
	require.Equal(t, SendSucceeded, h2.State())

	buf := make([]byte, len("firstsecond"))
	nc.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err = io.ReadFull(nc, buf)
	require.NoError(t, err)
	require.Equal(t, "firstsecond", string(buf))
}

func TestClientSendAfterDisconnectFails(t *testing.T) {
	h := NewHandler(nil)
	defer h.Stop()

	var server *Client
	var wg sync.WaitGroup
	wg.Add(1)
	h.OnConnect(func(c *Client) {
		server = c
		wg.Done()
	})

	addr, err := h.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	nc := dialLoopback(t, addr)
	defer nc.Close()
	wg.Wait()

	disconnected := make(chan error, 1)
	h.OnDisconnect(func(c *Client, reason error) { disconnected <- reason })

	server.Disconnect(ErrDisconnecting)
	select {
	case <-disconnected:
	case <-time.After(2 * time.Second):
		t.Fatal("OnDisconnect never fired")
	}

	h2 := server.Send([]byte("too late"))
	require.Equal(t, SendFailed, h2.State())
}
