package server

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/nebulouslabs/blockserver/netio"
	"github.com/nebulouslabs/blockserver/persist"
	"github.com/nebulouslabs/blockserver/protocol"
	"github.com/nebulouslabs/blockserver/session"
	"github.com/nebulouslabs/blockserver/types"
)

type recordingModule struct {
	name     string
	priority int
	order    *[]string
	mu       *sync.Mutex
}

func (m *recordingModule) Name() string  { return m.name }
func (m *recordingModule) Priority() int { return m.priority }
func (m *recordingModule) Install(ctx *Context) error {
	m.mu.Lock()
	*m.order = append(*m.order, m.name)
	m.mu.Unlock()

	ctx.RegisterCloser(m.name, func() error {
		m.mu.Lock()
		*m.order = append(*m.order, "close:"+m.name)
		m.mu.Unlock()
		return nil
	})
	return nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	srv, err := New(Config{
		Settings: persist.Settings{NumThreads: 1},
		Data:     persist.NewMemoryDataProvider(nil),
	})
	require.NoError(t, err)
	return srv
}

func TestModulesInstallInAscendingPriorityOrder(t *testing.T) {
	srv := newTestServer(t)
	var mu sync.Mutex
	var order []string

	srv.Register(&recordingModule{name: "c", priority: 2, order: &order, mu: &mu})
	srv.Register(&recordingModule{name: "a", priority: 0, order: &order, mu: &mu})
	srv.Register(&recordingModule{name: "b", priority: 1, order: &order, mu: &mu})

	require.NoError(t, srv.Start())
	require.Equal(t, []string{"a", "b", "c"}, order)
}

func TestShutdownClosesRegisteredClosersInReverseOrder(t *testing.T) {
	srv := newTestServer(t)
	var mu sync.Mutex
	var order []string

	srv.Register(&recordingModule{name: "a", priority: 0, order: &order, mu: &mu})
	srv.Register(&recordingModule{name: "b", priority: 1, order: &order, mu: &mu})

	require.NoError(t, srv.Start())
	order = nil

	require.NoError(t, srv.Shutdown())
	require.Equal(t, []string{"close:b", "close:a"}, order)
}

func TestShutdownPublishesShutdownEvent(t *testing.T) {
	srv := newTestServer(t)
	sub := srv.Events().Shutdown.Subscribe()

	require.NoError(t, srv.Start())
	require.NoError(t, srv.Shutdown())

	select {
	case <-sub:
	default:
		t.Fatal("expected a shutdown event to have been published")
	}
}

func TestOnBlockChangePublishesColumnCoordinates(t *testing.T) {
	srv := newTestServer(t)
	sub := srv.Events().BlockChange.Subscribe()

	id := types.BlockID{X: 5, Y: 10, Z: -2, Dimension: 0}
	b := types.NewBlock(7, 3, 0, 0)
	srv.onBlockChange(types.ColumnID{X: 3, Z: -1, Dimension: 0}, id, b, []uuid.UUID{uuid.New()})

	select {
	case ev := <-sub:
		require.Equal(t, BlockChangeEvent{
			ColumnX: 3, ColumnZ: -1, Dimension: 0,
			X: 5, Y: 10, Z: -2,
			TypeID: 7, Metadata: 3,
		}, ev)
	default:
		t.Fatal("expected a block-change event")
	}
}

func TestOnBlockChangeSendsPacketToSubscribedSession(t *testing.T) {
	srv := newTestServer(t)

	router := protocol.NewRouter(protocol.Ignore)
	h := netio.NewHandler(nil)
	defer h.Stop()

	sessions := make(chan *session.Session, 1)
	h.OnConnect(func(c *netio.Client) {
		sess := session.New(c, session.Config{Router: router, CompressionThreshold: -1})
		srv.mu.Lock()
		srv.sessions[c.ID()] = sess
		srv.mu.Unlock()
		sessions <- sess
	})

	addr, err := h.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	nc, err := net.Dial(addr.Network(), addr.String())
	require.NoError(t, err)
	defer nc.Close()

	sess := <-sessions

	id := types.BlockID{X: 1, Y: 2, Z: 3, Dimension: 0}
	b := types.NewBlock(9, 0, 0, 0)
	srv.onBlockChange(types.ColumnID{X: 0, Z: 0, Dimension: 0}, id, b, []uuid.UUID{sess.ClientID(), uuid.New()})

	nc.SetReadDeadline(time.Now().Add(2 * time.Second))
	frame, err := protocol.ReadFrame(nc)
	require.NoError(t, err)

	r := protocol.NewReader(frame)
	pktID, err := r.VarInt()
	require.NoError(t, err)
	require.Equal(t, int32(protocol.PacketIDBlockChange), pktID)
}
