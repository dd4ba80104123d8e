package session

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nebulouslabs/blockserver/crypto"
	"github.com/nebulouslabs/blockserver/netio"
	"github.com/nebulouslabs/blockserver/protocol"
)

// decryptReader wraps a net.Conn's read side with a client-side
// CipherPair, the way a real client decrypts the whole byte stream (frame
// length prefix included) once encryption is established, rather than
// just the packet payload.
type decryptReader struct {
	r      io.Reader
	cipher *crypto.CipherPair
}

func (d *decryptReader) Read(p []byte) (int, error) {
	n, err := d.r.Read(p)
	if n > 0 {
		d.cipher.LockDecrypt()
		d.cipher.DecryptInPlace(p[:n])
		d.cipher.UnlockDecrypt()
	}
	return n, err
}

type fixedStatus struct{ st Status }

func (f fixedStatus) Status() Status { return f.st }

func newTestPair(t *testing.T, cfg Config) (*netio.Handler, net.Conn, chan *Session) {
	t.Helper()
	h := netio.NewHandler(nil)
	sessions := make(chan *Session, 1)
	h.OnConnect(func(c *netio.Client) {
		sessions <- New(c, cfg)
	})
	addr, err := h.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	nc, err := net.Dial(addr.Network(), addr.String())
	require.NoError(t, err)
	return h, nc, sessions
}

func writeFrame(t *testing.T, nc net.Conn, pkt protocol.Packet) {
	t.Helper()
	w := protocol.NewWriter()
	w.VarInt(pkt.ID())
	pkt.Encode(w)
	var buf bytes.Buffer
	require.NoError(t, protocol.WriteFrame(&buf, w.Bytes()))
	_, err := nc.Write(buf.Bytes())
	require.NoError(t, err)
}

func readFrame(t *testing.T, nc net.Conn) []byte {
	t.Helper()
	nc.SetReadDeadline(time.Now().Add(2 * time.Second))
	frame, err := protocol.ReadFrame(nc)
	require.NoError(t, err)
	return frame
}

func TestHandshakeMovesToStatusAndRespondsToPing(t *testing.T) {
	router := protocol.NewRouter(protocol.Fatal)
	RegisterHandlers(router)

	cfg := Config{
		Router:               router,
		CompressionThreshold: -1,
		Status:               fixedStatus{Status{VersionName: "test", ProtocolVersion: 1, MaxPlayers: 20}},
	}
	h, nc, sessions := newTestPair(t, cfg)
	defer h.Stop()
	defer nc.Close()

	writeFrame(t, nc, &protocol.Handshake{ProtocolVersion: 1, ServerAddress: "localhost", ServerPort: 25565, NextState: protocol.Status})
	writeFrame(t, nc, &protocol.StatusRequest{})

	sess := <-sessions

	body := readFrame(t, nc)
	r := protocol.NewReader(body)
	id, err := r.VarInt()
	require.NoError(t, err)
	require.Equal(t, int32(protocol.PacketIDStatusResponse), id)
	json, err := r.String()
	require.NoError(t, err)
	require.Contains(t, json, `"name":"test"`)

	require.Eventually(t, func() bool { return sess.State() == protocol.Status }, time.Second, 10*time.Millisecond)

	writeFrame(t, nc, &protocol.Ping{Payload: 42})
	body = readFrame(t, nc)
	r = protocol.NewReader(body)
	id, err = r.VarInt()
	require.NoError(t, err)
	require.Equal(t, int32(protocol.PacketIDPingResponse), id)
	echoed, err := r.Int64()
	require.NoError(t, err)
	require.Equal(t, int64(42), echoed)
}

func TestLoginWithoutEncryptionReachesPlay(t *testing.T) {
	router := protocol.NewRouter(protocol.Fatal)
	RegisterHandlers(router)

	loggedIn := make(chan *Session, 1)
	cfg := Config{
		Router:               router,
		CompressionThreshold: -1,
		OnLogin:              func(s *Session) { loggedIn <- s },
	}
	h, nc, sessions := newTestPair(t, cfg)
	defer h.Stop()
	defer nc.Close()

	writeFrame(t, nc, &protocol.Handshake{ProtocolVersion: 1, ServerAddress: "localhost", ServerPort: 25565, NextState: protocol.Login})
	writeFrame(t, nc, &protocol.LoginStart{Username: "Notch"})

	<-sessions

	body := readFrame(t, nc)
	r := protocol.NewReader(body)
	id, err := r.VarInt()
	require.NoError(t, err)
	require.Equal(t, int32(protocol.PacketIDLoginSuccess), id)
	playerUUID, err := r.String()
	require.NoError(t, err)
	require.NotEmpty(t, playerUUID)
	username, err := r.String()
	require.NoError(t, err)
	require.Equal(t, "Notch", username)

	select {
	case s := <-loggedIn:
		require.Equal(t, protocol.Play, s.State())
		require.Equal(t, "Notch", s.Username())
	case <-time.After(2 * time.Second):
		t.Fatal("OnLogin never fired")
	}
}

func TestLoginWithEncryptionReachesPlay(t *testing.T) {
	kp, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	router := protocol.NewRouter(protocol.Fatal)
	RegisterHandlers(router)

	loggedIn := make(chan *Session, 1)
	cfg := Config{
		Router:               router,
		CompressionThreshold: -1,
		KeyPair:              kp,
		OnLogin:              func(s *Session) { loggedIn <- s },
	}
	h, nc, sessions := newTestPair(t, cfg)
	defer h.Stop()
	defer nc.Close()

	writeFrame(t, nc, &protocol.Handshake{ProtocolVersion: 1, ServerAddress: "localhost", ServerPort: 25565, NextState: protocol.Login})
	writeFrame(t, nc, &protocol.LoginStart{Username: "Notch"})

	<-sessions

	body := readFrame(t, nc)
	r := protocol.NewReader(body)
	id, err := r.VarInt()
	require.NoError(t, err)
	require.Equal(t, int32(protocol.PacketIDEncryptionRequest), id)
	serverID, err := r.String()
	require.NoError(t, err)
	require.NotEmpty(t, serverID)
	derBytes, err := r.ByteArray()
	require.NoError(t, err)
	verifyToken, err := r.ByteArray()
	require.NoError(t, err)
	require.Len(t, verifyToken, 16)

	pub, err := x509.ParsePKIXPublicKey(derBytes)
	require.NoError(t, err)
	rsaPub, ok := pub.(*rsa.PublicKey)
	require.True(t, ok)

	sharedSecret := crypto.Bytes(16)
	encSecret, err := rsa.EncryptPKCS1v15(rand.Reader, rsaPub, sharedSecret)
	require.NoError(t, err)
	encToken, err := rsa.EncryptPKCS1v15(rand.Reader, rsaPub, verifyToken)
	require.NoError(t, err)

	w := protocol.NewWriter()
	w.VarInt(protocol.PacketIDEncryptionResponse)
	w.ByteArray(encSecret)
	w.ByteArray(encToken)
	var buf bytes.Buffer
	require.NoError(t, protocol.WriteFrame(&buf, w.Bytes()))
	_, err = nc.Write(buf.Bytes())
	require.NoError(t, err)

	clientCipher, err := crypto.NewCipherPair(sharedSecret)
	require.NoError(t, err)
	dr := &decryptReader{r: nc, cipher: clientCipher}

	nc.SetReadDeadline(time.Now().Add(2 * time.Second))
	frame, err := protocol.ReadFrame(dr)
	require.NoError(t, err)
	r = protocol.NewReader(frame)
	id, err = r.VarInt()
	require.NoError(t, err)
	require.Equal(t, int32(protocol.PacketIDLoginSuccess), id)
	playerUUID, err := r.String()
	require.NoError(t, err)
	require.NotEmpty(t, playerUUID)
	username, err := r.String()
	require.NoError(t, err)
	require.Equal(t, "Notch", username)

	select {
	case s := <-loggedIn:
		require.Equal(t, protocol.Play, s.State())
		require.Equal(t, "Notch", s.Username())
	case <-time.After(2 * time.Second):
		t.Fatal("OnLogin never fired")
	}
}

func TestHandshakeRejectsInvalidNextState(t *testing.T) {
	router := protocol.NewRouter(protocol.Fatal)
	RegisterHandlers(router)

	cfg := Config{Router: router, CompressionThreshold: -1}
	h, nc, sessions := newTestPair(t, cfg)
	defer h.Stop()
	defer nc.Close()

	disconnected := make(chan error, 1)
	h.OnDisconnect(func(c *netio.Client, reason error) { disconnected <- reason })

	writeFrame(t, nc, &protocol.Handshake{ProtocolVersion: 1, ServerAddress: "localhost", ServerPort: 25565, NextState: protocol.State(99)})

	<-sessions
	select {
	case err := <-disconnected:
		require.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("expected disconnect for invalid next state")
	}
}
