// Package session implements the per-connection protocol state machine:
// Handshaking -> Status|Login -> Play, the login encryption handshake,
// compression, and the keep-alive heartbeat. It sits directly on top of
// netio.Client (transport) and protocol (wire codec/router).
package session

import (
	"bytes"
	"sync"
	"time"

	"github.com/NebulousLabs/errors"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/nebulouslabs/blockserver/build"
	"github.com/nebulouslabs/blockserver/crypto"
	"github.com/nebulouslabs/blockserver/netio"
	"github.com/nebulouslabs/blockserver/pool"
	"github.com/nebulouslabs/blockserver/protocol"
	"github.com/nebulouslabs/blockserver/protoerr"
)

// keepAliveInterval and keepAliveTimeout shrink under Dev/Testing builds
// so keep-alive tests don't sit around for real-world timeouts.
var (
	keepAliveInterval = build.Select(build.Var{
		Standard: 15 * time.Second,
		Dev:      5 * time.Second,
		Testing:  50 * time.Millisecond,
	}).(time.Duration)

	keepAliveTimeout = build.Select(build.Var{
		Standard: 30 * time.Second,
		Dev:      10 * time.Second,
		Testing:  100 * time.Millisecond,
	}).(time.Duration)
)

// ErrKeepAliveTimeout is the disconnect reason used when a client fails
// to answer a keep-alive within keepAliveTimeout.
var ErrKeepAliveTimeout = errors.Extend(errors.New("keep-alive timed out"), protoerr.ErrProtocol)

// ErrUnexpectedPacket is the disconnect reason a registered handler
// returns when its event does not carry a *Session. A packet with no
// handler for the current state is rejected by the protocol.Router's own
// policy instead.
var ErrUnexpectedPacket = errors.Extend(errors.New("unexpected packet for state"), protoerr.ErrProtocol)

// StatusProvider supplies the JSON server-status document's dynamic
// fields: each call may reflect the server's current player count, so it
// is consulted fresh for every status request rather than cached once.
type StatusProvider interface {
	Status() Status
}

// Status is the data behind the JSON status document sent in response
// to a status request.
type Status struct {
	VersionName     string
	ProtocolVersion int32
	MaxPlayers      int
	OnlinePlayers   int
	PlayerSamples   []string
	Description     string
	FaviconBase64   string // empty to omit
}

// Config bundles everything a Session needs that is shared across every
// connection on the server.
type Config struct {
	KeyPair              *crypto.KeyPair
	Pool                 *pool.Pool
	Router               *protocol.Router
	Status               StatusProvider
	CompressionThreshold int32 // <0 disables compression entirely
	Log                  *logrus.Entry

	// OnLogin fires once a session reaches Play, after LoginSuccess has
	// been sent.
	OnLogin func(*Session)
}

// Session is one client's protocol state machine. It owns the
// accumulating read buffer, the optional cipher pair, compression
// negotiation, and keep-alive bookkeeping.
type Session struct {
	cfg    Config
	client *netio.Client
	log    *logrus.Entry

	mu                   sync.Mutex
	state                protocol.State
	inbuf                bytes.Buffer
	cipher               *crypto.CipherPair
	compressionThreshold int32
	username             string
	uuid                 string
	serverID             string

	verifyToken  []byte
	pendingToken int64
	keepAliveAt  time.Time
	latency      time.Duration

	pending  [][]byte
	draining bool
}

// New creates a Session for an already-accepted Client, wires up its
// read callback, and leaves it in the Handshaking state.
func New(client *netio.Client, cfg Config) *Session {
	if cfg.Log == nil {
		cfg.Log = logrus.NewEntry(logrus.New())
	}
	s := &Session{
		cfg:                  cfg,
		client:               client,
		log:                  cfg.Log.WithField("client", client.ID()),
		state:                protocol.Handshaking,
		compressionThreshold: -1,
	}
	client.SetOnRead(s.onRead)
	return s
}

// State returns the session's current protocol state.
func (s *Session) State() protocol.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(st protocol.State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Username returns the authenticated username, empty before Login
// succeeds.
func (s *Session) Username() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.username
}

// ClientID returns the underlying Client's stable identifier, the same
// value a world.Column's subscriber set stores.
func (s *Session) ClientID() uuid.UUID {
	return s.client.ID()
}

// Stats is a point-in-time snapshot of one session's transport and
// protocol counters.
type Stats struct {
	BytesSent     uint64
	BytesReceived uint64
	Latency       time.Duration
	State         protocol.State
}

// Stats returns a snapshot combining the underlying Client's byte
// counters with the session's own latency measurement.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	latency := s.latency
	state := s.state
	s.mu.Unlock()
	return Stats{
		BytesSent:     s.client.BytesSent(),
		BytesReceived: s.client.BytesReceived(),
		Latency:       latency,
		State:         state,
	}
}

// Disconnect sends reason as a disconnect packet when the state permits
// one, then tears down the underlying connection.
func (s *Session) Disconnect(reason error) {
	st := s.State()
	msg := `{"text":"` + jsonEscape(reason.Error()) + `"}`
	switch st {
	case protocol.Login:
		s.SendPacket(&protocol.DisconnectLogin{Reason: msg})
	case protocol.Play:
		s.SendPacket(&protocol.Disconnect{Reason: msg})
	}
	s.client.Disconnect(reason)
}

func jsonEscape(s string) string {
	var b bytes.Buffer
	for _, r := range s {
		switch r {
		case '"', '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		case '\n':
			b.WriteString("\\n")
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// SendPacket serializes pkt, applies compression if negotiated, encrypts
// if a cipher is enabled, and enqueues the resulting frame on the
// underlying Client. Encryption and enqueue happen atomically with
// respect to the cipher's encrypt stream, so two concurrent SendPacket
// calls can never interleave their ciphertext.
func (s *Session) SendPacket(pkt protocol.Packet) *netio.SendHandle {
	w := protocol.NewWriter()
	w.VarInt(pkt.ID())
	pkt.Encode(w)
	body := w.Bytes()

	s.mu.Lock()
	threshold := s.compressionThreshold
	cipher := s.cipher
	s.mu.Unlock()

	var frameBody []byte
	if threshold >= 0 {
		if int32(len(body)) >= threshold {
			compressed, err := protocol.CompressFrame(body)
			if err != nil {
				s.log.WithError(err).Error("compress frame")
				compressed = protocol.UninflatedFrame(body)
			}
			frameBody = compressed
		} else {
			frameBody = protocol.UninflatedFrame(body)
		}
	} else {
		frameBody = body
	}

	var frameBuf bytes.Buffer
	protocol.WriteFrame(&frameBuf, frameBody)
	frame := frameBuf.Bytes()

	if cipher == nil {
		return s.client.Send(frame)
	}

	cipher.LockEncrypt()
	defer cipher.UnlockEncrypt()
	cipher.EncryptInPlace(frame)
	return s.client.Send(frame)
}

// onRead is the Client's read callback: it decrypts incoming bytes (if a
// cipher is enabled), accumulates them, and pulls out and dispatches as
// many complete frames as are available.
func (s *Session) onRead(chunk []byte) {
	s.mu.Lock()
	cipher := s.cipher
	s.mu.Unlock()

	if cipher != nil {
		cipher.LockDecrypt()
		cipher.DecryptInPlace(chunk)
		cipher.UnlockDecrypt()
	}

	s.mu.Lock()
	s.inbuf.Write(chunk)
	s.mu.Unlock()

	for {
		s.mu.Lock()
		frame, ok, err := extractFrame(&s.inbuf)
		threshold := s.compressionThreshold
		s.mu.Unlock()

		if err != nil {
			s.Disconnect(err)
			return
		}
		if !ok {
			return
		}

		body := frame
		if threshold >= 0 {
			body, err = protocol.DecompressFrame(frame)
			if err != nil {
				s.Disconnect(err)
				return
			}
		}

		s.dispatch(body)
	}
}

// dispatch queues body for handling on the worker pool (spec.md §2's
// "Packet Router (on pool)"), rather than running the handler inline on
// the Client's read goroutine. Packets from one connection are still
// handled strictly in arrival order: only one pool task drains a given
// Session's queue at a time, so a second frame arriving mid-dispatch is
// appended to the queue instead of racing a fresh task against it.
func (s *Session) dispatch(body []byte) {
	s.mu.Lock()
	s.pending = append(s.pending, body)
	alreadyDraining := s.draining
	s.draining = true
	s.mu.Unlock()

	if alreadyDraining {
		return
	}
	if s.cfg.Pool == nil {
		s.drainPending()
		return
	}
	s.cfg.Pool.Spawn(func() error {
		s.drainPending()
		return nil
	})
}

// drainPending runs handlers for every queued frame, in order, until the
// queue is empty. It is only ever active from one goroutine at a time
// per Session (see dispatch).
func (s *Session) drainPending() {
	for {
		s.mu.Lock()
		if len(s.pending) == 0 {
			s.draining = false
			s.mu.Unlock()
			return
		}
		body := s.pending[0]
		s.pending = s.pending[1:]
		s.mu.Unlock()

		if err := s.handleOne(body); err != nil {
			s.Disconnect(err)
			return
		}
	}
}

// handleOne decodes body's packet ID and submits it to the router.
func (s *Session) handleOne(body []byte) error {
	id, n, err := decodeVarIntPrefix(body)
	if err == errNeedMoreData {
		return protocol.ErrVarIntTooLong
	}
	if err != nil {
		return err
	}

	ev := &protocol.ReceiveEvent{
		Client:  s,
		State:   s.State(),
		ID:      id,
		Payload: body[n:],
	}
	return s.cfg.Router.Dispatch(ev)
}
