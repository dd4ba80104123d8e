package session

import (
	"time"

	"github.com/nebulouslabs/blockserver/crypto"
	"github.com/nebulouslabs/blockserver/protocol"
)

// startKeepAlive schedules the session's first periodic keep-alive. It is
// called once, when the session reaches Play.
func (s *Session) startKeepAlive() {
	if s.cfg.Pool == nil {
		return
	}
	s.scheduleKeepAlive()
}

func (s *Session) scheduleKeepAlive() {
	s.cfg.Pool.SpawnAfter(keepAliveInterval, func() error {
		if s.State() != protocol.Play {
			return nil
		}
		s.sendKeepAlive()
		return nil
	})
}

func (s *Session) sendKeepAlive() {
	token := int64(crypto.Uint64())

	s.mu.Lock()
	s.pendingToken = token
	s.keepAliveAt = time.Now()
	s.mu.Unlock()

	s.SendPacket(&protocol.KeepAlive{ID64: token})

	s.cfg.Pool.SpawnAfter(keepAliveTimeout, func() error {
		s.mu.Lock()
		expired := s.pendingToken == token && s.state == protocol.Play
		s.mu.Unlock()
		if expired {
			s.Disconnect(ErrKeepAliveTimeout)
		}
		return nil
	})

	s.scheduleKeepAlive()
}

// handleKeepAliveResponse records the round-trip latency if token matches
// the outstanding keep-alive; a stale or unrecognized token is ignored.
func (s *Session) handleKeepAliveResponse(ev *protocol.ReceiveEvent) error {
	ka, err := protocol.DecodeKeepAlive(protocol.NewReader(ev.Payload))
	if err != nil {
		return err
	}
	s.mu.Lock()
	if s.pendingToken == ka.ID64 {
		s.latency = time.Since(s.keepAliveAt)
		s.pendingToken = 0
	}
	s.mu.Unlock()
	return nil
}
