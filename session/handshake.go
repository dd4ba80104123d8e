package session

import (
	"github.com/NebulousLabs/errors"

	"github.com/nebulouslabs/blockserver/protocol"
	"github.com/nebulouslabs/blockserver/protoerr"
)

func (s *Session) handleHandshake(ev *protocol.ReceiveEvent) error {
	hs, err := protocol.DecodeHandshake(protocol.NewReader(ev.Payload))
	if err != nil {
		return err
	}
	switch hs.NextState {
	case protocol.Status, protocol.Login:
		s.setState(hs.NextState)
		return nil
	default:
		return errors.Extend(errors.New("handshake requested an invalid next state"), protoerr.ErrProtocol)
	}
}
