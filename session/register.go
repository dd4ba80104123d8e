package session

import "github.com/nebulouslabs/blockserver/protocol"

// RegisterHandlers installs every packet handler this package knows how
// to service into r. It is called once at server startup; Router itself
// is shared by every Session.
func RegisterHandlers(r *protocol.Router) {
	r.Register(protocol.Handshaking, protocol.PacketIDHandshake, dispatchTo((*Session).handleHandshake))

	r.Register(protocol.Status, protocol.PacketIDStatusRequest, dispatchTo((*Session).handleStatusRequest))
	r.Register(protocol.Status, protocol.PacketIDPingRequest, dispatchTo((*Session).handlePingRequest))

	r.Register(protocol.Login, protocol.PacketIDLoginStart, dispatchTo((*Session).handleLoginStart))
	r.Register(protocol.Login, protocol.PacketIDEncryptionResponse, dispatchTo((*Session).handleEncryptionResponse))

	r.Register(protocol.Play, protocol.PacketIDKeepAliveServerbound, dispatchTo((*Session).handleKeepAliveResponse))
}

// dispatchTo adapts a (*Session, *protocol.ReceiveEvent) error method into
// a protocol.Handler, recovering the concrete Session from the event's
// opaque Client field.
func dispatchTo(method func(*Session, *protocol.ReceiveEvent) error) protocol.Handler {
	return func(ev *protocol.ReceiveEvent) error {
		s, ok := ev.Client.(*Session)
		if !ok {
			return ErrUnexpectedPacket
		}
		return method(s, ev)
	}
}
