package session

import (
	"encoding/json"

	"github.com/nebulouslabs/blockserver/protocol"
)

type statusVersion struct {
	Name     string `json:"name"`
	Protocol int32  `json:"protocol"`
}

type statusPlayerSample struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

type statusPlayers struct {
	Max    int                  `json:"max"`
	Online int                  `json:"online"`
	Sample []statusPlayerSample `json:"sample,omitempty"`
}

type statusDescription struct {
	Text string `json:"text"`
}

type statusDocument struct {
	Version     statusVersion     `json:"version"`
	Players     statusPlayers     `json:"players"`
	Description statusDescription `json:"description"`
	Favicon     string            `json:"favicon,omitempty"`
}

func marshalStatus(st Status) ([]byte, error) {
	doc := statusDocument{
		Version: statusVersion{Name: st.VersionName, Protocol: st.ProtocolVersion},
		Players: statusPlayers{Max: st.MaxPlayers, Online: st.OnlinePlayers},
		Description: statusDescription{
			Text: st.Description,
		},
	}
	for _, name := range st.PlayerSamples {
		doc.Players.Sample = append(doc.Players.Sample, statusPlayerSample{Name: name})
	}
	if st.FaviconBase64 != "" {
		doc.Favicon = "data:image/png;base64," + st.FaviconBase64
	}
	return json.Marshal(doc)
}

func (s *Session) handleStatusRequest(ev *protocol.ReceiveEvent) error {
	var st Status
	if s.cfg.Status != nil {
		st = s.cfg.Status.Status()
	}
	body, err := marshalStatus(st)
	if err != nil {
		return err
	}
	s.SendPacket(&protocol.StatusResponse{JSON: string(body)})
	return nil
}

func (s *Session) handlePingRequest(ev *protocol.ReceiveEvent) error {
	ping, err := protocol.DecodePing(protocol.NewReader(ev.Payload))
	if err != nil {
		return err
	}
	s.SendPacket(&protocol.Ping{Payload: ping.Payload})
	s.client.Disconnect(nil)
	return nil
}
