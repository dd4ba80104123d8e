package server

import (
	"github.com/nebulouslabs/blockserver/build"
	"github.com/nebulouslabs/blockserver/session"
)

// serverStatus is the default session.StatusProvider: it reports the
// running build's version/protocol numbers, the configured MOTD and
// favicon, and a live count of connected sessions.
type serverStatus struct {
	srv *Server
}

// Status implements session.StatusProvider.
func (s serverStatus) Status() session.Status {
	s.srv.mu.Lock()
	online := len(s.srv.sessions)
	var samples []string
	for _, sess := range s.srv.sessions {
		if name := sess.Username(); name != "" {
			samples = append(samples, name)
		}
	}
	s.srv.mu.Unlock()

	return session.Status{
		VersionName:     build.Version,
		ProtocolVersion: build.ProtocolVersion,
		MaxPlayers:      s.srv.cfg.Settings.MaxPlayers,
		OnlinePlayers:   online,
		PlayerSamples:   samples,
		Description:     s.srv.cfg.Settings.Motd,
		FaviconBase64:   s.srv.cfg.Settings.Favicon,
	}
}
